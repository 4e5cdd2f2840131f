package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalambet/marketscout/internal/insights"
	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/refresh"
	"github.com/kalambet/marketscout/internal/resolve"
	"github.com/kalambet/marketscout/internal/trends"
)

// --- mocks ---

type mockSearcher struct {
	mu      sync.Mutex
	queries []string
	results []listing.Record
}

func (m *mockSearcher) Resolve(_ context.Context, q string) resolve.Result {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	return resolve.Result{Query: q, Results: m.results, Source: resolve.SourceLive}
}

type mockTrends struct{ lastKind string }

func (m *mockTrends) GetTrends(_ context.Context, kind string) trends.Result {
	m.lastKind = kind
	rec := listing.Record{ID: "t1", Title: "Space Heater", Price: 4000, Platform: "Daraz", OpportunityScore: 72}
	return trends.Result{
		Results:       []listing.Trend{{Record: rec, TrendType: trends.TypeEmerging}},
		Count:         1,
		SeasonContext: []string{"heater"},
	}
}

type mockRefresher struct {
	running  atomic.Bool
	triggers atomic.Int32
}

func (m *mockRefresher) Trigger(context.Context) refresh.TriggerResult {
	m.triggers.Add(1)
	if !m.running.CompareAndSwap(false, true) {
		return refresh.TriggerResult{AlreadyRunning: true}
	}
	return refresh.TriggerResult{Started: true}
}

func (m *mockRefresher) Status(context.Context) refresh.Status {
	ts := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	return refresh.Status{LastRun: &ts, Status: refresh.StatusHealthy, Running: m.running.Load()}
}

type mockInsights struct{}

func (mockInsights) MarketStats(context.Context) insights.Stats {
	return insights.Stats{TotalProducts: 3, StoreMode: "memory", SyncStatus: "Idle"}
}

func (mockInsights) TrendingKeywords(context.Context) []insights.Keyword {
	return []insights.Keyword{{Keyword: "Earbuds", Volume: "High"}}
}

func (mockInsights) Recommend(_ context.Context, budget, category string) insights.Recommendation {
	return insights.Recommendation{Query: budget + "_" + category, Results: []insights.Ranked{}, Source: "recommendation"}
}

func (mockInsights) Details(_ context.Context, id string) insights.Detail {
	return insights.Detail{Product: listing.Record{ID: id, Title: "Thing"}}
}

func sampleRecords(n int) []listing.Record {
	out := make([]listing.Record, n)
	for i := range out {
		out[i] = listing.Record{ID: string(rune('a' + i)), Title: "Gadget", Price: 1000, Platform: "Daraz"}
	}
	return out
}
