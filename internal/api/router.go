// Package api exposes the engine over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/marketscout/internal/insights"
	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/refresh"
	"github.com/kalambet/marketscout/internal/resolve"
	"github.com/kalambet/marketscout/internal/seed"
	"github.com/kalambet/marketscout/internal/storage"
	"github.com/kalambet/marketscout/internal/trends"
)

// Searcher resolves a query through the fallback chain.
type Searcher interface {
	Resolve(ctx context.Context, query string) resolve.Result
}

// TrendReader serves the trends views.
type TrendReader interface {
	GetTrends(ctx context.Context, kind string) trends.Result
}

// Refresher controls the background refresh job.
type Refresher interface {
	Trigger(ctx context.Context) refresh.TriggerResult
	Status(ctx context.Context) refresh.Status
}

// Insights serves the dashboard views.
type Insights interface {
	MarketStats(ctx context.Context) insights.Stats
	TrendingKeywords(ctx context.Context) []insights.Keyword
	Recommend(ctx context.Context, budget, category string) insights.Recommendation
	Details(ctx context.Context, id string) insights.Detail
}

// Watchlist stores bookmarked products.
type Watchlist interface {
	AddWatch(ctx context.Context, item storage.WatchItem) (storage.WatchItem, error)
	Watchlist(ctx context.Context) ([]storage.WatchItem, error)
	RemoveWatch(ctx context.Context, id string) error
}

type AppDeps struct {
	Search    Searcher
	Trends    TrendReader
	Refresh   Refresher
	Insights  Insights
	Watchlist Watchlist
	Products  seed.Catalog
	Sources   []string
	StoreMode string
	Version   string
	Token     string
}

// NewAppHandler returns the HTTP API. Reads are public; anything that
// mutates state requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth(deps))
	r.Get("/search", handleSearch(deps))
	r.Get("/trends", handleTrends(deps))
	r.Get("/status", handleStatus(deps))
	r.Get("/market-stats", handleMarketStats(deps))
	r.Get("/analytics/keywords", handleKeywords(deps))
	r.Get("/recommendations", handleRecommendations(deps))
	r.Get("/details/{id}", handleDetails(deps))
	r.Get("/watchlist", handleListWatchlist(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/trends/refresh", handleTriggerRefresh(deps))
		r.Post("/watchlist", handleAddWatch(deps))
		r.Delete("/watchlist/{id}", handleRemoveWatch(deps))
		r.Post("/seed", handleSeed(deps))
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// searchResponse keeps results an array even when a caller trims it to zero.
type searchResponse struct {
	resolve.Result
	Count int `json:"count"`
}

func trimResults(records []listing.Record, limit int) []listing.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
