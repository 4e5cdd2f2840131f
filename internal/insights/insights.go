// Package insights builds the read-only dashboard views over the knowledge
// base, the trends collection and the query cache.
package insights

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalambet/marketscout/internal/cache"
	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/storage"
)

// Catalog is the slice of the store the insight views read.
type Catalog interface {
	Products(ctx context.Context) []listing.Record
	Trends(ctx context.Context) []listing.Trend
	FindByID(ctx context.Context, id string) (listing.Record, bool)
	Meta(ctx context.Context, key string) string
	Mode() string
}

// Aggregator runs a live fan-out for a keyword.
type Aggregator interface {
	Aggregate(ctx context.Context, keyword string) []listing.Record
}

// Enqueuer accepts records for background persistence.
type Enqueuer interface {
	Enqueue(records []listing.Record) bool
}

// Service computes insight views.
type Service struct {
	catalog Catalog
	cache   cache.Cache
	sources int
	now     func() time.Time

	live  Aggregator
	queue Enqueuer
}

// New creates a Service. sources is the number of registered listing sources.
func New(catalog Catalog, c cache.Cache, sources int) *Service {
	return &Service{catalog: catalog, cache: c, sources: sources, now: time.Now}
}

// EnableDiscovery lets Recommend top up a thin knowledge base with a live
// search. Records it finds are handed to queue for persistence.
func (s *Service) EnableDiscovery(live Aggregator, queue Enqueuer) {
	s.live = live
	s.queue = queue
}

// Stats summarizes the knowledge base.
type Stats struct {
	TotalProducts       int     `json:"totalProducts"`
	AvgOpportunityScore float64 `json:"avgOpportunityScore"`
	EmergingTrends      int     `json:"emergingTrends"`
	CachedQueries       int     `json:"cachedQueries"`
	ActiveSources       int     `json:"activeSources"`
	StoreMode           string  `json:"storeMode"`
	LastSync            string  `json:"lastSync,omitempty"`
	SyncStatus          string  `json:"syncStatus"`
}

// MarketStats returns knowledge base totals and the last refresh state.
func (s *Service) MarketStats(ctx context.Context) Stats {
	products := s.catalog.Products(ctx)
	st := Stats{
		TotalProducts:  len(products),
		EmergingTrends: len(s.catalog.Trends(ctx)),
		CachedQueries:  len(s.cache.Entries(ctx)),
		ActiveSources:  s.sources,
		StoreMode:      s.catalog.Mode(),
		LastSync:       s.catalog.Meta(ctx, storage.MetaLastRefresh),
		SyncStatus:     s.catalog.Meta(ctx, storage.MetaAutomationState),
	}
	if st.SyncStatus == "" {
		st.SyncStatus = "Idle"
	}
	if len(products) > 0 {
		var sum float64
		for _, p := range products {
			sum += p.OpportunityScore
		}
		st.AvgOpportunityScore = math.Round(sum/float64(len(products))*10) / 10
	}
	return st
}

// Keyword is one trending search.
type Keyword struct {
	Keyword      string     `json:"keyword"`
	Volume       string     `json:"volume"`
	Results      int        `json:"results,omitempty"`
	LastSearched *time.Time `json:"lastSearched,omitempty"`
}

const (
	maxKeywords      = 8
	minCachedQueries = 3
)

var defaultKeywords = []Keyword{
	{Keyword: "Perfumes", Volume: "High"},
	{Keyword: "Smart Watches", Volume: "Very High"},
	{Keyword: "Earbuds", Volume: "High"},
	{Keyword: "Kitchen Decor", Volume: "Normal"},
	{Keyword: "Lawn Collection", Volume: "High"},
	{Keyword: "Gaming Keyboards", Volume: "Normal"},
	{Keyword: "Ring Lights", Volume: "High"},
	{Keyword: "Power Banks", Volume: "Very High"},
}

// TrendingKeywords returns the most recently cached queries, newest first.
// Until a few queries have been cached it returns a fixed starter list.
func (s *Service) TrendingKeywords(ctx context.Context) []Keyword {
	entries := s.cache.Entries(ctx)
	if len(entries) < minCachedQueries {
		return slices.Clone(defaultKeywords)
	}

	slices.SortStableFunc(entries, func(a, b cache.Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	title := cases.Title(language.English)
	out := make([]Keyword, 0, maxKeywords)
	for _, e := range entries[:min(len(entries), maxKeywords)] {
		volume := "Normal"
		if len(e.Results) >= 10 {
			volume = "High"
		}
		ts := e.Timestamp
		out = append(out, Keyword{
			Keyword:      title.String(e.Query),
			Volume:       volume,
			Results:      len(e.Results),
			LastSearched: &ts,
		})
	}
	return out
}

// Budget bands in PKR.
var budgetBands = map[string][2]float64{
	"low":    {100, 5000},
	"medium": {5001, 25000},
	"high":   {25001, 1000000},
}

var defaultBand = [2]float64{100, 25000}

var categoryKeywords = map[string][]string{
	"electronics": {"earbud", "watch", "mouse", "keyboard", "power bank", "neckband", "speaker", "charger"},
	"home":        {"kitchen", "gadget", "bottle", "kettle", "blender", "fryer", "rack", "chopper", "light", "decor"},
	"fashion":     {"kurta", "lawn", "bag", "purse", "makeup", "palette", "serum", "facial", "watch", "jewelry", "shoes"},
}

// Ranked is a recommended product with its ranking score.
type Ranked struct {
	listing.Record
	RankScore float64 `json:"rankScore"`
}

// Recommendation is the answer to a budget/category profile.
type Recommendation struct {
	Query   string   `json:"query"`
	Results []Ranked `json:"results"`
	Source  string   `json:"source"`
}

const (
	maxRecommendations = 15
	fallbackRecommends = 10
	minLocalMatches    = 5
	discoveredRank     = 80
)

// Recommend ranks knowledge-base products in the budget band that match the
// category keywords by opportunity score plus 10 per matched keyword. With
// fewer than five matches it runs a live search for the first category
// keyword and adds in-budget hits at rank 80. With still no match it falls
// back to the first products within budget.
func (s *Service) Recommend(ctx context.Context, budget, category string) Recommendation {
	budget = strings.ToLower(strings.TrimSpace(budget))
	category = strings.ToLower(strings.TrimSpace(category))
	if budget == "" {
		budget = "medium"
	}
	if category == "" {
		category = "electronics"
	}
	band, ok := budgetBands[budget]
	if !ok {
		band = defaultBand
	}
	keywords, ok := categoryKeywords[category]
	if !ok {
		keywords = []string{category}
	}

	products := s.catalog.Products(ctx)
	inBudget := func(p listing.Record) bool { return p.Price >= band[0] && p.Price <= band[1] }

	var ranked []Ranked
	for _, p := range products {
		if !inBudget(p) {
			continue
		}
		title := strings.ToLower(p.Title)
		matches := 0
		for _, k := range keywords {
			if strings.Contains(title, k) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		ranked = append(ranked, Ranked{Record: p, RankScore: p.OpportunityScore + float64(10*matches)})
	}
	if len(ranked) < minLocalMatches {
		ranked = append(ranked, s.discover(ctx, keywords[0], inBudget, ranked)...)
	}
	slices.SortStableFunc(ranked, func(a, b Ranked) int { return cmp.Compare(b.RankScore, a.RankScore) })

	if len(ranked) == 0 {
		for _, p := range products {
			if inBudget(p) {
				ranked = append(ranked, Ranked{Record: p, RankScore: p.OpportunityScore})
				if len(ranked) == fallbackRecommends {
					break
				}
			}
		}
	}
	if len(ranked) > maxRecommendations {
		ranked = ranked[:maxRecommendations]
	}
	if ranked == nil {
		ranked = []Ranked{}
	}
	return Recommendation{Query: budget + "_" + category, Results: ranked, Source: "recommendation"}
}

// discover searches the live sources for keyword and returns the in-budget
// records not already in have.
func (s *Service) discover(ctx context.Context, keyword string, inBudget func(listing.Record) bool, have []Ranked) []Ranked {
	if s.live == nil {
		return nil
	}
	seen := make(map[string]bool, len(have))
	for _, r := range have {
		seen[r.Key()] = true
	}

	var found []listing.Record
	for _, r := range s.live.Aggregate(ctx, keyword) {
		if !inBudget(r) || seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		found = append(found, r)
	}
	if len(found) == 0 {
		return nil
	}
	if s.queue != nil {
		s.queue.Enqueue(found)
	}
	slog.Info("recommendation discovery", "keyword", keyword, "found", len(found))

	out := make([]Ranked, len(found))
	for i, r := range found {
		out[i] = Ranked{Record: r, RankScore: discoveredRank}
	}
	return out
}
