package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/marketscout/internal/cache"
	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/scoring"
)

// KnowledgeLimit caps knowledge-base matches.
const KnowledgeLimit = 15

// OverrideTier serves operator-curated result sets for exact queries.
type OverrideTier struct {
	entries map[string][]listing.Record
}

// OverrideEntry is one row of the overrides file.
type OverrideEntry struct {
	Query   string           `json:"q"`
	Results []listing.Record `json:"results"`
}

// NewOverrideTier indexes entries by normalized query.
func NewOverrideTier(entries []OverrideEntry) *OverrideTier {
	m := make(map[string][]listing.Record, len(entries))
	for _, e := range entries {
		if q := listing.NormalizeQuery(e.Query); q != "" && len(e.Results) > 0 {
			m[q] = e.Results
		}
	}
	return &OverrideTier{entries: m}
}

// LoadOverrides reads an overrides file. A missing file yields an empty tier.
func LoadOverrides(path string) (*OverrideTier, error) {
	if path == "" {
		return NewOverrideTier(nil), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewOverrideTier(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading overrides: %w", err)
	}
	var entries []OverrideEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing overrides %s: %w", path, err)
	}
	return NewOverrideTier(entries), nil
}

func (t *OverrideTier) Name() string { return "override" }

// Len returns the number of override queries.
func (t *OverrideTier) Len() int { return len(t.entries) }

func (t *OverrideTier) TryResolve(_ context.Context, q string) (Result, bool) {
	results, ok := t.entries[q]
	if !ok {
		return Result{}, false
	}
	return Result{Results: slices.Clone(results), Source: SourceVerified, IsOverride: true}, true
}

// CacheTier serves the last result set stored for the query.
type CacheTier struct {
	cache cache.Cache
}

func NewCacheTier(c cache.Cache) *CacheTier { return &CacheTier{cache: c} }

func (t *CacheTier) Name() string { return "cache" }

func (t *CacheTier) TryResolve(ctx context.Context, q string) (Result, bool) {
	results, ok := t.cache.Get(ctx, q)
	if !ok {
		return Result{}, false
	}
	return Result{Results: results, Source: SourceCached, IsCached: true}, true
}

// Aggregator runs the live fan-out.
type Aggregator interface {
	Aggregate(ctx context.Context, keyword string) []listing.Record
}

// Enqueuer accepts result sets for background persistence.
type Enqueuer interface {
	Enqueue(records []listing.Record) bool
}

// LiveTier queries the sources. Concurrent identical queries share one fan-out.
type LiveTier struct {
	agg   Aggregator
	queue Enqueuer
	group singleflight.Group
}

func NewLiveTier(agg Aggregator, queue Enqueuer) *LiveTier {
	return &LiveTier{agg: agg, queue: queue}
}

func (t *LiveTier) Name() string { return "live" }

// TryResolve joins any fan-out already running for q. The shared fan-out is
// detached from the caller that started it, so one caller going away does
// not cancel it for the others; the aggregator's own ceiling bounds it.
func (t *LiveTier) TryResolve(ctx context.Context, q string) (Result, bool) {
	shared := context.WithoutCancel(ctx)
	ch := t.group.DoChan(q, func() (any, error) {
		records := t.agg.Aggregate(shared, q)
		if len(records) > 0 && t.queue != nil {
			t.queue.Enqueue(records)
		}
		return records, nil
	})

	var records []listing.Record
	select {
	case <-ctx.Done():
		return Result{}, false
	case res := <-ch:
		records, _ = res.Val.([]listing.Record)
	}
	if len(records) == 0 {
		return Result{}, false
	}
	return Result{Results: slices.Clone(records), Source: SourceLive, writeBack: true}, true
}

// ProductReader lists the knowledge base.
type ProductReader interface {
	Products(ctx context.Context) []listing.Record
}

// KnowledgeTier matches the query against every persisted product title.
type KnowledgeTier struct {
	products ProductReader
	now      func() time.Time
}

func NewKnowledgeTier(products ProductReader) *KnowledgeTier {
	return &KnowledgeTier{products: products, now: time.Now}
}

func (t *KnowledgeTier) Name() string { return "knowledge-base" }

func (t *KnowledgeTier) TryResolve(ctx context.Context, q string) (Result, bool) {
	matched := MatchProducts(t.products.Products(ctx), q, KnowledgeLimit)
	if len(matched) == 0 {
		return Result{}, false
	}
	return Result{
		Results:   scoring.ScoreAll(matched, t.now()),
		Source:    SourceKnowledgeBase,
		writeBack: true,
	}, true
}

// MatchProducts returns products whose title contains q or any of its
// tokens, ranked by exact containment then matched token count, both
// descending. Ties keep knowledge-base order.
func MatchProducts(products []listing.Record, q string, limit int) []listing.Record {
	q = listing.NormalizeQuery(q)
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return nil
	}

	type match struct {
		r      listing.Record
		exact  bool
		tokens int
	}
	var matches []match
	for _, p := range products {
		title := strings.ToLower(p.Title)
		m := match{r: p, exact: strings.Contains(title, q)}
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				m.tokens++
			}
		}
		if m.exact || m.tokens > 0 {
			matches = append(matches, m)
		}
	}

	slices.SortStableFunc(matches, func(a, b match) int {
		if a.exact != b.exact {
			if a.exact {
				return -1
			}
			return 1
		}
		return b.tokens - a.tokens
	})

	n := min(len(matches), limit)
	out := make([]listing.Record, n)
	for i := range n {
		out[i] = matches[i].r
	}
	return out
}
