// Package resolve answers a search query from the first tier that has data:
// operator overrides, the query cache, a live fan-out, the knowledge base,
// and finally synthesized predictions.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/marketscout/internal/cache"
	"github.com/kalambet/marketscout/internal/listing"
)

// Source labels reported with each result.
const (
	SourceVerified      = "verified"
	SourceCached        = "cached"
	SourceLive          = "live"
	SourceKnowledgeBase = "knowledge-base"
	SourceGenerative    = "generative forecast"
)

var tracer = otel.Tracer("github.com/kalambet/marketscout/internal/resolve")

// Result is the answer to one query.
type Result struct {
	Query        string           `json:"query"`
	Results      []listing.Record `json:"results"`
	Source       string           `json:"source"`
	IsCached     bool             `json:"isCached,omitempty"`
	IsOverride   bool             `json:"isOverride,omitempty"`
	IsPrediction bool             `json:"isPrediction,omitempty"`
	Note         string           `json:"note,omitempty"`

	// writeBack marks results the resolver stores in the query cache.
	writeBack bool
}

// Tier is one stage of the resolution chain. TryResolve receives the
// normalized query and reports false when it has nothing to offer.
type Tier interface {
	Name() string
	TryResolve(ctx context.Context, query string) (Result, bool)
}

// Resolver walks its tiers in order and returns the first non-empty result.
type Resolver struct {
	cache  cache.Cache
	tiers  []Tier
	logger *slog.Logger
}

// New builds a Resolver. When the last tier is not a SynthesisTier one is
// appended, so Resolve always has an answer.
func New(c cache.Cache, tiers ...Tier) *Resolver {
	if len(tiers) == 0 {
		tiers = append(tiers, NewSynthesisTier())
	} else if _, ok := tiers[len(tiers)-1].(*SynthesisTier); !ok {
		tiers = append(tiers, NewSynthesisTier())
	}
	return &Resolver{cache: c, tiers: tiers, logger: slog.Default()}
}

// TierNames lists the tiers in evaluation order.
func (r *Resolver) TierNames() []string {
	names := make([]string, len(r.tiers))
	for i, t := range r.tiers {
		names[i] = t.Name()
	}
	return names
}

// Resolve answers query. It never returns an empty result set; callers
// must reject blank queries before calling it.
func (r *Resolver) Resolve(ctx context.Context, query string) Result {
	q := listing.NormalizeQuery(query)
	ctx, span := tracer.Start(ctx, "resolve.query", trace.WithAttributes(attribute.String("query", q)))
	defer span.End()

	start := time.Now()
	for _, t := range r.tiers {
		res, ok := r.try(ctx, t, q)
		if !ok || len(res.Results) == 0 {
			continue
		}
		res.Query = query
		// An abandoned query fell through tiers it never reached for real.
		if res.writeBack && r.cache != nil && ctx.Err() == nil {
			r.cache.Put(ctx, q, res.Results)
		}
		span.SetAttributes(attribute.String("tier", t.Name()), attribute.Int("results", len(res.Results)))
		r.logger.Info("query resolved", "query", q, "tier", t.Name(), "results", len(res.Results), "elapsed", time.Since(start))
		return res
	}

	// Unreachable while a SynthesisTier closes the chain.
	return Result{Query: query, Source: SourceGenerative}
}

func (r *Resolver) try(ctx context.Context, t Tier, q string) (res Result, ok bool) {
	ctx, span := tracer.Start(ctx, "resolve.tier."+t.Name())
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tier panicked", "tier", t.Name(), "query", q, "panic", p)
			res, ok = Result{}, false
		}
	}()
	res, ok = t.TryResolve(ctx, q)
	span.SetAttributes(attribute.Bool("hit", ok && len(res.Results) > 0))
	return res, ok
}
