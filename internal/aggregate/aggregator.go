// Package aggregate fans a keyword out to every source and merges what
// comes back into one scored result set.
package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/scoring"
)

// DefaultMaxWait bounds the whole fan-out when no ceiling is configured.
const DefaultMaxWait = 40 * time.Second

var tracer = otel.Tracer("github.com/kalambet/marketscout/internal/aggregate")

// Source is one registered listing source. Fetch must not return errors;
// a failed source returns nil.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keyword string) []listing.Raw
}

// Aggregator queries all sources concurrently.
type Aggregator struct {
	sources []Source
	maxWait time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// New returns an Aggregator over sources, in registration order. A
// non-positive maxWait selects DefaultMaxWait.
func New(sources []Source, maxWait time.Duration) *Aggregator {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Aggregator{
		sources: sources,
		maxWait: maxWait,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// SourceNames lists the registered sources in order.
func (a *Aggregator) SourceNames() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Aggregate fetches keyword from every source, normalizes the listings and
// scores them against the size of the merged set. Listings keep source
// registration order. Sources still running when maxWait elapses are
// cancelled and contribute nothing.
func (a *Aggregator) Aggregate(ctx context.Context, keyword string) []listing.Record {
	ctx, span := tracer.Start(ctx, "aggregate.fanout",
		trace.WithAttributes(attribute.String("keyword", keyword), attribute.Int("sources", len(a.sources))))
	defer span.End()

	raws := a.fanOut(ctx, keyword)

	var merged []listing.Record
	dropped := 0
	for i, batch := range raws {
		for _, raw := range batch {
			r, ok := listing.Normalize(raw, a.sources[i].Name())
			if !ok {
				dropped++
				continue
			}
			merged = append(merged, r)
		}
	}

	span.SetAttributes(attribute.Int("results", len(merged)), attribute.Int("dropped", dropped))
	a.logger.Debug("aggregate done", "keyword", keyword, "results", len(merged), "dropped", dropped)
	if len(merged) == 0 {
		return nil
	}
	return scoring.ScoreAll(merged, a.now())
}

// fanOut returns one slot per source, in registration order.
func (a *Aggregator) fanOut(ctx context.Context, keyword string) [][]listing.Raw {
	ctx, cancel := context.WithTimeout(ctx, a.maxWait)
	defer cancel()

	var (
		mu     sync.Mutex
		slots  = make([][]listing.Raw, len(a.sources))
		closed bool
	)

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			raws := src.Fetch(gCtx, keyword)
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				slots[i] = raws
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("fan-out ceiling reached, dropping unfinished sources", "keyword", keyword, "max_wait", a.maxWait)
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	return slots
}
