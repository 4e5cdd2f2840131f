// Package refresh runs the background market refresh: it walks a fixed
// niche list through the resolver, records emerging trends and writes run
// metadata. At most one refresh runs at a time.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/resolve"
	"github.com/kalambet/marketscout/internal/storage"
)

// DefaultNiches is the keyword set walked on every refresh.
var DefaultNiches = []string{
	"smart watch", "earbuds", "kitchen gadgets",
	"led lights", "makeup", "gaming mouse",
	"water bottle", "tripod", "hair dryer",
}

// Run status values.
const (
	StatusHealthy = "Healthy"
	StatusIdle    = "Idle"
	failedPrefix  = "Failed: "
)

// Resolver answers one query through the full tier chain.
type Resolver interface {
	Resolve(ctx context.Context, query string) resolve.Result
}

// TrendRecorder turns result sets into stored trends.
type TrendRecorder interface {
	Record(ctx context.Context, records []listing.Record) int
	Sweep(ctx context.Context) int
}

// Catalog holds the trends collection and run metadata.
type Catalog interface {
	ClearTrends(ctx context.Context)
	Meta(ctx context.Context, key string) string
	SetMeta(ctx context.Context, key, value string)
}

// Options configures a Scheduler.
type Options struct {
	Niches     []string
	NicheDelay time.Duration // pause between niches; 0 selects 1s
	Hour       int           // local hour for the daily run
	Interval   time.Duration // when set, run every Interval instead of daily
}

// TriggerResult reports what a trigger did.
type TriggerResult struct {
	Started        bool `json:"started"`
	AlreadyRunning bool `json:"alreadyRunning"`
}

// Status is the last recorded run.
type Status struct {
	LastRun *time.Time `json:"lastRun"`
	Status  string     `json:"status"`
	Running bool       `json:"running"`
}

// Scheduler owns the single-flight refresh job.
type Scheduler struct {
	resolver Resolver
	trends   TrendRecorder
	catalog  Catalog
	opts     Options
	now      func() time.Time
	logger   *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Scheduler. Zero-valued options select the defaults.
func New(resolver Resolver, trends TrendRecorder, catalog Catalog, opts Options) *Scheduler {
	if len(opts.Niches) == 0 {
		opts.Niches = DefaultNiches
	}
	if opts.NicheDelay == 0 {
		opts.NicheDelay = time.Second
	}
	if opts.Hour < 0 || opts.Hour > 23 {
		opts.Hour = 3
	}
	return &Scheduler{
		resolver: resolver,
		trends:   trends,
		catalog:  catalog,
		opts:     opts,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// Running reports whether a refresh is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Trigger starts a refresh in the background unless one is already running.
// The refresh outlives ctx's cancellation but keeps its values.
func (s *Scheduler) Trigger(ctx context.Context) TriggerResult {
	if !s.running.CompareAndSwap(false, true) {
		return TriggerResult{AlreadyRunning: true}
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.WithoutCancel(ctx))
	}()
	return TriggerResult{Started: true}
}

// RunNow performs a refresh synchronously under the same guard as Trigger.
func (s *Scheduler) RunNow(ctx context.Context) TriggerResult {
	if !s.running.CompareAndSwap(false, true) {
		return TriggerResult{AlreadyRunning: true}
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.execute(ctx)
	return TriggerResult{Started: true}
}

// Wait blocks until background refreshes finish or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the last recorded run.
func (s *Scheduler) Status(ctx context.Context) Status {
	st := Status{
		Status:  s.catalog.Meta(ctx, storage.MetaAutomationState),
		Running: s.running.Load(),
	}
	if st.Status == "" {
		st.Status = StatusIdle
	}
	if v := s.catalog.Meta(ctx, storage.MetaLastRefresh); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			st.LastRun = &t
		}
	}
	return st
}

// Run fires Trigger on schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.nextRun(s.now())
		s.logger.Info("next market refresh scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if res := s.Trigger(ctx); res.AlreadyRunning {
			s.logger.Info("scheduled refresh skipped, already running")
		}
	}
}

// nextRun returns the next fire time after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	if s.opts.Interval > 0 {
		return now.Add(s.opts.Interval)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), s.opts.Hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// execute runs one refresh. The caller must hold the running flag; execute
// always releases it and always records run metadata.
func (s *Scheduler) execute(ctx context.Context) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	start := s.now()
	status := StatusHealthy

	defer s.running.Store(false)
	defer func() {
		if p := recover(); p != nil {
			status = failedPrefix + fmt.Sprint(p)
			logger.Error("market refresh panicked", "panic", p)
		}
		meta := context.WithoutCancel(ctx)
		s.catalog.SetMeta(meta, storage.MetaLastRefresh, s.now().Format(time.RFC3339))
		s.catalog.SetMeta(meta, storage.MetaAutomationState, status)
		logger.Info("market refresh finished", "status", status, "elapsed", time.Since(start))
	}()

	logger.Info("market refresh started", "niches", len(s.opts.Niches))
	if err := s.walk(ctx, logger); err != nil {
		status = failedPrefix + err.Error()
		logger.Warn("market refresh failed", "error", err)
	}
}

func (s *Scheduler) walk(ctx context.Context, logger *slog.Logger) error {
	s.catalog.ClearTrends(ctx)

	for i, niche := range s.opts.Niches {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted before %q: %w", niche, err)
		}
		res := s.resolver.Resolve(ctx, niche)
		n := s.trends.Record(ctx, res.Results)
		logger.Info("niche refreshed", "niche", niche, "source", res.Source, "results", len(res.Results), "emerging", n)

		if i == len(s.opts.Niches)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted after %q: %w", niche, ctx.Err())
		case <-time.After(s.opts.NicheDelay):
		}
	}

	s.trends.Sweep(ctx)
	return nil
}
