// Package source wraps the external listing fetchers. Every fetcher sits
// behind an Adapter that bounds it with a timeout and turns any failure
// into an empty result.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// DefaultTimeout bounds a single fetcher call when none is configured.
const DefaultTimeout = 35 * time.Second

// Fetcher retrieves raw listings for a keyword. It may fail, hang or panic;
// the Adapter deals with all three.
type Fetcher interface {
	Fetch(ctx context.Context, keyword string) ([]listing.Raw, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, keyword string) ([]listing.Raw, error)

func (f FetcherFunc) Fetch(ctx context.Context, keyword string) ([]listing.Raw, error) {
	return f(ctx, keyword)
}

// Adapter isolates one fetcher. Fetch never returns an error and never
// blocks past the adapter timeout.
type Adapter struct {
	name    string
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewAdapter wraps fetcher under name. A non-positive timeout selects DefaultTimeout.
func NewAdapter(name string, fetcher Fetcher, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		name:    name,
		fetcher: fetcher,
		timeout: timeout,
		logger:  slog.Default().With("source", name),
	}
}

// Name returns the source name, used as the default platform tag.
func (a *Adapter) Name() string { return a.name }

type fetchResult struct {
	raws []listing.Raw
	err  error
}

// Fetch runs the fetcher in its own goroutine and returns its listings, or
// nil on error, panic, timeout or cancellation.
func (a *Adapter) Fetch(ctx context.Context, keyword string) []listing.Raw {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchResult{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		raws, err := a.fetcher.Fetch(ctx, keyword)
		ch <- fetchResult{raws: raws, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			a.logger.Warn("source failed", "keyword", keyword, "error", res.err)
			return nil
		}
		a.logger.Debug("source done", "keyword", keyword, "count", len(res.raws), "elapsed", time.Since(start))
		return res.raws
	case <-ctx.Done():
		a.logger.Warn("source timed out", "keyword", keyword, "timeout", a.timeout, "error", ctx.Err())
		return nil
	}
}
