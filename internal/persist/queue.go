// Package persist writes scored listings to the knowledge base off the
// request path.
package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// ProductWriter saves one product. Implementations handle their own errors.
type ProductWriter interface {
	SaveProduct(ctx context.Context, r listing.Record)
}

// Queue buffers result sets and writes them in the background. Enqueue
// never blocks; when the buffer is full the batch is dropped and logged.
type Queue struct {
	writer ProductWriter
	ch     chan []listing.Record
	logger *slog.Logger
}

// NewQueue creates a Queue holding up to size pending batches.
// If size is <= 0, it defaults to 64.
func NewQueue(writer ProductWriter, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		writer: writer,
		ch:     make(chan []listing.Record, size),
		logger: slog.Default(),
	}
}

// Enqueue schedules records for persistence. It reports whether the batch was accepted.
func (q *Queue) Enqueue(records []listing.Record) bool {
	if len(records) == 0 {
		return true
	}
	batch := make([]listing.Record, len(records))
	copy(batch, records)
	select {
	case q.ch <- batch:
		return true
	default:
		q.logger.Warn("persist queue full, dropping batch", "records", len(records))
		return false
	}
}

// Pending returns the number of batches waiting to be written.
func (q *Queue) Pending() int { return len(q.ch) }

// Run writes batches until ctx is cancelled, then flushes what is left.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.flush()
			return
		case batch := <-q.ch:
			q.write(ctx, batch)
		}
	}
}

// RunOnce writes a single pending batch without waiting.
// Returns true if a batch was written.
func (q *Queue) RunOnce(ctx context.Context) bool {
	select {
	case batch := <-q.ch:
		q.write(ctx, batch)
		return true
	default:
		return false
	}
}

func (q *Queue) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n := 0
	for q.RunOnce(ctx) {
		n++
	}
	if n > 0 {
		q.logger.Info("persist queue flushed on shutdown", "batches", n)
	}
}

func (q *Queue) write(ctx context.Context, batch []listing.Record) {
	for _, r := range batch {
		q.writer.SaveProduct(ctx, r)
	}
	q.logger.Debug("persisted batch", "records", len(batch))
}
