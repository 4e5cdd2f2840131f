// Package cache stores the last result set served for each query. Entries
// never expire; a new write for the same query replaces the old one.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/storage"
)

// Entry is one cached query.
type Entry struct {
	Query     string           `json:"q"`
	Results   []listing.Record `json:"results"`
	Timestamp time.Time        `json:"timestamp"`
}

// Cache maps a normalized query to its last result set. Implementations
// swallow backend errors: a failed Get is a miss and a failed Put is logged.
type Cache interface {
	Get(ctx context.Context, query string) ([]listing.Record, bool)
	Put(ctx context.Context, query string, results []listing.Record)
	Entries(ctx context.Context) []Entry
}

// StoreCache keeps entries in the search_cache collection of a document store.
type StoreCache struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStoreCache returns a Cache backed by store.
func NewStoreCache(store storage.Store) *StoreCache {
	return &StoreCache{store: store, logger: slog.Default(), now: time.Now}
}

func (c *StoreCache) Get(ctx context.Context, query string) ([]listing.Record, bool) {
	q := listing.NormalizeQuery(query)
	if q == "" {
		return nil, false
	}
	doc, err := c.store.Get(ctx, storage.Cache, q)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("cache read failed", "query", q, "error", err)
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(doc, &e); err != nil || len(e.Results) == 0 {
		return nil, false
	}
	return e.Results, true
}

func (c *StoreCache) Put(ctx context.Context, query string, results []listing.Record) {
	q := listing.NormalizeQuery(query)
	if q == "" || len(results) == 0 {
		return
	}
	body, err := json.Marshal(Entry{Query: q, Results: results, Timestamp: c.now().UTC()})
	if err != nil {
		c.logger.Warn("encoding cache entry failed", "query", q, "error", err)
		return
	}
	if err := c.store.Upsert(ctx, storage.Cache, q, body); err != nil {
		c.logger.Warn("cache write failed", "query", q, "error", err)
	}
}

func (c *StoreCache) Entries(ctx context.Context) []Entry {
	docs, err := c.store.GetAll(ctx, storage.Cache)
	if err != nil {
		c.logger.Warn("cache read failed", "error", err)
		return nil
	}
	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		var e Entry
		if err := json.Unmarshal(d, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
