package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/marketscout/internal/listing"
)

// Run metadata keys.
const (
	MetaLastRefresh     = "lastAutomatedRefresh"
	MetaAutomationState = "automationStatus"
)

// WatchItem is a product the operator has bookmarked.
type WatchItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price,omitempty"`
	Platform string  `json:"platform,omitempty"`
	Link     string  `json:"link,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
	AddedAt  string  `json:"addedAt,omitempty"`
}

// Catalog is the typed view of a Store used by the engine. Reads degrade to
// empty results and writes are logged and dropped when the store fails, so
// engine callers never see a persistence error. Watchlist mutations are the
// exception: they report errors because an operator is waiting on them.
type Catalog struct {
	store  Store
	logger *slog.Logger
}

// NewCatalog wraps store.
func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store, logger: slog.Default()}
}

// Mode returns the backing store's mode name.
func (c *Catalog) Mode() string { return c.store.Mode() }

// SaveProduct upserts r into the knowledge base when it has a title and a positive price.
func (c *Catalog) SaveProduct(ctx context.Context, r listing.Record) {
	if !r.Persistable() {
		return
	}
	c.put(ctx, Products, r.Key(), r)
}

// Products returns every persisted product in first-insert order.
func (c *Catalog) Products(ctx context.Context) []listing.Record {
	return readAll[listing.Record](ctx, c, Products)
}

// SaveTrend upserts t into the emerging trends collection.
func (c *Catalog) SaveTrend(ctx context.Context, t listing.Trend) {
	if !t.Persistable() {
		return
	}
	c.put(ctx, Trends, t.Key(), t)
}

// Trends returns the current emerging trends.
func (c *Catalog) Trends(ctx context.Context) []listing.Trend {
	return readAll[listing.Trend](ctx, c, Trends)
}

// ClearTrends empties the emerging trends collection.
func (c *Catalog) ClearTrends(ctx context.Context) {
	if err := c.store.Clear(ctx, Trends); err != nil {
		c.logger.Warn("clearing trends failed", "error", err)
	}
}

// Meta returns a run metadata value, or "" when unset or unavailable.
func (c *Catalog) Meta(ctx context.Context, key string) string {
	v, err := c.store.GetMeta(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("reading metadata failed", "key", key, "error", err)
		}
		return ""
	}
	return v
}

// SetMeta writes a run metadata value.
func (c *Catalog) SetMeta(ctx context.Context, key, value string) {
	if err := c.store.SetMeta(ctx, key, value); err != nil {
		c.logger.Warn("writing metadata failed", "key", key, "error", err)
	}
}

// FindByID looks up a record by its client-facing id across products and trends.
func (c *Catalog) FindByID(ctx context.Context, id string) (listing.Record, bool) {
	for _, r := range c.Products(ctx) {
		if r.ID == id {
			return r, true
		}
	}
	for _, t := range c.Trends(ctx) {
		if t.ID == id {
			return t.Record, true
		}
	}
	return listing.Record{}, false
}

// AddWatch stores item, synthesizing an id when it has none.
func (c *Catalog) AddWatch(ctx context.Context, item WatchItem) (WatchItem, error) {
	if strings.TrimSpace(item.Title) == "" {
		return WatchItem{}, fmt.Errorf("watchlist item requires a title")
	}
	if item.ID == "" {
		item.ID = "watch_" + uuid.NewString()
	}
	if item.AddedAt == "" {
		item.AddedAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(item)
	if err != nil {
		return WatchItem{}, fmt.Errorf("encoding watchlist item: %w", err)
	}
	if err := c.store.Upsert(ctx, Watchlist, item.ID, body); err != nil {
		return WatchItem{}, fmt.Errorf("saving watchlist item: %w", err)
	}
	return item, nil
}

// Watchlist returns every bookmarked item.
func (c *Catalog) Watchlist(ctx context.Context) ([]WatchItem, error) {
	docs, err := c.store.GetAll(ctx, Watchlist)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	items := make([]WatchItem, 0, len(docs))
	for _, d := range docs {
		var it WatchItem
		if err := json.Unmarshal(d, &it); err != nil {
			c.logger.Warn("skipping malformed watchlist item", "error", err)
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// RemoveWatch deletes a watchlist item. It returns ErrNotFound for unknown ids.
func (c *Catalog) RemoveWatch(ctx context.Context, id string) error {
	return c.store.Delete(ctx, Watchlist, id)
}

func (c *Catalog) put(ctx context.Context, collection, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("encoding document failed", "collection", collection, "key", key, "error", err)
		return
	}
	if err := c.store.Upsert(ctx, collection, key, body); err != nil {
		c.logger.Warn("persisting document failed", "collection", collection, "key", key, "error", err)
	}
}

func readAll[T any](ctx context.Context, c *Catalog, collection string) []T {
	docs, err := c.store.GetAll(ctx, collection)
	if err != nil {
		c.logger.Warn("reading collection failed", "collection", collection, "error", err)
		return nil
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d, &v); err != nil {
			c.logger.Warn("skipping malformed document", "collection", collection, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}
