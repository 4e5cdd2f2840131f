package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested document or metadata key does not exist.
var ErrNotFound = errors.New("not found")

// Collection names used by the engine.
const (
	Products  = "products"
	Cache     = "search_cache"
	Trends    = "emerging_trends"
	Watchlist = "watchlist"
)

// Store is the persistence capability the engine is built against. Documents
// are opaque JSON bodies addressed by (collection, key); writing an existing
// key replaces the body. GetAll returns documents in first-insert order.
// No operation spans more than one collection.
type Store interface {
	Upsert(ctx context.Context, collection, key string, doc []byte) error
	GetAll(ctx context.Context, collection string) ([][]byte, error)
	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Keys lists a collection's keys in first-insert order.
	Keys(ctx context.Context, collection string) ([]string, error)
	Delete(ctx context.Context, collection, key string) error
	Clear(ctx context.Context, collection string) error
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Mode names the backing implementation for status output.
	Mode() string
	Close() error
}
