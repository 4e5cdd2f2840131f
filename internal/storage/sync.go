package storage

import (
	"context"
	"errors"
	"fmt"
)

// SyncCollections are the collections copied back to the primary after the
// engine ran on its local store.
var SyncCollections = []string{Products, Trends}

// SyncResult counts the documents copied per collection.
type SyncResult map[string]int

// Total is the number of documents copied.
func (r SyncResult) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Sync upserts every document of collections from src into dst, keeping
// keys. Documents already in dst are overwritten by the src copy. A document
// removed from src between listing and reading is skipped.
func Sync(ctx context.Context, dst, src Store, collections ...string) (SyncResult, error) {
	res := make(SyncResult, len(collections))
	for _, col := range collections {
		keys, err := src.Keys(ctx, col)
		if err != nil {
			return res, fmt.Errorf("listing %s: %w", col, err)
		}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			doc, err := src.Get(ctx, col, key)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("reading %s/%s: %w", col, key, err)
			}
			if err := dst.Upsert(ctx, col, key, doc); err != nil {
				return res, fmt.Errorf("copying %s/%s: %w", col, key, err)
			}
			res[col]++
		}
	}
	return res, nil
}
