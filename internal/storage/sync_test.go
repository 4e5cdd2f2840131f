package storage

import (
	"context"
	"testing"
)

func TestSyncCopiesLocalWritesToPrimary(t *testing.T) {
	primary, local := NewMemory(), NewMemory()
	primary.Upsert(ctx, Products, "Kettle|Daraz", []byte(`{"title":"Kettle","v":1}`))

	local.Upsert(ctx, Products, "Kettle|Daraz", []byte(`{"title":"Kettle","v":2}`))
	local.Upsert(ctx, Products, "Fan|Daraz", []byte(`{"title":"Fan"}`))
	local.Upsert(ctx, Trends, "Fan|Daraz", []byte(`{"title":"Fan","trendType":"Emerging"}`))
	local.Upsert(ctx, Watchlist, "w1", []byte(`{"id":"w1"}`))

	res, err := Sync(ctx, primary, local, SyncCollections...)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res[Products] != 2 || res[Trends] != 1 || res.Total() != 3 {
		t.Errorf("result = %v", res)
	}

	doc, err := primary.Get(ctx, Products, "Kettle|Daraz")
	if err != nil || string(doc) != `{"title":"Kettle","v":2}` {
		t.Errorf("kettle = %s, %v; want the local copy", doc, err)
	}
	keys, _ := primary.Keys(ctx, Products)
	if len(keys) != 2 || keys[0] != "Kettle|Daraz" || keys[1] != "Fan|Daraz" {
		t.Errorf("primary keys = %v", keys)
	}
	if trends, _ := primary.GetAll(ctx, Trends); len(trends) != 1 {
		t.Errorf("trends copied = %d, want 1", len(trends))
	}
	if wl, _ := primary.GetAll(ctx, Watchlist); len(wl) != 0 {
		t.Errorf("watchlist should not be copied, got %d", len(wl))
	}
}

func TestSyncThenFailoverReadsPrimary(t *testing.T) {
	primary, local := NewMemory(), NewMemory()
	local.Upsert(ctx, Products, "Fan|Daraz", []byte(`{"title":"Fan"}`))

	if _, err := Sync(ctx, primary, local, Products); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	docs, err := NewFailover(primary, local).GetAll(ctx, Products)
	if err != nil || len(docs) != 1 {
		t.Errorf("failover sees %d products (%v), want 1", len(docs), err)
	}
}

func TestSyncStopsOnPrimaryFailure(t *testing.T) {
	local := NewMemory()
	local.Upsert(ctx, Products, "a", []byte(`{}`))

	if _, err := Sync(ctx, brokenStore{}, local, Products); err == nil {
		t.Fatal("expected error when the primary is down")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Sync(cctx, NewMemory(), local, Products); err == nil {
		t.Error("expected error for a cancelled context")
	}
}
