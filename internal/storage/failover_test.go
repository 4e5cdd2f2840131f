package storage

import (
	"context"
	"errors"
	"testing"
)

// brokenStore fails every call, standing in for an unreachable database.
type brokenStore struct{}

var errDown = errors.New("connection refused")

func (brokenStore) Upsert(context.Context, string, string, []byte) error { return errDown }
func (brokenStore) GetAll(context.Context, string) ([][]byte, error)     { return nil, errDown }
func (brokenStore) Get(context.Context, string, string) ([]byte, error)  { return nil, errDown }
func (brokenStore) Keys(context.Context, string) ([]string, error)       { return nil, errDown }
func (brokenStore) Delete(context.Context, string, string) error         { return errDown }
func (brokenStore) Clear(context.Context, string) error                  { return errDown }
func (brokenStore) GetMeta(context.Context, string) (string, error)      { return "", errDown }
func (brokenStore) SetMeta(context.Context, string, string) error        { return errDown }
func (brokenStore) Mode() string                                         { return "broken" }
func (brokenStore) Close() error                                         { return nil }

func TestFailoverUsesFallbackWhenPrimaryDown(t *testing.T) {
	fallback := NewMemory()
	f := NewFailover(brokenStore{}, fallback)

	if err := f.Upsert(ctx, Products, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	docs, err := f.GetAll(ctx, Products)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc via fallback, got %d", len(docs))
	}

	if err := f.SetMeta(ctx, "k", "v"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if v, err := f.GetMeta(ctx, "k"); err != nil || v != "v" {
		t.Errorf("GetMeta = %q, %v; want v, nil", v, err)
	}
	if f.Mode() != "broken+memory" {
		t.Errorf("Mode = %q", f.Mode())
	}
}

func TestFailoverPrefersPrimary(t *testing.T) {
	primary := NewMemory()
	fallback := NewMemory()
	f := NewFailover(primary, fallback)

	f.Upsert(ctx, Products, "k", []byte(`{}`))

	if docs, _ := primary.GetAll(ctx, Products); len(docs) != 1 {
		t.Errorf("expected write in primary, got %d", len(docs))
	}
	if docs, _ := fallback.GetAll(ctx, Products); len(docs) != 0 {
		t.Errorf("expected fallback untouched, got %d", len(docs))
	}
}

func TestFailoverMetaFallsThroughOnNotFound(t *testing.T) {
	primary := NewMemory()
	fallback := NewMemory()
	fallback.SetMeta(ctx, MetaLastRefresh, "2026-01-01T03:00:00Z")

	f := NewFailover(primary, fallback)
	v, err := f.GetMeta(ctx, MetaLastRefresh)
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if v != "2026-01-01T03:00:00Z" {
		t.Errorf("GetMeta = %q", v)
	}
}

func TestFailoverDeleteClearsBoth(t *testing.T) {
	primary := NewMemory()
	fallback := NewMemory()
	fallback.Upsert(ctx, Watchlist, "w", []byte(`{}`))

	f := NewFailover(primary, fallback)
	if err := f.Delete(ctx, Watchlist, "w"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.Delete(ctx, Watchlist, "w"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}
