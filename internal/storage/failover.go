package storage

import (
	"context"
	"errors"
	"log/slog"
)

// Failover tries the primary store first and falls back to the secondary
// when the primary returns an error. ErrNotFound from the primary is an
// answer, not a failure, and is returned as is.
type Failover struct {
	primary  Store
	fallback Store
	logger   *slog.Logger
}

// NewFailover composes two stores. Both are closed by Close.
func NewFailover(primary, fallback Store) *Failover {
	return &Failover{primary: primary, fallback: fallback, logger: slog.Default()}
}

func (f *Failover) Mode() string {
	return f.primary.Mode() + "+" + f.fallback.Mode()
}

func (f *Failover) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}

func (f *Failover) degraded(op string, err error) {
	f.logger.Warn("primary store failed, using fallback", "op", op, "primary", f.primary.Mode(), "error", err)
}

func (f *Failover) Upsert(ctx context.Context, collection, key string, doc []byte) error {
	err := f.primary.Upsert(ctx, collection, key, doc)
	if err == nil {
		return nil
	}
	f.degraded("upsert", err)
	return f.fallback.Upsert(ctx, collection, key, doc)
}

func (f *Failover) GetAll(ctx context.Context, collection string) ([][]byte, error) {
	docs, err := f.primary.GetAll(ctx, collection)
	if err == nil {
		return docs, nil
	}
	f.degraded("get_all", err)
	return f.fallback.GetAll(ctx, collection)
}

// Get falls back on a primary miss too, since writes may have landed in the
// fallback while the primary was down.
func (f *Failover) Get(ctx context.Context, collection, key string) ([]byte, error) {
	doc, err := f.primary.Get(ctx, collection, key)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		f.degraded("get", err)
	}
	return f.fallback.Get(ctx, collection, key)
}

func (f *Failover) Keys(ctx context.Context, collection string) ([]string, error) {
	keys, err := f.primary.Keys(ctx, collection)
	if err == nil {
		return keys, nil
	}
	f.degraded("keys", err)
	return f.fallback.Keys(ctx, collection)
}

func (f *Failover) Delete(ctx context.Context, collection, key string) error {
	err := f.primary.Delete(ctx, collection, key)
	if err == nil || errors.Is(err, ErrNotFound) {
		// Writes may have landed in the fallback while the primary was down.
		if ferr := f.fallback.Delete(ctx, collection, key); ferr == nil {
			return nil
		}
		return err
	}
	f.degraded("delete", err)
	return f.fallback.Delete(ctx, collection, key)
}

func (f *Failover) Clear(ctx context.Context, collection string) error {
	err := f.primary.Clear(ctx, collection)
	ferr := f.fallback.Clear(ctx, collection)
	if err != nil {
		f.degraded("clear", err)
		return ferr
	}
	return nil
}

func (f *Failover) GetMeta(ctx context.Context, key string) (string, error) {
	v, err := f.primary.GetMeta(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		f.degraded("get_meta", err)
	}
	return f.fallback.GetMeta(ctx, key)
}

func (f *Failover) SetMeta(ctx context.Context, key, value string) error {
	err := f.primary.SetMeta(ctx, key, value)
	if err == nil {
		return nil
	}
	f.degraded("set_meta", err)
	return f.fallback.SetMeta(ctx, key, value)
}
