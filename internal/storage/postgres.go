package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Postgres is the shared document store used as the primary when a DSN is configured.
type Postgres struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id         BIGSERIAL   UNIQUE,
    collection TEXT        NOT NULL,
    key        TEXT        NOT NULL,
    body       JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, key)
);

CREATE TABLE IF NOT EXISTS system_metadata (
    key        TEXT PRIMARY KEY,
    value      TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// OpenPostgres connects to dsn, retrying the initial ping a few times,
// and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for attempt := range 3 {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// Mode implements Store.
func (p *Postgres) Mode() string { return "postgres" }

func (p *Postgres) Upsert(ctx context.Context, collection, key string, doc []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, body) VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		collection, key, string(doc),
	)
	if err != nil {
		return fmt.Errorf("postgres: upserting %s/%s: %w", collection, key, err)
	}
	return nil
}

func (p *Postgres) GetAll(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT body FROM documents WHERE collection = $1 ORDER BY id ASC`, collection)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing %s: %w", collection, err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		docs = append(docs, body)
	}
	return docs, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = $1 AND key = $2`, collection, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: reading %s/%s: %w", collection, key, err)
	}
	return body, nil
}

func (p *Postgres) Keys(ctx context.Context, collection string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT key FROM documents WHERE collection = $1 ORDER BY id ASC`, collection)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing keys of %s: %w", collection, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, collection, key string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return fmt.Errorf("postgres: deleting %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context, collection string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("postgres: clearing %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM system_metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (p *Postgres) SetMeta(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO system_metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value,
	)
	return err
}
