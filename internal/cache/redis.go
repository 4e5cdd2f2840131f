package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kalambet/marketscout/internal/listing"
)

const redisPrefix = "marketscout:cache:"

// RedisCache keeps entries in Redis, one JSON value per query, without a TTL.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedis connects to Redis at the given URL and returns a Cache.
// URL format: redis://localhost:6379/0
func NewRedis(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return &RedisCache{client: client, logger: slog.Default(), now: time.Now}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, query string) ([]listing.Record, bool) {
	q := listing.NormalizeQuery(query)
	data, err := c.client.Get(ctx, redisPrefix+q).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "query", q, "error", err)
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil || len(e.Results) == 0 {
		return nil, false
	}
	return e.Results, true
}

func (c *RedisCache) Put(ctx context.Context, query string, results []listing.Record) {
	q := listing.NormalizeQuery(query)
	if q == "" || len(results) == 0 {
		return
	}
	data, err := json.Marshal(Entry{Query: q, Results: results, Timestamp: c.now().UTC()})
	if err != nil {
		c.logger.Warn("encoding cache entry failed", "query", q, "error", err)
		return
	}
	if err := c.client.Set(ctx, redisPrefix+q, data, 0).Err(); err != nil {
		c.logger.Warn("cache write failed", "query", q, "error", err)
	}
}

// Entries scans every cached query. Entries are returned oldest first.
func (c *RedisCache) Entries(ctx context.Context) []Entry {
	var entries []Entry
	iter := c.client.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache scan failed", "error", err)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return entries
}
