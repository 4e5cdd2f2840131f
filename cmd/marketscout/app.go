package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/marketscout/internal/aggregate"
	"github.com/kalambet/marketscout/internal/cache"
	"github.com/kalambet/marketscout/internal/config"
	"github.com/kalambet/marketscout/internal/insights"
	"github.com/kalambet/marketscout/internal/persist"
	"github.com/kalambet/marketscout/internal/refresh"
	"github.com/kalambet/marketscout/internal/resolve"
	"github.com/kalambet/marketscout/internal/source"
	"github.com/kalambet/marketscout/internal/storage"
	"github.com/kalambet/marketscout/internal/trends"
)

// app is the fully wired engine behind the HTTP and MCP surfaces.
type app struct {
	store     storage.Store
	catalog   *storage.Catalog
	cache     cache.Cache
	sources   []string
	queue     *persist.Queue
	resolver  *resolve.Resolver
	trends    *trends.Classifier
	scheduler *refresh.Scheduler
	insights  *insights.Service

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func setupLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// buildApp wires storage, sources and the engine services from cfg. The
// caller starts the background workers and must Close the app.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	a.catalog = storage.NewCatalog(store)

	a.cache = openCache(ctx, cfg.Cache, store)
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		a.closers = append(a.closers, rc.Close)
	}

	adapters, err := buildSources(cfg.Sources)
	if err != nil {
		a.Close()
		return nil, err
	}
	srcs := make([]aggregate.Source, len(adapters))
	for i, ad := range adapters {
		srcs[i] = ad
	}
	agg := aggregate.New(srcs, cfg.Sources.MaxWait)
	a.sources = agg.SourceNames()

	overrides := resolve.NewOverrideTier(nil)
	if cfg.Resolver.OverrideFile != "" {
		overrides, err = resolve.LoadOverrides(cfg.Resolver.OverrideFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	a.queue = persist.NewQueue(a.catalog, cfg.Resolver.QueueSize)
	a.resolver = resolve.New(a.cache,
		overrides,
		resolve.NewCacheTier(a.cache),
		resolve.NewLiveTier(agg, a.queue),
		resolve.NewKnowledgeTier(a.catalog),
	)
	a.trends = trends.NewClassifier(a.catalog)
	a.scheduler = refresh.New(a.resolver, a.trends, a.catalog, refresh.Options{
		Niches:     cfg.Refresh.Niches,
		NicheDelay: cfg.Refresh.NicheDelay,
		Hour:       cfg.Refresh.Hour,
		Interval:   cfg.Refresh.Interval,
	})
	a.insights = insights.New(a.catalog, a.cache, len(a.sources))
	a.insights.EnableDiscovery(agg, a.queue)

	slog.Info("engine ready",
		"store", store.Mode(),
		"sources", strings.Join(a.sources, ","),
		"tiers", strings.Join(a.resolver.TierNames(), ">"),
		"overrides", overrides.Len(),
	)
	return a, nil
}

// openStore returns the configured document store. A Postgres primary is
// paired with the local SQLite file so the engine keeps working when the
// database is unreachable; if Postgres cannot be reached at startup the
// local store serves alone.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendPostgres:
		local, err := storage.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening local storage: %w", err)
		}
		pg, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Warn("postgres unavailable, using local storage only", "error", err)
			return local, nil
		}
		return storage.NewFailover(pg, local), nil
	default:
		s, err := storage.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		return s, nil
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig, store storage.Store) cache.Cache {
	if cfg.Backend == config.BackendRedis {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err == nil {
			return rc
		}
		slog.Warn("redis unavailable, caching in the document store", "error", err)
	}
	return cache.NewStoreCache(store)
}

func buildSources(cfg config.SourcesConfig) ([]*source.Adapter, error) {
	var specs []source.Spec
	if cfg.ConfigFile != "" {
		loaded, err := source.LoadSpecs(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading sources: %w", err)
		}
		specs = loaded
	}
	if len(specs) == 0 && cfg.Demo {
		specs = source.DemoSpecs()
	}
	if len(specs) == 0 {
		slog.Warn("no sources configured; live tier will always be empty")
		return nil, nil
	}

	client, err := source.NewClient(source.ClientOptions{ProxyURL: cfg.ProxyURL})
	if err != nil {
		return nil, fmt.Errorf("building http client: %w", err)
	}
	return source.Build(specs, client, cfg.Timeout)
}
