package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MARKETSCOUT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "MARKETSCOUT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "log.level", typ: kString, env: "MARKETSCOUT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "MARKETSCOUT_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
	{
		key: "storage.backend", typ: kString, env: "MARKETSCOUT_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MARKETSCOUT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.postgres_dsn", typ: kString, env: "MARKETSCOUT_POSTGRES_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PostgresDSN },
	},
	{
		key: "cache.backend", typ: kString, env: "MARKETSCOUT_CACHE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Cache.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Backend },
	},
	{
		key: "cache.redis_url", typ: kString, env: "MARKETSCOUT_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisURL },
	},
	{
		key: "sources.config_file", typ: kString, env: "MARKETSCOUT_SOURCES_CONFIG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Sources.ConfigFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Sources.ConfigFile },
	},
	{
		key: "sources.timeout", typ: kDuration, env: "MARKETSCOUT_SOURCES_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Sources.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Sources.Timeout },
	},
	{
		key: "sources.max_wait", typ: kDuration, env: "MARKETSCOUT_SOURCES_MAX_WAIT",
		apply:   func(cfg *Config, v any) { cfg.Sources.MaxWait = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Sources.MaxWait },
	},
	{
		key: "sources.proxy_url", typ: kString, env: "MARKETSCOUT_SOURCES_PROXY_URL",
		apply:   func(cfg *Config, v any) { cfg.Sources.ProxyURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Sources.ProxyURL },
	},
	{
		key: "sources.demo", typ: kBool, env: "MARKETSCOUT_SOURCES_DEMO",
		apply:   func(cfg *Config, v any) { cfg.Sources.Demo = v.(bool) },
		extract: func(cfg Config) any { return cfg.Sources.Demo },
	},
	{
		key: "resolver.override_file", typ: kString, env: "MARKETSCOUT_RESOLVER_OVERRIDE_FILE",
		apply:   func(cfg *Config, v any) { cfg.Resolver.OverrideFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Resolver.OverrideFile },
	},
	{
		key: "resolver.queue_size", typ: kInt, env: "MARKETSCOUT_RESOLVER_QUEUE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Resolver.QueueSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Resolver.QueueSize },
	},
	{
		key: "refresh.enabled", typ: kBool, env: "MARKETSCOUT_REFRESH_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Refresh.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Refresh.Enabled },
	},
	{
		key: "refresh.hour", typ: kInt, env: "MARKETSCOUT_REFRESH_HOUR",
		apply:   func(cfg *Config, v any) { cfg.Refresh.Hour = v.(int) },
		extract: func(cfg Config) any { return cfg.Refresh.Hour },
	},
	{
		key: "refresh.interval", typ: kDuration, env: "MARKETSCOUT_REFRESH_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Refresh.Interval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Refresh.Interval },
	},
	{
		key: "refresh.niche_delay", typ: kDuration, env: "MARKETSCOUT_REFRESH_NICHE_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Refresh.NicheDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Refresh.NicheDelay },
	},
	{
		key: "refresh.niches", typ: kList, env: "MARKETSCOUT_REFRESH_NICHES",
		apply:   func(cfg *Config, v any) { cfg.Refresh.Niches = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Refresh.Niches, ",") },
	},
	{
		key: "telemetry.otlp_endpoint", typ: kString, env: "MARKETSCOUT_OTLP_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.OTLPEndpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Telemetry.OTLPEndpoint },
	},
	{
		key: "telemetry.sample_ratio", typ: kFloat, env: "MARKETSCOUT_OTLP_SAMPLE_RATIO",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.SampleRatio = v.(float64) },
		extract: func(cfg Config) any { return cfg.Telemetry.SampleRatio },
	},
}

// parseValue converts raw into the Go type a key expects.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kString:
		return raw, nil
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	case kList:
		return splitList(raw), nil
	}
	return nil, fmt.Errorf("unsupported key type %d", typ)
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kList:
			v, ok, err := b.GetStrings(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && len(v) > 0 {
				s.apply(cfg, v)
			}
			continue
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
