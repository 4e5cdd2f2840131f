package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Sources   SourcesConfig
	Resolver  ResolverConfig
	Refresh   RefreshConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port int
	// APIToken guards mutating endpoints. Empty means one is generated and
	// kept in the data dir on first start.
	APIToken string
}

type LogConfig struct {
	Level  string
	Format string
}

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendStore    = "store"
)

type StorageConfig struct {
	Backend     string
	DataDir     string
	PostgresDSN string
}

type CacheConfig struct {
	Backend  string
	RedisURL string
}

type SourcesConfig struct {
	ConfigFile string
	Timeout    time.Duration
	MaxWait    time.Duration
	ProxyURL   string
	Demo       bool
}

type ResolverConfig struct {
	OverrideFile string
	QueueSize    int
}

type RefreshConfig struct {
	Enabled    bool
	Hour       int
	Interval   time.Duration
	NicheDelay time.Duration
	Niches     []string
}

type TelemetryConfig struct {
	OTLPEndpoint string
	SampleRatio  float64
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			Backend: BackendStore,
		},
		Sources: SourcesConfig{
			Timeout: 35 * time.Second,
			MaxWait: 40 * time.Second,
			Demo:    true,
		},
		Resolver: ResolverConfig{
			QueueSize: 64,
		},
		Refresh: RefreshConfig{
			Enabled:    true,
			Hour:       3,
			NicheDelay: time.Second,
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1,
		},
	}
}

// Load reads configuration from the JSON config file and then applies
// MARKETSCOUT_* environment variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.backend is postgres but storage.postgres_dsn is empty; set MARKETSCOUT_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q (want sqlite, postgres or memory)", c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case BackendStore:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.backend is redis but cache.redis_url is empty; set MARKETSCOUT_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q (want store or redis)", c.Cache.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
