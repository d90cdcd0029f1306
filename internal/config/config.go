// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Store   StoreConfig   `mapstructure:"store"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Safety  SafetyConfig  `mapstructure:"safety"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Events  EventsConfig  `mapstructure:"events"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// StoreConfig selects and configures the durable KV backend.
type StoreConfig struct {
	// Backend is one of memory, local, redis, postgres, gcs.
	Backend  string         `mapstructure:"backend"`
	Local    LocalConfig    `mapstructure:"local"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	GCS      GCSConfig      `mapstructure:"gcs"`
}

// LocalConfig configures the filesystem backend.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// GCSConfig configures the Cloud Storage backend.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// CrawlerConfig governs the orchestrator and worker pool.
type CrawlerConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	Workers          int    `mapstructure:"workers"`
	QueueDepth       int    `mapstructure:"queue_depth"`
	FrontierCapacity int    `mapstructure:"frontier_capacity"`
	VisitedLimit     int    `mapstructure:"visited_limit"`
	BreakerLimit     int    `mapstructure:"breaker_limit"`
	PausePollMs      int    `mapstructure:"pause_poll_ms"`
	ArchiveHTML      bool   `mapstructure:"archive_html"`
}

// SafetyConfig bounds the gate's DNS and robots caches.
type SafetyConfig struct {
	DNSTTLSeconds    int `mapstructure:"dns_ttl_seconds"`
	DNSCacheSize     int `mapstructure:"dns_cache_size"`
	RobotsTTLSeconds int `mapstructure:"robots_ttl_seconds"`
	RobotsCacheSize  int `mapstructure:"robots_cache_size"`
}

// FetchConfig configures the retrying HTTP fetch layer.
type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBaseMs    int `mapstructure:"retry_base_ms"`
}

// EventsConfig tunes event stream delivery.
type EventsConfig struct {
	PollMs          int `mapstructure:"poll_ms"`
	StreamLifetimeS int `mapstructure:"stream_lifetime_seconds"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CompletionTopic string `mapstructure:"completion_topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.local.base_dir", "data")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.db", 0)

	v.SetDefault("crawler.user_agent", "crawld/1.0")
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.frontier_capacity", 500)
	v.SetDefault("crawler.visited_limit", 1000)
	v.SetDefault("crawler.breaker_limit", 3)
	v.SetDefault("crawler.pause_poll_ms", 1000)
	v.SetDefault("crawler.archive_html", false)

	v.SetDefault("safety.dns_ttl_seconds", 300)
	v.SetDefault("safety.dns_cache_size", 512)
	v.SetDefault("safety.robots_ttl_seconds", 900)
	v.SetDefault("safety.robots_cache_size", 256)

	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.retry_base_ms", 250)

	v.SetDefault("events.poll_ms", 500)
	v.SetDefault("events.stream_lifetime_seconds", 25)

	v.SetDefault("logging.development", false)
}

var validBackends = map[string]bool{
	"memory":   true,
	"local":    true,
	"redis":    true,
	"postgres": true,
	"gcs":      true,
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key required when auth is enabled")
	}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	switch c.Store.Backend {
	case "local":
		if c.Store.Local.BaseDir == "" {
			return fmt.Errorf("store.local.base_dir required for local backend")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn required for postgres backend")
		}
	case "gcs":
		if c.Store.GCS.Bucket == "" {
			return fmt.Errorf("store.gcs.bucket required for gcs backend")
		}
	}
	if c.Crawler.Workers < 1 {
		return fmt.Errorf("crawler.workers must be at least 1")
	}
	if c.Crawler.QueueDepth < 1 {
		return fmt.Errorf("crawler.queue_depth must be at least 1")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	if c.Events.PollMs < 50 {
		return fmt.Errorf("events.poll_ms must be at least 50")
	}
	if c.PubSub.CompletionTopic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id required when a completion topic is set")
	}
	return nil
}
