// Package config loads and validates all runtime configuration for the
// cache service.
//
// Configuration is read from environment variables (preferred for
// containers) or from a config.yaml file in the working directory.
// Environment variables take precedence over the YAML file.
//
// Naming convention: env vars use UPPER_SNAKE_CASE; the YAML file uses
// the same names in lower_snake_case. For example GROQ_API_KEY becomes
// groq_api_key in YAML.
//
// Everything external is optional: without REDIS_URL the cache runs
// local-only, without provider keys the serving endpoints return 503,
// without CLICKHOUSE_URL cache events go to the structured log.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is the top-level configuration container.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Default: 8080.
	Port int

	// LogLevel controls the minimum log level. One of: debug, info,
	// warn, error. Default: info.
	LogLevel string

	// Cache controls the generic store and the distributed tier.
	Cache CacheConfig

	// Redis holds the connection URL for the distributed cache tier and
	// the rate limiter. Required only when CACHE_DISTRIBUTED=true.
	Redis RedisConfig

	// Groq is the primary completion provider.
	Groq GroqConfig

	// Gemini is the fallback completion provider and the only embedding
	// provider.
	Gemini GeminiConfig

	// ClickHouse holds the optional cache-event sink DSN.
	ClickHouse ClickHouseConfig

	// RateLimit controls request-rate limiting on the serving routes.
	RateLimit RateLimitConfig

	// CORSOrigins is the list of allowed CORS origins.
	// Use ["*"] to allow any origin (default). Set to specific origins in prod.
	CORSOrigins []string
}

// CacheConfig controls the cache manager.
type CacheConfig struct {
	// Distributed enables the shared Redis tier. Default: false.
	Distributed bool

	// TTL is the generic store's default time-to-live. Default: 1h.
	TTL time.Duration

	// MaxEntries bounds the generic store. Default: 1000.
	MaxEntries int

	// CleanupInterval is how often expired local entries are swept.
	// Default: 5m.
	CleanupInterval time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL. Example: redis://localhost:6379
	URL string
}

// GroqConfig holds the Groq provider configuration.
type GroqConfig struct {
	// APIKey enables the provider when non-empty.
	APIKey string

	// Model overrides the default completion model.
	Model string

	// BaseURL overrides the API endpoint. Useful for local mocks.
	BaseURL string
}

// GeminiConfig holds the Gemini provider configuration.
type GeminiConfig struct {
	// APIKey enables the provider when non-empty.
	APIKey string

	// Model overrides the default completion model.
	Model string

	// EmbedModel overrides the default embedding model.
	EmbedModel string

	// BaseURL overrides the API endpoint. Useful for local mocks.
	BaseURL string
}

// ClickHouseConfig holds the cache-event sink configuration.
type ClickHouseConfig struct {
	// URL is a clickhouse:// DSN. Empty disables the sink; events then
	// go to the structured log.
	URL string
}

// RateLimitConfig controls request-rate limiting.
type RateLimitConfig struct {
	// RPMLimit is the maximum requests per minute allowed per serving
	// route. 0 disables rate limiting. Default: 0.
	RPMLimit int
}

// Load reads configuration from environment variables and (optionally)
// from config.yaml in the current working directory.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// ── Defaults ──────────────────────────────────────────────────────────────
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_DISTRIBUTED", false)
	v.SetDefault("CACHE_TTL", "1h")
	v.SetDefault("CACHE_MAX_ENTRIES", 1000)
	v.SetDefault("CACHE_CLEANUP_INTERVAL", "5m")
	v.SetDefault("CORS_ORIGINS", []string{"*"})

	// Rate limit: 0 = disabled.
	v.SetDefault("RPM_LIMIT", 0)

	// ── Build config ──────────────────────────────────────────────────────────
	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		Cache: CacheConfig{
			Distributed:     v.GetBool("CACHE_DISTRIBUTED"),
			TTL:             v.GetDuration("CACHE_TTL"),
			MaxEntries:      v.GetInt("CACHE_MAX_ENTRIES"),
			CleanupInterval: v.GetDuration("CACHE_CLEANUP_INTERVAL"),
		},

		Redis: RedisConfig{URL: v.GetString("REDIS_URL")},

		Groq: GroqConfig{
			APIKey:  v.GetString("GROQ_API_KEY"),
			Model:   v.GetString("GROQ_MODEL"),
			BaseURL: v.GetString("GROQ_BASE_URL"),
		},

		Gemini: GeminiConfig{
			APIKey:     v.GetString("GEMINI_API_KEY"),
			Model:      v.GetString("GEMINI_MODEL"),
			EmbedModel: v.GetString("GEMINI_EMBED_MODEL"),
			BaseURL:    v.GetString("GEMINI_BASE_URL"),
		},

		ClickHouse: ClickHouseConfig{URL: v.GetString("CLICKHOUSE_URL")},

		RateLimit: RateLimitConfig{
			RPMLimit: v.GetInt("RPM_LIMIT"),
		},

		CORSOrigins: v.GetStringSlice("CORS_ORIGINS"),
	}

	// ── Validation ────────────────────────────────────────────────────────────
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks all semantic constraints that cannot be expressed as
// defaults.
func (c *Config) validate() error {
	// Redis URL is required when the distributed tier is enabled.
	if c.Cache.Distributed && c.Redis.URL == "" {
		return fmt.Errorf(
			"config: REDIS_URL is required when CACHE_DISTRIBUTED=true; " +
				"unset CACHE_DISTRIBUTED to run local-only",
		)
	}

	// Validate log level.
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf(
			"config: invalid LOG_LEVEL %q; must be one of: debug, info, warn, error",
			c.LogLevel,
		)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be a positive duration")
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("config: CACHE_MAX_ENTRIES must be ≥ 1, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("config: CACHE_CLEANUP_INTERVAL must be a positive duration")
	}
	if c.RateLimit.RPMLimit < 0 {
		return fmt.Errorf("config: RPM_LIMIT must be ≥ 0, got %d", c.RateLimit.RPMLimit)
	}

	return nil
}

// HasProviders reports whether at least one completion provider is
// configured. Without one the serving endpoints return 503; the cache
// and admin surfaces still work.
func (c *Config) HasProviders() bool {
	return c.Groq.APIKey != "" || c.Gemini.APIKey != ""
}

// loadDotEnv populates process env vars from a .env file when present.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}
