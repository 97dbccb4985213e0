package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Cache.Distributed {
		t.Error("Cache.Distributed should default to false")
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("Cache.MaxEntries = %d, want 1000", cfg.Cache.MaxEntries)
	}
	if cfg.RateLimit.RPMLimit != 0 {
		t.Errorf("RateLimit.RPMLimit = %d, want 0", cfg.RateLimit.RPMLimit)
	}
	if cfg.HasProviders() {
		t.Error("HasProviders should be false with no keys set")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CACHE_DISTRIBUTED", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("CACHE_MAX_ENTRIES", "500")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("RPM_LIMIT", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Cache.Distributed || cfg.Redis.URL != "redis://localhost:6379" {
		t.Errorf("distributed tier not wired: %+v", cfg.Cache)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache.TTL = %v, want 30m", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("Cache.MaxEntries = %d, want 500", cfg.Cache.MaxEntries)
	}
	if !cfg.HasProviders() {
		t.Error("HasProviders should be true with GROQ_API_KEY set")
	}
	if cfg.RateLimit.RPMLimit != 120 {
		t.Errorf("RateLimit.RPMLimit = %d, want 120", cfg.RateLimit.RPMLimit)
	}
}

func TestLoadDistributedRequiresRedisURL(t *testing.T) {
	t.Setenv("CACHE_DISTRIBUTED", "true")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CACHE_DISTRIBUTED is set without REDIS_URL")
	}
	if !strings.Contains(err.Error(), "REDIS_URL") {
		t.Errorf("error should name REDIS_URL, got %v", err)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL")
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("CACHE_TTL", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero CACHE_TTL")
	}
}
