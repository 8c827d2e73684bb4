package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"CONFIG_FILE", "PORT", "LISTEN_ADDR", "GIN_MODE", "LOG_LEVEL", "DATABASE_PATH", "DATABASE_URL",
	"RATE_LIMIT_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_PREFIX", "REQUESTER_HASH_KEY",
	"RATE_LIMIT_MAX_POSTS", "TRUSTED_PROXY_CIDRS", "TRUST_ALL_PROXIES", "RATE_LIMIT_WINDOW",
	"DUPLICATE_WINDOW", "SHUTDOWN_TIMEOUT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected listen addr :8080, got %q", cfg.ListenAddr)
	}
	if cfg.RateLimitMaxPosts != 10 || cfg.RateLimitWindow != time.Hour || cfg.DuplicateWindow != time.Hour {
		t.Fatalf("unexpected rate defaults: %+v", cfg)
	}
	if cfg.RateLimitBackend != RateLimitBackendStore {
		t.Fatalf("expected store backend, got %q", cfg.RateLimitBackend)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("port: \"9000\"\nrateLimitMaxPosts: 3\nrateLimitWindow: 30m\ntrustedProxyCidrs:\n  - 10.0.0.0/8\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RATE_LIMIT_MAX_POSTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("expected port from file, got %q", cfg.ListenAddr)
	}
	if cfg.RateLimitMaxPosts != 5 {
		t.Fatalf("expected env to win, got %d", cfg.RateLimitMaxPosts)
	}
	if cfg.RateLimitWindow != 30*time.Minute {
		t.Fatalf("expected 30m window, got %s", cfg.RateLimitWindow)
	}
	if len(cfg.TrustedProxyCIDRs) != 1 || cfg.TrustedProxyCIDRs[0] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies: %v", cfg.TrustedProxyCIDRs)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "redis backend without addr", key: "RATE_LIMIT_BACKEND", value: "redis"},
		{name: "unknown backend", key: "RATE_LIMIT_BACKEND", value: "memcached"},
		{name: "zero limit", key: "RATE_LIMIT_MAX_POSTS", value: "0"},
		{name: "bad window", key: "RATE_LIMIT_WINDOW", value: "soon"},
		{name: "bad proxy", key: "TRUSTED_PROXY_CIDRS", value: "not-a-cidr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
