package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CACHE_DETAIL_TTL", "30s")
	t.Setenv("WALLET_OVERRIDES", "Alice=0xABC, bob=0xdef")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Cache.Backend != CacheBackendRedis {
		t.Errorf("Cache.Backend = %v, want %v", cfg.Cache.Backend, CacheBackendRedis)
	}
	if cfg.Cache.DetailTTL != 30*time.Second {
		t.Errorf("Cache.DetailTTL = %v, want %v", cfg.Cache.DetailTTL, 30*time.Second)
	}
	if cfg.Cache.ResultTTL != 5*time.Minute {
		t.Errorf("Cache.ResultTTL = %v, want %v", cfg.Cache.ResultTTL, 5*time.Minute)
	}
	if got := cfg.Engine.WalletOverrides["alice"]; got != "0xabc" {
		t.Errorf("WalletOverrides[alice] = %q, want %q", got, "0xabc")
	}
	if got := cfg.Engine.WalletOverrides["bob"]; got != "0xdef" {
		t.Errorf("WalletOverrides[bob] = %q, want %q", got, "0xdef")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Engine.PageSize != 50 {
		t.Errorf("Engine.PageSize = %d, want 50", cfg.Engine.PageSize)
	}
	if cfg.Engine.EnrichBatchSize != 5 {
		t.Errorf("Engine.EnrichBatchSize = %d, want 5", cfg.Engine.EnrichBatchSize)
	}
	if cfg.Engine.DefaultLimit != 25 {
		t.Errorf("Engine.DefaultLimit = %d, want 25", cfg.Engine.DefaultLimit)
	}
	if cfg.Engine.DiscoverySampleSize != 20 || cfg.Engine.DiscoveryMinCount != 3 {
		t.Errorf("discovery = %d/%d, want 20/3", cfg.Engine.DiscoverySampleSize, cfg.Engine.DiscoveryMinCount)
	}
	if cfg.Engine.FeeRate != 0.05 {
		t.Errorf("Engine.FeeRate = %v, want 0.05", cfg.Engine.FeeRate)
	}
	if cfg.Upstream.MaxRetries != 1 {
		t.Errorf("Upstream.MaxRetries = %d, want 1", cfg.Upstream.MaxRetries)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown cache backend", "CACHE_BACKEND", "memcached"},
		{"zero page size", "ENGINE_PAGE_SIZE", "0"},
		{"trader ratio above one", "ENGINE_TRADER_RATIO", "1.5"},
		{"malformed override", "WALLET_OVERRIDES", "alice"},
		{"budget too small", "UPSTREAM_BUDGET_PER_SECOND", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with %s=%s should fail", tt.key, tt.val)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_KEY", "custom")

	if got := getEnv("TEST_KEY", "default"); got != "custom" {
		t.Errorf("getEnv() = %v, want custom", got)
	}
	if got := getEnv("NONEXISTENT_KEY", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want default", got)
	}
}

func TestGetEnvAsNumbers(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		wantInt  int
		wantF    float64
		wantDur  time.Duration
	}{
		{"valid values", "30", 30, 30, 10 * time.Second},
		{"invalid values fall back", "invalid", 100, 1.5, 10 * time.Second},
		{"unset falls back", "", 100, 1.5, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_NUM", tt.envValue)

			if got := getEnvAsInt("TEST_NUM", 100); got != tt.wantInt {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.wantInt)
			}
			if got := getEnvAsFloat("TEST_NUM", 1.5); got != tt.wantF {
				t.Errorf("getEnvAsFloat() = %v, want %v", got, tt.wantF)
			}
			// "30" has no unit, so it is not a valid duration
			if got := getEnvAsDuration("TEST_NUM", 10*time.Second); got != tt.wantDur {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.wantDur)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !getEnvAsBool("TEST_BOOL", false) {
		t.Error("getEnvAsBool() = false, want true")
	}
	t.Setenv("TEST_BOOL", "nope")
	if getEnvAsBool("TEST_BOOL", false) {
		t.Error("getEnvAsBool() should fall back on invalid input")
	}
}
