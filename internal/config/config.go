// Package config provides configuration management for the creator analytics service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Upstream  UpstreamConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration. Postgres only backs the
// wallet override store and is optional.
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend    string
	DetailTTL  time.Duration
	ResultTTL  time.Duration
	WalletTTL  time.Duration
	MaxEntries int
}

// UpstreamConfig holds settings for the coin platform API
type UpstreamConfig struct {
	BaseURL     string
	FallbackURL string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	RPS         float64
	Burst       int
	// BudgetPerSecond is the request budget shared across instances through
	// Redis. Zero disables the shared budget.
	BudgetPerSecond int
}

// MinBudgetPerSecond leaves both budget pools room for the costliest call
const MinBudgetPerSecond = 5

// EngineConfig holds the aggregation engine constants
type EngineConfig struct {
	PageSize            int
	EnrichBatchSize     int
	DefaultLimit        int
	DiscoverySampleSize int
	DiscoveryMinCount   int
	FeeRate             float64
	TraderRatio         float64
	// WalletOverrides maps lower-cased handles to a known secondary wallet
	WalletOverrides map[string]string
}

// RateLimitConfig holds inbound API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	MaxClients        int
	TrustProxyHeaders bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional, variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	overrides, err := parseWalletOverrides(getEnv("WALLET_OVERRIDES", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "creator_analytics"),
				User:           getEnv("POSTGRES_USER", "analytics"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			DetailTTL:  getEnvAsDuration("CACHE_DETAIL_TTL", 5*time.Minute),
			ResultTTL:  getEnvAsDuration("CACHE_RESULT_TTL", 5*time.Minute),
			WalletTTL:  getEnvAsDuration("CACHE_WALLET_TTL", time.Hour),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 10000),
		},
		Upstream: UpstreamConfig{
			BaseURL:         strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "https://api-sdk.zora.engineering"), "/"),
			FallbackURL:     strings.TrimRight(getEnv("UPSTREAM_FALLBACK_URL", ""), "/"),
			APIKey:          getEnv("UPSTREAM_API_KEY", ""),
			Timeout:         getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
			MaxRetries:      getEnvAsInt("UPSTREAM_MAX_RETRIES", 1),
			RPS:             getEnvAsFloat("UPSTREAM_RPS", 10),
			Burst:           getEnvAsInt("UPSTREAM_BURST", 10),
			BudgetPerSecond: getEnvAsInt("UPSTREAM_BUDGET_PER_SECOND", 0),
		},
		Engine: EngineConfig{
			PageSize:            getEnvAsInt("ENGINE_PAGE_SIZE", 50),
			EnrichBatchSize:     getEnvAsInt("ENGINE_ENRICH_BATCH_SIZE", 5),
			DefaultLimit:        getEnvAsInt("ENGINE_DEFAULT_LIMIT", 25),
			DiscoverySampleSize: getEnvAsInt("ENGINE_DISCOVERY_SAMPLE_SIZE", 20),
			DiscoveryMinCount:   getEnvAsInt("ENGINE_DISCOVERY_MIN_COUNT", 3),
			FeeRate:             getEnvAsFloat("ENGINE_FEE_RATE", 0.05),
			TraderRatio:         getEnvAsFloat("ENGINE_TRADER_RATIO", 0.2),
			WalletOverrides:     overrides,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would otherwise fail much later at runtime
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: must be %q or %q", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}
	if c.Engine.PageSize <= 0 {
		return fmt.Errorf("ENGINE_PAGE_SIZE must be positive, got %d", c.Engine.PageSize)
	}
	if c.Engine.EnrichBatchSize <= 0 {
		return fmt.Errorf("ENGINE_ENRICH_BATCH_SIZE must be positive, got %d", c.Engine.EnrichBatchSize)
	}
	if c.Engine.DefaultLimit <= 0 {
		return fmt.Errorf("ENGINE_DEFAULT_LIMIT must be positive, got %d", c.Engine.DefaultLimit)
	}
	if c.Engine.TraderRatio < 0 || c.Engine.TraderRatio > 1 {
		return fmt.Errorf("ENGINE_TRADER_RATIO must be within [0,1], got %v", c.Engine.TraderRatio)
	}
	if c.Upstream.BudgetPerSecond != 0 && c.Upstream.BudgetPerSecond < MinBudgetPerSecond {
		return fmt.Errorf("UPSTREAM_BUDGET_PER_SECOND must be 0 or at least %d, got %d", MinBudgetPerSecond, c.Upstream.BudgetPerSecond)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %v", c.Upstream.Timeout)
	}
	return nil
}

// Addr returns host:port for the Redis client
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// parseWalletOverrides parses "handle=0xabc,other=0xdef"
func parseWalletOverrides(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		handle, wallet, ok := strings.Cut(pair, "=")
		handle = strings.ToLower(strings.TrimSpace(handle))
		wallet = strings.ToLower(strings.TrimSpace(wallet))
		if !ok || handle == "" || wallet == "" {
			return nil, fmt.Errorf("invalid WALLET_OVERRIDES entry %q: want handle=address", pair)
		}
		out[handle] = wallet
	}
	return out, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
