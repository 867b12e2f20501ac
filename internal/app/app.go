// Package app wires configuration, storage, the upstream client and the
// analytics engine into one runnable unit shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/creator-analytics/internal/adapter"
	"github.com/creator-analytics/internal/config"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/ratelimit"
	"github.com/creator-analytics/internal/service"
	"github.com/creator-analytics/internal/storage"
)

// App holds the wired components and the resources that must be closed
type App struct {
	Config    *config.Config
	Client    *adapter.CoinClient
	Analytics *service.AnalyticsService
	Overrides *storage.WalletOverrideRepository

	redis    *storage.RedisCache
	postgres *storage.PostgresDB
}

// New connects to the configured backends and builds the engine. Redis is
// only dialled when it backs the cache or the shared upstream budget;
// Postgres only when enabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.FromContext(ctx)
	a := &App{Config: cfg}

	needRedis := cfg.Cache.Backend == config.CacheBackendRedis || cfg.Upstream.BudgetPerSecond > 0
	if needRedis {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.redis = redis
		logger.WithField("addr", cfg.Database.Redis.Addr()).Info("Connected to Redis")
	}

	var store storage.Store
	if cfg.Cache.Backend == config.CacheBackendRedis {
		store = a.redis
	} else {
		mem, err := storage.NewMemoryStore(cfg.Cache.MaxEntries, nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		store = mem
	}

	deps := service.Dependencies{
		DetailCache: storage.NewDetailCache(store, cfg.Cache.DetailTTL, nil),
		ResultCache: storage.NewResultCache(store, cfg.Cache.ResultTTL, nil),
		WalletCache: storage.NewWalletCache(store, cfg.Cache.WalletTTL, nil),
	}

	if cfg.Database.Postgres.Enabled {
		pg, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		a.postgres = pg
		a.Overrides = storage.NewWalletOverrideRepository(pg)
		deps.Overrides = a.Overrides
		logger.Info("Wallet override store enabled")
	}

	clientCfg := adapter.CoinClientConfig{
		BaseURL:           cfg.Upstream.BaseURL,
		FallbackURL:       cfg.Upstream.FallbackURL,
		APIKey:            cfg.Upstream.APIKey,
		Timeout:           cfg.Upstream.Timeout,
		MaxRetries:        cfg.Upstream.MaxRetries,
		RequestsPerSecond: cfg.Upstream.RPS,
		Burst:             cfg.Upstream.Burst,
	}
	if cfg.Upstream.BudgetPerSecond > 0 {
		total := cfg.Upstream.BudgetPerSecond
		budget, err := ratelimit.NewBudgetTracker(&ratelimit.BudgetTrackerConfig{
			Redis:          a.redis.Client(),
			TotalBudget:    total,
			ReservedBudget: total * 6 / 10,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create upstream budget: %w", err)
		}
		clientCfg.Budget = budget
		logger.WithField("budgetPerSecond", total).Info("Shared upstream budget enabled")
	}

	client, err := adapter.NewCoinClient(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	a.Client = client

	deps.Profiles = client
	deps.Balances = client
	deps.Details = client
	deps.CoinCounts = client

	a.Analytics = service.NewAnalyticsService(cfg.Engine, deps)
	return a, nil
}

// HealthChecks returns a ping per connected backend, keyed by name
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	if a.postgres != nil {
		checks["postgres"] = a.postgres.Ping
	}
	return checks
}

// Close releases backend connections
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logging.WithError(err).Warn("Error closing Redis connection")
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
}
