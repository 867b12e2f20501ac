package service

import (
	"context"
	"strings"
	"time"

	"github.com/creator-analytics/internal/config"
	apperrors "github.com/creator-analytics/internal/errors"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/ratelimit"
	"github.com/creator-analytics/internal/storage"
	"github.com/creator-analytics/internal/types"
)

// AnalyticsInput is one analytics request
type AnalyticsInput struct {
	Identifier string     `json:"identifier"`
	Mode       types.Mode `json:"mode"`
	Limit      int        `json:"limit"`
	SkipCache  bool       `json:"skipCache"`
}

// Dependencies are the collaborators of the analytics service. CoinCounts,
// Overrides, WalletCache, DetailCache, ResultCache and Monitor are optional.
type Dependencies struct {
	Profiles   ProfileService
	Balances   BalanceService
	Details    AssetDetailService
	CoinCounts CoinCountService

	Overrides   WalletOverrideStore
	WalletCache WalletCache
	DetailCache DetailCache
	ResultCache ResultCache

	Monitor *PerformanceMonitor
	Now     func() time.Time
}

// AnalyticsService aggregates a creator's balances into an analytics view
type AnalyticsService struct {
	resolver    *IdentityResolver
	discoverer  *WalletDiscoverer
	fetcher     *BalanceFetcher
	enricher    *Enricher
	coinCounts  CoinCountService
	results     ResultCache
	monitor     *PerformanceMonitor
	now         func() time.Time
	caches      []statsReporter
	defaultLim  int
	feeRate     float64
	traderRatio float64
}

// NewAnalyticsService wires the pipeline from cfg and deps
func NewAnalyticsService(cfg config.EngineConfig, deps Dependencies) *AnalyticsService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	monitor := deps.Monitor
	if monitor == nil {
		monitor = NewPerformanceMonitor()
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultEnrichLimit
	}
	feeRate := cfg.FeeRate
	if feeRate <= 0 {
		feeRate = DefaultFeeRate
	}
	traderRatio := cfg.TraderRatio
	if traderRatio <= 0 {
		traderRatio = DefaultTraderRatio
	}

	s := &AnalyticsService{
		resolver: NewIdentityResolver(deps.Profiles),
		discoverer: NewWalletDiscoverer(deps.Balances, DiscovererConfig{
			Overrides:  cfg.WalletOverrides,
			Store:      deps.Overrides,
			Cache:      deps.WalletCache,
			SampleSize: cfg.DiscoverySampleSize,
			MinCount:   cfg.DiscoveryMinCount,
		}),
		fetcher:     NewBalanceFetcher(deps.Balances, cfg.PageSize),
		enricher:    NewEnricher(deps.Details, deps.DetailCache, cfg.EnrichBatchSize),
		coinCounts:  deps.CoinCounts,
		results:     deps.ResultCache,
		monitor:     monitor,
		now:         now,
		defaultLim:  defaultLimit,
		feeRate:     feeRate,
		traderRatio: traderRatio,
	}

	for _, c := range []interface{}{deps.DetailCache, deps.ResultCache, deps.WalletCache} {
		if r, ok := c.(statsReporter); ok {
			s.caches = append(s.caches, r)
		}
	}
	return s
}

// GetCreatorAnalytics returns the analytics view for input.Identifier. A
// fresh result cache entry is returned as is unless SkipCache is set; a
// computed result is always written back.
func (s *AnalyticsService) GetCreatorAnalytics(ctx context.Context, input *AnalyticsInput) (*types.AggregatedResult, error) {
	start := time.Now()

	identifier, mode, limit, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	s.monitor.ObserveCreator(strings.ToLower(identifier))

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"identifier": identifier,
		"mode":       mode,
		"limit":      limit,
	})
	ctx = logging.WithLogger(ctx, logger)
	ctx = ratelimit.WithPriority(ctx, priorityFor(mode))

	key := storage.ResultKeyFor(identifier, mode, limit)
	if s.results != nil && !input.SkipCache {
		if cached, ok := s.results.Get(ctx, key); ok {
			s.monitor.RecordRequest(time.Since(start), true)
			logger.Debug("Serving analytics from result cache")
			return cached, nil
		}
	}

	result, err := s.compute(ctx, identifier, mode, limit)
	if err != nil {
		return nil, err
	}

	if s.results != nil {
		s.results.Set(ctx, key, result)
	}
	s.monitor.RecordRequest(time.Since(start), false)

	logger.WithFields(map[string]interface{}{
		"created":   result.CreatedCount,
		"collected": result.CollectedCount,
		"pages":     result.PagesFetched,
		"duration":  time.Since(start).String(),
	}).Info("Computed creator analytics")

	return result, nil
}

func (s *AnalyticsService) normalize(input *AnalyticsInput) (string, types.Mode, int, error) {
	if input == nil {
		return "", "", 0, apperrors.NewInvalidParameterError("input", "must not be nil")
	}
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return "", "", 0, apperrors.NewInvalidParameterError("identifier", "must not be blank")
	}
	mode, ok := types.ParseMode(string(input.Mode))
	if !ok {
		return "", "", 0, apperrors.NewInvalidParameterError("mode", "must be one of initial, standard, full")
	}
	limit := input.Limit
	if limit < 0 {
		return "", "", 0, apperrors.NewInvalidParameterError("limit", "must not be negative")
	}
	if limit == 0 {
		limit = s.defaultLim
	}
	return identifier, mode, limit, nil
}

func (s *AnalyticsService) compute(ctx context.Context, identifier string, mode types.Mode, limit int) (*types.AggregatedResult, error) {
	profile, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	secondary := s.discoverer.Discover(ctx, identifier, profile)
	wallets := types.NewWalletSet(profile.PublicWallet, secondary)

	balances, pages, err := s.fetcher.FetchAll(ctx, identifier, mode)
	if err != nil {
		return nil, err
	}

	created, collected := Classify(balances, wallets)
	enriched := s.enricher.Enrich(ctx, created, limit)

	// A cancelled request must not leave a half-enriched result in the cache
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUpstreamFetchError(ratelimit.OpGetAssetDetail, err)
	}

	posts := len(created)
	if mode.FetchAll() {
		posts = s.probePosts(ctx, wallets.Primary, posts)
	}

	shownCollected := collected
	if len(shownCollected) > limit {
		shownCollected = shownCollected[:limit]
	}

	return &types.AggregatedResult{
		Identifier:       identifier,
		Mode:             mode,
		Limit:            limit,
		Profile:          *profile,
		Wallets:          wallets,
		Created:          enriched,
		Collected:        shownCollected,
		CreatedCount:     len(created),
		CollectedCount:   len(collected),
		HasMore:          len(created) > len(enriched),
		HasMoreCollected: len(collected) > len(shownCollected),
		HasMorePages:     pages.Truncated,
		PagesFetched:     pages.PagesFetched,
		Metrics:          computeMetrics(enriched, posts, s.feeRate, s.traderRatio),
		GeneratedAt:      s.now().UTC(),
	}, nil
}

// probePosts raises posts to the platform's own coin count for wallet when
// that is higher. Probe failures keep posts unchanged.
func (s *AnalyticsService) probePosts(ctx context.Context, wallet string, posts int) int {
	if s.coinCounts == nil {
		return posts
	}
	count, err := s.coinCounts.CountCoinsByCreator(ctx, wallet)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Coin count probe failed, using classified count")
		return posts
	}
	if count > posts {
		return count
	}
	return posts
}

func priorityFor(mode types.Mode) ratelimit.Priority {
	if mode.FetchAll() {
		return ratelimit.PriorityLow
	}
	return ratelimit.PriorityHigh
}

// EngineStats is the engine's view of its own health
type EngineStats struct {
	Performance *PerformanceStats    `json:"performance"`
	Check       *PerformanceCheck    `json:"check"`
	Caches      []storage.CacheStats `json:"caches"`
}

// Stats reports response times and cache counters
func (s *AnalyticsService) Stats() EngineStats {
	caches := make([]storage.CacheStats, 0, len(s.caches))
	for _, c := range s.caches {
		caches = append(caches, c.Stats())
	}
	return EngineStats{
		Performance: s.monitor.GetStats(),
		Check:       s.monitor.CheckPerformance(),
		Caches:      caches,
	}
}
