// Package adapter provides the HTTP client for the coin platform API that
// backs profile, balance and coin detail lookups.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/creator-analytics/internal/circuitbreaker"
	"github.com/creator-analytics/internal/logging"
	"github.com/creator-analytics/internal/ratelimit"
	"github.com/creator-analytics/internal/retry"
	"github.com/creator-analytics/internal/types"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 8 << 20

// BudgetGate blocks until the shared upstream budget admits op
type BudgetGate interface {
	Acquire(ctx context.Context, op string) error
}

// CoinClientConfig configures a CoinClient
type CoinClientConfig struct {
	BaseURL     string
	FallbackURL string
	APIKey      string

	// Timeout bounds every single attempt
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	RequestsPerSecond float64
	Burst             int

	// Optional collaborators
	HTTPClient    *http.Client
	Budget        BudgetGate
	Breakers      *circuitbreaker.CircuitBreakerManager
	BreakerConfig *circuitbreaker.Config
}

// CoinClient talks to the coin platform REST API. Every call is throttled,
// guarded by a per-operation circuit breaker and retried once on
// transient failures under a per-attempt deadline.
type CoinClient struct {
	endpoint      *Endpoint
	apiKey        string
	httpClient    *http.Client
	limiter       *rate.Limiter
	budget        BudgetGate
	breakers      *circuitbreaker.CircuitBreakerManager
	breakerConfig *circuitbreaker.Config
	retryConfig   *retry.RetryConfig
	retryStats    *retry.RetryStatsTracker
}

// NewCoinClient creates a coin platform client
func NewCoinClient(cfg CoinClientConfig) (*CoinClient, error) {
	endpoint, err := NewEndpoint(strings.TrimRight(cfg.BaseURL, "/"), strings.TrimRight(cfg.FallbackURL, "/"))
	if err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Deadlines come from the per-attempt context
		httpClient = &http.Client{}
	}

	breakers := cfg.Breakers
	if breakers == nil {
		breakers = circuitbreaker.NewCircuitBreakerManager()
	}
	breakerConfig := cfg.BreakerConfig
	if breakerConfig == nil {
		breakerConfig = circuitbreaker.DefaultConfig("coin-api")
	}
	if breakerConfig.IsFailure == nil {
		c := *breakerConfig
		c.IsFailure = countsAgainstBreaker
		breakerConfig = &c
	}

	retryConfig := retry.DefaultRetryConfig(cfg.Timeout)
	retryConfig.MaxAttempts = cfg.MaxRetries + 1
	retryConfig.Retryable = retry.IsTransient

	return &CoinClient{
		endpoint:      endpoint,
		apiKey:        cfg.APIKey,
		httpClient:    httpClient,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		budget:        cfg.Budget,
		breakers:      breakers,
		breakerConfig: breakerConfig,
		retryConfig:   retryConfig,
		retryStats:    retry.NewRetryStatsTracker(),
	}, nil
}

// countsAgainstBreaker keeps caller mistakes and cancellations from opening the circuit
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidAddress) && !errors.Is(err, context.Canceled)
}

// ResolveProfile looks up a creator profile by handle or wallet address
func (c *CoinClient) ResolveProfile(ctx context.Context, identifier string) (*types.Profile, error) {
	query := url.Values{"identifier": {identifier}}

	var resp profileResponse
	if err := c.call(ctx, ratelimit.OpResolveProfile, "/profile", query, &resp); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, NewAdapterError(ratelimit.OpResolveProfile, 1, ErrNotFound, map[string]interface{}{"identifier": identifier})
	}

	return resp.Profile.toProfile(), nil
}

// ListBalances fetches one page of the identity's coin balances
func (c *CoinClient) ListBalances(ctx context.Context, identifier string, pageSize int, cursor string) (*types.BalancePage, error) {
	query := url.Values{
		"identifier": {identifier},
		"count":      {strconv.Itoa(pageSize)},
	}
	if cursor != "" {
		query.Set("after", cursor)
	}

	var resp balancesResponse
	if err := c.call(ctx, ratelimit.OpListBalances, "/profileBalances", query, &resp); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, NewAdapterError(ratelimit.OpListBalances, 1, ErrNotFound, map[string]interface{}{"identifier": identifier})
	}

	return resp.Profile.CoinBalances.toPage(), nil
}

// GetAssetDetail fetches trading detail for one coin
func (c *CoinClient) GetAssetDetail(ctx context.Context, address string) (*types.AssetDetail, error) {
	if !common.IsHexAddress(address) {
		return nil, NewAdapterError(ratelimit.OpGetAssetDetail, 0, ErrInvalidAddress, map[string]interface{}{"address": address})
	}
	query := url.Values{"address": {normalizeAddress(address)}}

	var resp coinResponse
	if err := c.call(ctx, ratelimit.OpGetAssetDetail, "/coin", query, &resp); err != nil {
		return nil, err
	}
	if resp.Token == nil {
		return nil, NewAdapterError(ratelimit.OpGetAssetDetail, 1, ErrNotFound, map[string]interface{}{"address": address})
	}

	return resp.Token.toDetail()
}

// CountCoinsByCreator returns how many coins the wallet has created
func (c *CoinClient) CountCoinsByCreator(ctx context.Context, wallet string) (int, error) {
	if !common.IsHexAddress(wallet) {
		return 0, NewAdapterError(ratelimit.OpCountCoinsByCreator, 0, ErrInvalidAddress, map[string]interface{}{"wallet": wallet})
	}
	query := url.Values{
		"identifier": {normalizeAddress(wallet)},
		"count":      {"1"},
	}

	var resp createdCoinsResponse
	if err := c.call(ctx, ratelimit.OpCountCoinsByCreator, "/profileCoins", query, &resp); err != nil {
		return 0, err
	}
	if resp.Profile == nil {
		return 0, nil
	}

	return resp.Profile.CreatedCoins.Count, nil
}

// ClientStats is exposed on the stats endpoint
type ClientStats struct {
	Endpoint *ProviderHealth         `json:"endpoint"`
	Retries  retry.RetryStats        `json:"retries"`
	Breakers []*circuitbreaker.Stats `json:"breakers"`
}

// Stats returns health, retry and circuit breaker statistics
func (c *CoinClient) Stats() ClientStats {
	return ClientStats{
		Endpoint: c.endpoint.GetHealth(),
		Retries:  c.retryStats.GetStats(),
		Breakers: c.breakers.GetAllStats(),
	}
}

func (c *CoinClient) call(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	breaker := c.breakers.GetOrCreate(op, c.breakerConfig)
	ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithField("operation", op))

	result := retry.WithExponentialBackoff(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		err := breaker.Execute(ctx, func() error {
			return c.do(ctx, op, path, query, out)
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return retry.Permanent(fmt.Errorf("%w: %w", ErrProviderUnavailable, err))
		}
		return err
	})
	c.retryStats.RecordResult(result)

	if err := result.Err(); err != nil {
		var perm *retry.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return NewAdapterError(op, result.Attempts, err, map[string]interface{}{"path": path})
	}
	return nil
}

func (c *CoinClient) do(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRateLimit, err)
	}
	if c.budget != nil {
		if err := c.budget.Acquire(ctx, op); err != nil {
			return err
		}
	}

	reqURL := c.endpoint.CurrentURL() + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, context.DeadlineExceeded):
			c.recordFailure(ctx)
			return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		default:
			c.recordFailure(ctx)
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.recordFailure(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		return fmt.Errorf("%w: reading body: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.endpoint.RecordSuccess(time.Since(start))
		return retry.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		c.recordFailure(ctx)
		return ErrProviderRateLimit
	case resp.StatusCode >= 500:
		c.recordFailure(ctx)
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return retry.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("%w: %v", ErrBadResponse, err))
	}

	c.endpoint.RecordSuccess(time.Since(start))
	return nil
}

func (c *CoinClient) recordFailure(ctx context.Context) {
	if c.endpoint.RecordFailure() {
		logging.FromContext(ctx).WithField("url", c.endpoint.CurrentURL()).Warn("Coin API failing over to alternate endpoint")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// normalizeAddress lower-cases hex addresses; anything else is trimmed
func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if common.IsHexAddress(address) {
		return strings.ToLower(common.HexToAddress(address).Hex())
	}
	return strings.ToLower(address)
}

// parseVolume converts a decimal USD string into a float. Empty means zero.
func parseVolume(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
