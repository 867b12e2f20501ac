// Package ratelimit coordinates the upstream request budget across service
// instances using Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default budget configuration values.
const (
	DefaultTotalBudget    = 100             // Units per window
	DefaultReservedBudget = 60              // Reserved for interactive requests
	DefaultWindowSize     = time.Second     // Fixed window aligned to the clock
	DefaultKeyTTL         = 2 * time.Second // Window + buffer
	DefaultMaxWait        = 10 * time.Second
)

// Redis key prefixes for budget tracking.
const (
	KeyPrefixTotal    = "budget:total:"
	KeyPrefixReserved = "budget:reserved:"
	KeyPrefixShared   = "budget:shared:"
)

// ErrMaxWaitExceeded is returned when no budget became available within MaxWait.
var ErrMaxWaitExceeded = errors.New("maximum wait time exceeded waiting for upstream budget")

// Priority selects the budget pool a call draws from.
type Priority int

const (
	// PriorityHigh is for interactive analytics requests (reserved pool).
	PriorityHigh Priority = iota
	// PriorityLow is for full-history walks (shared pool).
	PriorityLow
)

// String returns a string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

type priorityKey struct{}

// WithPriority tags ctx with the budget pool for upstream calls made under it.
func WithPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFromContext returns the priority carried by ctx, PriorityHigh by default.
func PriorityFromContext(ctx context.Context) Priority {
	if p, ok := ctx.Value(priorityKey{}).(Priority); ok {
		return p
	}
	return PriorityHigh
}

// consumeScript atomically checks both the total and the pool counters
// before incrementing them.
var consumeScript = redis.NewScript(`
	local totalKey = KEYS[1]
	local poolKey = KEYS[2]
	local cost = tonumber(ARGV[1])
	local totalBudget = tonumber(ARGV[2])
	local poolBudget = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local totalUsed = tonumber(redis.call('GET', totalKey) or '0')
	local poolUsed = tonumber(redis.call('GET', poolKey) or '0')

	if totalUsed + cost > totalBudget then
		return {0, totalUsed, poolUsed}
	end
	if poolUsed + cost > poolBudget then
		return {0, totalUsed, poolUsed}
	end

	redis.call('INCRBY', totalKey, cost)
	redis.call('EXPIRE', totalKey, ttl)
	redis.call('INCRBY', poolKey, cost)
	redis.call('EXPIRE', poolKey, ttl)

	return {1, totalUsed + cost, poolUsed + cost}
`)

// BudgetTracker shares the upstream request budget between every instance
// pointed at the same Redis. Interactive requests draw from a reserved pool
// so long full-history walks cannot starve them.
type BudgetTracker struct {
	redis          redis.Cmdable
	costs          *CostRegistry
	totalBudget    int
	reservedBudget int
	sharedBudget   int
	windowSize     time.Duration
	keyTTL         time.Duration
	maxWait        time.Duration
	now            func() time.Time
}

// BudgetTrackerConfig holds configuration for the budget tracker.
type BudgetTrackerConfig struct {
	// Redis is required.
	Redis redis.Cmdable

	// Costs prices each operation. nil uses NewCostRegistry(nil).
	Costs *CostRegistry

	TotalBudget    int
	ReservedBudget int
	WindowSize     time.Duration
	KeyTTL         time.Duration
	MaxWait        time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// UsageStats contains consumption in the current window.
type UsageStats struct {
	TotalUsed      int       `json:"totalUsed"`
	ReservedUsed   int       `json:"reservedUsed"`
	SharedUsed     int       `json:"sharedUsed"`
	TotalBudget    int       `json:"totalBudget"`
	ReservedBudget int       `json:"reservedBudget"`
	SharedBudget   int       `json:"sharedBudget"`
	WindowStart    time.Time `json:"windowStart"`
}

// Validate checks if the configuration is valid.
func (c *BudgetTrackerConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.TotalBudget < 0 {
		return errors.New("total budget cannot be negative")
	}
	if c.ReservedBudget < 0 {
		return errors.New("reserved budget cannot be negative")
	}

	total := orDefault(c.TotalBudget, DefaultTotalBudget)
	reserved := orDefault(c.ReservedBudget, DefaultReservedBudget)
	if reserved > total {
		return fmt.Errorf("reserved budget (%d) cannot exceed total budget (%d)", reserved, total)
	}

	return nil
}

// NewBudgetTracker creates a new tracker with the given configuration.
func NewBudgetTracker(cfg *BudgetTrackerConfig) (*BudgetTracker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	total := orDefault(cfg.TotalBudget, DefaultTotalBudget)
	reserved := orDefault(cfg.ReservedBudget, DefaultReservedBudget)

	costs := cfg.Costs
	if costs == nil {
		costs = NewCostRegistry(nil)
	}

	windowSize := cfg.WindowSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	keyTTL := cfg.KeyTTL
	if keyTTL == 0 {
		keyTTL = DefaultKeyTTL
	}
	maxWait := cfg.MaxWait
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &BudgetTracker{
		redis:          cfg.Redis,
		costs:          costs,
		totalBudget:    total,
		reservedBudget: reserved,
		sharedBudget:   total - reserved,
		windowSize:     windowSize,
		keyTTL:         keyTTL,
		maxWait:        maxWait,
		now:            now,
	}, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (t *BudgetTracker) windowTimestamp() int64 {
	return t.now().Truncate(t.windowSize).UnixMilli()
}

func (t *BudgetTracker) keys(windowTS int64) (totalKey, reservedKey, sharedKey string) {
	ts := strconv.FormatInt(windowTS, 10)
	return KeyPrefixTotal + ts, KeyPrefixReserved + ts, KeyPrefixShared + ts
}

// TryConsume attempts to take cost units from the pool matching priority.
// It returns the suggested wait before retrying when the budget is spent.
// A Redis failure denies the request.
func (t *BudgetTracker) TryConsume(ctx context.Context, cost int, priority Priority) (bool, time.Duration) {
	if cost <= 0 {
		return true, 0
	}

	windowTS := t.windowTimestamp()
	totalKey, reservedKey, sharedKey := t.keys(windowTS)

	poolKey, poolBudget := reservedKey, t.reservedBudget
	if priority == PriorityLow {
		poolKey, poolBudget = sharedKey, t.sharedBudget
	}

	ttlSeconds := int(t.keyTTL.Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	result, err := consumeScript.Run(ctx, t.redis, []string{totalKey, poolKey},
		cost, t.totalBudget, poolBudget, ttlSeconds).Int64Slice()
	if err != nil || len(result) == 0 || result[0] != 1 {
		return false, t.waitTime(windowTS)
	}

	return true, 0
}

// Acquire blocks until the budget for op is available, ctx is done or
// MaxWait elapses. The pool is taken from the context priority.
func (t *BudgetTracker) Acquire(ctx context.Context, op string) error {
	cost := t.costs.GetCost(op)
	priority := PriorityFromContext(ctx)
	deadline := t.now().Add(t.maxWait)

	for {
		ok, wait := t.TryConsume(ctx, cost, priority)
		if ok {
			return nil
		}
		if t.now().Add(wait).After(deadline) {
			return fmt.Errorf("%s (%s priority): %w", op, priority, ErrMaxWaitExceeded)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// waitTime returns the time until the next window starts.
func (t *BudgetTracker) waitTime(windowTS int64) time.Duration {
	windowEnd := time.UnixMilli(windowTS).Add(t.windowSize)
	wait := windowEnd.Sub(t.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// GetUsage returns consumption in the current window.
func (t *BudgetTracker) GetUsage(ctx context.Context) (*UsageStats, error) {
	windowTS := t.windowTimestamp()
	totalKey, reservedKey, sharedKey := t.keys(windowTS)

	pipe := t.redis.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey)
	reservedCmd := pipe.Get(ctx, reservedKey)
	sharedCmd := pipe.Get(ctx, sharedKey)

	// redis.Nil only means the window has no traffic yet
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read budget usage: %w", err)
	}

	return &UsageStats{
		TotalUsed:      parseIntOrZero(totalCmd),
		ReservedUsed:   parseIntOrZero(reservedCmd),
		SharedUsed:     parseIntOrZero(sharedCmd),
		TotalBudget:    t.totalBudget,
		ReservedBudget: t.reservedBudget,
		SharedBudget:   t.sharedBudget,
		WindowStart:    time.UnixMilli(windowTS),
	}, nil
}

func parseIntOrZero(cmd *redis.StringCmd) int {
	val, err := cmd.Int()
	if err != nil {
		return 0
	}
	return val
}

// AvailableBudget returns the units left in the pool for priority.
func (t *BudgetTracker) AvailableBudget(ctx context.Context, priority Priority) (int, error) {
	stats, err := t.GetUsage(ctx)
	if err != nil {
		return 0, err
	}

	available := t.reservedBudget - stats.ReservedUsed
	if priority == PriorityLow {
		available = t.sharedBudget - stats.SharedUsed
	}
	if remaining := t.totalBudget - stats.TotalUsed; remaining < available {
		available = remaining
	}
	if available < 0 {
		available = 0
	}
	return available, nil
}
