package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestTracker creates a BudgetTracker backed by miniredis with a frozen clock.
func setupTestTracker(t *testing.T, total, reserved int, now func() time.Time) (*BudgetTracker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	tracker, err := NewBudgetTracker(&BudgetTrackerConfig{
		Redis:          client,
		TotalBudget:    total,
		ReservedBudget: reserved,
		MaxWait:        100 * time.Millisecond,
		Now:            now,
	})
	require.NoError(t, err)

	return tracker, mr
}

func frozenAt(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestNewBudgetTracker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Run("applies defaults", func(t *testing.T) {
		tracker, err := NewBudgetTracker(&BudgetTrackerConfig{Redis: client})
		require.NoError(t, err)
		assert.Equal(t, DefaultTotalBudget, tracker.totalBudget)
		assert.Equal(t, DefaultReservedBudget, tracker.reservedBudget)
		assert.Equal(t, DefaultTotalBudget-DefaultReservedBudget, tracker.sharedBudget)
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		_, err := NewBudgetTracker(nil)
		assert.Error(t, err)

		_, err = NewBudgetTracker(&BudgetTrackerConfig{})
		assert.Error(t, err)

		_, err = NewBudgetTracker(&BudgetTrackerConfig{Redis: client, TotalBudget: 10, ReservedBudget: 20})
		assert.Error(t, err)
	})
}

func TestBudgetTracker_PoolsAreSeparate(t *testing.T) {
	ctx := context.Background()
	tracker, _ := setupTestTracker(t, 10, 6, frozenAt(time.Unix(1700000000, 0)))

	ok, _ := tracker.TryConsume(ctx, 6, PriorityHigh)
	require.True(t, ok)

	ok, wait := tracker.TryConsume(ctx, 1, PriorityHigh)
	assert.False(t, ok, "reserved pool is spent")
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = tracker.TryConsume(ctx, 4, PriorityLow)
	assert.True(t, ok, "shared pool is untouched by interactive traffic")

	usage, err := tracker.GetUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, usage.TotalUsed)
	assert.Equal(t, 6, usage.ReservedUsed)
	assert.Equal(t, 4, usage.SharedUsed)

	avail, err := tracker.AvailableBudget(ctx, PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, 0, avail)
}

func TestBudgetTracker_NewWindowResets(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	tracker, _ := setupTestTracker(t, 2, 2, clock)

	ok, _ := tracker.TryConsume(ctx, 2, PriorityHigh)
	require.True(t, ok)
	ok, _ = tracker.TryConsume(ctx, 1, PriorityHigh)
	require.False(t, ok)

	now = now.Add(time.Second)

	ok, _ = tracker.TryConsume(ctx, 1, PriorityHigh)
	assert.True(t, ok)
}

func TestBudgetTracker_AcquireMaxWait(t *testing.T) {
	ctx := context.Background()
	tracker, _ := setupTestTracker(t, 3, 3, frozenAt(time.Unix(1700000000, 0)))

	// listBalances costs 3, which spends the whole reserved pool
	require.NoError(t, tracker.Acquire(ctx, OpListBalances))

	err := tracker.Acquire(ctx, OpGetAssetDetail)
	assert.ErrorIs(t, err, ErrMaxWaitExceeded)
}

func TestBudgetTracker_AcquireWaitsForNextWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tracker, err := NewBudgetTracker(&BudgetTrackerConfig{
		Redis:          redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		TotalBudget:    1,
		ReservedBudget: 1,
		WindowSize:     50 * time.Millisecond,
		MaxWait:        time.Second,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tracker.Acquire(ctx, OpGetAssetDetail))

	start := time.Now()
	require.NoError(t, tracker.Acquire(ctx, OpGetAssetDetail))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPriorityContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, PriorityHigh, PriorityFromContext(ctx))
	assert.Equal(t, PriorityLow, PriorityFromContext(WithPriority(ctx, PriorityLow)))
	assert.Equal(t, "low", PriorityLow.String())
}

func TestCostRegistry(t *testing.T) {
	r := NewCostRegistry(&CostRegistryConfig{
		DefaultCost: 5,
		Overrides:   map[string]int{OpGetAssetDetail: 2, OpResolveProfile: 0},
	})

	assert.Equal(t, 2, r.GetCost(OpGetAssetDetail))
	assert.Equal(t, CostResolveProfile, r.GetCost(OpResolveProfile), "non-positive override is ignored")
	assert.Equal(t, 5, r.GetCost("unknown"))

	r.SetCost(OpListBalances, 7)
	r.SetCost(OpListBalances, -1)
	assert.Equal(t, 7, r.GetCost(OpListBalances))

	assert.Equal(t, []string{OpCountCoinsByCreator, OpGetAssetDetail, OpListBalances, OpResolveProfile}, r.KnownOperations())
}
