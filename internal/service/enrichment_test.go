package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creator-analytics/internal/storage"
	"github.com/creator-analytics/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createdBalances(up *fakeUpstream, n int) []types.Balance {
	out := make([]types.Balance, n)
	for i := range out {
		out[i] = up.addBalance(primaryWallet, float64(100*(i+1)), int64(10*(i+1)))
		out[i].IsCreator = true
	}
	return out
}

func newDetailCache(t *testing.T, clock *fakeClock) *storage.DetailCache {
	t.Helper()
	store, err := storage.NewMemoryStore(1000, clock.Now)
	require.NoError(t, err)
	return storage.NewDetailCache(store, 5*time.Minute, clock.Now)
}

func TestEnricher_IsolatesFailures(t *testing.T) {
	up := newFakeUpstream()
	created := createdBalances(up, 5)
	up.failDetail[created[2].TokenAddress] = true

	e := NewEnricher(up, nil, DefaultEnrichBatchSize)
	out := e.Enrich(context.Background(), created, 25)

	require.Len(t, out, 5)
	for i, item := range out {
		assert.Equal(t, created[i].TokenAddress, item.TokenAddress, "order is preserved")
		if i == 2 {
			assert.Nil(t, item.Detail)
			assert.False(t, item.Enriched)
			continue
		}
		require.NotNil(t, item.Detail, "member %d", i)
		assert.True(t, item.Enriched)
		assert.Equal(t, float64(100*(i+1)), item.Detail.TotalVolume)
	}
}

func TestEnricher_TruncatesToLimit(t *testing.T) {
	up := newFakeUpstream()
	created := createdBalances(up, 12)

	out := NewEnricher(up, nil, 5).Enrich(context.Background(), created, 7)

	assert.Len(t, out, 7)
	assert.Equal(t, int32(7), up.detailCalls.Load())
}

func TestEnricher_DefaultLimit(t *testing.T) {
	up := newFakeUpstream()
	created := createdBalances(up, 30)

	out := NewEnricher(up, nil, 5).Enrich(context.Background(), created, 0)

	assert.Len(t, out, DefaultEnrichLimit)
}

func TestEnricher_BoundsConcurrencyToBatchSize(t *testing.T) {
	up := newFakeUpstream()
	up.detailWait = 20 * time.Millisecond
	created := createdBalances(up, 13)

	out := NewEnricher(up, nil, 5).Enrich(context.Background(), created, 25)

	assert.Len(t, out, 13)
	assert.LessOrEqual(t, up.maxInFlight.Load(), int32(5))
	assert.Greater(t, up.maxInFlight.Load(), int32(1), "batch members run concurrently")
}

func TestEnricher_UsesDetailCache(t *testing.T) {
	clock := newFakeClock()
	cache := newDetailCache(t, clock)
	up := newFakeUpstream()
	created := createdBalances(up, 3)
	e := NewEnricher(up, cache, 5)
	ctx := context.Background()

	first := e.Enrich(ctx, created, 25)
	assert.Equal(t, int32(3), up.detailCalls.Load())

	second := e.Enrich(ctx, created, 25)
	assert.Equal(t, int32(3), up.detailCalls.Load(), "fresh entries are reused")
	assert.Equal(t, first, second)

	clock.Advance(5 * time.Minute)
	e.Enrich(ctx, created, 25)
	assert.Equal(t, int32(6), up.detailCalls.Load(), "stale entries are fetched again")
}

func TestEnricher_FailuresAreNotCached(t *testing.T) {
	clock := newFakeClock()
	cache := newDetailCache(t, clock)
	up := newFakeUpstream()
	created := createdBalances(up, 1)
	up.failDetail[created[0].TokenAddress] = true
	e := NewEnricher(up, cache, 5)
	ctx := context.Background()

	out := e.Enrich(ctx, created, 25)
	assert.Nil(t, out[0].Detail)

	up.failDetail[created[0].TokenAddress] = false
	out = e.Enrich(ctx, created, 25)
	require.NotNil(t, out[0].Detail)
	assert.Equal(t, int32(2), up.detailCalls.Load())
}

func TestEnricher_SkipsBalancesWithoutAddress(t *testing.T) {
	up := newFakeUpstream()
	out := NewEnricher(up, nil, 5).Enrich(context.Background(), []types.Balance{{Name: "orphan"}}, 25)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Detail)
	assert.Equal(t, int32(0), up.detailCalls.Load())
}

func TestEnricher_EmptyInput(t *testing.T) {
	out := NewEnricher(newFakeUpstream(), nil, 5).Enrich(context.Background(), nil, 25)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestEnricher_StopsWhenContextDone(t *testing.T) {
	up := newFakeUpstream()
	created := createdBalances(up, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewEnricher(up, nil, 5).Enrich(ctx, created, 25)

	assert.Len(t, out, 10)
	assert.Equal(t, int32(0), up.detailCalls.Load())
	for _, item := range out {
		assert.Nil(t, item.Detail)
	}
}

// gatedDetails blocks every fetch until release is closed, honouring the
// fetch context like the HTTP client does.
type gatedDetails struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedDetails) GetAssetDetail(ctx context.Context, address string) (*types.AssetDetail, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return &types.AssetDetail{Address: address, TotalVolume: 42}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestEnricher_SharedFetchSurvivesOtherCallerCancel(t *testing.T) {
	details := &gatedDetails{started: make(chan struct{}), release: make(chan struct{})}
	e := NewEnricher(details, nil, DefaultEnrichBatchSize)
	created := []types.Balance{{TokenAddress: tokenAddress(1), IsCreator: true}}

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan []types.EnrichedBalance, 1)
	go func() { doneA <- e.Enrich(ctxA, created, 25) }()
	<-details.started

	doneB := make(chan []types.EnrichedBalance, 1)
	go func() { doneB <- e.Enrich(context.Background(), created, 25) }()

	// Let B join the in-flight fetch, then abandon A
	time.Sleep(50 * time.Millisecond)
	cancelA()

	select {
	case outA := <-doneA:
		require.Len(t, outA, 1)
		assert.Nil(t, outA[0].Detail, "cancelled caller stops waiting")
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting on the shared fetch")
	}

	close(details.release)

	select {
	case outB := <-doneB:
		require.Len(t, outB, 1)
		require.NotNil(t, outB[0].Detail, "live caller keeps its detail")
		assert.True(t, outB[0].Enriched)
		assert.Equal(t, float64(42), outB[0].Detail.TotalVolume)
	case <-time.After(2 * time.Second):
		t.Fatal("live caller never received the shared fetch")
	}
	assert.Equal(t, int32(1), details.calls.Load(), "fetch is shared, not repeated")
}
