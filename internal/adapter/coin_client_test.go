package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-analytics/internal/circuitbreaker"
)

const (
	creatorWallet = "0x1111111111111111111111111111111111111111"
	coinA         = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*CoinClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewCoinClient(CoinClientConfig{
		BaseURL:           server.URL,
		APIKey:            "test-key",
		Timeout:           200 * time.Millisecond,
		MaxRetries:        1,
		RequestsPerSecond: 1000,
		Burst:             100,
	})
	require.NoError(t, err)

	return client, server
}

func TestCoinClient_ResolveProfile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("identifier"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		_, _ = w.Write([]byte(`{"profile":{"handle":"alice","displayName":"Alice","bio":"makes coins",
			"avatar":{"previewImage":{"medium":"https://img/alice.png"}},
			"publicWallet":{"walletAddress":"` + creatorWallet + `"}}}`))
	})

	profile, err := client.ResolveProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Handle)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, "https://img/alice.png", profile.AvatarURL)
	assert.Equal(t, creatorWallet, profile.PublicWallet)
}

func TestCoinClient_ResolveProfile_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"null profile", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"profile":null}`))
		}},
		{"404 status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)

			_, err := client.ResolveProfile(context.Background(), "ghost")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			var adapterErr *AdapterError
			require.True(t, errors.As(err, &adapterErr))
			assert.Equal(t, "resolveProfile", adapterErr.Op)
		})
	}
}

func TestCoinClient_ListBalances(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profileBalances", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("count"))
		assert.Equal(t, "cursor-1", r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`{"profile":{"coinBalances":{"count":3,"edges":[
			{"node":{"balance":"2500000000000000000","coin":{"address":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
				"name":"Sunrise","symbol":"SUN","totalSupply":"1000000000","uniqueHolders":12,
				"creatorAddress":"` + creatorWallet + `","mediaContent":{"previewImage":{"small":"https://img/sun.png"}}}}},
			{"node":{"balance":"1","coin":null}}
		],"pageInfo":{"endCursor":"cursor-2","hasNextPage":true}}}}`))
	})

	page, err := client.ListBalances(context.Background(), "alice", 50, "cursor-1")
	require.NoError(t, err)
	require.Len(t, page.Edges, 1, "edges without a coin are dropped")

	b := page.Edges[0]
	assert.Equal(t, coinA, b.TokenAddress)
	assert.Equal(t, "SUN", b.Symbol)
	assert.Equal(t, int64(12), b.UniqueHolders)
	assert.Equal(t, creatorWallet, b.CreatorAddress)
	assert.Equal(t, "https://img/sun.png", b.PreviewImage)
	assert.Equal(t, "2500000000000000000", b.RawBalance)
	assert.Equal(t, "2.5", b.Balance)
	assert.False(t, b.IsCreator, "classification is not the adapter's job")
	assert.Equal(t, "cursor-2", page.NextCursor)
}

func TestCoinClient_ListBalances_LastPage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`{"profile":{"coinBalances":{"edges":[],"pageInfo":{"endCursor":"x","hasNextPage":false}}}}`))
	})

	page, err := client.ListBalances(context.Background(), "alice", 50, "")
	require.NoError(t, err)
	assert.Empty(t, page.Edges)
	assert.Empty(t, page.NextCursor)
}

func TestCoinClient_GetAssetDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coin", r.URL.Path)
		assert.Equal(t, coinA, r.URL.Query().Get("address"))
		_, _ = w.Write([]byte(`{"zora20Token":{"address":"` + coinA + `","totalVolume":"1234.5",
			"volume24h":"10.25","uniqueHolders":40,"createdAt":"2025-03-01T12:00:00Z"}}`))
	})

	detail, err := client.GetAssetDetail(context.Background(), coinA)
	require.NoError(t, err)
	assert.Equal(t, 1234.5, detail.TotalVolume)
	assert.Equal(t, 10.25, detail.Volume24h)
	assert.Equal(t, int64(40), detail.UniqueHolders)
	require.NotNil(t, detail.CreatedAt)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), *detail.CreatedAt)
}

func TestCoinClient_GetAssetDetail_InvalidAddress(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := client.GetAssetDetail(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCoinClient_CountCoinsByCreator(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profileCoins", r.URL.Path)
		_, _ = w.Write([]byte(`{"profile":{"createdCoins":{"count":7}}}`))
	})

	n, err := client.CountCoinsByCreator(context.Background(), creatorWallet)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCoinClient_RetriesTransientFailureOnce(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"profile":{"createdCoins":{"count":2}}}`))
	})

	n, err := client.CountCoinsByCreator(context.Background(), creatorWallet)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	stats := client.Stats()
	assert.Equal(t, 1, stats.Retries.TotalRetries)
	assert.Equal(t, int64(1), stats.Endpoint.FailedReqs)
}

func TestCoinClient_GivesUpAfterOneRetry(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListBalances(context.Background(), "alice", 50, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCoinClient_PerAttemptTimeout(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := client.ResolveProfile(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCoinClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad identifier"}`))
	})

	_, err := client.ResolveProfile(context.Background(), "???")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCoinClient_CircuitOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewCoinClient(CoinClientConfig{
		BaseURL:           server.URL,
		Timeout:           time.Second,
		MaxRetries:        0,
		RequestsPerSecond: 1000,
		Burst:             100,
		BreakerConfig: &circuitbreaker.Config{
			MaxFailures:      2,
			FailureThreshold: 0.5,
			Timeout:          time.Minute,
			HalfOpenMaxCalls: 1,
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.GetAssetDetail(ctx, coinA)
		require.Error(t, err)
	}

	_, err = client.GetAssetDetail(ctx, coinA)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// Other operations have their own breaker
	_, err = client.CountCoinsByCreator(ctx, creatorWallet)
	assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestCoinClient_FailsOverToFallback(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"profile":{"createdCoins":{"count":9}}}`))
	}))
	defer fallback.Close()

	client, err := NewCoinClient(CoinClientConfig{
		BaseURL:           primary.URL,
		FallbackURL:       fallback.URL,
		Timeout:           time.Second,
		MaxRetries:        0,
		RequestsPerSecond: 1000,
		Burst:             100,
		BreakerConfig:     &circuitbreaker.Config{MaxFailures: 100, FailureThreshold: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = client.CountCoinsByCreator(ctx, creatorWallet)
	}

	n, err := client.CountCoinsByCreator(ctx, creatorWallet)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, fallback.URL, client.Stats().Endpoint.CurrentURL)
}

type denyBudget struct{ ops []string }

func (d *denyBudget) Acquire(ctx context.Context, op string) error {
	d.ops = append(d.ops, op)
	return errors.New("budget exhausted")
}

func TestCoinClient_SharedBudgetConsulted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	budget := &denyBudget{}
	client, err := NewCoinClient(CoinClientConfig{
		BaseURL:           server.URL,
		MaxRetries:        0,
		RequestsPerSecond: 1000,
		Burst:             100,
		Budget:            budget,
	})
	require.NoError(t, err)

	_, err = client.ListBalances(context.Background(), "alice", 50, "")
	require.Error(t, err)
	assert.Equal(t, []string{"listBalances"}, budget.ops)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
