package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creator-analytics/internal/adapter"
	"github.com/creator-analytics/internal/ratelimit"
	"github.com/creator-analytics/internal/types"
)

const (
	primaryWallet   = "0x1111111111111111111111111111111111111111"
	secondaryWallet = "0x2222222222222222222222222222222222222222"
	otherCreator    = "0x3333333333333333333333333333333333333333"
)

// fakeUpstream implements every upstream interface in memory
type fakeUpstream struct {
	mu sync.Mutex

	profiles   map[string]*types.Profile
	// balances is the full listing, served in pages of pageSize
	balances   []types.Balance
	details    map[string]*types.AssetDetail
	failDetail map[string]bool
	coinCount  int

	profileErr error
	pageErrAt  int // 1-based page that fails, 0 for none
	sampleErr  error
	countErr   error
	infinite   bool // every page is full and has a cursor
	detailWait time.Duration

	// alwaysCursor advertises a next cursor even past the end of the listing
	alwaysCursor bool

	profileCalls atomic.Int32
	pageCalls    atomic.Int32
	detailCalls  atomic.Int32
	countCalls   atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	priorities []ratelimit.Priority
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		profiles: map[string]*types.Profile{
			"alice": {Handle: "alice", DisplayName: "Alice", PublicWallet: primaryWallet},
		},
		details:    make(map[string]*types.AssetDetail),
		failDetail: make(map[string]bool),
	}
}

func tokenAddress(i int) string {
	return fmt.Sprintf("0x%040x", i+0xa000)
}

// addBalance appends a balance minted by creator and registers a detail for it
func (f *fakeUpstream) addBalance(creator string, volume float64, holders int64) types.Balance {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := tokenAddress(len(f.balances))
	b := types.Balance{
		TokenAddress:   addr,
		Name:           "Coin " + strconv.Itoa(len(f.balances)),
		Symbol:         "C" + strconv.Itoa(len(f.balances)),
		TotalSupply:    "1000000000",
		UniqueHolders:  holders,
		CreatorAddress: creator,
		RawBalance:     "1500000000000000000",
		Balance:        "1.5",
	}
	f.balances = append(f.balances, b)
	f.details[addr] = &types.AssetDetail{Address: addr, TotalVolume: volume, UniqueHolders: holders}
	return b
}

func (f *fakeUpstream) ResolveProfile(ctx context.Context, identifier string) (*types.Profile, error) {
	f.profileCalls.Add(1)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p, ok := f.profiles[strings.ToLower(identifier)]
	if !ok {
		return nil, adapter.NewAdapterError(ratelimit.OpResolveProfile, 1, adapter.ErrNotFound, nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeUpstream) ListBalances(ctx context.Context, identifier string, pageSize int, cursor string) (*types.BalancePage, error) {
	f.mu.Lock()
	f.priorities = append(f.priorities, ratelimit.PriorityFromContext(ctx))
	f.mu.Unlock()

	call := int(f.pageCalls.Add(1))
	if cursor == "" && f.sampleErr != nil && pageSize != DefaultPageSize {
		return nil, f.sampleErr
	}

	page := 0
	if cursor != "" {
		page, _ = strconv.Atoi(cursor)
	}
	if f.pageErrAt > 0 && page+1 == f.pageErrAt && pageSize == DefaultPageSize {
		return nil, fmt.Errorf("%w: page %d", adapter.ErrProviderUnavailable, call)
	}

	if f.infinite {
		edges := make([]types.Balance, pageSize)
		for i := range edges {
			edges[i] = types.Balance{TokenAddress: tokenAddress(page*pageSize + i), CreatorAddress: otherCreator}
		}
		return &types.BalancePage{Edges: edges, NextCursor: strconv.Itoa(page + 1)}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	start := page * pageSize
	if start >= len(f.balances) {
		out := &types.BalancePage{Edges: []types.Balance{}}
		if f.alwaysCursor {
			out.NextCursor = strconv.Itoa(page + 1)
		}
		return out, nil
	}
	end := start + pageSize
	if end > len(f.balances) {
		end = len(f.balances)
	}
	out := &types.BalancePage{Edges: append([]types.Balance(nil), f.balances[start:end]...)}
	if end < len(f.balances) || f.alwaysCursor {
		out.NextCursor = strconv.Itoa(page + 1)
	}
	return out, nil
}

func (f *fakeUpstream) GetAssetDetail(ctx context.Context, address string) (*types.AssetDetail, error) {
	f.detailCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.detailWait > 0 {
		time.Sleep(f.detailWait)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDetail[address] {
		return nil, adapter.NewAdapterError(ratelimit.OpGetAssetDetail, 2, adapter.ErrProviderUnavailable, nil)
	}
	d, ok := f.details[address]
	if !ok {
		return nil, adapter.NewAdapterError(ratelimit.OpGetAssetDetail, 1, adapter.ErrNotFound, nil)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeUpstream) CountCoinsByCreator(ctx context.Context, wallet string) (int, error) {
	f.countCalls.Add(1)
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.coinCount, nil
}

// mapWalletStore is an in-memory WalletOverrideStore
type mapWalletStore struct {
	wallets map[string]string
	err     error
	calls   int
}

func (m *mapWalletStore) Get(ctx context.Context, handle string) (string, bool, error) {
	m.calls++
	if m.err != nil {
		return "", false, m.err
	}
	w, ok := m.wallets[handle]
	return w, ok, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
