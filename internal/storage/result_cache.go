package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/creator-analytics/internal/types"
)

// DefaultResultTTL is how long an aggregated result stays fresh
const DefaultResultTTL = 5 * time.Minute

// ResultKey identifies one cached aggregation
type ResultKey struct {
	Identifier      string
	FetchAll        bool
	InitialLoadOnly bool
	Limit           int
}

// ResultKeyFor builds the key for a mode and limit
func ResultKeyFor(identifier string, mode types.Mode, limit int) ResultKey {
	return ResultKey{
		Identifier:      identifier,
		FetchAll:        mode.FetchAll(),
		InitialLoadOnly: mode.InitialLoadOnly(),
		Limit:           limit,
	}
}

func (k ResultKey) params() []string {
	return []string{
		k.Identifier,
		strconv.FormatBool(k.FetchAll),
		strconv.FormatBool(k.InitialLoadOnly),
		strconv.Itoa(k.Limit),
	}
}

// ResultCache caches whole AggregatedResult values
type ResultCache struct {
	cache *TTLCache[types.AggregatedResult]
}

// NewResultCache creates a result cache over store
func NewResultCache(store Store, ttl time.Duration, now func() time.Time) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultCache{cache: NewTTLCache[types.AggregatedResult](store, CacheKeyResult, ttl, now)}
}

// Get returns the cached result for key. A hit returns the complete result.
func (r *ResultCache) Get(ctx context.Context, key ResultKey) (*types.AggregatedResult, bool) {
	result, ok := r.cache.Get(ctx, r.cache.Key(key.params()...))
	if !ok {
		return nil, false
	}
	return &result, true
}

// Set overwrites the entry for key
func (r *ResultCache) Set(ctx context.Context, key ResultKey, result *types.AggregatedResult) {
	if result == nil {
		return
	}
	r.cache.Set(ctx, r.cache.Key(key.params()...), *result)
}

// Invalidate drops the entry for key
func (r *ResultCache) Invalidate(ctx context.Context, key ResultKey) error {
	return r.cache.Invalidate(ctx, r.cache.Key(key.params()...))
}

// Stats returns the cache counters
func (r *ResultCache) Stats() CacheStats {
	return r.cache.Stats()
}
