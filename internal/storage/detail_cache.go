package storage

import (
	"context"
	"time"

	"github.com/creator-analytics/internal/types"
)

// DefaultDetailTTL is how long an asset detail stays fresh
const DefaultDetailTTL = 5 * time.Minute

// DetailCache caches AssetDetail records by token address
type DetailCache struct {
	cache *TTLCache[types.AssetDetail]
}

// NewDetailCache creates a detail cache over store
func NewDetailCache(store Store, ttl time.Duration, now func() time.Time) *DetailCache {
	if ttl <= 0 {
		ttl = DefaultDetailTTL
	}
	return &DetailCache{cache: NewTTLCache[types.AssetDetail](store, CacheKeyDetail, ttl, now)}
}

// Get returns a fresh detail for address
func (d *DetailCache) Get(ctx context.Context, address string) (*types.AssetDetail, bool) {
	detail, ok := d.cache.Get(ctx, d.cache.Key(address))
	if !ok {
		return nil, false
	}
	return &detail, true
}

// Set records detail for address
func (d *DetailCache) Set(ctx context.Context, address string, detail *types.AssetDetail) {
	if detail == nil {
		return
	}
	d.cache.Set(ctx, d.cache.Key(address), *detail)
}

// Stats returns the cache counters
func (d *DetailCache) Stats() CacheStats {
	return d.cache.Stats()
}
