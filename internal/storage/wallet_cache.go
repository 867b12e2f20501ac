package storage

import (
	"context"
	"time"
)

// DefaultWalletTTL is how long a discovery outcome is reused
const DefaultWalletTTL = time.Hour

// WalletCache remembers the secondary wallet discovered for a handle.
// An empty string records that discovery found nothing.
type WalletCache struct {
	cache *TTLCache[string]
}

// NewWalletCache creates a wallet cache over store
func NewWalletCache(store Store, ttl time.Duration, now func() time.Time) *WalletCache {
	if ttl <= 0 {
		ttl = DefaultWalletTTL
	}
	return &WalletCache{cache: NewTTLCache[string](store, CacheKeyWallet, ttl, now)}
}

// Get returns the cached wallet for handle and whether an entry was found
func (w *WalletCache) Get(ctx context.Context, handle string) (string, bool) {
	return w.cache.Get(ctx, w.cache.Key(handle))
}

// Set records wallet (possibly empty) for handle
func (w *WalletCache) Set(ctx context.Context, handle, wallet string) {
	w.cache.Set(ctx, w.cache.Key(handle), wallet)
}

// Stats returns the cache counters
func (w *WalletCache) Stats() CacheStats {
	return w.cache.Stats()
}
