package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/creator-analytics/internal/logging"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyDetail is for per-asset detail records
	CacheKeyDetail CacheKeyType = "detail"
	// CacheKeyResult is for whole aggregated results
	CacheKeyResult CacheKeyType = "result"
	// CacheKeyWallet is for discovered secondary wallets
	CacheKeyWallet CacheKeyType = "wallet"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, param := range params {
		parts = append(parts, strings.ToLower(strings.TrimSpace(param)))
	}
	return strings.Join(parts, ":")
}

// cacheEntry is the stored envelope. WrittenAt decides freshness so that
// both backends agree with the injected clock.
type cacheEntry[T any] struct {
	Value     T         `json:"value"`
	WrittenAt time.Time `json:"writtenAt"`
}

// CacheStats reports counters for one cache
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hitRate"`
	TTL     string  `json:"ttl"`
}

// TTLCache is a typed JSON cache over a Store. An entry is served only while
// now - writtenAt < ttl. Backend failures are logged and read as misses.
type TTLCache[T any] struct {
	store   Store
	keyType CacheKeyType
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewTTLCache creates a typed cache. now may be nil.
func NewTTLCache[T any](store Store, keyType CacheKeyType, ttl time.Duration, now func() time.Time) *TTLCache[T] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[T]{store: store, keyType: keyType, ttl: ttl, now: now}
}

// Key builds the key this cache stores params under
func (c *TTLCache[T]) Key(params ...string) string {
	return GenerateCacheKey(c.keyType, params...)
}

// Get returns the cached value for key while it is fresh
func (c *TTLCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"cache": string(c.keyType),
			"key":   key,
		}).WithError(err).Warn("Cache read failed, treating as miss")
		return zero, false
	}
	if !found {
		c.misses.Add(1)
		return zero, false
	}

	var entry cacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		logging.FromContext(ctx).WithField("key", key).WithError(err).Warn("Discarding undecodable cache entry")
		return zero, false
	}

	if c.now().Sub(entry.WrittenAt) >= c.ttl {
		c.misses.Add(1)
		return zero, false
	}

	c.hits.Add(1)
	return entry.Value, true
}

// Set overwrites key with value stamped with the current time
func (c *TTLCache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(cacheEntry[T]{Value: value, WrittenAt: c.now().UTC()})
	if err != nil {
		c.errors.Add(1)
		logging.FromContext(ctx).WithField("key", key).WithError(err).Error("Failed to encode cache entry")
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.errors.Add(1)
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"cache": string(c.keyType),
			"key":   key,
		}).WithError(err).Warn("Cache write failed")
	}
}

// Invalidate removes keys
func (c *TTLCache[T]) Invalidate(ctx context.Context, keys ...string) error {
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate %s cache: %w", c.keyType, err)
	}
	return nil
}

// TTL returns the freshness window
func (c *TTLCache[T]) TTL() time.Duration {
	return c.ttl
}

// Stats returns a snapshot of the cache counters
func (c *TTLCache[T]) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{
		Name:   string(c.keyType),
		Hits:   hits,
		Misses: misses,
		Errors: c.errors.Load(),
		TTL:    c.ttl.String(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
