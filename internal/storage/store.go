package storage

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value backend with per-entry expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored bytes and whether the key was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes value unconditionally; a zero ttl means no expiry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
