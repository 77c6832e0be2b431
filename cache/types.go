// Package cache provides the byte-oriented cache used to hold introspected table
// metadata. Implementations live in the memory and redis subpackages.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key. All implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL. A zero ttl stores without expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Health checks the backend is reachable.
	Health(ctx context.Context) error

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}
