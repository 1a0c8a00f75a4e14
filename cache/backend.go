// Package cache provides the pluggable byte cache used for profile
// metadata fetched from relays.
package cache

import (
	"context"
	"time"
)

// Backend is the interface cache implementations satisfy
type Backend interface {
	// Get retrieves a value. Returns (value, found, error).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources
	Close() error
}
