package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or its TTL has lapsed.
var ErrMiss = errors.New("cache: miss")

// Cache is a small TTL key-value store for short-lived state that must not
// outlive its window, such as pending two-factor enrollments. Values expire
// server side; callers never sweep.
type Cache interface {
	// SetWithTTL stores value under key, replacing any previous value and
	// resetting the expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
