// Package cache provides byte-oriented cache backends used to memoize
// expensive lookups such as table column metadata.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value from the cache. A missing key returns an
	// error matching ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL. A zero TTL uses the
	// backend default, a negative TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values under the backend's prefix
	Clear(ctx context.Context) error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is the default time-to-live for cached items
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 10 * time.Minute,
		Prefix:     "smokescreen:",
	}
}

// ErrMiss is returned when a key is not found in the cache
var ErrMiss = errors.New("cache miss")

func missError(key string) error {
	return fmt.Errorf("%w: %s", ErrMiss, key)
}

// IsMiss checks if an error is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Remember returns the JSON-decoded value stored at key. On a miss, load
// is called and its result is stored before being returned. Load errors
// are returned as-is and nothing is stored.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var value T

	raw, err := c.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
		// An undecodable entry is treated as a miss and overwritten.
	case !IsMiss(err):
		return value, err
	}

	value, err = load(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		return value, fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return value, nil
}
