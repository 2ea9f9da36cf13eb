package store

import (
	"context"
	"fmt"
)

// Store is the key-value capability a learning strategy persists its
// counters in. Values are int64 counters; a missing key reads as zero.
type Store interface {
	// Get returns the counter stored under key, or 0 if the key is absent.
	Get(ctx context.Context, key string) (int64, error)

	// GetMulti returns the counters for all given keys in one round trip
	// where the backend supports it. Absent keys read as zero.
	GetMulti(ctx context.Context, keys []string) (map[string]int64, error)

	// Set overwrites the counter stored under key.
	Set(ctx context.Context, key string, value int64) error

	// Increment atomically adds delta (which may be negative) to the
	// counter under key and returns the new value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Delete removes the given keys. Deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// UnavailableError indicates the backing store could not be reached or
// timed out. Callers may retry; the registry never caches a strategy
// whose store failed to come up.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backing store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
