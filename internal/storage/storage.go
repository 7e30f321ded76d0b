// Package storage defines the key-value backing store the rest of the core
// persists through. Values are opaque strings (JSON-encoded collections);
// interpretation belongs to the callers.
package storage

import "context"

// Store is the backing key-value store.
type Store interface {
	// Get returns the value for key.
	// Returns ErrKeyNotFound if the key has never been set.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	// Implementations with bounded capacity return ErrQuotaExceeded when the
	// write does not fit.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Init prepares the store for the given well-known keys (creates buckets,
	// tables, etc.). Safe to call more than once.
	Init(ctx context.Context, knownKeys []string) error
}
