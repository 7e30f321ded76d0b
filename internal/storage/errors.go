package storage

import "errors"

// Common backing store errors
var (
	// ErrKeyNotFound indicates that the key has no stored value
	ErrKeyNotFound = errors.New("key not found")

	// ErrQuotaExceeded indicates that the store ran out of capacity
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorageClosed indicates that the store is closed
	ErrStorageClosed = errors.New("storage is closed")
)
