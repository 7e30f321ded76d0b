// Package memory provides an in-memory storage.Store with an optional byte
// capacity. The capacity limit models the quota behavior of the browser-style
// stores the core was designed against and is used by tests to exercise the
// quota-exceeded path.
package memory

import (
	"context"
	"sync"

	"github.com/katanos/katanos/internal/storage"
)

// Storage is an in-memory implementation of storage.Store.
type Storage struct {
	mu       sync.RWMutex
	values   map[string]string
	capacity int // 0 means unbounded
}

var _ storage.Store = (*Storage)(nil)

// New returns an unbounded in-memory store.
func New() *Storage {
	return &Storage{values: make(map[string]string)}
}

// NewWithCapacity returns a store that rejects writes once the total size of
// stored values would exceed capacity bytes.
func NewWithCapacity(capacity int) *Storage {
	return &Storage{values: make(map[string]string), capacity: capacity}
}

func (s *Storage) Init(ctx context.Context, knownKeys []string) error {
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", storage.ErrKeyNotFound
	}
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 {
		total := len(value)
		for k, v := range s.values {
			if k == key {
				continue
			}
			total += len(v)
		}
		if total > s.capacity {
			return storage.ErrQuotaExceeded
		}
	}

	s.values[key] = value
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Snapshot returns a copy of the current contents. Test helper.
func (s *Storage) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
