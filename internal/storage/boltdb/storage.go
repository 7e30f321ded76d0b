package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/katanos/katanos/internal/storage"
)

// bucketData holds every collection and extras value keyed by store key
var bucketData = []byte("data")

// Storage is the BoltDB implementation of storage.Store.
type Storage struct {
	db *bbolt.DB
}

var _ storage.Store = (*Storage)(nil)

// New opens (or creates) the BoltDB file at dbPath.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	if err := s.Init(ctx, nil); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database file.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init creates the data bucket if it does not exist. knownKeys is accepted
// for interface compatibility; BoltDB needs no per-key preparation.
func (s *Storage) Init(ctx context.Context, knownKeys []string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketData); err != nil {
			return fmt.Errorf("failed to create data bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketData)
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}

		// Копируем: данные валидны только внутри транзакции
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}

	return value, nil
}

// Set stores value under key.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketData)
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to save value: %w", err)
		}

		return nil
	})
}

// Remove deletes key. Deleting an absent key is a no-op.
func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketData)
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete value: %w", err)
		}

		return nil
	})
}
