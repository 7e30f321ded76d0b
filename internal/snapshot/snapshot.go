// Package snapshot defines the durable whole-state snapshot journal. After
// every record mutation the core serializes the complete store contents and
// appends it here asynchronously; the journal is the recovery source of last
// resort when the primary key-value store is lost.
package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrNoSnapshots indicates that the journal is empty.
var ErrNoSnapshots = errors.New("no snapshots recorded")

// Entry is one recorded snapshot.
type Entry struct {
	ID      int64
	TakenAt time.Time
	State   []byte
}

// Journal stores whole-state snapshots.
type Journal interface {
	// Record appends a snapshot of the full store state.
	Record(ctx context.Context, state []byte) error

	// Latest returns the most recent snapshot.
	// Returns ErrNoSnapshots if nothing has been recorded.
	Latest(ctx context.Context) (*Entry, error)

	// Prune keeps only the newest keep snapshots and deletes the rest.
	Prune(ctx context.Context, keep int) error
}
