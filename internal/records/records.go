// Package records implements generic per-user record storage on top of the
// key-value backing store. Each named collection is one JSON array persisted
// under a single key; every mutation rewrites the whole collection and then
// schedules an asynchronous durable snapshot of the complete store state.
//
// Concurrency contract: collections are deliberately not locked. A mutation
// reads, transforms and writes its collection as one logical step, so two
// concurrent writers to the same collection race and the last writer wins.
// The application is single-session and the scheduler re-enters the store
// sequentially; the residual race is an accepted, documented risk.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katanos/katanos/internal/diag"
	"github.com/katanos/katanos/internal/notify"
	"github.com/katanos/katanos/internal/snapshot"
	"github.com/katanos/katanos/internal/storage"
)

// KeyPrefix namespaces collection keys inside the backing store.
const KeyPrefix = "katanos."

// Named collections managed by the store. The vault collection holds opaque
// externally-encrypted blobs and is special-cased by restore (wholesale
// replace, never merged).
const (
	CollectionUsers        = "users"
	CollectionEvents       = "events"
	CollectionTodos        = "todos"
	CollectionTransactions = "transactions"
	CollectionHabits       = "habits"
	CollectionJournal      = "journal"
	CollectionVault        = "vault"
)

// Collections lists every collection in a stable order.
var Collections = []string{
	CollectionUsers,
	CollectionEvents,
	CollectionTodos,
	CollectionTransactions,
	CollectionHabits,
	CollectionJournal,
	CollectionVault,
}

// QuotaNotificationInterval limits how often the quota alert may fire.
const QuotaNotificationInterval = 8 * time.Second

// rowMeta is the envelope every row shares: a synthetic unique id and the
// owning user's id.
type rowMeta struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// Store provides CRUD over named collections.
type Store struct {
	kv       storage.Store
	journal  snapshot.Journal
	notifier notify.Notifier
	quota    notify.Notifier
	logger   *slog.Logger
	diag     diag.Reporter

	pending chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewStore creates a record store. journal may be nil when no durable
// snapshot collaborator is configured.
func NewStore(
	kv storage.Store,
	journal snapshot.Journal,
	notifier notify.Notifier,
	logger *slog.Logger,
	reporter diag.Reporter,
) *Store {
	s := &Store{
		kv:       kv,
		journal:  journal,
		notifier: notifier,
		quota:    notify.NewRateLimited(notifier, QuotaNotificationInterval),
		logger:   logger,
		diag:     reporter,
		pending:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.snapshotLoop()

	return s
}

// Init prepares the backing store for every known collection key.
func (s *Store) Init(ctx context.Context) error {
	keys := make([]string, 0, len(Collections))
	for _, c := range Collections {
		keys = append(keys, KeyPrefix+c)
	}
	return s.kv.Init(ctx, keys)
}

// Close stops the snapshot worker and waits for an in-flight snapshot.
func (s *Store) Close() {
	close(s.quit)
	s.wg.Wait()
}

// List returns the rows of collection owned by userID.
func (s *Store) List(ctx context.Context, collection, userID string) ([]json.RawMessage, error) {
	rows, err := s.ReadAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		if ownerOf(row) == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

// Add assigns a fresh id to row and appends it to collection. The returned
// row includes the assigned id.
func (s *Store) Add(ctx context.Context, collection string, row json.RawMessage) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}

	fields["id"] = uuid.NewString()

	withID, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}

	rows, err := s.ReadAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	rows = append(rows, withID)
	if err := s.persist(ctx, collection, rows); err != nil {
		return nil, err
	}

	return withID, nil
}

// Update merges the partial row into the stored row with the given id. The
// merge is shallow: top-level keys from partial overwrite the stored value;
// the id itself cannot be changed. An unknown id is a silent no-op — this is
// intended behavior, not an error.
func (s *Store) Update(ctx context.Context, collection, id string, partial json.RawMessage) error {
	rows, err := s.ReadAll(ctx, collection)
	if err != nil {
		return err
	}

	found := false
	for i, row := range rows {
		if idOf(row) != id {
			continue
		}

		merged, err := mergeRow(row, partial, id)
		if err != nil {
			return err
		}

		rows[i] = merged
		found = true
		break
	}

	if !found {
		return nil
	}

	return s.persist(ctx, collection, rows)
}

// Delete removes the row with the given id. An unknown id is a silent no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	rows, err := s.ReadAll(ctx, collection)
	if err != nil {
		return err
	}

	kept := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		if idOf(row) != id {
			kept = append(kept, row)
		}
	}

	if len(kept) == len(rows) {
		return nil
	}

	return s.persist(ctx, collection, kept)
}

// ReadAll returns every row of collection. A collection that has never been
// written reads as empty.
func (s *Store) ReadAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	value, err := s.kv.Get(ctx, KeyPrefix+collection)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(value), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", collection, err)
	}
	return rows, nil
}

// ReplaceAll overwrites collection with rows.
func (s *Store) ReplaceAll(ctx context.Context, collection string, rows []json.RawMessage) error {
	return s.persist(ctx, collection, rows)
}

// ReplaceOwned drops every row of collection owned by userID and appends the
// incoming rows, as one write. Rows owned by other users are untouched.
func (s *Store) ReplaceOwned(ctx context.Context, collection, userID string, incoming []json.RawMessage) error {
	rows, err := s.ReadAll(ctx, collection)
	if err != nil {
		return err
	}

	kept := make([]json.RawMessage, 0, len(rows)+len(incoming))
	for _, row := range rows {
		if ownerOf(row) != userID {
			kept = append(kept, row)
		}
	}
	kept = append(kept, incoming...)

	return s.persist(ctx, collection, kept)
}

// DeleteOwned removes every row of collection owned by userID.
func (s *Store) DeleteOwned(ctx context.Context, collection, userID string) error {
	return s.ReplaceOwned(ctx, collection, userID, nil)
}

// GetExtra returns the raw extras blob stored under key.
func (s *Store) GetExtra(ctx context.Context, key string) (string, error) {
	return s.kv.Get(ctx, key)
}

// SetExtra stores an extras blob under key.
func (s *Store) SetExtra(ctx context.Context, key, value string) error {
	if err := s.kv.Set(ctx, key, value); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			s.reportQuota(ctx, key)
			return nil
		}
		return err
	}
	s.ScheduleSnapshot()
	return nil
}

// RemoveExtra deletes the extras blob under key.
func (s *Store) RemoveExtra(ctx context.Context, key string) error {
	return s.kv.Remove(ctx, key)
}

// persist writes the full collection synchronously, then schedules an async
// snapshot. A quota failure drops the write, fires a rate-limited alert and
// returns nil: losing the write is an accepted risk, raising here is not.
func (s *Store) persist(ctx context.Context, collection string, rows []json.RawMessage) error {
	if rows == nil {
		rows = []json.RawMessage{}
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", collection, err)
	}

	if err := s.kv.Set(ctx, KeyPrefix+collection, string(data)); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			s.reportQuota(ctx, collection)
			return nil
		}
		return fmt.Errorf("failed to write collection %s: %w", collection, err)
	}

	s.ScheduleSnapshot()
	return nil
}

func (s *Store) reportQuota(ctx context.Context, what string) {
	s.logger.WarnContext(ctx, "storage quota exceeded, write dropped", "target", what)
	s.diag.Report(ctx, diag.Event{
		Component: "records",
		Kind:      diag.KindQuotaExceeded,
		Detail:    what,
	})
	s.quota.Notify(ctx, notify.Notification{
		Title:   "Storage full",
		Message: "The latest change could not be saved because storage is full.",
		Type:    notify.TypeError,
	})
}

// ScheduleSnapshot marks the store dirty. Signals coalesce: a pending signal
// already covers any state written before the worker gets to it.
func (s *Store) ScheduleSnapshot() {
	if s.journal == nil {
		return
	}
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// snapshotLoop drains snapshot signals and records whole-state snapshots.
// Failures are logged and reported, never propagated to the writer.
func (s *Store) snapshotLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			return
		case <-s.pending:
			s.takeSnapshot()
		}
	}
}

func (s *Store) takeSnapshot() {
	ctx := context.Background()

	state := make(map[string][]json.RawMessage, len(Collections))
	for _, collection := range Collections {
		rows, err := s.ReadAll(ctx, collection)
		if err != nil {
			s.logger.Warn("snapshot skipped, collection unreadable",
				"collection", collection, "error", err)
			s.diag.Report(ctx, diag.Event{
				Component: "records",
				Kind:      diag.KindSnapshotFailed,
				Detail:    collection,
				Err:       err,
			})
			return
		}
		if rows == nil {
			rows = []json.RawMessage{}
		}
		state[collection] = rows
	}

	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Warn("snapshot encoding failed", "error", err)
		return
	}

	if err := s.journal.Record(ctx, data); err != nil {
		s.logger.Warn("snapshot write failed", "error", err)
		s.diag.Report(ctx, diag.Event{
			Component: "records",
			Kind:      diag.KindSnapshotFailed,
			Err:       err,
		})
	}
}

// Flush records a pending snapshot synchronously. Test helper; production
// code relies on the background worker.
func (s *Store) Flush() {
	select {
	case <-s.pending:
		s.takeSnapshot()
	default:
	}
}

func idOf(row json.RawMessage) string {
	var meta rowMeta
	if err := json.Unmarshal(row, &meta); err != nil {
		return ""
	}
	return meta.ID
}

func ownerOf(row json.RawMessage) string {
	var meta rowMeta
	if err := json.Unmarshal(row, &meta); err != nil {
		return ""
	}
	return meta.UserID
}

// mergeRow applies a shallow JSON merge of partial onto row, preserving id.
func mergeRow(row, partial json.RawMessage, id string) (json.RawMessage, error) {
	var base map[string]any
	if err := json.Unmarshal(row, &base); err != nil {
		return nil, fmt.Errorf("failed to decode stored row: %w", err)
	}

	var patch map[string]any
	if err := json.Unmarshal(partial, &patch); err != nil {
		return nil, fmt.Errorf("failed to decode partial row: %w", err)
	}

	for k, v := range patch {
		base[k] = v
	}
	base["id"] = id

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged row: %w", err)
	}
	return merged, nil
}
