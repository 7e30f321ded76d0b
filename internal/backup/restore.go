package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/katanos/katanos/internal/auth"
	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/records"
)

// RestoreSummary reports what a restore touched.
type RestoreSummary struct {
	Scope        string
	UserID       string
	Collections  []string
	ExtrasKeys   int
	VaultReplace bool
}

// RestoreEngine ingests a backup manifest and merges or replaces store
// state, scoped by user or global.
//
// Vault rule: the vault collection holds opaque encrypted blobs and is never
// merged at the item level. When a payload carries a vault collection it
// fully replaces the store's vault exactly once, regardless of scope.
type RestoreEngine struct {
	store    *records.Store
	sessions *auth.SessionManager
	logger   *slog.Logger
}

func NewRestoreEngine(store *records.Store, sessions *auth.SessionManager, logger *slog.Logger) *RestoreEngine {
	return &RestoreEngine{store: store, sessions: sessions, logger: logger}
}

// Restore applies the payload. With scope "user" and a resolvable target id
// it replaces only that user's rows per collection present in the payload;
// otherwise every collection present fully replaces its store counterpart.
// Collections absent from the payload are left untouched in both modes.
// Extras are restored key-by-key unconditionally. A durable snapshot is
// scheduled at the end regardless of partial failure.
func (e *RestoreEngine) Restore(ctx context.Context, payload *models.BackupManifest) (*RestoreSummary, error) {
	defer e.store.ScheduleSnapshot()

	targetID := payload.UserID
	if targetID == "" && payload.CurrentUser != nil {
		targetID = payload.CurrentUser.ID
	}

	var summary *RestoreSummary
	var err error
	if payload.Scope == models.ScopeUser && targetID != "" {
		summary, err = e.restoreUser(ctx, payload, targetID)
	} else {
		summary, err = e.restoreAll(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	if extrasErr := e.restoreExtras(ctx, payload, summary); extrasErr != nil {
		return nil, extrasErr
	}

	if payload.CurrentUser != nil {
		if sessErr := e.sessions.Set(ctx, payload.CurrentUser); sessErr != nil {
			e.logger.WarnContext(ctx, "failed to activate restored session", "error", sessErr)
		}
	}

	return summary, nil
}

// restoreUser replaces the target user's rows in every payload collection.
// Rows owned by other users never change; incoming rows claiming a foreign
// owner are dropped rather than inserted.
func (e *RestoreEngine) restoreUser(ctx context.Context, payload *models.BackupManifest, targetID string) (*RestoreSummary, error) {
	summary := &RestoreSummary{Scope: models.ScopeUser, UserID: targetID}

	for _, collection := range records.Collections {
		rows, present := payload.Data[collection]
		if !present {
			continue
		}

		switch collection {
		case records.CollectionUsers:
			if err := e.restoreUserRecord(ctx, rows, payload.CurrentUser, targetID); err != nil {
				return nil, err
			}
		case records.CollectionVault:
			// Единое правило: vault заменяется целиком, один раз
			if err := e.store.ReplaceAll(ctx, collection, rows); err != nil {
				return nil, err
			}
			summary.VaultReplace = true
		default:
			owned := make([]json.RawMessage, 0, len(rows))
			for _, row := range rows {
				if rowOwner(row) == targetID {
					owned = append(owned, row)
				}
			}
			if err := e.store.ReplaceOwned(ctx, collection, targetID, owned); err != nil {
				return nil, err
			}
		}

		summary.Collections = append(summary.Collections, collection)
	}

	// currentUser без users-коллекции тоже восстанавливает запись пользователя
	if _, present := payload.Data[records.CollectionUsers]; !present && payload.CurrentUser != nil {
		if err := e.restoreUserRecord(ctx, nil, payload.CurrentUser, targetID); err != nil {
			return nil, err
		}
		summary.Collections = append(summary.Collections, records.CollectionUsers)
	}

	return summary, nil
}

// restoreUserRecord replaces exactly the matching user record, inserting it
// when absent. Other user records are untouched.
func (e *RestoreEngine) restoreUserRecord(ctx context.Context, incoming []json.RawMessage, currentUser *models.User, targetID string) error {
	var replacement json.RawMessage
	for _, row := range incoming {
		if rowID(row) == targetID {
			replacement = row
			break
		}
	}
	if replacement == nil && currentUser != nil && currentUser.ID == targetID {
		row, err := json.Marshal(currentUser)
		if err != nil {
			return fmt.Errorf("failed to encode restored user: %w", err)
		}
		replacement = row
	}
	if replacement == nil {
		return nil
	}

	existing, err := e.store.ReadAll(ctx, records.CollectionUsers)
	if err != nil {
		return err
	}

	replaced := false
	out := make([]json.RawMessage, 0, len(existing)+1)
	for _, row := range existing {
		if rowID(row) == targetID {
			out = append(out, replacement)
			replaced = true
			continue
		}
		out = append(out, row)
	}
	if !replaced {
		out = append(out, replacement)
	}

	return e.store.ReplaceAll(ctx, records.CollectionUsers, out)
}

// restoreAll wholesale-replaces every collection present in the payload.
func (e *RestoreEngine) restoreAll(ctx context.Context, payload *models.BackupManifest) (*RestoreSummary, error) {
	summary := &RestoreSummary{Scope: models.ScopeAll}

	for _, collection := range records.Collections {
		rows, present := payload.Data[collection]
		if !present {
			continue
		}
		if err := e.store.ReplaceAll(ctx, collection, rows); err != nil {
			return nil, err
		}
		if collection == records.CollectionVault {
			summary.VaultReplace = true
		}
		summary.Collections = append(summary.Collections, collection)
	}

	return summary, nil
}

func (e *RestoreEngine) restoreExtras(ctx context.Context, payload *models.BackupManifest, summary *RestoreSummary) error {
	for key, value := range payload.Extras {
		if err := e.store.SetExtra(ctx, key, value); err != nil {
			return fmt.Errorf("failed to restore extras %s: %w", key, err)
		}
		summary.ExtrasKeys++
	}
	return nil
}

func rowID(row json.RawMessage) string {
	var meta struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(row, &meta); err != nil {
		return ""
	}
	return meta.ID
}

func rowOwner(row json.RawMessage) string {
	var meta struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(row, &meta); err != nil {
		return ""
	}
	return meta.UserID
}
