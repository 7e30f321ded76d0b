// Package backup implements versioned backup manifests, the backup trigger,
// retention pruning, the backup scheduler and scoped restore.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/records"
	"github.com/katanos/katanos/internal/storage"
)

// Builder assembles backup manifests from store contents.
type Builder struct {
	store      *records.Store
	appVersion string
	now        func() time.Time
}

// NewBuilder creates a manifest builder. appVersion is stamped into every
// manifest.
func NewBuilder(store *records.Store, appVersion string) *Builder {
	return &Builder{
		store:      store,
		appVersion: appVersion,
		now:        time.Now,
	}
}

// BuildGlobal snapshots every collection in full, plus every extras blob
// derivable from the registry.
func (b *Builder) BuildGlobal(ctx context.Context) (*models.BackupManifest, error) {
	manifest := b.newManifest(models.ScopeAll, "")

	for _, collection := range records.Collections {
		rows, err := b.store.ReadAll(ctx, collection)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []json.RawMessage{}
		}
		manifest.Data[collection] = rows
	}

	userIDs, err := b.userIDs(ctx)
	if err != nil {
		return nil, err
	}

	keys := records.GlobalExtraKeys()
	for _, id := range userIDs {
		keys = append(keys, records.UserExtraKeys(id)...)
	}
	if err := b.collectExtras(ctx, manifest, keys); err != nil {
		return nil, err
	}

	return manifest, nil
}

// BuildForUser snapshots every collection filtered to rows owned by userID
// (the users collection reduced to that one record, which also becomes
// currentUser), with extras limited to the user's keys plus the global
// allowlist.
func (b *Builder) BuildForUser(ctx context.Context, userID string) (*models.BackupManifest, error) {
	manifest := b.newManifest(models.ScopeUser, userID)

	for _, collection := range records.Collections {
		if collection == records.CollectionUsers {
			continue
		}
		rows, err := b.store.List(ctx, collection, userID)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []json.RawMessage{}
		}
		manifest.Data[collection] = rows
	}

	// Users are owned by their own id, not a userId foreign key: the user
	// scope reduces the collection to exactly the target record.
	userRows, err := b.store.ReadAll(ctx, records.CollectionUsers)
	if err != nil {
		return nil, err
	}
	manifest.Data[records.CollectionUsers] = []json.RawMessage{}
	for _, row := range userRows {
		var user models.User
		if err := json.Unmarshal(row, &user); err != nil {
			return nil, fmt.Errorf("failed to decode user row: %w", err)
		}
		if user.ID == userID {
			manifest.Data[records.CollectionUsers] = []json.RawMessage{row}
			manifest.CurrentUser = &user
			break
		}
	}

	keys := append(records.UserExtraKeys(userID), records.GlobalExtraKeys()...)
	if err := b.collectExtras(ctx, manifest, keys); err != nil {
		return nil, err
	}

	return manifest, nil
}

func (b *Builder) newManifest(scope, userID string) *models.BackupManifest {
	now := b.now().UTC()
	return &models.BackupManifest{
		SchemaVersion: models.ManifestSchemaVersion,
		AppVersion:    b.appVersion,
		Timestamp:     now.Format(time.RFC3339),
		BackupID:      models.NewBackupID(now),
		Scope:         scope,
		UserID:        userID,
		Data:          make(map[string][]json.RawMessage, len(records.Collections)),
	}
}

// collectExtras copies the named extras blobs into the manifest. Absent keys
// are skipped.
func (b *Builder) collectExtras(ctx context.Context, manifest *models.BackupManifest, keys []string) error {
	for _, key := range keys {
		value, err := b.store.GetExtra(ctx, key)
		if errors.Is(err, storage.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read extras %s: %w", key, err)
		}
		if manifest.Extras == nil {
			manifest.Extras = make(map[string]string)
		}
		manifest.Extras[key] = value
	}
	return nil
}

// userIDs returns the ids of every stored user, in users-collection order.
func (b *Builder) userIDs(ctx context.Context) ([]string, error) {
	rows, err := b.store.ReadAll(ctx, records.CollectionUsers)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		var user models.User
		if err := json.Unmarshal(row, &user); err != nil {
			return nil, fmt.Errorf("failed to decode user row: %w", err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}
