package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/records"
)

func TestBuildForUser(t *testing.T) {
	ctx := context.Background()
	store := createTestRecords(t)

	seedUser(t, store, models.User{ID: "u1", Username: "alice"})
	seedUser(t, store, models.User{ID: "u2", Username: "bob"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "t1", "userId": "u1"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "t2", "userId": "u2"})
	seedRow(t, store, records.CollectionVault, map[string]any{"id": "v1", "userId": "u1"})
	require.NoError(t, store.SetExtra(ctx, "dashboardLayout.u1", `{"cols":2}`))
	require.NoError(t, store.SetExtra(ctx, "dashboardLayout.u2", `{"cols":4}`))
	require.NoError(t, store.SetExtra(ctx, "exchangeRates", `{"EUR":0.9}`))

	builder := NewBuilder(store, "1.2.3")
	manifest, err := builder.BuildForUser(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, models.ManifestSchemaVersion, manifest.SchemaVersion)
	assert.Equal(t, "1.2.3", manifest.AppVersion)
	assert.Equal(t, models.ScopeUser, manifest.Scope)
	assert.Equal(t, "u1", manifest.UserID)
	assert.NotEmpty(t, manifest.BackupID)

	// Каждая коллекция присутствует, чужие строки отфильтрованы
	assert.Len(t, manifest.Data, len(records.Collections))
	assert.Len(t, manifest.Data[records.CollectionTodos], 1)
	assert.Len(t, manifest.Data[records.CollectionVault], 1)
	assert.Empty(t, manifest.Data[records.CollectionEvents])

	// Коллекция users сведена к целевой записи
	require.Len(t, manifest.Data[records.CollectionUsers], 1)
	require.NotNil(t, manifest.CurrentUser)
	assert.Equal(t, "u1", manifest.CurrentUser.ID)

	// Extras второго пользователя не попадают, глобальные попадают
	assert.Contains(t, manifest.Extras, "dashboardLayout.u1")
	assert.Contains(t, manifest.Extras, "exchangeRates")
	assert.NotContains(t, manifest.Extras, "dashboardLayout.u2")
}

func TestBuildGlobal(t *testing.T) {
	ctx := context.Background()
	store := createTestRecords(t)

	seedUser(t, store, models.User{ID: "u1", Username: "alice"})
	seedUser(t, store, models.User{ID: "u2", Username: "bob"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "t1", "userId": "u1"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "t2", "userId": "u2"})
	require.NoError(t, store.SetExtra(ctx, "dashboardLayout.u2", `{"cols":4}`))

	builder := NewBuilder(store, "1.2.3")
	manifest, err := builder.BuildGlobal(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.ScopeAll, manifest.Scope)
	assert.Empty(t, manifest.UserID)
	assert.Nil(t, manifest.CurrentUser)
	assert.Len(t, manifest.Data[records.CollectionUsers], 2)
	assert.Len(t, manifest.Data[records.CollectionTodos], 2)
	assert.Contains(t, manifest.Extras, "dashboardLayout.u2")
}

func TestBuildForUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := createTestRecords(t)

	builder := NewBuilder(store, "1.2.3")
	manifest, err := builder.BuildForUser(ctx, "missing")
	require.NoError(t, err)

	assert.Nil(t, manifest.CurrentUser)
	assert.Empty(t, manifest.Data[records.CollectionUsers])
}

func TestBackupIDUnique(t *testing.T) {
	now := time.Now().UTC()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := models.NewBackupID(now)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
