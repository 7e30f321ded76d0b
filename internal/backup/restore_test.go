package backup

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanos/katanos/internal/auth"
	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/records"
	"github.com/katanos/katanos/internal/storage/memory"
)

func createTestRestore(t *testing.T) (*RestoreEngine, *records.Store, *auth.SessionManager) {
	t.Helper()

	store := createTestRecords(t)
	sessions := auth.NewSessionManager(memory.New(), []byte("test-secret"), slog.Default())
	engine := NewRestoreEngine(store, sessions, slog.Default())
	return engine, store, sessions
}

func rawRow(t *testing.T, fields map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return data
}

func userPayload(t *testing.T, user models.User, data map[string][]json.RawMessage, extras map[string]string) *models.BackupManifest {
	t.Helper()
	return &models.BackupManifest{
		SchemaVersion: models.ManifestSchemaVersion,
		Scope:         models.ScopeUser,
		UserID:        user.ID,
		CurrentUser:   &user,
		Data:          data,
		Extras:        extras,
	}
}

func TestRestoreUserScope(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := createTestRestore(t)

	seedUser(t, store, models.User{ID: "u1", Username: "alice", Theme: "light"})
	seedUser(t, store, models.User{ID: "u2", Username: "bob"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "old", "userId": "u1"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "bobs", "userId": "u2"})

	restored := models.User{ID: "u1", Username: "alice", Theme: "dark"}
	payload := userPayload(t, restored, map[string][]json.RawMessage{
		records.CollectionUsers: {rawRow(t, map[string]any{"id": "u1", "username": "alice", "theme": "dark"})},
		records.CollectionTodos: {
			rawRow(t, map[string]any{"id": "new", "userId": "u1"}),
			// Строка с чужим владельцем отбрасывается, а не вставляется
			rawRow(t, map[string]any{"id": "smuggled", "userId": "u2"}),
		},
	}, nil)

	summary, err := engine.Restore(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeUser, summary.Scope)
	assert.Equal(t, "u1", summary.UserID)
	assert.False(t, summary.VaultReplace)

	mine, err := store.List(ctx, records.CollectionTodos, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	// Данные второго пользователя не изменились
	theirs, err := store.List(ctx, records.CollectionTodos, "u2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	var bobRow map[string]any
	require.NoError(t, json.Unmarshal(theirs[0], &bobRow))
	assert.Equal(t, "bobs", bobRow["id"])

	// Запись целевого пользователя заменена, запись bob осталась
	users, err := store.ReadAll(ctx, records.CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestRestoreUserScopeAbsentCollectionsUntouched(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := createTestRestore(t)

	seedUser(t, store, models.User{ID: "u1", Username: "alice"})
	seedRow(t, store, records.CollectionHabits, map[string]any{"id": "h1", "userId": "u1"})

	payload := userPayload(t, models.User{ID: "u1", Username: "alice"}, map[string][]json.RawMessage{
		records.CollectionTodos: {},
	}, nil)

	_, err := engine.Restore(ctx, payload)
	require.NoError(t, err)

	habits, err := store.ReadAll(ctx, records.CollectionHabits)
	require.NoError(t, err)
	assert.Len(t, habits, 1)
}

func TestRestoreVaultWholesaleReplace(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := createTestRestore(t)

	seedUser(t, store, models.User{ID: "u1", Username: "alice"})
	seedRow(t, store, records.CollectionVault, map[string]any{"id": "mine", "userId": "u1"})
	seedRow(t, store, records.CollectionVault, map[string]any{"id": "bobs", "userId": "u2"})

	payload := userPayload(t, models.User{ID: "u1", Username: "alice"}, map[string][]json.RawMessage{
		records.CollectionVault: {rawRow(t, map[string]any{"id": "restored", "userId": "u1"})},
	}, nil)

	summary, err := engine.Restore(ctx, payload)
	require.NoError(t, err)
	assert.True(t, summary.VaultReplace)

	// Vault заменяется целиком даже при пользовательском scope
	rows, err := store.ReadAll(ctx, records.CollectionVault)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var row map[string]any
	require.NoError(t, json.Unmarshal(rows[0], &row))
	assert.Equal(t, "restored", row["id"])
}

func TestRestoreAllScope(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := createTestRestore(t)

	seedUser(t, store, models.User{ID: "old", Username: "stale"})
	seedRow(t, store, records.CollectionTodos, map[string]any{"id": "stale", "userId": "old"})

	payload := &models.BackupManifest{
		SchemaVersion: models.ManifestSchemaVersion,
		Scope:         models.ScopeAll,
		Data: map[string][]json.RawMessage{
			records.CollectionUsers: {rawRow(t, map[string]any{"id": "u1", "username": "alice"})},
			records.CollectionTodos: {rawRow(t, map[string]any{"id": "t1", "userId": "u1"})},
		},
	}

	summary, err := engine.Restore(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeAll, summary.Scope)

	users, err := store.ReadAll(ctx, records.CollectionUsers)
	require.NoError(t, err)
	require.Len(t, users, 1)

	todos, err := store.ReadAll(ctx, records.CollectionTodos)
	require.NoError(t, err)
	require.Len(t, todos, 1)

	// Отсутствующие в манифесте коллекции не тронуты
	habits, err := store.ReadAll(ctx, records.CollectionHabits)
	require.NoError(t, err)
	assert.Empty(t, habits)
}

func TestRestoreExtras(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := createTestRestore(t)

	payload := userPayload(t, models.User{ID: "u1", Username: "alice"}, nil, map[string]string{
		"dashboardLayout.u1": `{"cols":2}`,
		"exchangeRates":      `{"EUR":0.9}`,
	})

	summary, err := engine.Restore(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ExtrasKeys)

	value, err := store.GetExtra(ctx, "dashboardLayout.u1")
	require.NoError(t, err)
	assert.Equal(t, `{"cols":2}`, value)
}

func TestRestoreActivatesSession(t *testing.T) {
	ctx := context.Background()
	engine, _, sessions := createTestRestore(t)

	payload := userPayload(t, models.User{ID: "u1", Username: "alice"}, map[string][]json.RawMessage{
		records.CollectionUsers: {rawRow(t, map[string]any{"id": "u1", "username": "alice"})},
	}, nil)

	_, err := engine.Restore(ctx, payload)
	require.NoError(t, err)

	// Восстановленный currentUser становится активной сессией
	assert.Equal(t, "u1", sessions.CurrentID())
}

func TestRestoreCurrentUserWithoutUsersCollection(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := createTestRestore(t)

	payload := userPayload(t, models.User{ID: "u1", Username: "alice"}, map[string][]json.RawMessage{
		records.CollectionTodos: {rawRow(t, map[string]any{"id": "t1", "userId": "u1"})},
	}, nil)

	_, err := engine.Restore(ctx, payload)
	require.NoError(t, err)

	users, err := store.ReadAll(ctx, records.CollectionUsers)
	require.NoError(t, err)
	require.Len(t, users, 1)

	var user models.User
	require.NoError(t, json.Unmarshal(users[0], &user))
	assert.Equal(t, "u1", user.ID)
}

func TestRestoreRoundTripWithBuilder(t *testing.T) {
	ctx := context.Background()
	_, store, _ := createTestRestore(t)

	seedUser(t, store, models.User{ID: "u1", Username: "alice"})
	seedRow(t, store, records.CollectionJournal, map[string]any{"id": "j1", "userId": "u1", "text": "запись"})
	require.NoError(t, store.SetExtra(ctx, "journalDrafts.u1", "draft"))

	manifest, err := NewBuilder(store, "1.2.3").BuildForUser(ctx, "u1")
	require.NoError(t, err)

	// Сериализация и обратный импорт не теряют данные
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	var decoded models.BackupManifest
	require.NoError(t, json.Unmarshal(data, &decoded))

	fresh, freshStore, _ := createTestRestore(t)
	_, err = fresh.Restore(ctx, &decoded)
	require.NoError(t, err)

	rows, err := freshStore.List(ctx, records.CollectionJournal, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	value, err := freshStore.GetExtra(ctx, "journalDrafts.u1")
	require.NoError(t, err)
	assert.Equal(t, "draft", value)
}
