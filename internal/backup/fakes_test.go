package backup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katanos/katanos/internal/diag"
	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/notify"
	"github.com/katanos/katanos/internal/records"
	"github.com/katanos/katanos/internal/storage/memory"
)

// createTestRecords создает record store поверх in-memory хранилища
func createTestRecords(t *testing.T) *records.Store {
	t.Helper()

	store := records.NewStore(memory.New(), nil, notify.Nop{}, slog.Default(), diag.Nop{})
	t.Cleanup(store.Close)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func seedUser(t *testing.T, store *records.Store, user models.User) {
	t.Helper()

	row, err := json.Marshal(user)
	require.NoError(t, err)

	ctx := context.Background()
	existing, err := store.ReadAll(ctx, records.CollectionUsers)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, records.CollectionUsers, append(existing, row)))
}

func seedRow(t *testing.T, store *records.Store, collection string, fields map[string]any) {
	t.Helper()

	row, err := json.Marshal(fields)
	require.NoError(t, err)

	ctx := context.Background()
	existing, err := store.ReadAll(ctx, collection)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, collection, append(existing, row)))
}

// fakeFileStore реализует FileStore в памяти
type fakeFileStore struct {
	mu         sync.Mutex
	writable   bool
	writeErr   error
	files      []FileInfo
	written    map[string][]byte
	deleted    []string
	failDelete map[string]bool
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{writable: true, written: make(map[string][]byte)}
}

func (f *fakeFileStore) CheckFolderWritable(ctx context.Context, path string) bool {
	return f.writable
}

func (f *fakeFileStore) WriteBackupFile(ctx context.Context, folderPath, fileName string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return "", f.writeErr
	}

	path := filepath.Join(folderPath, fileName)
	f.written[path] = data
	f.files = append(f.files, FileInfo{
		Name:    fileName,
		Path:    path,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	})
	return path, nil
}

func (f *fakeFileStore) ListBackupFiles(ctx context.Context, folderPath string) ([]FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FileInfo(nil), f.files...), nil
}

func (f *fakeFileStore) DeleteBackupFile(ctx context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDelete[path] {
		return false
	}

	f.deleted = append(f.deleted, path)
	kept := f.files[:0]
	for _, file := range f.files {
		if file.Path != path {
			kept = append(kept, file)
		}
	}
	f.files = kept
	delete(f.written, path)
	return true
}

func (f *fakeFileStore) SelectBackupFolder(ctx context.Context) (string, bool, error) {
	return "", true, nil
}

var _ FileStore = (*fakeFileStore)(nil)

// fakeSettingsWriter запоминает последний записанный статус
type fakeSettingsWriter struct {
	mu       sync.Mutex
	userID   string
	settings models.BackupSettings
	calls    int
	err      error
}

func (w *fakeSettingsWriter) UpdateBackupSettings(ctx context.Context, userID string, settings models.BackupSettings) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.userID = userID
	w.settings = settings
	w.calls++
	return w.err
}

func (w *fakeSettingsWriter) last() models.BackupSettings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

// fakeTrigger считает запуски
type fakeTrigger struct {
	mu     sync.Mutex
	calls  []string
	result Result
}

func (f *fakeTrigger) TriggerBackupNow(ctx context.Context, userID string, settings models.BackupSettings) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return f.result
}

func (f *fakeTrigger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errDiskFull = errors.New("disk full")
