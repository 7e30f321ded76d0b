package filestore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanos/katanos/internal/backup"
)

func TestCheckFolderWritable(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(slog.Default())

	assert.True(t, local.CheckFolderWritable(ctx, t.TempDir()))
	assert.False(t, local.CheckFolderWritable(ctx, filepath.Join(t.TempDir(), "missing")))

	// Обычный файл не является папкой для бэкапов
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.False(t, local.CheckFolderWritable(ctx, file))
}

func TestWriteBackupFile(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(slog.Default())
	dir := t.TempDir()

	path, err := local.WriteBackupFile(ctx, dir, "katanos-backup-test.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "katanos-backup-test.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	// Временных файлов после записи не остается
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteBackupFileOverwrites(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(slog.Default())
	dir := t.TempDir()

	_, err := local.WriteBackupFile(ctx, dir, "backup.json", []byte("old"))
	require.NoError(t, err)
	path, err := local.WriteBackupFile(ctx, dir, "backup.json", []byte("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestListBackupFiles(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(slog.Default())
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("bb"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.json"), old, old))

	files, err := local.ListBackupFiles(ctx, dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byName := make(map[string]backup.FileInfo, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}
	assert.Equal(t, int64(2), byName["b.json"].Size)
	assert.WithinDuration(t, old, byName["a.json"].ModTime, time.Minute)
}

func TestDeleteBackupFile(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(slog.Default())
	dir := t.TempDir()

	path := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	assert.True(t, local.DeleteBackupFile(ctx, path))
	assert.NoFileExists(t, path)

	// Повторное удаление лишь возвращает false
	assert.False(t, local.DeleteBackupFile(ctx, path))
}

func TestSelectBackupFolder(t *testing.T) {
	local := NewLocal(slog.Default())

	path, canceled, err := local.SelectBackupFolder(context.Background())
	require.NoError(t, err)
	assert.True(t, canceled)
	assert.Empty(t, path)
}
