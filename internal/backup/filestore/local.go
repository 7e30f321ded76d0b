// Package filestore implements the backup file collaborator against the
// local filesystem.
package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/katanos/katanos/internal/backup"
)

// Local writes backup files to local directories.
type Local struct {
	logger *slog.Logger
}

var _ backup.FileStore = (*Local)(nil)

func NewLocal(logger *slog.Logger) *Local {
	return &Local{logger: logger}
}

// CheckFolderWritable probes path by creating and removing a marker file.
func (l *Local) CheckFolderWritable(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	probe, err := os.CreateTemp(path, ".katanos-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return true
}

// WriteBackupFile writes data to a temp file in the target folder and
// renames it into place, so readers never observe a partial backup.
func (l *Local) WriteBackupFile(ctx context.Context, folderPath, fileName string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(folderPath, fileName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write backup data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	target := filepath.Join(folderPath, fileName)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move backup into place: %w", err)
	}

	return target, nil
}

// ListBackupFiles returns the regular files directly inside folderPath.
func (l *Local) ListBackupFiles(ctx context.Context, folderPath string) ([]backup.FileInfo, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup folder: %w", err)
	}

	files := make([]backup.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, backup.FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(folderPath, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// DeleteBackupFile removes one file, best-effort.
func (l *Local) DeleteBackupFile(ctx context.Context, path string) bool {
	if err := os.Remove(path); err != nil {
		l.logger.WarnContext(ctx, "failed to delete backup file", "path", path, "error", err)
		return false
	}
	return true
}

// SelectBackupFolder has no interactive picker in a headless process; the
// caller supplies folders through settings instead.
func (l *Local) SelectBackupFolder(ctx context.Context) (string, bool, error) {
	return "", true, nil
}
