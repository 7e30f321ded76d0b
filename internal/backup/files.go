package backup

import (
	"context"
	"time"
)

// FileInfo describes one backup file in the backup folder.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// FileStore is the external file collaborator. A nil FileStore is a
// supported configuration: the runner falls back to returning the serialized
// manifest for the caller to save (the client-download path).
type FileStore interface {
	// CheckFolderWritable probes whether path accepts writes.
	CheckFolderWritable(ctx context.Context, path string) bool

	// WriteBackupFile atomically writes data as fileName inside folderPath
	// and returns the full path.
	WriteBackupFile(ctx context.Context, folderPath, fileName string, data []byte) (string, error)

	// ListBackupFiles returns the files directly inside folderPath.
	ListBackupFiles(ctx context.Context, folderPath string) ([]FileInfo, error)

	// DeleteBackupFile removes one file. Reports whether the delete succeeded.
	DeleteBackupFile(ctx context.Context, path string) bool

	// SelectBackupFolder asks the user to pick a folder. canceled is true
	// when no folder was chosen.
	SelectBackupFolder(ctx context.Context) (path string, canceled bool, err error)
}
