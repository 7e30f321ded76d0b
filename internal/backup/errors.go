package backup

import "errors"

// Backup run errors surfaced in Result.Err.
var (
	// ErrNoFolder indicates that no backup folder is configured
	ErrNoFolder = errors.New("no backup folder configured")

	// ErrFolderNotWritable indicates that the backup folder rejected the probe
	ErrFolderNotWritable = errors.New("backup folder is not writable")

	// ErrWriteFailed indicates that the file collaborator failed to write
	ErrWriteFailed = errors.New("backup write failed")

	// ErrUnbound indicates a scheduler tick with no bound user
	ErrUnbound = errors.New("no user bound to the scheduler")
)
