package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/notify"
)

// Result is the structured outcome of one backup run. Nothing in a backup
// run is fatal; failures come back here, not as panics.
type Result struct {
	Success   bool
	Path      string
	Err       error
	SizeBytes int64

	// FileName and Data are set on the download fallback path, when no file
	// collaborator is configured and the caller must save the bytes itself.
	FileName string
	Data     []byte
}

// SettingsWriter persists backup settings changes (last run status/time).
type SettingsWriter interface {
	UpdateBackupSettings(ctx context.Context, userID string, settings models.BackupSettings) error
}

// Runner executes backup runs: build the user manifest, write the file,
// prune old backups, record the run status.
type Runner struct {
	builder   *Builder
	files     FileStore // nil enables the download fallback
	retention *RetentionPolicy
	settings  SettingsWriter
	notifier  notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewRunner(
	builder *Builder,
	files FileStore,
	retention *RetentionPolicy,
	settings SettingsWriter,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		builder:   builder,
		files:     files,
		retention: retention,
		settings:  settings,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// TriggerBackupNow runs one user-scoped backup.
func (r *Runner) TriggerBackupNow(ctx context.Context, userID string, settings models.BackupSettings) Result {
	if settings.FolderPath == "" {
		return Result{Err: ErrNoFolder}
	}

	if r.files != nil && !r.files.CheckFolderWritable(ctx, settings.FolderPath) {
		r.recordStatus(ctx, userID, settings, models.BackupStatusFailed)
		r.notifyFailure(ctx, "Backup folder is not writable")
		return Result{Err: ErrFolderNotWritable}
	}

	manifest, err := r.builder.BuildForUser(ctx, userID)
	if err != nil {
		r.recordStatus(ctx, userID, settings, models.BackupStatusFailed)
		r.notifyFailure(ctx, "Could not assemble backup data")
		return Result{Err: fmt.Errorf("failed to build manifest: %w", err)}
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		r.recordStatus(ctx, userID, settings, models.BackupStatusFailed)
		return Result{Err: fmt.Errorf("failed to encode manifest: %w", err)}
	}

	fileName := BackupFileName(r.now(), userID)

	if r.files == nil {
		// Download fallback: no native file collaborator, hand the bytes
		// back to the caller and still count the run as a success.
		r.recordStatus(ctx, userID, settings, models.BackupStatusSuccess)
		r.notifySuccess(ctx, fileName)
		return Result{
			Success:   true,
			SizeBytes: int64(len(data)),
			FileName:  fileName,
			Data:      data,
		}
	}

	path, err := r.files.WriteBackupFile(ctx, settings.FolderPath, fileName, data)
	if err != nil {
		r.recordStatus(ctx, userID, settings, models.BackupStatusFailed)
		r.notifyFailure(ctx, err.Error())
		return Result{Err: fmt.Errorf("%w: %s", ErrWriteFailed, err)}
	}

	r.retention.Apply(ctx, settings)
	r.recordStatus(ctx, userID, settings, models.BackupStatusSuccess)
	r.notifySuccess(ctx, path)

	return Result{
		Success:   true,
		Path:      path,
		SizeBytes: int64(len(data)),
	}
}

// BackupFileName derives the backup file name for a run:
// katanos-backup-<YYYY-MM-DD_HH-mm-ss>_<first 6 hex of userId>.json.
func BackupFileName(now time.Time, userID string) string {
	return fmt.Sprintf("%s%s_%s%s",
		FilePrefix,
		now.Format("2006-01-02_15-04-05"),
		shortUserID(userID),
		FileSuffix,
	)
}

// shortUserID keeps the first six hex characters of a uuid-style id.
func shortUserID(userID string) string {
	hex := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
			return r
		case r >= 'A' && r <= 'F':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, userID)

	if len(hex) > 6 {
		hex = hex[:6]
	}
	if hex == "" {
		hex = "000000"
	}
	return hex
}

// recordStatus persists the run outcome into the user's backup settings.
// Failures here are logged only: the run result stands on its own.
func (r *Runner) recordStatus(ctx context.Context, userID string, settings models.BackupSettings, status string) {
	settings.LastBackupStatus = status
	if status == models.BackupStatusSuccess {
		settings.LastBackupAt = r.now().UTC().Format(time.RFC3339)
	}

	if err := r.settings.UpdateBackupSettings(ctx, userID, settings); err != nil {
		r.logger.WarnContext(ctx, "failed to persist backup status",
			"user_id", userID, "status", status, "error", err)
	}
}

func (r *Runner) notifySuccess(ctx context.Context, where string) {
	r.notifier.Notify(ctx, notify.Notification{
		Title:   "Backup complete",
		Message: "Backup saved to " + where,
		Type:    notify.TypeSuccess,
		Silent:  true,
	})
}

func (r *Runner) notifyFailure(ctx context.Context, reason string) {
	r.notifier.Notify(ctx, notify.Notification{
		Title:   "Backup failed",
		Message: reason,
		Type:    notify.TypeError,
	})
}
