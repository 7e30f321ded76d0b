package backup

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/katanos/katanos/internal/diag"
	"github.com/katanos/katanos/internal/models"
)

// FilePrefix and FileSuffix bound the names retention considers; anything
// else in the folder is left alone.
const (
	FilePrefix = "katanos-backup-"
	FileSuffix = ".json"
)

// RetentionPolicy prunes old backup files after a successful run.
type RetentionPolicy struct {
	files  FileStore
	logger *slog.Logger
	diag   diag.Reporter
	now    func() time.Time
}

func NewRetentionPolicy(files FileStore, logger *slog.Logger, reporter diag.Reporter) *RetentionPolicy {
	return &RetentionPolicy{
		files:  files,
		logger: logger,
		diag:   reporter,
		now:    time.Now,
	}
}

// Apply prunes backup files in the settings folder according to the
// retention rule and returns the paths actually deleted. Individual delete
// failures are best-effort: logged, reported, and skipped.
func (p *RetentionPolicy) Apply(ctx context.Context, settings models.BackupSettings) []string {
	if p.files == nil || settings.FolderPath == "" {
		return nil
	}

	all, err := p.files.ListBackupFiles(ctx, settings.FolderPath)
	if err != nil {
		p.logger.WarnContext(ctx, "retention skipped, folder unreadable",
			"folder", settings.FolderPath, "error", err)
		return nil
	}

	backups := make([]FileInfo, 0, len(all))
	for _, f := range all {
		if strings.HasPrefix(f.Name, FilePrefix) && strings.HasSuffix(f.Name, FileSuffix) {
			backups = append(backups, f)
		}
	}

	// Новые файлы в начале списка
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})

	value := normalizeRetentionValue(settings.RetentionValue)

	var victims []FileInfo
	switch settings.RetentionMode {
	case models.RetentionModeAge:
		cutoff := p.now().Add(-time.Duration(value * 24 * float64(time.Hour)))
		for _, f := range backups {
			if f.ModTime.Before(cutoff) {
				victims = append(victims, f)
			}
		}
	default:
		// count mode: keep ranks 1..value, delete the rest
		keep := int(value)
		if len(backups) > keep {
			victims = backups[keep:]
		}
	}

	var deleted []string
	for _, f := range victims {
		if p.files.DeleteBackupFile(ctx, f.Path) {
			deleted = append(deleted, f.Path)
			continue
		}
		p.diag.Report(ctx, diag.Event{
			Component: "backup",
			Kind:      diag.KindDeleteFailed,
			Detail:    f.Path,
		})
	}

	return deleted
}

// normalizeRetentionValue guards against non-finite or unset values.
func normalizeRetentionValue(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return models.DefaultRetentionValue
	}
	return value
}
