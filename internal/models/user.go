package models

import "time"

// Backup interval identifiers stored in user settings.
// Legacy aliases ("daily", "hourly") are still accepted by ParseBackupInterval.
const (
	Interval30m     = "30m"
	Interval1h      = "1h"
	Interval6h      = "6h"
	Interval12h     = "12h"
	Interval24h     = "24h"
	IntervalWeekly  = "weekly"
	IntervalMonthly = "monthly"
)

// Backup run status values persisted in BackupSettings.LastBackupStatus.
const (
	BackupStatusSuccess = "success"
	BackupStatusFailed  = "failed"
)

// Retention modes for pruning old backup files.
const (
	RetentionModeCount = "count"
	RetentionModeAge   = "age"
)

// DefaultRetentionValue is used when retentionValue is absent or not a
// finite positive number.
const DefaultRetentionValue = 10

// User is the owning record for everything else in the store.
// JSON tags are camelCase: the backup file format is fixed and the primary
// store reuses the same encoding.
//
// Password, SecurityAnswer and LockPin hold either a pbkdf2-encoded hash or a
// legacy plaintext value; APIKey is either plaintext or carries the vault
// encryption marker. Callers must not assume which form they see.
type User struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	Password           string         `json:"password,omitempty"`
	SecurityQuestionID string         `json:"securityQuestionId,omitempty"`
	SecurityAnswer     string         `json:"securityAnswer,omitempty"`
	APIKey             string         `json:"apiKey,omitempty"`
	Currency           string         `json:"currency,omitempty"`
	Language           string         `json:"language,omitempty"`
	Theme              string         `json:"theme,omitempty"`
	LockPin            string         `json:"lockPin,omitempty"`
	LockTimeoutMinutes int            `json:"lockTimeoutMinutes,omitempty"`
	Backup             BackupSettings `json:"backup"`
	CreatedAt          time.Time      `json:"createdAt,omitempty"`
}

// BackupSettings controls the per-user scheduled backup behavior.
type BackupSettings struct {
	Enabled          bool    `json:"enabled"`
	FolderPath       string  `json:"folderPath,omitempty"`
	Interval         string  `json:"interval,omitempty"`
	RetentionMode    string  `json:"retentionMode,omitempty"`
	RetentionValue   float64 `json:"retentionValue,omitempty"`
	RunOnStartup     bool    `json:"runOnStartup,omitempty"`
	LastBackupAt     string  `json:"lastBackupAt,omitempty"`
	LastBackupStatus string  `json:"lastBackupStatus,omitempty"`
}

// ParseBackupInterval maps an interval identifier to a duration.
// Unknown or empty values fall back to 24h; the legacy aliases "daily" and
// "hourly" map to 24h and 1h respectively so old settings keep working.
func ParseBackupInterval(interval string) time.Duration {
	switch interval {
	case Interval30m:
		return 30 * time.Minute
	case Interval1h, "hourly":
		return time.Hour
	case Interval6h:
		return 6 * time.Hour
	case Interval12h:
		return 12 * time.Hour
	case Interval24h, "daily":
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	case IntervalMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
