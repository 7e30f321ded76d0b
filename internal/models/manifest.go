package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ManifestSchemaVersion is the current backup file schema version.
const ManifestSchemaVersion = 2

// Backup scope values.
const (
	ScopeAll  = "all"
	ScopeUser = "user"
)

// BackupManifest is the on-disk backup document. The JSON layout is a wire
// format shared with older exports and must stay bit-compatible: camelCase
// keys, collections as raw row arrays under "data".
type BackupManifest struct {
	SchemaVersion int                          `json:"schemaVersion"`
	AppVersion    string                       `json:"appVersion"`
	Timestamp     string                       `json:"timestamp"`
	BackupID      string                       `json:"backupId"`
	Scope         string                       `json:"scope"`
	UserID        string                       `json:"userId,omitempty"`
	CurrentUser   *User                        `json:"currentUser,omitempty"`
	Data          map[string][]json.RawMessage `json:"data"`
	Extras        map[string]string            `json:"extras,omitempty"`
}

// NewBackupID returns a backup run identifier: a millisecond UTC timestamp
// prefix plus a random uuid suffix. The suffix keeps two runs in the same
// millisecond from colliding.
func NewBackupID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405.000"), suffix)
}
