// Package auth implements the credential store: registration, login,
// password reset, settings updates, lock PIN verification and the cascade
// delete of a user's data. It builds on the record store for persistence and
// the vault for secret field encryption.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/katanos/katanos/internal/diag"
	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/records"
	"github.com/katanos/katanos/internal/validation"
	"github.com/katanos/katanos/internal/vault"
)

// Settings defaults and bounds backfilled on older records.
const (
	DefaultCurrency           = "USD"
	DefaultLanguage           = "en"
	DefaultTheme              = "system"
	DefaultLockTimeoutMinutes = 5
	MinLockTimeoutMinutes     = 1
	MaxLockTimeoutMinutes     = 720
)

// Service is the credential store.
type Service struct {
	store    *records.Store
	vault    *vault.Vault
	hasher   Hasher // nil means hashing is unavailable and secrets degrade to plaintext
	sessions *SessionManager
	logger   *slog.Logger
	diag     diag.Reporter
}

// NewService creates the credential store. hasher may be nil.
func NewService(
	store *records.Store,
	v *vault.Vault,
	hasher Hasher,
	sessions *SessionManager,
	logger *slog.Logger,
	reporter diag.Reporter,
) *Service {
	return &Service{
		store:    store,
		vault:    v,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
		diag:     reporter,
	}
}

// Sessions returns the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// RegisterParams are the inputs to Register. Password, question and answer
// are optional: accounts without a password are allowed.
type RegisterParams struct {
	Username           string
	Password           string
	Language           string
	SecurityQuestionID string
	SecurityAnswer     string
}

// Register creates a new user. The username must be unique ignoring case.
// Password and security answer are hashed; when hashing is unavailable they
// are stored plaintext with a warning (login upgrades them later).
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	if err := validation.ValidateUsername(params.Username); err != nil {
		return nil, err
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if strings.EqualFold(u.Username, params.Username) {
			return nil, ErrAlreadyExists
		}
	}

	language := params.Language
	if language == "" {
		language = DefaultLanguage
	}

	user := models.User{
		ID:                 uuid.NewString(),
		Username:           params.Username,
		Language:           language,
		Currency:           DefaultCurrency,
		Theme:              DefaultTheme,
		LockTimeoutMinutes: DefaultLockTimeoutMinutes,
		CreatedAt:          time.Now().UTC(),
		Backup: models.BackupSettings{
			Interval:       models.Interval24h,
			RetentionMode:  models.RetentionModeCount,
			RetentionValue: models.DefaultRetentionValue,
		},
	}

	if params.Password != "" {
		user.Password = s.hashOrPlain(ctx, params.Password)
	}
	if params.SecurityQuestionID != "" && params.SecurityAnswer != "" {
		user.SecurityQuestionID = params.SecurityQuestionID
		user.SecurityAnswer = s.hashOrPlain(ctx, NormalizeAnswer(params.SecurityAnswer))
	}

	users = append(users, user)
	if err := s.saveUsers(ctx, users); err != nil {
		return nil, err
	}

	return &user, nil
}

// Login verifies the password and makes the user the active session. On
// success it transparently upgrades legacy state: plaintext passwords are
// rehashed, plaintext API keys are vault-encrypted and missing settings
// fields get their defaults.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexByUsername(users, username)
	if idx < 0 {
		return nil, ErrNotFound
	}
	user := &users[idx]

	if !s.passwordMatches(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	changed := false

	// Ленивый апгрейд: plaintext пароль перехешируется при первом входе
	if user.Password != "" && !s.isHashed(user.Password) && s.hasher != nil {
		hashed, err := s.hasher.Hash(password)
		if err == nil {
			user.Password = hashed
			changed = true
		}
	}

	if user.APIKey != "" && !vault.IsEncrypted(user.APIKey) {
		encrypted := s.vault.Encrypt(ctx, user.APIKey)
		if encrypted != user.APIKey {
			user.APIKey = encrypted
			changed = true
		}
	}

	if s.backfillDefaults(user) {
		changed = true
	}

	if changed {
		if err := s.saveUsers(ctx, users); err != nil {
			return nil, err
		}
	}

	result := *user
	if err := s.sessions.Set(ctx, &result); err != nil {
		s.logger.WarnContext(ctx, "failed to persist session", "error", err)
	}

	return &result, nil
}

// GetSecurityQuestion returns the user's security question id.
func (s *Service) GetSecurityQuestion(ctx context.Context, username string) (string, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return "", err
	}

	idx := indexByUsername(users, username)
	if idx < 0 {
		return "", ErrNotFound
	}

	user := users[idx]
	if user.SecurityQuestionID == "" || user.SecurityAnswer == "" {
		return "", ErrMissingSecurityQuestion
	}

	return user.SecurityQuestionID, nil
}

// ResetPassword verifies the security answer and replaces the password. A
// legacy plaintext answer is rehashed on the way through.
func (s *Service) ResetPassword(ctx context.Context, username, answer, newPassword string) error {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}

	idx := indexByUsername(users, username)
	if idx < 0 {
		return ErrNotFound
	}
	user := &users[idx]

	if user.SecurityQuestionID == "" || user.SecurityAnswer == "" {
		return ErrMissingSecurityQuestion
	}

	normalized := NormalizeAnswer(answer)
	if !s.answerMatches(user.SecurityAnswer, normalized) {
		return ErrInvalidAnswer
	}

	user.Password = s.hashOrPlain(ctx, newPassword)

	if !s.isHashed(user.SecurityAnswer) {
		user.SecurityAnswer = s.hashOrPlain(ctx, normalized)
	}

	return s.saveUsers(ctx, users)
}

// SettingsUpdate carries a partial settings change. Nil fields are left
// untouched; empty-string secrets clear the stored value.
type SettingsUpdate struct {
	Password           *string
	SecurityQuestionID *string
	SecurityAnswer     *string
	APIKey             *string
	LockPin            *string
	LockTimeoutMinutes *int
	Currency           *string
	Language           *string
	Theme              *string
	Backup             *models.BackupSettings
}

// UpdateSettings applies a partial update to the user. Incoming plaintext
// secrets are hashed or vault-encrypted; values already in encoded form pass
// through unchanged, so replaying the stored value is idempotent.
func (s *Service) UpdateSettings(ctx context.Context, userID string, update SettingsUpdate) (*models.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexByID(users, userID)
	if idx < 0 {
		return nil, ErrNotFound
	}
	user := &users[idx]

	if update.Password != nil {
		user.Password = s.encodeSecret(ctx, *update.Password)
	}
	if update.SecurityQuestionID != nil {
		user.SecurityQuestionID = *update.SecurityQuestionID
	}
	if update.SecurityAnswer != nil {
		answer := *update.SecurityAnswer
		if answer == "" || s.isHashed(answer) {
			user.SecurityAnswer = answer
		} else {
			user.SecurityAnswer = s.hashOrPlain(ctx, NormalizeAnswer(answer))
		}
	}
	if update.APIKey != nil {
		key := strings.TrimSpace(*update.APIKey)
		if key == "" {
			user.APIKey = ""
		} else {
			user.APIKey = s.vault.Encrypt(ctx, key)
		}
	}
	if update.LockPin != nil {
		user.LockPin = s.encodeSecret(ctx, NormalizePin(*update.LockPin))
	}
	if update.LockTimeoutMinutes != nil {
		user.LockTimeoutMinutes = clampLockTimeout(*update.LockTimeoutMinutes)
	}
	if update.Currency != nil {
		user.Currency = *update.Currency
	}
	if update.Language != nil {
		user.Language = *update.Language
	}
	if update.Theme != nil {
		user.Theme = *update.Theme
	}
	if update.Backup != nil {
		user.Backup = *update.Backup
	}

	if err := s.saveUsers(ctx, users); err != nil {
		return nil, err
	}

	result := users[idx]
	if s.sessions.CurrentID() == userID {
		if err := s.sessions.Set(ctx, &result); err != nil {
			s.logger.WarnContext(ctx, "failed to refresh session", "error", err)
		}
	}

	return &result, nil
}

// UpdateBackupSettings replaces the user's backup settings. Convenience for
// the backup runner, which records run status after every attempt.
func (s *Service) UpdateBackupSettings(ctx context.Context, userID string, settings models.BackupSettings) error {
	_, err := s.UpdateSettings(ctx, userID, SettingsUpdate{Backup: &settings})
	return err
}

// VerifyLockPin reports whether attempt matches the stored lock PIN. The
// attempt is reduced to digits; the stored value may be hashed or legacy
// plaintext.
func (s *Service) VerifyLockPin(stored, attempt string) bool {
	normalized := NormalizePin(attempt)
	if stored == "" {
		return false
	}

	if s.isHashed(stored) {
		if s.hasher == nil {
			return false
		}
		return s.hasher.Verify(normalized, stored)
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(normalized)) == 1
}

// FindByID returns the user with the given id, or ErrNotFound.
func (s *Service) FindByID(ctx context.Context, userID string) (*models.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexByID(users, userID)
	if idx < 0 {
		return nil, ErrNotFound
	}

	user := users[idx]
	return &user, nil
}

// DeleteUserData removes the user and every row it owns in every collection,
// drops the user's extras blobs and clears the session if it pointed at the
// deleted user.
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	for _, collection := range records.Collections {
		if collection == records.CollectionUsers {
			continue
		}
		if err := s.store.DeleteOwned(ctx, collection, userID); err != nil {
			return fmt.Errorf("failed to delete %s rows: %w", collection, err)
		}
	}

	for _, key := range records.UserExtraKeys(userID) {
		if err := s.store.RemoveExtra(ctx, key); err != nil {
			return fmt.Errorf("failed to delete extras %s: %w", key, err)
		}
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}

	kept := users[:0]
	for _, u := range users {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	if err := s.saveUsers(ctx, kept); err != nil {
		return err
	}

	if s.sessions.CurrentID() == userID {
		if err := s.sessions.Clear(ctx); err != nil {
			return err
		}
	}

	return nil
}

// passwordMatches compares against a hashed or legacy plaintext password.
// An account without a password matches only an empty attempt.
func (s *Service) passwordMatches(stored, attempt string) bool {
	if stored == "" {
		return attempt == ""
	}
	if s.isHashed(stored) {
		if s.hasher == nil {
			return false
		}
		return s.hasher.Verify(attempt, stored)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(attempt)) == 1
}

func (s *Service) answerMatches(stored, normalizedAttempt string) bool {
	if s.isHashed(stored) {
		if s.hasher == nil {
			return false
		}
		return s.hasher.Verify(normalizedAttempt, stored)
	}
	return subtle.ConstantTimeCompare(
		[]byte(NormalizeAnswer(stored)),
		[]byte(normalizedAttempt),
	) == 1
}

// hashOrPlain hashes plain, degrading to the plaintext value with a warning
// when no hasher is configured or hashing fails. It never returns an error.
func (s *Service) hashOrPlain(ctx context.Context, plain string) string {
	if plain == "" {
		return ""
	}
	if s.hasher == nil {
		s.logger.WarnContext(ctx, "hashing unavailable, storing plaintext secret")
		s.diag.Report(ctx, diag.Event{
			Component: "auth",
			Kind:      diag.KindHashUnavailable,
			Detail:    "no hasher configured",
		})
		return plain
	}

	hashed, err := s.hasher.Hash(plain)
	if err != nil {
		s.logger.WarnContext(ctx, "hashing failed, storing plaintext secret", "error", err)
		s.diag.Report(ctx, diag.Event{
			Component: "auth",
			Kind:      diag.KindHashUnavailable,
			Err:       err,
		})
		return plain
	}

	return hashed
}

// encodeSecret is hashOrPlain with pass-through for already-hashed input and
// empty-string clearing.
func (s *Service) encodeSecret(ctx context.Context, value string) string {
	if value == "" || s.isHashed(value) {
		return value
	}
	return s.hashOrPlain(ctx, value)
}

func (s *Service) isHashed(value string) bool {
	if s.hasher != nil {
		return s.hasher.IsHashed(value)
	}
	return PBKDF2Hasher{}.IsHashed(value)
}

// backfillDefaults fills settings fields absent on records created by older
// versions. Reports whether anything changed.
func (s *Service) backfillDefaults(user *models.User) bool {
	changed := false
	if user.Currency == "" {
		user.Currency = DefaultCurrency
		changed = true
	}
	if user.Language == "" {
		user.Language = DefaultLanguage
		changed = true
	}
	if user.Theme == "" {
		user.Theme = DefaultTheme
		changed = true
	}
	if user.LockTimeoutMinutes == 0 {
		user.LockTimeoutMinutes = DefaultLockTimeoutMinutes
		changed = true
	}
	return changed
}

func clampLockTimeout(minutes int) int {
	if minutes < MinLockTimeoutMinutes || minutes > MaxLockTimeoutMinutes {
		return DefaultLockTimeoutMinutes
	}
	return minutes
}

func (s *Service) loadUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.store.ReadAll(ctx, records.CollectionUsers)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		var u models.User
		if err := json.Unmarshal(row, &u); err != nil {
			return nil, fmt.Errorf("failed to decode user row: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Service) saveUsers(ctx context.Context, users []models.User) error {
	rows := make([]json.RawMessage, 0, len(users))
	for _, u := range users {
		row, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to encode user row: %w", err)
		}
		rows = append(rows, row)
	}
	return s.store.ReplaceAll(ctx, records.CollectionUsers, rows)
}

func indexByUsername(users []models.User, username string) int {
	for i, u := range users {
		if strings.EqualFold(u.Username, username) {
			return i
		}
	}
	return -1
}

func indexByID(users []models.User, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
