package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/katanos/katanos/internal/models"
	"github.com/katanos/katanos/internal/storage"
)

// SessionKey is the backing store key holding the persisted session token.
const SessionKey = "katanos.session"

// DefaultSessionTTL bounds how long a persisted session survives a restart.
const DefaultSessionTTL = 30 * 24 * time.Hour

// sessionClaims are the JWT claims of the persisted session token.
type sessionClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager owns the active session: one explicit object passed to
// collaborators instead of an ambient global. The session is persisted as a
// signed token so a process restart can restore it without re-login.
type SessionManager struct {
	kv     storage.Store
	secret []byte
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	current *models.User
}

// NewSessionManager creates a session manager. secret signs the persisted
// session token (HS256).
func NewSessionManager(kv storage.Store, secret []byte, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		kv:     kv,
		secret: secret,
		ttl:    DefaultSessionTTL,
		logger: logger,
	}
}

// Set makes user the active session and persists it.
func (m *SessionManager) Set(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	m.current = user
	m.mu.Unlock()

	if user == nil {
		return m.kv.Remove(ctx, SessionKey)
	}

	now := time.Now()
	claims := sessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "katanos",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session token: %w", err)
	}

	if err := m.kv.Set(ctx, SessionKey, signed); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	return nil
}

// Current returns the active user, or nil when nobody is logged in.
func (m *SessionManager) Current() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentID returns the active user's id, or "".
func (m *SessionManager) CurrentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

// Clear drops the active session and its persisted token.
func (m *SessionManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.kv.Remove(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to remove persisted session: %w", err)
	}
	return nil
}

// Restore loads the persisted session token, validates it and resolves the
// user through lookup. An absent, expired or unresolvable token leaves the
// session empty without error: restoring is best-effort.
func (m *SessionManager) Restore(
	ctx context.Context,
	lookup func(ctx context.Context, userID string) (*models.User, error),
) error {
	signed, err := m.kv.Get(ctx, SessionKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read persisted session: %w", err)
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		m.logger.WarnContext(ctx, "persisted session invalid, starting logged out", "error", err)
		return m.kv.Remove(ctx, SessionKey)
	}

	user, err := lookup(ctx, claims.UserID)
	if err != nil || user == nil {
		m.logger.WarnContext(ctx, "persisted session user not found, starting logged out",
			"user_id", claims.UserID)
		return m.kv.Remove(ctx, SessionKey)
	}

	m.mu.Lock()
	m.current = user
	m.mu.Unlock()

	return nil
}
