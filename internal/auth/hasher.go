package auth

import (
	"strings"

	"github.com/katanos/katanos/internal/crypto"
)

// Hasher is the credential hashing provider. A nil Hasher is a supported
// degraded configuration: secrets are stored plaintext with a warning.
type Hasher interface {
	// Hash derives an encoded hash of plain.
	Hash(plain string) (string, error)

	// Verify reports whether plain matches the encoded hash.
	Verify(plain, encoded string) bool

	// IsHashed reports whether value is an encoded hash.
	IsHashed(value string) bool
}

// PBKDF2Hasher implements Hasher with PBKDF2-SHA256.
type PBKDF2Hasher struct{}

var _ Hasher = PBKDF2Hasher{}

func (PBKDF2Hasher) Hash(plain string) (string, error) {
	return crypto.HashSecret(plain)
}

func (PBKDF2Hasher) Verify(plain, encoded string) bool {
	return crypto.VerifySecret(plain, encoded)
}

func (PBKDF2Hasher) IsHashed(value string) bool {
	return crypto.IsHashed(value)
}

// NormalizeAnswer prepares a security answer for hashing or comparison:
// lowercase, trimmed, with internal whitespace runs collapsed to one space.
// "  New  YORK " and "new york" hash identically.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.Join(strings.Fields(answer), " "))
}

// NormalizePin strips everything but digits from a lock PIN attempt.
func NormalizePin(pin string) string {
	var b strings.Builder
	for _, r := range pin {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
