// Package vault provides encryption indirection for individual sensitive
// string fields (API keys and similar). Values are either raw plaintext or
// carry a fixed marker prefix followed by the ciphertext; the marker alone
// decides whether decryption is attempted.
package vault

import (
	"context"
	"log/slog"
	"strings"

	"github.com/katanos/katanos/internal/diag"
)

// Marker prefixes every vault-encrypted value.
const Marker = "enc:v1:"

// Cipher is the external crypto collaborator. Its absence (a nil Cipher) is
// a supported configuration, not an error: the vault degrades to plaintext
// on encrypt and fails closed on decrypt.
type Cipher interface {
	// EncryptSecret encrypts plaintext and returns the ciphertext payload
	// (without the marker).
	EncryptSecret(ctx context.Context, plaintext string) (string, error)

	// DecryptSecret decrypts a ciphertext payload produced by EncryptSecret.
	DecryptSecret(ctx context.Context, ciphertext string) (string, error)
}

// Vault encrypts and decrypts marked secret fields.
type Vault struct {
	cipher Cipher
	logger *slog.Logger
	diag   diag.Reporter
}

// New creates a vault. cipher may be nil.
func New(cipher Cipher, logger *slog.Logger, reporter diag.Reporter) *Vault {
	return &Vault{cipher: cipher, logger: logger, diag: reporter}
}

// Encrypt returns value with the encryption marker applied. Already-marked
// input is returned unchanged, so the call is idempotent. When the cipher is
// absent or fails, Encrypt degrades to returning the trimmed plaintext and
// logs a warning; it never returns an error to the caller.
func (v *Vault) Encrypt(ctx context.Context, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || IsEncrypted(trimmed) {
		return trimmed
	}

	if v.cipher == nil {
		v.logger.WarnContext(ctx, "secret cipher unavailable, storing plaintext")
		v.diag.Report(ctx, diag.Event{
			Component: "vault",
			Kind:      diag.KindCryptoUnavailable,
			Detail:    "encrypt requested without cipher",
		})
		return trimmed
	}

	ciphertext, err := v.cipher.EncryptSecret(ctx, trimmed)
	if err != nil {
		v.logger.WarnContext(ctx, "secret encryption failed, storing plaintext", "error", err)
		v.diag.Report(ctx, diag.Event{
			Component: "vault",
			Kind:      diag.KindCryptoUnavailable,
			Detail:    "encrypt failed",
			Err:       err,
		})
		return trimmed
	}

	return Marker + ciphertext
}

// Decrypt returns the plaintext for a marked value. Unmarked input passes
// through unchanged. Decryption failures fail closed: the result is an empty
// string, never the ciphertext.
func (v *Vault) Decrypt(ctx context.Context, value string) string {
	if !IsEncrypted(value) {
		return value
	}

	payload := strings.TrimPrefix(value, Marker)

	if v.cipher == nil {
		v.logger.WarnContext(ctx, "secret cipher unavailable, cannot decrypt")
		v.diag.Report(ctx, diag.Event{
			Component: "vault",
			Kind:      diag.KindCryptoUnavailable,
			Detail:    "decrypt requested without cipher",
		})
		return ""
	}

	plaintext, err := v.cipher.DecryptSecret(ctx, payload)
	if err != nil {
		v.logger.WarnContext(ctx, "secret decryption failed", "error", err)
		v.diag.Report(ctx, diag.Event{
			Component: "vault",
			Kind:      diag.KindDecryptFailed,
			Err:       err,
		})
		return ""
	}

	return plaintext
}

// IsEncrypted reports whether value carries the encryption marker. Format
// probe only, no cryptographic validation.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Marker)
}
