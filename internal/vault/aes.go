package vault

import (
	"context"

	"github.com/katanos/katanos/internal/crypto"
)

// AESCipher implements Cipher with AES-256-GCM over a locally-held key.
type AESCipher struct {
	key []byte
}

var _ Cipher = (*AESCipher)(nil)

// NewAESCipher wraps a 32-byte key. Key length is validated on first use.
func NewAESCipher(key []byte) *AESCipher {
	return &AESCipher{key: key}
}

func (c *AESCipher) EncryptSecret(ctx context.Context, plaintext string) (string, error) {
	return crypto.EncryptToBase64([]byte(plaintext), c.key)
}

func (c *AESCipher) DecryptSecret(ctx context.Context, ciphertext string) (string, error) {
	plaintext, err := crypto.DecryptFromBase64(ciphertext, c.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
