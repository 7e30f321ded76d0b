package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры PBKDF2-SHA256 для хеширования паролей и секретных ответов
const (
	// HashScheme - идентификатор схемы в закодированном хеше
	HashScheme = "pbkdf2"
	// HashIterations - текущее количество итераций
	HashIterations = 150000
	// HashSaltSize - размер соли в байтах
	HashSaltSize = 16
	// HashKeySize - длина выходного ключа в байтах
	HashKeySize = 32
)

// HashSecret derives a PBKDF2-SHA256 hash of plain and encodes it as
// "pbkdf2$<iterations>$<saltB64>$<hashB64>". The iteration count is part of
// the encoding, so hashes produced under an older HashIterations value stay
// verifiable after the constant changes.
func HashSecret(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	salt := make([]byte, HashSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plain), salt, HashIterations, HashKeySize, sha256.New)

	return fmt.Sprintf("%s$%d$%s$%s",
		HashScheme,
		HashIterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// VerifySecret reports whether plain matches the encoded hash. The derived
// bytes are compared in constant time. Malformed encodings verify as false,
// never as an error: callers treat them like a wrong secret.
func VerifySecret(plain, encoded string) bool {
	iterations, salt, want, err := parseHash(encoded)
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(plain), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// IsHashed reports whether value carries the pbkdf2 encoding. Format probe
// only; it does not validate the payload.
func IsHashed(value string) bool {
	return strings.HasPrefix(value, HashScheme+"$")
}

// parseHash разбирает закодированный хеш на составляющие
func parseHash(encoded string) (iterations int, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != HashScheme {
		return 0, nil, nil, fmt.Errorf("invalid hash format")
	}

	iterations, err = strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, fmt.Errorf("invalid iteration count: %q", parts[1])
	}

	salt, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	hash, err = base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(hash) == 0 {
		return 0, nil, nil, fmt.Errorf("failed to decode hash")
	}

	return iterations, salt, hash, nil
}
