package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("sensitive api key value")

	encrypted, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)
	assert.Greater(t, len(encrypted), NonceSize)

	decrypted, err := Decrypt(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_Validation(t *testing.T) {
	key := testKey(t)

	_, err := Encrypt(nil, key)
	require.Error(t, err)

	_, err = Encrypt([]byte("data"), []byte("short key"))
	require.Error(t, err)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := testKey(t)
	encrypted, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)

	_, err = Decrypt(encrypted, testKey(t))
	require.Error(t, err)
}

func TestDecrypt_Tampered(t *testing.T) {
	key := testKey(t)
	encrypted, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)

	encrypted[len(encrypted)-1] ^= 0xff

	_, err = Decrypt(encrypted, key)
	require.Error(t, err)
}

func TestDecrypt_TooShort(t *testing.T) {
	_, err := Decrypt([]byte("tiny"), testKey(t))
	require.Error(t, err)
}

func TestBase64RoundTrip(t *testing.T) {
	key := testKey(t)

	encoded, err := EncryptToBase64([]byte("секретные данные"), key)
	require.NoError(t, err)

	decoded, err := DecryptFromBase64(encoded, key)
	require.NoError(t, err)
	assert.Equal(t, "секретные данные", string(decoded))

	_, err = DecryptFromBase64("not base64 at all!!!", key)
	require.Error(t, err)
}
