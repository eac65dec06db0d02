package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateSecureKey(32)
	require.NoError(t, err)

	plaintext := "eyJhbGciOiJIUzI1NiJ9.payload.signature"

	encrypted, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := Decrypt(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptRejectsBadKeys(t *testing.T) {
	_, err := Encrypt("data", "")
	assert.Error(t, err)

	_, err = Encrypt("data", "too-short")
	assert.Error(t, err)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	keyA, err := GenerateSecureKey(32)
	require.NoError(t, err)
	keyB, err := GenerateSecureKey(32)
	require.NoError(t, err)

	encrypted, err := Encrypt("secret credential", keyA)
	require.NoError(t, err)

	_, err = Decrypt(encrypted, keyB)
	assert.Error(t, err)
}

func TestGenerateULID(t *testing.T) {
	a := GenerateULID()
	b := GenerateULID()

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestGenerateSecureKeyLength(t *testing.T) {
	key, err := GenerateSecureKey(16)
	require.NoError(t, err)
	// Hex encoding doubles the byte length.
	assert.Len(t, key, 32)
}
