package mihoyo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) (*PasswordCipher, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	cipher, err := NewPasswordCipher(base64.StdEncoding.EncodeToString(der))
	require.NoError(t, err)
	return cipher, key
}

func TestEncryptRoundTrip(t *testing.T) {
	cipher, key := newTestCipher(t)

	const plaintext = "correct horse battery staple"
	encrypted, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)

	decrypted, err := rsa.DecryptPKCS1v15(nil, key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, string(decrypted))
}

func TestEncryptIsRandomized(t *testing.T) {
	cipher, key := newTestCipher(t)

	first, err := cipher.Encrypt("hunter2")
	require.NoError(t, err)
	second, err := cipher.Encrypt("hunter2")
	require.NoError(t, err)

	// PKCS#1 v1.5 padding randomizes every encryption.
	assert.NotEqual(t, first, second)

	for _, encrypted := range []string{first, second} {
		ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
		require.NoError(t, err)
		decrypted, err := rsa.DecryptPKCS1v15(nil, key, ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", string(decrypted))
	}
}

func TestNewPasswordCipherRejectsBadKeyMaterial(t *testing.T) {
	_, err := NewPasswordCipher("not base64 at all !!!")
	assert.Error(t, err)

	_, err = NewPasswordCipher(base64.StdEncoding.EncodeToString([]byte("garbage der")))
	assert.Error(t, err)
}

func TestDefaultPasswordCipher(t *testing.T) {
	cipher, err := DefaultPasswordCipher()
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("password")
	require.NoError(t, err)
	assert.NotEmpty(t, encrypted)
}
