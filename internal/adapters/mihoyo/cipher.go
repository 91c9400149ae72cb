package mihoyo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// Public key the account service expects passwords to be encrypted with.
const accountPublicKey = "MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDDvekdPMHN3AYhm/vktJT+YJr7cI5DcsNKqdsx5DZX0gDuWFuIjzdwButrIYPNmRJ1G8ybDIF7oDW2eEpm5sMbL9zs9ExXCdvqrn51qELbqj0XxtMTIpaCHFSI50PfPpTFV9Xt/hmyVwokoOXFlAEgCn+QCgGs52bFoYMtyi+xEQIDAQAB"

// PasswordCipher encrypts plaintext passwords for transport with RSA
// PKCS#1 v1.5 padding. Key material is validated once at construction;
// a malformed key is a fatal configuration error, not a per-call one.
type PasswordCipher struct {
	key *rsa.PublicKey
}

// NewPasswordCipher builds a cipher from a base64-encoded DER public key.
func NewPasswordCipher(derBase64 string) (*PasswordCipher, error) {
	der, err := base64.StdEncoding.DecodeString(derBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}

	key, err := parseRSAPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid public key material: %w", err)
	}
	return &PasswordCipher{key: key}, nil
}

// DefaultPasswordCipher builds the cipher for the embedded account-service
// key.
func DefaultPasswordCipher() (*PasswordCipher, error) {
	return NewPasswordCipher(accountPublicKey)
}

func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PublicKey(der)
}

// Encrypt returns the base64 ciphertext of the plaintext password. The
// output is randomized by the padding and is only ever sent as a request
// field.
func (c *PasswordCipher) Encrypt(plaintext string) (string, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, c.key, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
