package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	// NonceSize is what SealGCM callers generate. Existing vault files carry
	// 16-byte nonces; OpenGCM also accepts the standard 12.
	NonceSize = 16
	TagSize   = 16

	minNonceSize = 12
	maxNonceSize = 32
)

var ErrAuthFailed = errors.New("crypto: message authentication failed")

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes", KeySize)
	}
	if nonceSize < minNonceSize || nonceSize > maxNonceSize {
		return nil, fmt.Errorf("crypto: unsupported nonce size %d", nonceSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// SealGCM encrypts plaintext with AES-256-GCM and returns the ciphertext and
// the authentication tag separately.
func SealGCM(key, nonce, plaintext []byte) (ciphertext, tag []byte, err error) {
	aead, err := newGCM(key, len(nonce))
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize
	return sealed[:split], sealed[split:], nil
}

// OpenGCM verifies tag and decrypts. Any verification failure, including a
// tag of the wrong length, is ErrAuthFailed.
func OpenGCM(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	aead, err := newGCM(key, len(nonce))
	if err != nil {
		return nil, err
	}
	if len(tag) != TagSize {
		return nil, ErrAuthFailed
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	pt, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return pt, nil
}
