package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	cr "github.com/wgbowley/PassEM/internal/crypto"
)

var (
	ErrEntropy     = errors.New("auth: random source failed")
	ErrInvalidHash = errors.New("auth: invalid password hash")
)

const scryptPrefix = "scrypt$"

// Authenticator hashes and verifies the master passphrase. The salt lives
// next to the hash in the user entry; the hash itself carries the scrypt
// parameters so old vaults keep verifying after the defaults change.
type Authenticator struct {
	Params cr.ScryptParams
	Rand   io.Reader
}

func DefaultAuthenticator() Authenticator {
	return Authenticator{Params: cr.DefaultScrypt(), Rand: rand.Reader}
}

func (a Authenticator) random() io.Reader {
	if a.Rand == nil {
		return rand.Reader
	}
	return a.Rand
}

// Initialize returns a fresh salt and the encoded hash of passphrase:
// scrypt$ln=<log2 N>,r=<r>,p=<p>$<b64(key)>
func (a Authenticator) Initialize(passphrase string) (salt, hash string, err error) {
	if err := a.Params.Validate(); err != nil {
		return "", "", err
	}
	rawSalt, err := cr.RandomBytes(a.random(), cr.SaltSize)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	salt = base64.StdEncoding.EncodeToString(rawSalt)

	key, err := cr.DeriveKey([]byte(passphrase), rawSalt, a.Params)
	if err != nil {
		return "", "", err
	}
	defer cr.Zero(key)

	hash = fmt.Sprintf("scrypt$ln=%d,r=%d,p=%d$%s",
		a.Params.LogN(), a.Params.R, a.Params.P,
		base64.RawStdEncoding.EncodeToString(key),
	)
	return salt, hash, nil
}

// Verify reports whether passphrase matches hash. Malformed input is a
// mismatch.
func (a Authenticator) Verify(passphrase, salt, hash string) bool {
	ok, err := VerifyPassword(passphrase, salt, hash)
	return err == nil && ok
}

// VerifyPassword checks passphrase against an encoded scrypt hash or a
// legacy bcrypt hash ($2a$, $2b$, $2y$). bcrypt embeds its own salt so the
// salt argument is ignored for those.
func VerifyPassword(passphrase, salt, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(passphrase))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, ErrInvalidHash
		}
	}

	p, keyRef, err := parseScryptHash(encoded)
	if err != nil {
		return false, err
	}
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, ErrInvalidHash
	}
	key, err := cr.DeriveKey([]byte(passphrase), rawSalt, p)
	if err != nil {
		return false, ErrInvalidHash
	}
	defer cr.Zero(key)
	return subtle.ConstantTimeCompare(key, keyRef) == 1, nil
}

func isBcrypt(encoded string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}

func parseScryptHash(encoded string) (cr.ScryptParams, []byte, error) {
	if !strings.HasPrefix(encoded, scryptPrefix) {
		return cr.ScryptParams{}, nil, ErrInvalidHash
	}
	parts := strings.Split(encoded[len(scryptPrefix):], "$")
	if len(parts) != 2 {
		return cr.ScryptParams{}, nil, ErrInvalidHash
	}

	var ln, r, p int
	if n, err := fmt.Sscanf(parts[0], "ln=%d,r=%d,p=%d", &ln, &r, &p); err != nil || n != 3 {
		return cr.ScryptParams{}, nil, ErrInvalidHash
	}
	keyRef, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil || len(keyRef) == 0 {
		return cr.ScryptParams{}, nil, ErrInvalidHash
	}
	params, err := cr.ScryptFromLog(ln, r, p, len(keyRef))
	if err != nil {
		return cr.ScryptParams{}, nil, ErrInvalidHash
	}
	return params, keyRef, nil
}
