package crypto

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"golang.org/x/crypto/scrypt"
)

// ScryptParams are the work factors for scrypt. N must be a power of two
// greater than one.
type ScryptParams struct {
	N      int
	R      int
	P      int
	KeyLen int
}

const (
	// SaltSize is the salt length used for every derivation we write.
	SaltSize = 16
	KeySize  = 32

	maxLogN = 30

	// MaxMemory bounds 128*r*N, the bytes scrypt allocates. Parameters read
	// from a vault file are untrusted; anything above this is rejected
	// before scrypt runs.
	MaxMemory = 1 << 30
	maxP      = 16
)

// DefaultScrypt is the calibration the vault format was written with:
// N=2^14, r=8, p=1, 256-bit key.
func DefaultScrypt() ScryptParams {
	return ScryptParams{N: 1 << 14, R: 8, P: 1, KeyLen: KeySize}
}

// ScryptFromLog builds params from log2(N), as stored in encoded hashes.
func ScryptFromLog(logN, r, p, keyLen int) (ScryptParams, error) {
	if logN < 1 || logN > maxLogN {
		return ScryptParams{}, fmt.Errorf("crypto: scrypt log2(N) %d out of range", logN)
	}
	sp := ScryptParams{N: 1 << logN, R: r, P: p, KeyLen: keyLen}
	return sp, sp.Validate()
}

// LogN returns log2(N).
func (p ScryptParams) LogN() int {
	return bits.Len(uint(p.N)) - 1
}

// Memory is the working set scrypt allocates for p.
// It saturates instead of overflowing.
func (p ScryptParams) Memory() uint64 {
	if p.R <= 0 || p.N <= 0 {
		return 0
	}
	r, n := uint64(p.R), uint64(p.N)
	if r > math.MaxUint64/128/n {
		return math.MaxUint64
	}
	return 128 * r * n
}

func (p ScryptParams) Validate() error {
	switch {
	case p.N <= 1 || p.N&(p.N-1) != 0:
		return errors.New("crypto: scrypt N must be a power of two > 1")
	case p.LogN() > maxLogN:
		return errors.New("crypto: scrypt N too large")
	case p.R <= 0 || p.P <= 0:
		return errors.New("crypto: scrypt r and p must be positive")
	case p.P > maxP:
		return errors.New("crypto: scrypt p too large")
	case uint64(p.R)*uint64(p.P) >= 1<<30:
		return errors.New("crypto: scrypt r*p too large")
	case p.Memory() > MaxMemory:
		return fmt.Errorf("crypto: scrypt needs %d bytes, limit is %d", p.Memory(), MaxMemory)
	case p.KeyLen <= 0:
		return errors.New("crypto: scrypt key length must be positive")
	default:
		return nil
	}
}

// DeriveKey stretches passphrase with salt. The caller owns the returned key
// and should Zero it when done.
func DeriveKey(passphrase, salt []byte, p ScryptParams) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return scrypt.Key(passphrase, salt, p.N, p.R, p.P, p.KeyLen)
}

// RandomBytes reads n bytes from r.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
