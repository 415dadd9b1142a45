package vault

import (
	"fmt"
	"io"
)

const (
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxIDAttempts = 16

	// largest multiple of len(idAlphabet) that fits in a byte
	idCutoff = 256 - 256%len(idAlphabet)
)

// newID draws n characters from idAlphabet. Bytes at or above idCutoff are
// discarded so every character is equally likely.
func newID(r io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("%w: id: %v", ErrEncryption, err)
		}
		for _, b := range buf {
			if int(b) >= idCutoff {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// uniqueID retries newID until it finds an id not in taken.
func uniqueID[V any](r io.Reader, n int, taken map[string]V) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := newID(r, n)
		if err != nil {
			return "", err
		}
		if _, ok := taken[id]; !ok {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}
