package vault

import (
	"errors"
	"fmt"

	"github.com/wgbowley/PassEM/internal/storage"
)

var (
	ErrNotFound        = errors.New("vault: not found")
	ErrAlreadyExists   = errors.New("vault: already initialized")
	ErrMalformedRecord = errors.New("vault: malformed record")
	// ErrAuthentication covers a wrong passphrase and tampered data alike.
	ErrAuthentication = errors.New("vault: authentication failed")
	ErrEncryption     = errors.New("vault: encryption failed")
	ErrIDExhausted    = errors.New("vault: could not generate a unique record id")
)

// storeErr keeps storage.ErrNotFound matchable as ErrNotFound too.
func storeErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
