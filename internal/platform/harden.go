// Package platform holds process hardening for commands that handle the
// master passphrase.
package platform

import "errors"

// Harden stops the process from writing core dumps and, where supported,
// from being attached to or dumped by other processes of the same user.
func Harden() error {
	return errors.Join(DisableCoreDumps(), setNotDumpable())
}
