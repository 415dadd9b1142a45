//go:build !windows

package storage

import (
	"os"

	"github.com/pkg/errors"
)

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "cannot open vault directory %q", dir)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return errors.Wrapf(err, "cannot sync vault directory %q", dir)
	}
	return d.Close()
}
