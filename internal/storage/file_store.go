package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/wgbowley/PassEM/internal/document"
)

// FileStore keeps the document as a JSON file. Writes go to a temporary file
// in the same directory which is then renamed over the target.
type FileStore struct{ path string }

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the document file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Read(_ context.Context) (*document.Document, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read vault file %q", f.path)
	}
	return decode(b)
}

func (f *FileStore) Write(_ context.Context, doc *document.Document) error {
	b, err := encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "cannot create vault directory %q", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "cannot create temporary vault file")
	}
	tmpPath := tmp.Name()
	// removes the temp file on every failure path; a no-op after the rename
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "cannot write temporary vault file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "cannot set vault file permissions")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "cannot sync temporary vault file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "cannot close temporary vault file")
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return errors.Wrapf(err, "cannot replace vault file %q", f.path)
	}
	// the rename is only durable once the directory entry is
	return syncDir(dir)
}
