package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wgbowley/PassEM/internal/document"
)

var (
	// ErrNotFound is returned by Read when no document has been written yet.
	ErrNotFound = errors.New("storage: document not found")
	// ErrCorrupt is returned by Read when the persisted bytes do not parse
	// into a vault document.
	ErrCorrupt = errors.New("storage: corrupt document")
)

// Store persists a single vault document. Write replaces the whole document
// and a concurrent Read never observes a partial write. Store does not
// serialize read-modify-write sequences; callers hold their own lock.
type Store interface {
	Read(ctx context.Context) (*document.Document, error)
	Write(ctx context.Context, doc *document.Document) error
}

func decode(b []byte) (*document.Document, error) {
	doc, err := document.Decode(b)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return doc, nil
}

func encode(doc *document.Document) ([]byte, error) {
	b, err := document.Encode(doc)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode vault document")
	}
	return b, nil
}
