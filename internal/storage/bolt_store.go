package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/wgbowley/PassEM/internal/document"
)

var (
	boltBucket = []byte("vault")
	boltKey    = []byte("document")
)

// BoltStore keeps the encoded document as a single value in a bbolt file.
// Each Write is one Update transaction.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (or creates) the bbolt file at path. The file lock is
// held until Close; timeout bounds the wait for a lock held by another
// process.
func OpenBoltStore(path string, timeout time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrapf(err, "cannot create vault directory for %q", path)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open bolt vault %q", path)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Read(_ context.Context) (*document.Document, error) {
	var b []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return ErrNotFound
		}
		v := bucket.Get(boltKey)
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction
		b = append([]byte(nil), v...)
		return nil
	})
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot read bolt vault")
	}
	return decode(b)
}

func (s *BoltStore) Write(_ context.Context, doc *document.Document) error {
	b, err := encode(doc)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return bucket.Put(boltKey, b)
	})
	if err != nil {
		return errors.Wrap(err, "cannot write bolt vault")
	}
	return nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "cannot close bolt vault")
	}
	return nil
}
