// Package vault is the encrypted vault engine. A Manager holds no key
// material between calls: every operation that decrypts or encrypts takes
// the master passphrase as an argument.
package vault

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wgbowley/PassEM/internal/audit"
	"github.com/wgbowley/PassEM/internal/auth"
	cr "github.com/wgbowley/PassEM/internal/crypto"
	"github.com/wgbowley/PassEM/internal/document"
	"github.com/wgbowley/PassEM/internal/storage"
)

const DefaultIDLength = 32

// Manager runs the record lifecycle over a Store. mu serializes every
// read-modify-write of the document; key derivation runs outside it where
// the operation allows.
type Manager struct {
	mu sync.Mutex

	store    storage.Store
	auth     auth.Authenticator
	cipher   Cipher
	rand     io.Reader
	idLength int

	log     zerolog.Logger
	journal *audit.Log
	limiter *rate.Limiter
}

type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithAuditLog appends every successful mutation to j.
func WithAuditLog(j *audit.Log) Option { return func(m *Manager) { m.journal = j } }

// WithAuthLimiter throttles CheckAuthorization. Each attempt waits for a
// token before hashing.
func WithAuthLimiter(l *rate.Limiter) Option { return func(m *Manager) { m.limiter = l } }

func WithIDLength(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.idLength = n
		}
	}
}

// WithRandom replaces the source for ids, salts and nonces.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		m.rand = r
		m.cipher.Rand = r
		m.auth.Rand = r
	}
}

// WithAuthParams sets the work factors for new master hashes. Stored hashes
// carry their own, so existing vaults keep verifying.
func WithAuthParams(p cr.ScryptParams) Option {
	return func(m *Manager) { m.auth.Params = p }
}

// WithCipher replaces the record cipher. Records do not store their work
// factors: a vault written with non-default Params is only readable by a
// Manager given the same Params. Outside tests, keep DefaultCipher.
func WithCipher(c Cipher) Option { return func(m *Manager) { m.cipher = c } }

func WithAuthenticator(a auth.Authenticator) Option { return func(m *Manager) { m.auth = a } }

func New(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		auth:     auth.DefaultAuthenticator(),
		cipher:   DefaultCipher(),
		rand:     rand.Reader,
		idLength: DefaultIDLength,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// LoadResult is the outcome of LoadAll. Failed lists, sorted, the ids that
// did not decrypt, so a wrong passphrase can be told apart from an empty
// vault.
type LoadResult struct {
	Records map[string]document.Record
	Failed  []string
}

// InitializeVault writes a new document guarded by passphrase. A stored
// document that fails to parse still counts as existing and is never
// overwritten.
func (m *Manager) InitializeVault(ctx context.Context, passphrase string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.store.Read(ctx)
	switch {
	case err == nil, errors.Is(err, storage.ErrCorrupt):
		return nil, ErrAlreadyExists
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	salt, hash, err := m.auth.Initialize(passphrase)
	if err != nil {
		return nil, err
	}
	doc := document.New(document.UserEntry{Salt: salt, Password: hash})
	if err := m.store.Write(ctx, doc); err != nil {
		return nil, err
	}
	m.log.Info().Msg("vault initialized")
	m.record(audit.ActionInitialize, "")
	return doc.Clone(), nil
}

// Exists reports whether a document is persisted. A corrupt document exists.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	_, err := m.store.Read(ctx)
	switch {
	case err == nil, errors.Is(err, storage.ErrCorrupt):
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CheckAuthorization fails closed: any store error, a cancelled limiter
// wait or a malformed hash is false.
func (m *Manager) CheckAuthorization(ctx context.Context, passphrase string) bool {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			m.log.Warn().Err(err).Msg("authorization attempt throttled")
			return false
		}
	}
	doc, err := m.store.Read(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("cannot read vault for authorization")
		return false
	}
	ok := m.auth.Verify(passphrase, doc.User.Salt, doc.User.Password)
	if !ok {
		m.log.Warn().Msg("authorization failed")
	}
	return ok
}

// record journals a mutation that has already been written. A journal
// failure is logged; it does not undo the mutation.
func (m *Manager) record(a audit.Action, id string) {
	if m.journal == nil {
		return
	}
	e, err := m.journal.Append(a, id)
	if err != nil {
		m.log.Error().Err(err).Str("action", string(a)).Str("id", id).Msg("cannot append audit entry")
		return
	}
	m.log.Debug().Str("entry", e.ID).Str("action", string(a)).Msg("audit entry appended")
}
