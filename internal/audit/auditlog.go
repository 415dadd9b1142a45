// Package audit keeps a hash-chained journal of vault mutations. Each entry
// hashes the previous entry's hash, so dropping or editing an entry breaks
// Verify. Entries carry record ids only, never record contents.
//
// A journal opened with Open appends every entry as one JSON line to a file,
// and a later Open continues the chain from the last line.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionInitialize Action = "initialize"
	ActionAdd        Action = "add"
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
)

type Entry struct {
	ID       string `json:"id"`
	TS       int64  `json:"ts"`
	Action   Action `json:"action"`
	RecordID string `json:"record_id,omitempty"`
	Hash     string `json:"hash"`
}

type Log struct {
	mu       sync.Mutex
	lastHash []byte
	entries  []Entry
	now      func() time.Time
	f        *os.File
}

// New returns an in-memory journal.
func New() *Log { return &Log{now: time.Now} }

// Open returns a journal backed by the file at path, creating it if needed.
// Existing entries are loaded so new entries chain onto them.
func Open(path string) (*Log, error) {
	entries, err := ReadEntries(path)
	if err != nil {
		return nil, err
	}
	l := &Log{now: time.Now, entries: entries}
	if n := len(entries); n > 0 {
		if l.lastHash, err = hex.DecodeString(entries[n-1].Hash); err != nil {
			return nil, fmt.Errorf("audit: last entry of %s has a bad hash: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if l.f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err != nil {
		return nil, err
	}
	return l, nil
}

func chain(prev []byte, e Entry) []byte {
	h := sha256.New()
	h.Write(prev)
	fmt.Fprintf(h, "%s|%d|%s|%s", e.ID, e.TS, e.Action, e.RecordID)
	return h.Sum(nil)
}

// Append chains a new entry. With a file-backed journal the entry is written
// and synced before it joins the in-memory chain.
func (l *Log) Append(action Action, recordID string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		ID:       uuid.NewString(),
		TS:       l.now().Unix(),
		Action:   action,
		RecordID: recordID,
	}
	sum := chain(l.lastHash, e)
	e.Hash = hex.EncodeToString(sum)

	if l.f != nil {
		line, err := json.Marshal(e)
		if err != nil {
			return Entry{}, err
		}
		if _, err := l.f.Write(append(line, '\n')); err != nil {
			return Entry{}, fmt.Errorf("audit: write: %w", err)
		}
		if err := l.f.Sync(); err != nil {
			return Entry{}, fmt.Errorf("audit: sync: %w", err)
		}
	}
	l.lastHash = sum
	l.entries = append(l.entries, e)
	return e, nil
}

// ErrChainBroken means an entry's hash does not follow from the entries
// before it.
var ErrChainBroken = errors.New("audit chain broken")

func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return VerifyEntries(l.entries)
}

// VerifyEntries checks a chain exported with Entries or read with
// ReadEntries.
func VerifyEntries(entries []Entry) error {
	var prev []byte
	for i, e := range entries {
		sum := chain(prev, e)
		if hex.EncodeToString(sum) != e.Hash {
			return fmt.Errorf("%w at entry %d", ErrChainBroken, i)
		}
		prev = sum
	}
	return nil
}

// ReadEntries parses a journal file. A missing file is an empty journal.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit: %s line %d: %w", path, n, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
