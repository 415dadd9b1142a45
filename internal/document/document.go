// Package document defines the persisted vault document and its JSON codec.
//
// The on-disk form is a single JSON object:
//
//	{
//	  "user":     {"salt": "<string>", "password": "<hash>"},
//	  "accounts": {"<id>": {"account": "<b64>", "salt": "<b64>", "nonce": "<b64>", "tag": "<b64>"}}
//	}
//
// Binary fields are standard padded base64. Record fields stay strings here so
// a single damaged record never makes the whole document unreadable.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Document is the single persisted unit of a vault.
type Document struct {
	User     UserEntry                  `json:"user"`
	Accounts map[string]EncryptedRecord `json:"accounts"`
}

// UserEntry holds the master authentication data.
type UserEntry struct {
	Salt     string `json:"salt"`
	Password string `json:"password"`
}

// EncryptedRecord is one credential entry at rest.
type EncryptedRecord struct {
	Ciphertext string `json:"account"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Tag        string `json:"tag"`
}

// Record is the plaintext credential entry. It is never persisted.
type Record struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Password string `json:"password"`
}

// New returns a document with the given master data and no accounts.
func New(user UserEntry) *Document {
	return &Document{User: user, Accounts: map[string]EncryptedRecord{}}
}

// Clone returns a deep copy so callers can mutate without touching the
// snapshot they were handed.
func (d *Document) Clone() *Document {
	out := &Document{User: d.User, Accounts: make(map[string]EncryptedRecord, len(d.Accounts))}
	for id, rec := range d.Accounts {
		out.Accounts[id] = rec
	}
	return out
}

var ErrShape = errors.New("document: unexpected shape")

type rawUser struct {
	Salt     *string `json:"salt"`
	Password *string `json:"password"`
}

type rawRecord struct {
	Account *string `json:"account"`
	Salt    *string `json:"salt"`
	Nonce   *string `json:"nonce"`
	Tag     *string `json:"tag"`
}

type rawDocument struct {
	User     *rawUser              `json:"user"`
	Accounts *map[string]rawRecord `json:"accounts"`
}

// Decode parses b and checks that every required key is present with the
// right type. Unknown keys are ignored.
func Decode(b []byte) (*Document, error) {
	var raw rawDocument
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrShape)
	}
	if raw.User == nil || raw.User.Salt == nil || raw.User.Password == nil {
		return nil, fmt.Errorf("%w: missing user entry", ErrShape)
	}
	if raw.Accounts == nil {
		return nil, fmt.Errorf("%w: missing accounts", ErrShape)
	}

	doc := New(UserEntry{Salt: *raw.User.Salt, Password: *raw.User.Password})
	for id, r := range *raw.Accounts {
		if r.Account == nil || r.Salt == nil || r.Nonce == nil || r.Tag == nil {
			return nil, fmt.Errorf("%w: account %q is missing fields", ErrShape, id)
		}
		doc.Accounts[id] = EncryptedRecord{
			Ciphertext: *r.Account,
			Salt:       *r.Salt,
			Nonce:      *r.Nonce,
			Tag:        *r.Tag,
		}
	}
	return doc, nil
}

// Encode renders the document in its persisted form.
func Encode(d *Document) ([]byte, error) {
	if d == nil {
		return nil, errors.New("document: nil document")
	}
	out := *d
	if out.Accounts == nil {
		out.Accounts = map[string]EncryptedRecord{}
	}
	return json.Marshal(&out)
}
