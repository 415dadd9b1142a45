package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	cr "github.com/wgbowley/PassEM/internal/crypto"
	"github.com/wgbowley/PassEM/internal/document"
)

// Cipher encrypts one record at a time. Every call draws a fresh salt and
// nonce, so each record has its own key and AEAD context.
type Cipher struct {
	Params cr.ScryptParams
	Rand   io.Reader
}

func DefaultCipher() Cipher {
	return Cipher{Params: cr.DefaultScrypt(), Rand: rand.Reader}
}

func (c Cipher) random() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c Cipher) Encrypt(rec document.Record, passphrase string) (document.EncryptedRecord, error) {
	salt, err := cr.RandomBytes(c.random(), cr.SaltSize)
	if err != nil {
		return document.EncryptedRecord{}, fmt.Errorf("%w: salt: %v", ErrEncryption, err)
	}
	nonce, err := cr.RandomBytes(c.random(), cr.NonceSize)
	if err != nil {
		return document.EncryptedRecord{}, fmt.Errorf("%w: nonce: %v", ErrEncryption, err)
	}
	pt, err := json.Marshal(rec)
	if err != nil {
		return document.EncryptedRecord{}, err
	}
	defer cr.Zero(pt)

	key, err := cr.DeriveKey([]byte(passphrase), salt, c.Params)
	if err != nil {
		return document.EncryptedRecord{}, err
	}
	var ct, tag []byte
	err = cr.WithLockedKey(key, func(k []byte) error {
		var err error
		ct, tag, err = cr.SealGCM(k, nonce, pt)
		return err
	})
	if err != nil {
		return document.EncryptedRecord{}, err
	}

	enc := base64.StdEncoding.EncodeToString
	return document.EncryptedRecord{
		Ciphertext: enc(ct),
		Salt:       enc(salt),
		Nonce:      enc(nonce),
		Tag:        enc(tag),
	}, nil
}

// Decrypt returns ErrAuthentication for a wrong passphrase, any tampered
// field or any undecodable field. The key is derived before any of those are
// judged.
func (c Cipher) Decrypt(enc document.EncryptedRecord, passphrase string) (document.Record, error) {
	dec := base64.StdEncoding.DecodeString
	ct, errCT := dec(enc.Ciphertext)
	salt, errSalt := dec(enc.Salt)
	nonce, errNonce := dec(enc.Nonce)
	tag, errTag := dec(enc.Tag)
	if errSalt != nil {
		// keep the work factor identical to a well-formed record
		salt = make([]byte, cr.SaltSize)
	}

	key, err := cr.DeriveKey([]byte(passphrase), salt, c.Params)
	if err != nil {
		return document.Record{}, err
	}
	var pt []byte
	err = cr.WithLockedKey(key, func(k []byte) error {
		if errCT != nil || errSalt != nil || errNonce != nil || errTag != nil {
			return ErrAuthentication
		}
		var err error
		pt, err = cr.OpenGCM(k, nonce, ct, tag)
		if err != nil {
			return ErrAuthentication
		}
		return nil
	})
	if err != nil {
		return document.Record{}, err
	}
	defer cr.Zero(pt)

	var rec document.Record
	if err := json.Unmarshal(pt, &rec); err != nil {
		return document.Record{}, ErrMalformedRecord
	}
	return rec, nil
}
