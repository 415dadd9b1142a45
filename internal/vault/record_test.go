package vault

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cr "github.com/wgbowley/PassEM/internal/crypto"
	"github.com/wgbowley/PassEM/internal/document"
)

// scrypt N=2^4 keeps the tests fast; the format is the same.
var fastParams = cr.ScryptParams{N: 1 << 4, R: 8, P: 1, KeyLen: cr.KeySize}

func fastCipher() Cipher { return Cipher{Params: fastParams} }

var emailRecord = document.Record{Name: "email", URL: "mail.example.com", Password: "hunter2"}

func TestCipherRoundTrip(t *testing.T) {
	c := fastCipher()
	recs := []document.Record{
		emailRecord,
		{},
		{Name: "bänk", URL: "https://example.com/login?x=1&y=2", Password: `p"a\ss` + "\n\x00"},
	}
	for _, r := range recs {
		enc, err := c.Encrypt(r, "Str0ngP@ssphrase1234")
		require.NoError(t, err)
		got, err := c.Decrypt(enc, "Str0ngP@ssphrase1234")
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}

func TestCipherFieldSizes(t *testing.T) {
	enc, err := fastCipher().Encrypt(emailRecord, "pw")
	require.NoError(t, err)

	for name, field := range map[string]struct {
		val  string
		size int
	}{
		"salt":  {enc.Salt, cr.SaltSize},
		"nonce": {enc.Nonce, cr.NonceSize},
		"tag":   {enc.Tag, cr.TagSize},
	} {
		raw, err := base64.StdEncoding.DecodeString(field.val)
		require.NoError(t, err, name)
		assert.Len(t, raw, field.size, name)
	}
}

func TestCipherWrongPassphrase(t *testing.T) {
	c := fastCipher()
	enc, err := c.Encrypt(emailRecord, "Str0ngP@ssphrase1234")
	require.NoError(t, err)

	for _, pw := range []string{"wrong", "", "Str0ngP@ssphrase1235", "str0ngP@ssphrase1234"} {
		_, err := c.Decrypt(enc, pw)
		assert.ErrorIs(t, err, ErrAuthentication, pw)
	}
}

func flipBit(t *testing.T, field string, bit int) string {
	raw, err := base64.StdEncoding.DecodeString(field)
	require.NoError(t, err)
	raw[bit/8] ^= 1 << (bit % 8)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestCipherTamperEveryBit(t *testing.T) {
	c := fastCipher()
	enc, err := c.Encrypt(emailRecord, "pw")
	require.NoError(t, err)

	fields := map[string]func(e *document.EncryptedRecord) *string{
		"ciphertext": func(e *document.EncryptedRecord) *string { return &e.Ciphertext },
		"nonce":      func(e *document.EncryptedRecord) *string { return &e.Nonce },
		"tag":        func(e *document.EncryptedRecord) *string { return &e.Tag },
	}
	for name, sel := range fields {
		raw, err := base64.StdEncoding.DecodeString(*sel(&enc))
		require.NoError(t, err)
		for bit := 0; bit < len(raw)*8; bit++ {
			tampered := enc
			p := sel(&tampered)
			*p = flipBit(t, *p, bit)

			_, err := c.Decrypt(tampered, "pw")
			require.ErrorIs(t, err, ErrAuthentication, "%s bit %d", name, bit)
		}
	}
}

func TestCipherUndecodableFieldsAreAuthenticationFailures(t *testing.T) {
	c := fastCipher()
	enc, err := c.Encrypt(emailRecord, "pw")
	require.NoError(t, err)

	mutations := []func(e *document.EncryptedRecord){
		func(e *document.EncryptedRecord) { e.Ciphertext = "%%%" },
		func(e *document.EncryptedRecord) { e.Salt = "not base64" },
		func(e *document.EncryptedRecord) { e.Nonce = "" },
		func(e *document.EncryptedRecord) { e.Nonce = "AAAA" },
		func(e *document.EncryptedRecord) { e.Tag = "AAAA" },
		func(e *document.EncryptedRecord) { e.Tag = "" },
	}
	for i, mutate := range mutations {
		bad := enc
		mutate(&bad)
		_, err := c.Decrypt(bad, "pw")
		assert.ErrorIs(t, err, ErrAuthentication, "mutation %d", i)
	}
}

func TestCipherSaltAndNonceNeverRepeat(t *testing.T) {
	c := fastCipher()
	salts := make(map[string]struct{}, 1000)
	nonces := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		enc, err := c.Encrypt(emailRecord, "pw")
		require.NoError(t, err)
		_, dupSalt := salts[enc.Salt]
		_, dupNonce := nonces[enc.Nonce]
		require.False(t, dupSalt, "salt repeated after %d calls", i)
		require.False(t, dupNonce, "nonce repeated after %d calls", i)
		salts[enc.Salt] = struct{}{}
		nonces[enc.Nonce] = struct{}{}
	}
}

func TestCipherEntropyFailure(t *testing.T) {
	for _, n := range []int{0, cr.SaltSize, cr.SaltSize + 3} {
		c := fastCipher()
		c.Rand = bytes.NewReader(make([]byte, n))
		_, err := c.Encrypt(emailRecord, "pw")
		assert.ErrorIs(t, err, ErrEncryption, "%d bytes of entropy", n)
	}
}

func sealRaw(t *testing.T, plaintext []byte, passphrase string, nonceSize int) document.EncryptedRecord {
	salt := bytes.Repeat([]byte{7}, cr.SaltSize)
	nonce := bytes.Repeat([]byte{9}, nonceSize)
	key, err := cr.DeriveKey([]byte(passphrase), salt, fastParams)
	require.NoError(t, err)
	ct, tag, err := cr.SealGCM(key, nonce, plaintext)
	require.NoError(t, err)
	enc := base64.StdEncoding.EncodeToString
	return document.EncryptedRecord{Ciphertext: enc(ct), Salt: enc(salt), Nonce: enc(nonce), Tag: enc(tag)}
}

func TestCipherMalformedPlaintext(t *testing.T) {
	c := fastCipher()
	for _, pt := range []string{"not json", `"a string"`, `{"name": 5}`, `[1,2]`, ``} {
		_, err := c.Decrypt(sealRaw(t, []byte(pt), "pw", cr.NonceSize), "pw")
		assert.ErrorIs(t, err, ErrMalformedRecord, pt)
	}
}

func TestCipherAcceptsLooseJSONAndStandardNonce(t *testing.T) {
	// json.dumps default separators, extra key, 12-byte nonce
	pt := []byte(`{"name": "email", "url": "mail.example.com", "password": "hunter2", "note": "x"}`)
	got, err := fastCipher().Decrypt(sealRaw(t, pt, "pw", 12), "pw")
	require.NoError(t, err)
	assert.Equal(t, emailRecord, got)
}

func FuzzCipherRoundTrip(f *testing.F) {
	f.Add("email", "mail.example.com", "hunter2", "Str0ngP@ssphrase1234")
	f.Add("", "", "", "")
	f.Fuzz(func(t *testing.T, name, url, password, passphrase string) {
		c := fastCipher()
		in := document.Record{Name: name, URL: url, Password: password}
		enc, err := c.Encrypt(in, passphrase)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		out, err := c.Decrypt(enc, passphrase)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		// encoding/json replaces invalid UTF-8 with U+FFFD
		var want document.Record
		b, _ := json.Marshal(in)
		if err := json.Unmarshal(b, &want); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if out != want {
			t.Fatalf("got %+v, want %+v", out, want)
		}
	})
}
