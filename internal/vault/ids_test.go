package vault

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		id, err := newID(rand.Reader, DefaultIDLength)
		require.NoError(t, err)
		require.Len(t, id, DefaultIDLength)
		for _, c := range id {
			require.True(t, strings.ContainsRune(idAlphabet, c), "unexpected %q in %s", c, id)
		}
	}
}

func TestNewIDRejectsBiasedBytes(t *testing.T) {
	// 248..255 would favour the first 8 characters and must be skipped
	src := []byte{255, 248, 0, 61, 250, 62, 249, 251, 252, 253}
	id, err := newID(bytes.NewReader(src), 3)
	require.NoError(t, err)
	assert.Equal(t, "A9A", id)
}

func TestNewIDEntropyFailure(t *testing.T) {
	_, err := newID(bytes.NewReader([]byte{1, 2}), 8)
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestUniqueIDSkipsTakenIDs(t *testing.T) {
	taken := map[string]int{"AAAA": 1}
	src := append(bytes.Repeat([]byte{0}, 4), 1, 1, 1, 1)
	id, err := uniqueID(bytes.NewReader(src), 4, taken)
	require.NoError(t, err)
	assert.Equal(t, "BBBB", id)

	_, err = uniqueID(zeroReader{}, 4, taken)
	assert.ErrorIs(t, err, ErrIDExhausted)
}
