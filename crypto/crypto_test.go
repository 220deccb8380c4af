package crypto

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyIsCommutative(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"1", "2"},
		{"", "x"},
		{"same", "same"},
		{"a|b", "c"},
	}
	for _, p := range pairs {
		assert.Equal(t, DeriveKey(p[0], p[1]), DeriveKey(p[1], p[0]), "pair %q", p)
	}
}

func TestDeriveKeySeparatesPairs(t *testing.T) {
	assert.NotEqual(t, DeriveKey("alice", "bob"), DeriveKey("alice", "carol"))
	// Concatenation alone would collide here.
	assert.NotEqual(t, DeriveKey("ab", "c"), DeriveKey("a", "bc"))
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey("u1", "u2")
	for _, text := range []string{"hi", "", "ünïcødé ✓", string(make([]byte, 4096))} {
		blob, err := Seal([]byte(text), key)
		require.NoError(t, err)

		out, err := Open(blob, key)
		require.NoError(t, err)
		assert.Equal(t, text, string(out))
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key := DeriveKey("u1", "u2")
	a, err := Seal([]byte("hi"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("hi"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenWithWrongKey(t *testing.T) {
	blob, err := Seal([]byte("hi"), DeriveKey("u1", "u2"))
	require.NoError(t, err)

	out, err := Open(blob, DeriveKey("u1", "u3"))
	assert.Nil(t, out)

	var failure *DecryptionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "authentication failed", failure.Reason)
}

func TestOpenMalformed(t *testing.T) {
	key := DeriveKey("u1", "u2")
	blob, err := Seal([]byte("hello"), key)
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[len(raw)-1] ^= 0xff

	for name, in := range map[string]string{
		"not base64": "%%%",
		"too short":  base64.StdEncoding.EncodeToString([]byte("short")),
		"tampered":   base64.StdEncoding.EncodeToString(raw),
		"empty":      "",
	} {
		_, err := Open(in, key)
		var failure *DecryptionFailure
		assert.True(t, errors.As(err, &failure), name)
	}
}

func TestDisplay(t *testing.T) {
	key := DeriveKey("u1", "u2")
	blob, err := Seal([]byte("hi"), key)
	require.NoError(t, err)

	assert.Equal(t, "hi", Display(blob, key))
	assert.Equal(t, Placeholder, Display(blob, DeriveKey("u2", "u9")))
	assert.Equal(t, Placeholder, Display("garbage", key))
}
