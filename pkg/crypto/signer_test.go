package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519Signer_SignVerify(t *testing.T) {
	s, err := NewEd25519Signer("key-1")
	require.NoError(t, err)

	msg := []byte("entry-hash")
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	ok, err := Verify(s.PublicKey(), sig, msg)
	require.NoError(t, err)
	assert.True(t, ok)

	// Tampered message fails
	ok, err = Verify(s.PublicKey(), sig, []byte("entry-hash-tampered"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSignerFromSeed_Deterministic(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")

	a, err := NewSignerFromSeed(seed, "key-1")
	require.NoError(t, err)
	b, err := NewSignerFromSeed(seed, "key-1")
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey(), b.PublicKey())

	// Different key ID yields a different key from the same seed
	c, err := NewSignerFromSeed(seed, "key-2")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey(), c.PublicKey())
}

func TestNewSignerFromSeed_EmptySeed(t *testing.T) {
	_, err := NewSignerFromSeed(nil, "key-1")
	assert.Error(t, err)
}

func TestVerify_InvalidInputs(t *testing.T) {
	_, err := Verify("not-hex", "00", []byte("x"))
	assert.Error(t, err)

	_, err = Verify("0011", "not-hex", []byte("x"))
	assert.Error(t, err)

	// Wrong key size
	_, err = Verify("0011", "0011", []byte("x"))
	assert.Error(t, err)
}
