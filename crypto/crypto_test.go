package crypto

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentuf/idxclient/data"
)

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	type sample struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	enc1, err := CanonicalJSON(sample{B: 1, A: "x"})
	require.NoError(t, err)
	enc2, err := CanonicalJSON(sample{B: 1, A: "x"})
	require.NoError(t, err)
	assert.Equal(t, enc1, enc2)
	assert.Equal(t, `{"a":"x","b":1}`, string(enc1))
}

func TestHashFile(t *testing.T) {
	length, sum, err := HashFile(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)
	assert.Len(t, sum, 32)
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key := data.KeyFromEd25519(pub)
	message := []byte("signed payload bytes")
	sig := ed25519.Sign(priv, message)

	assert.NoError(t, VerifySignature(key, message, sig))
	assert.ErrorIs(t, VerifySignature(key, []byte("tampered"), sig), ErrInvalidSignature)
}

func TestVerifySignatureRejectsUnsupportedKeyType(t *testing.T) {
	key := &data.Key{Type: "rsa"}
	err := VerifySignature(key, []byte("x"), []byte("y"))
	assert.Error(t, err)
}
