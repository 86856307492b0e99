package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentDigestStableAcrossFormatting(t *testing.T) {
	a := []byte(`{"metadata":{"name":"feedana","version":"0.1.0"},"instructions":[]}`)
	b := []byte("{\n  \"instructions\": [],\n  \"metadata\": {\"version\": \"0.1.0\", \"name\": \"feedana\"}\n}")

	da, err := DocumentDigest(a)
	require.NoError(t, err)
	db, err := DocumentDigest(b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestDocumentDigestDomainSeparated(t *testing.T) {
	data := []byte(`{"a":1}`)
	plain := sha256.Sum256(data)

	d := MustDocumentDigest(data)
	assert.NotEqual(t, hex.EncodeToString(plain[:]), d)

	h := sha256.New()
	h.Write([]byte(DomainInterface))
	h.Write([]byte{0x00})
	h.Write(data)
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), d)
}

func TestDocumentDigestContentSensitive(t *testing.T) {
	a := MustDocumentDigest([]byte(`{"version":"0.1.0"}`))
	b := MustDocumentDigest([]byte(`{"version":"0.1.1"}`))
	assert.NotEqual(t, a, b)
}

func TestDocumentDigestInvalidJSON(t *testing.T) {
	_, err := DocumentDigest([]byte(`{"a":`))
	require.Error(t, err)
	assert.Panics(t, func() { MustDocumentDigest([]byte(`nope`)) })
}
