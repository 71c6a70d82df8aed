package data

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytesRoundTrip(t *testing.T) {
	expires := time.Now().UTC().Truncate(time.Second).AddDate(0, 0, 30)
	payload := TimestampPayload{
		Type:        TIMESTAMP,
		SpecVersion: SpecVersion,
		Version:     1,
		Expires:     expires,
		Meta:        map[string]FileInfo{"snapshot": {Length: 12, Hashes: Hashes{"sha256": []byte{1, 2, 3}}}},
	}
	m := &Metadata[TimestampPayload]{Signed: payload}
	raw, err := m.ToBytes()
	require.NoError(t, err)

	parsed, err := FromBytes[TimestampPayload](raw, TIMESTAMP, "timestamp.json")
	require.NoError(t, err)
	assert.Equal(t, payload.Version, parsed.Signed.Version)
	assert.True(t, payload.Expires.Equal(parsed.Signed.Expires))
	assert.NotEmpty(t, parsed.RawSigned())
}

func TestFromBytesRejectsWrongType(t *testing.T) {
	m := &Metadata[TimestampPayload]{Signed: TimestampPayload{Type: TIMESTAMP, SpecVersion: SpecVersion}}
	raw, err := m.ToBytes()
	require.NoError(t, err)

	_, err = FromBytes[TimestampPayload](raw, SNAPSHOT, "timestamp.json")
	require.Error(t, err)
	var schemaErr ErrSchema
	assert.ErrorAs(t, err, &schemaErr)
}

func TestFromBytesRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"signed":{"_type":"timestamp","spec_version":"1.0","version":1,"expires":"2030-01-01T00:00:00Z","meta":{},"bogus":true},"signatures":[]}`)
	_, err := FromBytes[TimestampPayload](raw, TIMESTAMP, "timestamp.json")
	require.Error(t, err)
}

func TestFromBytesRejectsMalformedEnvelope(t *testing.T) {
	_, err := FromBytes[TimestampPayload]([]byte("not json"), TIMESTAMP, "timestamp.json")
	require.Error(t, err)
	var malformed ErrMalformedJSON
	assert.ErrorAs(t, err, &malformed)
}

func TestFromBytesRejectsDuplicateSignatures(t *testing.T) {
	raw := []byte(`{"signed":{"_type":"timestamp","spec_version":"1.0","version":1,"expires":"2030-01-01T00:00:00Z","meta":{}},` +
		`"signatures":[{"keyid":"a","sig":"aa"},{"keyid":"a","sig":"bb"}]}`)
	_, err := FromBytes[TimestampPayload](raw, TIMESTAMP, "timestamp.json")
	require.Error(t, err)
}

func TestFileInfoEqual(t *testing.T) {
	a := FileInfo{Length: 10, Hashes: Hashes{"sha256": []byte{1, 2}}}
	b := FileInfo{Length: 10, Hashes: Hashes{"sha256": []byte{1, 2}}}
	c := FileInfo{Length: 11, Hashes: Hashes{"sha256": []byte{1, 2}}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestVerifyLengthHashes(t *testing.T) {
	content := []byte("package bytes")
	info := FileInfo{}
	require.NoError(t, info.VerifyLengthHashes(content))

	sum := sha256.Sum256(content)
	info = FileInfo{Length: int64(len(content)), Hashes: Hashes{"sha256": sum[:]}}
	assert.NoError(t, info.VerifyLengthHashes(content))
	assert.Error(t, info.VerifyLengthHashes([]byte("different")))
}
