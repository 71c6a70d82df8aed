package data

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
)

// Metadata is the outer envelope shared by all five roles: a signed
// payload plus zero or more signatures over it. rawSigned retains the
// exact wire bytes of the "signed" field, because signatures and
// content hashes are computed over those bytes, never over a
// re-serialization of the parsed payload (§3.1).
type Metadata[T RolePayload] struct {
	Signed     T
	Signatures []Signature
	rawSigned  []byte
}

// RawSigned returns the untouched bytes of the "signed" field as they
// appeared on the wire.
func (m *Metadata[T]) RawSigned() []byte {
	return m.rawSigned
}

type envelope struct {
	Signed     json.RawMessage `json:"signed"`
	Signatures []Signature     `json:"signatures"`
}

type typeProbe struct {
	Type string `json:"_type"`
}

// FromBytes parses raw into a Metadata[T], enforcing that the payload's
// `_type` field matches roleName and that no unknown fields appear in
// payload position. path is used only to annotate errors.
func FromBytes[T RolePayload](raw []byte, roleName, path string) (*Metadata[T], error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, ErrMalformedJSON{Path: path, Err: err}
	}

	var probe typeProbe
	if err := json.Unmarshal(env.Signed, &probe); err != nil {
		return nil, ErrMalformedJSON{Path: path, Err: err}
	}
	if probe.Type != roleName {
		return nil, ErrSchema{Path: path, Msg: fmt.Sprintf("expected _type %q, got %q", roleName, probe.Type)}
	}

	pdec := json.NewDecoder(bytes.NewReader(env.Signed))
	pdec.DisallowUnknownFields()
	var payload T
	if err := pdec.Decode(&payload); err != nil {
		return nil, ErrSchema{Path: path, Msg: err.Error()}
	}

	seen := map[string]bool{}
	for _, sig := range env.Signatures {
		if seen[sig.KeyID] {
			return nil, ErrSchema{Path: path, Msg: fmt.Sprintf("duplicate signature for key id %s", sig.KeyID)}
		}
		seen[sig.KeyID] = true
	}

	return &Metadata[T]{Signed: payload, Signatures: env.Signatures, rawSigned: env.Signed}, nil
}

// ToBytes re-serializes the envelope. This is used only for locally
// produced metadata (test fixtures); metadata that
// crossed the trust boundary keeps flowing by its RawSigned bytes so
// verification never runs over a re-serialization.
func (m *Metadata[T]) ToBytes() ([]byte, error) {
	raw, err := json.Marshal(m.Signed)
	if err != nil {
		return nil, err
	}
	m.rawSigned = raw
	return json.Marshal(envelope{Signed: raw, Signatures: m.Signatures})
}

// VerifyLengthHashes checks that data has the length and hashes recorded
// in a FileInfo. Length is checked only when non-zero, matching the
// teacher's optional-length convention for role metadata; a zero Length
// skips the length comparison, and callers bound the download size
// separately.
func (f FileInfo) VerifyLengthHashes(content []byte) error {
	if f.Length != 0 && int64(len(content)) != f.Length {
		return fmt.Errorf("length mismatch: expected %d, got %d", f.Length, len(content))
	}
	for alg, want := range f.Hashes {
		var h hash.Hash
		switch alg {
		case "sha256":
			h = sha256.New()
		case "sha512":
			h = sha512.New()
		default:
			return fmt.Errorf("unsupported hash algorithm %q", alg)
		}
		h.Write(content)
		got := h.Sum(nil)
		if hex.EncodeToString(got) != hex.EncodeToString(want) {
			return fmt.Errorf("hash mismatch for %s", alg)
		}
	}
	return nil
}
