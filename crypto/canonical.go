// Package crypto implements C1: canonical-JSON encoding, signature
// verification, and content hashing. Every function here is pure and
// stateless; policy (which keys are trusted, what threshold applies)
// lives in package trust.
package crypto

import "github.com/secure-systems-lab/go-securesystemslib/cjson"

// CanonicalJSON encodes v the way the wire format requires: UTF-8, object
// keys sorted byte-lexicographically, no insignificant whitespace,
// integers without leading zeros, and the minimal string escape set
// (§4.1). Used to compute a key's ID and to serialize locally-authored
// metadata; verifying a downloaded file never re-canonicalizes it,
// since that would let a divergent encoder accept a payload signed over
// different bytes than the ones on disk.
func CanonicalJSON(v any) ([]byte, error) {
	return cjson.EncodeCanonical(v)
}
