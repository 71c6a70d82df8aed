package crypto

import (
	"bytes"
	"crypto"
	"fmt"

	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/opentuf/idxclient/data"
)

// ErrInvalidSignature means the signature bytes did not verify against
// the given key and message.
var ErrInvalidSignature = fmt.Errorf("crypto: invalid signature")

// VerifySignature checks that sig is a valid signature by key over
// message. Ed25519 is the only mandatory scheme (§4.1); unrecognised
// key types are reported distinctly so callers can treat them as
// unverifiable-but-not-fatal per §4.2.
func VerifySignature(key *data.Key, message, sig []byte) error {
	if key.Type != data.KeyTypeEd25519 {
		return fmt.Errorf("crypto: unsupported key type %q", key.Type)
	}
	pub, err := key.ToEd25519()
	if err != nil {
		return err
	}
	verifier, err := signature.LoadVerifier(pub, crypto.Hash(0))
	if err != nil {
		return err
	}
	if err := verifier.VerifySignature(bytes.NewReader(sig), bytes.NewReader(message)); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
