package data

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
)

const (
	KeyTypeEd25519   = "ed25519"
	KeySchemeEd25519 = "ed25519"
)

// ID returns the key's identifier: the SHA-256 hex digest of the
// canonical-JSON encoding of the key itself (§3.2). Memoized because the
// canonical encoding is only needed once per key.
func (k *Key) ID() string {
	k.idOnce.Do(func() {
		enc, err := cjson.EncodeCanonical(k)
		if err != nil {
			// Key is a plain data struct; encoding it can only fail if the
			// caller mutated it into something cjson can't walk.
			panic(fmt.Errorf("data: computing key id: %w", err))
		}
		digest := sha256.Sum256(enc)
		k.id = hex.EncodeToString(digest[:])
	})
	return k.id
}

// KeyFromEd25519 builds the wire Key representation of an Ed25519 public
// key (§4.1: Ed25519 is the mandatory scheme).
func KeyFromEd25519(pub ed25519.PublicKey) *Key {
	return &Key{
		Type:   KeyTypeEd25519,
		Scheme: KeySchemeEd25519,
		Value:  KeyVal{Public: hex.EncodeToString(pub)},
	}
}

// ToEd25519 recovers the ed25519.PublicKey encoded in a Key.
func (k *Key) ToEd25519() (ed25519.PublicKey, error) {
	if k.Type != KeyTypeEd25519 {
		return nil, fmt.Errorf("data: key type %q is not %q", k.Type, KeyTypeEd25519)
	}
	raw, err := hex.DecodeString(k.Value.Public)
	if err != nil {
		return nil, fmt.Errorf("data: decoding ed25519 public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("data: ed25519 public key has wrong size %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
