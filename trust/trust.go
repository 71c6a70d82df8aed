package trust

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/opentuf/idxclient/crypto"
	"github.com/opentuf/idxclient/data"
)

// Verified wraps a parsed role payload whose signatures have been
// checked against a role's keyids/threshold. It carries no claim about
// version monotonicity or expiry.
type Verified[T data.RolePayload] struct {
	meta *data.Metadata[T]
}

// Trusted additionally guarantees version monotonicity and, when a
// reference time was supplied, non-expiry (§3.3). Only Trust promotes a
// Verified value into one.
type Trusted[T data.RolePayload] struct {
	meta *data.Metadata[T]
}

func (v Verified[T]) Payload() T             { return v.meta.Signed }
func (v Verified[T]) Metadata() *data.Metadata[T] { return v.meta }

func (t Trusted[T]) Payload() T                 { return t.meta.Signed }
func (t Trusted[T]) Metadata() *data.Metadata[T] { return t.meta }

// Trust promotes a Verified value that the caller has already range
// checked (version and, if applicable, expiry) via EnforceMinVersion and
// EnforceNotExpired. There is no way to construct a Trusted value other
// than through this function, so a Raw or bare Verified value can never
// be mistaken for one (§9).
func Trust[T data.RolePayload](v Verified[T]) Trusted[T] {
	return Trusted[T]{meta: v.meta}
}

// EnforceMinVersion implements §4.3 step (d).
func (v Verified[T]) EnforceMinVersion(path string, version, minVersion int64) error {
	if version < minVersion {
		return ErrVersionTooLow{Path: path, Got: version, Min: minVersion}
	}
	return nil
}

// EnforceNotExpired implements §4.3 step (e).
func EnforceNotExpired(path string, expires, now time.Time) error {
	if !expires.After(now) {
		return ErrExpired{Path: path}
	}
	return nil
}

// VerifyRole implements the C3 `verify_role` operation (§4.3): it parses
// raw as roleName, checks its signatures against the keyids/threshold
// that trustedRoot declares for targetRole, in the mandatory order
// (signatures, then version, then expiry) so that an attacker cannot
// exploit ambiguity between an expired-but-signed file and an
// unexpired-but-unsigned one. The version/expiry checks it performs are
// exactly what promotes the result to Trusted before returning.
func VerifyRole[T data.RolePayload](trustedRoot *data.Metadata[data.RootPayload], targetRole, path string, raw []byte, minVersion *int64, now *time.Time, version func(T) int64, expires func(T) time.Time) (Trusted[T], error) {
	var zero Trusted[T]

	role, ok := trustedRoot.Signed.Roles[targetRole]
	if !ok {
		return zero, ErrDeserialization{Path: path, Detail: "root declares no role " + targetRole}
	}

	meta, err := data.FromBytes[T](raw, targetRole, path)
	if err != nil {
		return zero, ErrDeserialization{Path: path, Detail: err.Error()}
	}

	// Every keyid the role declares must resolve in the root's own key
	// table; a role naming a keyid with no corresponding key is a
	// malformed root regardless of which signatures were supplied.
	for _, id := range role.KeyIDs {
		if _, ok := trustedRoot.Signed.Keys[id]; !ok {
			return zero, ErrUnknownKey{KeyID: id}
		}
	}

	type validKey struct {
		keyID  string
		pubKey string
	}
	var valid []validKey
	for _, sig := range meta.Signatures {
		// (a) drop signatures whose keyid isn't declared for this role.
		if !slices.Contains(role.KeyIDs, sig.KeyID) {
			continue
		}
		key := trustedRoot.Signed.Keys[sig.KeyID]
		// (b) verify the cryptographic signature.
		if err := crypto.VerifySignature(key, meta.RawSigned(), sig.Signature); err != nil {
			continue
		}
		valid = append(valid, validKey{keyID: sig.KeyID, pubKey: key.Value.Public})
	}

	// (c) count distinct valid keys.
	seenKeyID := map[string]bool{}
	seenPub := map[string]bool{}
	distinct := 0
	for _, vk := range valid {
		if seenKeyID[vk.keyID] {
			continue
		}
		seenKeyID[vk.keyID] = true
		if seenPub[vk.pubKey] {
			return zero, ErrSignaturesNotUnique{Path: path}
		}
		seenPub[vk.pubKey] = true
		distinct++
	}
	if distinct < role.Threshold {
		return zero, ErrSignaturesMissing{Path: path, Have: distinct, Required: role.Threshold}
	}

	result := Verified[T]{meta: meta}

	// (d) version.
	if minVersion != nil {
		if err := result.EnforceMinVersion(path, version(meta.Signed), *minVersion); err != nil {
			return zero, err
		}
	}
	// (e) expiry.
	if now != nil {
		if err := EnforceNotExpired(path, expires(meta.Signed), *now); err != nil {
			return zero, err
		}
	}
	return Trust(result), nil
}

// VerifyFingerprints implements the C3 `verify_fingerprints` bootstrap
// variant (§4.3, §4.8): it accepts a candidate root.json whose
// signatures come from keys whose ID is in trustedKeyIDs, using the
// candidate's own embedded key table for the cryptographic material
// (there is no other trusted root yet to consult). threshold == 0 means
// trust-on-first-use: the file is accepted unconditionally.
func VerifyFingerprints(trustedKeyIDs []string, threshold int, raw []byte, path string) (Verified[data.RootPayload], error) {
	var zero Verified[data.RootPayload]

	meta, err := data.FromBytes[data.RootPayload](raw, data.ROOT, path)
	if err != nil {
		return zero, ErrDeserialization{Path: path, Detail: err.Error()}
	}
	if threshold == 0 {
		return Verified[data.RootPayload]{meta: meta}, nil
	}

	trusted := map[string]bool{}
	for _, id := range trustedKeyIDs {
		trusted[id] = true
	}

	seenPub := map[string]bool{}
	distinct := 0
	for _, sig := range meta.Signatures {
		if !trusted[sig.KeyID] {
			continue
		}
		key, ok := meta.Signed.Keys[sig.KeyID]
		if !ok {
			continue
		}
		// The keyid must actually be this key's own fingerprint, not an
		// attacker-chosen label that happens to be in the trusted set.
		if key.ID() != sig.KeyID {
			continue
		}
		if err := crypto.VerifySignature(key, meta.RawSigned(), sig.Signature); err != nil {
			continue
		}
		if !seenPub[key.Value.Public] {
			seenPub[key.Value.Public] = true
			distinct++
		}
	}
	if distinct < threshold {
		return zero, ErrSignaturesMissing{Path: path, Have: distinct, Required: threshold}
	}
	return Verified[data.RootPayload]{meta: meta}, nil
}
