// Package data defines the typed representations of the five signed role
// payloads (root, timestamp, snapshot, mirrors, targets) and the envelope
// that carries their signatures.
package data

import (
	"encoding/json"
	"sync"
	"time"
)

// Top-level role names.
const (
	ROOT      = "root"
	TIMESTAMP = "timestamp"
	SNAPSHOT  = "snapshot"
	MIRRORS   = "mirrors"
	TARGETS   = "targets"
)

const SpecVersion = "1.0"

// RolePayload constrains the generic Metadata[T] to one of the five
// well-known payload shapes.
type RolePayload interface {
	RootPayload | TimestampPayload | SnapshotPayload | MirrorsPayload | TargetsPayload
}

// HexBytes marshals as a lowercase hex string.
type HexBytes []byte

// Hashes maps a hash algorithm name ("sha256") to its hex digest.
type Hashes map[string]HexBytes

// FileInfo binds an expectation to bytes: how long they are and what they
// hash to. Version is set for role metadata entries (root, mirrors, the
// index) inside a Timestamp's or Snapshot's Meta map, and left at zero for
// package target entries, which carry no independent version.
type FileInfo struct {
	Length  int64           `json:"length"`
	Hashes  Hashes          `json:"hashes"`
	Version int64           `json:"version,omitempty"`
	Custom  json.RawMessage `json:"custom,omitempty"`
}

// Equal reports whether two FileInfo values describe the same bytes.
func (f FileInfo) Equal(o FileInfo) bool {
	if f.Length != o.Length || f.Version != o.Version {
		return false
	}
	if len(f.Hashes) != len(o.Hashes) {
		return false
	}
	for alg, digest := range f.Hashes {
		od, ok := o.Hashes[alg]
		if !ok || string(digest) != string(od) {
			return false
		}
	}
	return true
}

// Key is a public verification key. ID is memoized since it requires
// canonical-JSON encoding of the key itself.
type Key struct {
	Type   string `json:"keytype"`
	Scheme string `json:"scheme"`
	Value  KeyVal `json:"keyval"`

	id     string
	idOnce sync.Once
}

type KeyVal struct {
	Public string `json:"public"`
}

// Role names the keys and threshold trusted for one top-level role.
type Role struct {
	KeyIDs    []string `json:"keyids"`
	Threshold int      `json:"threshold"`
}

// Signature is one signature over a role payload's canonical-JSON bytes.
type Signature struct {
	KeyID     string   `json:"keyid"`
	Method    string   `json:"method,omitempty"`
	Signature HexBytes `json:"sig"`
}

// RootPayload is the signed content of root.json.
type RootPayload struct {
	Type               string           `json:"_type"`
	SpecVersion        string           `json:"spec_version"`
	ConsistentSnapshot bool             `json:"consistent_snapshot"`
	Version            int64            `json:"version"`
	Expires            time.Time        `json:"expires"`
	Keys               map[string]*Key  `json:"keys"`
	Roles              map[string]*Role `json:"roles"`
}

// TimestampPayload is the signed content of timestamp.json.
type TimestampPayload struct {
	Type        string              `json:"_type"`
	SpecVersion string              `json:"spec_version"`
	Version     int64               `json:"version"`
	Expires     time.Time           `json:"expires"`
	Meta        map[string]FileInfo `json:"meta"`
}

// SnapshotPayload is the signed content of snapshot.json.
type SnapshotPayload struct {
	Type        string              `json:"_type"`
	SpecVersion string              `json:"spec_version"`
	Version     int64               `json:"version"`
	Expires     time.Time           `json:"expires"`
	Meta        map[string]FileInfo `json:"meta"`
}

// MirrorEntry names one mirror location and the content it is willing to
// serve. Only ContentFull is recognised (§3.1).
type MirrorEntry struct {
	URLBase string   `json:"urlbase"`
	Content []string `json:"content"`
}

const MirrorContentFull = "full"

// MirrorsPayload is the signed content of mirrors.json.
type MirrorsPayload struct {
	Type        string        `json:"_type"`
	SpecVersion string        `json:"spec_version"`
	Version     int64         `json:"version"`
	Expires     time.Time     `json:"expires"`
	Mirrors     []MirrorEntry `json:"mirrors"`
}

// TargetsPayload is the signed content of targets.json: a map from target
// path to the expected bytes.
type TargetsPayload struct {
	Type        string              `json:"_type"`
	SpecVersion string              `json:"spec_version"`
	Version     int64               `json:"version"`
	Expires     time.Time           `json:"expires"`
	Targets     map[string]FileInfo `json:"targets"`
}

// IsExpired implements §4.3(e): a role is valid only while its expiry is
// strictly after the reference time, so equality counts as expired.
func (p RootPayload) IsExpired(now time.Time) bool      { return !p.Expires.After(now) }
func (p TimestampPayload) IsExpired(now time.Time) bool { return !p.Expires.After(now) }
func (p SnapshotPayload) IsExpired(now time.Time) bool  { return !p.Expires.After(now) }
func (p MirrorsPayload) IsExpired(now time.Time) bool   { return !p.Expires.After(now) }
func (p TargetsPayload) IsExpired(now time.Time) bool   { return !p.Expires.After(now) }
