// Package simulator serves a fully in-memory, signed TUF repository
// over the remote.Mirror interface, so tests exercise the real
// verification and download-selection code without any network or
// filesystem access, mirroring the teacher's testutils/simulator
// package but rebuilt around this module's own data/trust types.
package simulator

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	stded25519 "crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/transport"
)

const (
	IndexUncompressedKey = "index.tar"
	IndexCompressedKey   = "index.tar.gz"
)

// envelope mirrors the wire shape data.FromBytes expects; it is
// re-declared here since data's own envelope type is unexported.
type envelope struct {
	Signed     json.RawMessage  `json:"signed"`
	Signatures []data.Signature `json:"signatures"`
}

// Simulator is a Mirror backed entirely by in-memory signed metadata.
// Each role has exactly one signing key at threshold 1, which is
// sufficient to exercise every code path this module needs to test;
// multi-key thresholds are exercised directly in package trust's own
// tests instead.
type Simulator struct {
	Now time.Time

	privKeys map[string]ed25519.PrivateKey
	roleKey  map[string]string // role name -> keyID

	Root      data.RootPayload
	Timestamp data.TimestampPayload
	Snapshot  data.SnapshotPayload
	Mirrors   data.MirrorsPayload
	Targets   data.TargetsPayload

	files map[string][]byte // "root.json" etc -> raw envelope bytes as served

	targetContent map[string][]byte
	targetOrder   []string
	indexTar      []byte

	AcceptRanges bool
	FetchLog     []string
}

// New builds a fresh repository with a safe expiry far in the future,
// no targets yet, and an index tarball holding only targets.json.
func New() *Simulator {
	s := &Simulator{
		Now:           time.Now().UTC(),
		privKeys:      map[string]ed25519.PrivateKey{},
		roleKey:       map[string]string{},
		files:         map[string][]byte{},
		targetContent: map[string][]byte{},
		AcceptRanges:  true,
	}
	expiry := s.Now.Add(365 * 24 * time.Hour)

	rootKeyID, rootPub := s.newKey()
	tsKeyID, tsPub := s.newKey()
	ssKeyID, ssPub := s.newKey()
	mirrorsKeyID, mirrorsPub := s.newKey()
	targetsKeyID, targetsPub := s.newKey()
	s.roleKey[data.ROOT] = rootKeyID
	s.roleKey[data.TIMESTAMP] = tsKeyID
	s.roleKey[data.SNAPSHOT] = ssKeyID
	s.roleKey[data.MIRRORS] = mirrorsKeyID
	s.roleKey[data.TARGETS] = targetsKeyID

	s.Root = data.RootPayload{
		Type:               data.ROOT,
		SpecVersion:        data.SpecVersion,
		ConsistentSnapshot: true,
		Version:            1,
		Expires:            expiry,
		Keys: map[string]*data.Key{
			rootKeyID:    rootPub,
			tsKeyID:      tsPub,
			ssKeyID:      ssPub,
			mirrorsKeyID: mirrorsPub,
			targetsKeyID: targetsPub,
		},
		Roles: map[string]*data.Role{
			data.ROOT:      {KeyIDs: []string{rootKeyID}, Threshold: 1},
			data.TIMESTAMP: {KeyIDs: []string{tsKeyID}, Threshold: 1},
			data.SNAPSHOT:  {KeyIDs: []string{ssKeyID}, Threshold: 1},
			data.MIRRORS:   {KeyIDs: []string{mirrorsKeyID}, Threshold: 1},
			data.TARGETS:   {KeyIDs: []string{targetsKeyID}, Threshold: 1},
		},
	}

	s.Targets = data.TargetsPayload{
		Type: data.TARGETS, SpecVersion: data.SpecVersion, Version: 1, Expires: expiry,
		Targets: map[string]data.FileInfo{},
	}

	s.Mirrors = data.MirrorsPayload{
		Type: data.MIRRORS, SpecVersion: data.SpecVersion, Version: 1, Expires: expiry,
		Mirrors: []data.MirrorEntry{{URLBase: "sim://", Content: []string{data.MirrorContentFull}}},
	}

	s.Timestamp = data.TimestampPayload{Type: data.TIMESTAMP, SpecVersion: data.SpecVersion}
	s.Snapshot = data.SnapshotPayload{Type: data.SNAPSHOT, SpecVersion: data.SpecVersion, Expires: expiry}

	s.publishAll(expiry, false)
	return s
}

func (s *Simulator) newKey() (string, *data.Key) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	// data.Key's wire representation is defined in terms of the stdlib
	// ed25519 type; the raw bytes are identical regardless of which
	// package produced them.
	key := data.KeyFromEd25519(stded25519.PublicKey(pub))
	id := key.ID()
	s.privKeys[id] = priv
	return id, key
}

// sign serializes payload with encoding/json, signs it with the role's
// key, and returns the envelope bytes ready to be served.
func sign[T data.RolePayload](s *Simulator, roleName string, payload T) []byte {
	signedBytes, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	keyID := s.roleKey[roleName]
	sig := ed25519.Sign(s.privKeys[keyID], signedBytes)
	env := envelope{
		Signed:     signedBytes,
		Signatures: []data.Signature{{KeyID: keyID, Method: "ed25519", Signature: data.HexBytes(sig)}},
	}
	raw, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return raw
}

func fileInfoOf(raw []byte) data.FileInfo {
	sum := sha256.Sum256(raw)
	return data.FileInfo{Length: int64(len(raw)), Hashes: data.Hashes{"sha256": sum[:]}}
}

// AddTarget registers a target with content under pkgPath and
// republishes targets.json, the index tarball, and the roles that
// depend on their hashes (snapshot, timestamp).
func (s *Simulator) AddTarget(pkgPath string, content []byte) {
	if _, exists := s.targetContent[pkgPath]; !exists {
		s.targetOrder = append(s.targetOrder, pkgPath)
	}
	s.targetContent[pkgPath] = content
	s.Targets.Targets[pkgPath] = fileInfoOf(content)
	s.Targets.Version++
	s.publishAll(s.Targets.Expires, true)
}

// signRoot signs the current root payload and stores it both under the
// plain repository-layout name and, since the simulated repository sets
// consistent_snapshot, under its version-prefixed name too, so
// updateRoot's `/<N>.root.json` fetch resolves the same way a real
// consistent-snapshot repository would serve it.
func (s *Simulator) signRoot() []byte {
	raw := sign[data.RootPayload](s, data.ROOT, s.Root)
	s.files["root.json"] = raw
	s.files[fmt.Sprintf("%d.root.json", s.Root.Version)] = raw
	return raw
}

// PublishRoot bumps and re-signs root.json only, leaving timestamp and
// snapshot as they were, matching how a real rotation begins.
func (s *Simulator) PublishRoot() {
	s.Root.Version++
	s.signRoot()
}

// publishAll re-signs targets, rebuilds the index, and re-signs
// snapshot/timestamp so their hashes and versions stay consistent;
// root.json and mirrors.json are signed only when not yet present. bumpSnapshot lets callers that are only touching targets
// bump the snapshot's own version too, as a real repository publish
// step would.
func (s *Simulator) publishAll(expiry time.Time, bumpSnapshot bool) {
	s.files["targets.json"] = sign[data.TargetsPayload](s, data.TARGETS, s.Targets)
	s.rebuildIndex()

	if bumpSnapshot {
		s.Snapshot.Version++
	}
	if s.files["root.json"] == nil {
		s.signRoot()
	}
	if s.files["mirrors.json"] == nil {
		s.files["mirrors.json"] = sign[data.MirrorsPayload](s, data.MIRRORS, s.Mirrors)
	}
	s.Snapshot.Meta = map[string]data.FileInfo{
		"root":               fileInfoOf(s.files["root.json"]),
		"mirrors":            fileInfoOf(s.files["mirrors.json"]),
		IndexUncompressedKey: fileInfoOf(s.indexTar),
		IndexCompressedKey:   fileInfoOf(s.gzipIndex()),
	}
	s.files["snapshot.json"] = sign[data.SnapshotPayload](s, data.SNAPSHOT, s.Snapshot)

	s.Timestamp.Version++
	s.Timestamp.Expires = expiry
	s.Timestamp.Meta = map[string]data.FileInfo{"snapshot": fileInfoOf(s.files["snapshot.json"])}
	s.files["timestamp.json"] = sign[data.TimestampPayload](s, data.TIMESTAMP, s.Timestamp)
}

// RotateTimestampKey simulates a compromised timestamp key being
// replaced: a fresh key is generated, root is bumped, and everything
// re-signed under the new keys (S4).
func (s *Simulator) RotateTimestampKey() {
	newID, newPub := s.newKey()
	s.Root.Keys[newID] = newPub
	s.Root.Roles[data.TIMESTAMP] = &data.Role{KeyIDs: []string{newID}, Threshold: 1}
	s.roleKey[data.TIMESTAMP] = newID
	s.Root.Version++
	s.signRoot()
	s.publishAll(s.Timestamp.Expires, false)
}

// RotateRootKey simulates a root role key rotation that a client
// discovers via snapshot.root's changed FileInfo rather than via a
// verification failure: the new root content is signed under the
// outgoing root key (so the client's currently trusted root can still
// verify it) before the simulator's own bookkeeping switches to
// signing future roots with the incoming key.
func (s *Simulator) RotateRootKey() {
	newID, newPub := s.newKey()
	s.Root.Keys[newID] = newPub
	s.Root.Roles[data.ROOT] = &data.Role{KeyIDs: []string{newID}, Threshold: 1}
	s.Root.Version++
	raw := sign[data.RootPayload](s, data.ROOT, s.Root)
	s.roleKey[data.ROOT] = newID
	s.files["root.json"] = raw
	s.files[fmt.Sprintf("%d.root.json", s.Root.Version)] = raw
	s.publishAll(s.Timestamp.Expires, false)
}

// rebuildIndex writes target files in stable insertion order first and
// targets.json last: targets.json's bytes change on every publish (a
// new version, a new map entry), so keeping it at the tail means a
// target added since the previous publish only appends bytes before
// it, and everything earlier in the tarball keeps the exact same
// offsets an incremental byte-range fetch depends on.
func (s *Simulator) rebuildIndex() {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	write := func(name string, content []byte) {
		hdr := &tar.Header{Name: name, Mode: 0640, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write(content); err != nil {
			panic(err)
		}
	}
	for _, path := range s.targetOrder {
		write(path, s.targetContent[path])
	}
	write("targets.json", s.files["targets.json"])
	if err := tw.Close(); err != nil {
		panic(err)
	}
	s.indexTar = buf.Bytes()
}

func (s *Simulator) gzipIndex() []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(s.indexTar); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Base implements remote.Mirror.
func (s *Simulator) Base() string { return "sim://repo" }

func (s *Simulator) Get(ctx context.Context, headers transport.RequestHeaders, uri string) (transport.ResponseHeaders, io.ReadCloser, error) {
	s.FetchLog = append(s.FetchLog, uri)
	name := trimSlash(uri)

	var content []byte
	switch {
	case name == IndexCompressedKey:
		content = s.gzipIndex()
	case name == IndexUncompressedKey:
		content = s.indexTar
	default:
		if b, ok := s.files[name]; ok {
			content = b
		} else if b, ok := s.targetContent[name]; ok {
			content = b
		} else {
			return transport.ResponseHeaders{}, nil, transport.RemoteError{URI: uri, Err: fmt.Errorf("not found: %s", name)}
		}
	}
	return transport.ResponseHeaders{AcceptRangesBytes: s.AcceptRanges}, io.NopCloser(bytes.NewReader(content)), nil
}

func (s *Simulator) GetRange(ctx context.Context, headers transport.RequestHeaders, uri string, from, to int64) (transport.ResponseHeaders, io.ReadCloser, error) {
	s.FetchLog = append(s.FetchLog, fmt.Sprintf("%s[%d:%d]", uri, from, to))
	name := trimSlash(uri)
	if name != IndexUncompressedKey {
		return transport.ResponseHeaders{}, nil, transport.RemoteError{URI: uri, Err: fmt.Errorf("range not supported for %s", name)}
	}
	if to > int64(len(s.indexTar)) {
		to = int64(len(s.indexTar))
	}
	if from < 0 || from > to {
		return transport.ResponseHeaders{}, nil, transport.RemoteError{URI: uri, Err: fmt.Errorf("invalid range")}
	}
	return transport.ResponseHeaders{AcceptRangesBytes: s.AcceptRanges}, io.NopCloser(bytes.NewReader(s.indexTar[from:to])), nil
}

func trimSlash(uri string) string {
	for len(uri) > 0 && uri[0] == '/' {
		uri = uri[1:]
	}
	return uri
}
