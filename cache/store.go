// Package cache implements C4: the persistent store of validated
// metadata and the index tarball, including the tar-index sidecar and
// the atomic-rename discipline that keeps a half-written file from ever
// being visible under its published name.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opentuf/idxclient/config"
	"github.com/opentuf/idxclient/internal/atomicfile"
	"github.com/opentuf/idxclient/internal/fsutil"
	"github.com/opentuf/idxclient/logging"
)

// Disposition tells CacheRemoteFile what to do with a downloaded temp
// file (§4.4).
type Disposition int

const (
	DontCache Disposition = iota
	CacheAsRoot
	CacheAsTimestamp
	CacheAsSnapshot
	CacheAsMirrors
	CacheIndex
)

// Store is a directory-backed cache. It never holds file content in
// memory beyond what a single operation needs.
type Store struct {
	dir    string
	layout config.CacheLayout
}

// cacheDirPerm is the permission bits a new cache directory is created
// with.
const cacheDirPerm = 0750

// cacheDirMaxPerm is the loosest mode an existing cache directory may
// have on open (§4.4): group- and world-writable bits would let another
// local user tamper with cached metadata between verifications, so they
// are rejected; read and search bits are tolerated.
const cacheDirMaxPerm = 0755

// New opens (creating if necessary) a cache rooted at dir, rejecting a
// pre-existing directory that is group- or world-writable.
func New(dir string, layout config.CacheLayout) (*Store, error) {
	if err := os.MkdirAll(dir, cacheDirPerm); err != nil {
		return nil, err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsurePermission(fi, cacheDirMaxPerm); err != nil {
		return nil, fmt.Errorf("cache: %s: %w", dir, err)
	}
	return &Store{dir: dir, layout: layout}, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// GetCached returns the path to name if it exists, or "" if not.
func (s *Store) GetCached(name string) (string, bool) {
	p := s.path(name)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// ReadCached returns the bytes of a cached role file, or nil, false if
// absent.
func (s *Store) ReadCached(name string) ([]byte, bool, error) {
	p, ok := s.GetCached(name)
	if !ok {
		return nil, false, nil
	}
	b, err := os.ReadFile(p)
	return b, true, err
}

// RootPath, TimestampPath, SnapshotPath, MirrorsPath, IndexPath return
// the cache-relative role file names.
func (s *Store) RootPath() string      { return s.layout.RootFile }
func (s *Store) TimestampPath() string { return s.layout.TimestampFile }
func (s *Store) SnapshotPath() string  { return s.layout.SnapshotFile }
func (s *Store) MirrorsPath() string   { return s.layout.MirrorsFile }
func (s *Store) IndexPath() string     { return s.layout.IndexTarball }

// GetFromIndex resolves pathInsideTar via the tar-index sidecar. If the
// sidecar cannot be loaded, it is rebuilt once and the lookup retried;
// a second failure is fatal (§4.4).
func (s *Store) GetFromIndex(pathInsideTar string) (io.ReadCloser, error) {
	tarPath := s.path(s.layout.IndexTarball)
	sidecarPath := s.path(s.layout.IndexSidecar)

	if _, err := os.Stat(tarPath); err != nil {
		return nil, fmt.Errorf("cache: no local index tarball: %w", err)
	}

	entries, err := loadSidecar(sidecarPath)
	if err != nil {
		logging.GetLogger().Info("rebuilding tar index sidecar", "reason", err.Error())
		entries, err = buildSidecar(tarPath, sidecarPath)
		if err != nil {
			return nil, fmt.Errorf("cache: rebuilding tar index: %w", err)
		}
	}

	entry, found := findEntry(entries, pathInsideTar)
	if !found {
		// The sidecar may be stale relative to a tarball replaced
		// out-of-band; rebuild once more before giving up.
		entries, err = buildSidecar(tarPath, sidecarPath)
		if err != nil {
			return nil, fmt.Errorf("cache: rebuilding tar index: %w", err)
		}
		entry, found = findEntry(entries, pathInsideTar)
		if !found {
			return nil, os.ErrNotExist
		}
	}

	return openIndexed(tarPath, entry)
}

func findEntry(entries []tarIndexEntry, name string) (tarIndexEntry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return tarIndexEntry{}, false
}

// CacheRemoteFile atomically installs content under the name dictated
// by disposition. CacheIndex additionally rebuilds the tar-index
// sidecar in the same critical section (§4.4).
func (s *Store) CacheRemoteFile(content []byte, disposition Disposition) error {
	var name string
	switch disposition {
	case DontCache:
		return nil
	case CacheAsRoot:
		name = s.layout.RootFile
	case CacheAsTimestamp:
		name = s.layout.TimestampFile
	case CacheAsSnapshot:
		name = s.layout.SnapshotFile
	case CacheAsMirrors:
		name = s.layout.MirrorsFile
	case CacheIndex:
		name = s.layout.IndexTarball
	default:
		return fmt.Errorf("cache: unknown disposition %d", disposition)
	}

	if err := atomicfile.Write(s.path(name), content, 0640); err != nil {
		return err
	}

	if disposition == CacheIndex {
		if _, err := buildSidecar(s.path(name), s.path(s.layout.IndexSidecar)); err != nil {
			return fmt.Errorf("cache: rebuilding tar index after install: %w", err)
		}
	}
	return nil
}

// ClearCache deletes the timestamp and snapshot files, used after a
// root rotation completes (§4.7.2, §4.4).
func (s *Store) ClearCache() error {
	for _, name := range []string{s.layout.TimestampFile, s.layout.SnapshotFile} {
		if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
