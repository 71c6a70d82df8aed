// Package config collects the numeric ceilings and layout choices that
// the updater and cache enforce, mirroring the teacher's
// metadata/config package but extended with the mirrors role and the
// incremental-index trailer length this module adds.
package config

// EngineConfig bounds every value the update engine treats as untrusted
// until it has been checked: response sizes and how many iterations
// check_for_updates is allowed before giving up.
type EngineConfig struct {
	// MaxIterations bounds check_for_updates's retry loop (§4.7.1).
	MaxIterations int

	// MaxRootRotations is not read by the engine: update_root fetches at
	// most one newer root version per call, and the number of rotations
	// within one check_for_updates call is bounded only by MaxIterations.
	MaxRootRotations int64

	RootMaxLength      int64
	TimestampMaxLength int64
	SnapshotMaxLength  int64
	MirrorsMaxLength   int64
	TargetsMaxLength   int64

	// IndexTrailerLength is the number of trailing bytes always
	// re-fetched on an incremental index download, to cover the tar
	// end-of-archive zero padding that a naive byte-range request would
	// otherwise leave stale (§4.6).
	IndexTrailerLength int64

	// RootRetryMaxLength bounds a root re-download that has no FileInfo
	// to check against, i.e. the retry-after-verification-error path
	// (§4.7.2), which is looser than RootMaxLength since it must
	// tolerate a legitimately larger re-signed root.
	RootRetryMaxLength int64
}

// New returns the default configuration.
func New() *EngineConfig {
	return &EngineConfig{
		MaxIterations:      5,
		MaxRootRotations:   32,
		RootMaxLength:      512000,
		TimestampMaxLength: 16384,
		SnapshotMaxLength:  2000000,
		MirrorsMaxLength:   16384,
		TargetsMaxLength:   5000000,
		IndexTrailerLength: 1024,
		RootRetryMaxLength: 2 * 1024 * 1024,
	}
}

// RepositoryLayout names the on-the-wire paths for the four
// always-fetched roles. Target and index paths are not listed here
// since they are computed from snapshot/mirrors content, not fixed.
type RepositoryLayout struct {
	RootRole      string
	TimestampRole string
	SnapshotRole  string
	MirrorsRole   string
}

// DefaultRepositoryLayout matches the wire format's plain role names.
func DefaultRepositoryLayout() RepositoryLayout {
	return RepositoryLayout{
		RootRole:      "root",
		TimestampRole: "timestamp",
		SnapshotRole:  "snapshot",
		MirrorsRole:   "mirrors",
	}
}

// CacheLayout names the on-disk file names the local cache uses. Actual
// directory placement is a caller concern; this module only fixes the
// file names within whatever directory it is given.
type CacheLayout struct {
	RootFile      string
	TimestampFile string
	SnapshotFile  string
	MirrorsFile   string
	IndexTarball  string
	IndexSidecar  string
}

// DefaultCacheLayout is the file-naming convention this module uses.
func DefaultCacheLayout() CacheLayout {
	return CacheLayout{
		RootFile:      "root.json",
		TimestampFile: "timestamp.json",
		SnapshotFile:  "snapshot.json",
		MirrorsFile:   "mirrors.json",
		IndexTarball:  "index.tar",
		IndexSidecar:  "index.tar.idx",
	}
}
