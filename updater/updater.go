// Package updater implements C7, the TUF client workflow: the
// check-for-updates state machine, root rotation, and package
// download, wiring together crypto, trust, cache, transport and remote.
package updater

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/opentuf/idxclient/cache"
	"github.com/opentuf/idxclient/config"
	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/logging"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/transport"
	"github.com/opentuf/idxclient/trust"
)

// Result is check_for_updates' outcome once it returns without error.
type Result int

const (
	NoUpdates Result = iota
	HasUpdates
)

func (r Result) String() string {
	if r == HasUpdates {
		return "HasUpdates"
	}
	return "NoUpdates"
}

// rootUpdated is an internal control-flow signal (§7): it must never
// escape CheckForUpdates as a returned error.
type rootUpdated struct{}

func (rootUpdated) Error() string { return "updater: root updated, retrying" }

// Engine holds the mutable trusted-root pointer and the cache/transport
// collaborators for one repository.
type Engine struct {
	cache                *cache.Store
	layout               config.RepositoryLayout
	cfg                  *config.EngineConfig
	root                 *data.Metadata[data.RootPayload]
	indexUncompressedKey string
	indexCompressedKey   string
	// acceptRanges records whether any mirror has ever advertised
	// byte-range support; treated as monotonic (§5).
	acceptRanges bool
	// httpFetcher builds the HTTPMirror wrappers used for mirrors.json
	// entries, which name only a URL base and must be turned into
	// Mirrors before they can be ordered alongside the out-of-band list.
	httpFetcher transport.Fetcher
	// trustedMirrors is the last-verified mirrors.json content,
	// converted to Mirrors (§4.6). Prepended after the out-of-band
	// mirrors passed to every call, per OrderMirrors.
	trustedMirrors []remote.Mirror
}

// New builds an engine around an already-bootstrapped cache: root.json
// must already be present and trusted. If a previously-cached and
// verified mirrors.json is present, its entries seed the engine's
// trusted mirror list immediately, so a restarted process does not
// need a fresh snapshot fetch before mirrors.json's mirrors apply.
func New(store *cache.Store, layout config.RepositoryLayout, cfg *config.EngineConfig, indexUncompressedKey, indexCompressedKey string) (*Engine, error) {
	raw, ok, err := store.ReadCached(store.RootPath())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("updater: no trusted root in cache; bootstrap first")
	}
	root, err := data.FromBytes[data.RootPayload](raw, data.ROOT, store.RootPath())
	if err != nil {
		return nil, fmt.Errorf("updater: cached root is corrupt: %w", err)
	}
	e := &Engine{
		cache:                store,
		layout:               layout,
		cfg:                  cfg,
		root:                 root,
		indexUncompressedKey: indexUncompressedKey,
		indexCompressedKey:   indexCompressedKey,
		httpFetcher:          transport.NewHTTPFetcher(nil),
	}
	if mraw, ok, err := store.ReadCached(store.MirrorsPath()); err == nil && ok {
		if m, err := data.FromBytes[data.MirrorsPayload](mraw, data.MIRRORS, store.MirrorsPath()); err == nil {
			e.trustedMirrors = remote.MirrorsFromEntries(m.Signed.Mirrors, e.httpFetcher)
		}
	}
	return e, nil
}

// mirrorList returns outOfBand ordered ahead of the engine's currently
// trusted mirrors.json entries (§4.6), de-duplicated by base URL.
func (e *Engine) mirrorList(outOfBand []remote.Mirror) []remote.Mirror {
	if len(e.trustedMirrors) == 0 {
		return outOfBand
	}
	return remote.OrderMirrors(outOfBand, e.trustedMirrors)
}

// TrustedRoot returns the engine's currently trusted root payload.
func (e *Engine) TrustedRoot() data.RootPayload { return e.root.Signed }

// CheckForUpdates implements §4.7.1. mirrors is the out-of-band mirror
// list; each fetch runs its own WithMirror failover over that list
// (ordered by the trusted mirrors once known), so no single mirror is
// pinned across the fetches of one call.
func (e *Engine) CheckForUpdates(ctx context.Context, mirrors []remote.Mirror, now *time.Time) (Result, error) {
	var history []trust.HistoryEntry

	for i := 0; i < e.cfg.MaxIterations; i++ {
		isRetry := i > 0
		result, err := e.attempt(ctx, mirrors, now, isRetry)
		if err == nil {
			return result, nil
		}
		if _, ok := err.(rootUpdated); ok {
			history = append(history, trust.HistoryEntry{RootUpdated: true})
			continue
		}
		verr, ok := err.(trust.VerificationError)
		if !ok {
			return 0, err
		}
		history = append(history, trust.HistoryEntry{Err: verr})
		// The retry itself is the AfterVerificationError transition, so
		// it always bypasses a caching intermediary (§4.5, §7).
		if _, uerr := e.updateRoot(ctx, e.mirrorList(mirrors), reasonAfterVerificationError, nil, now, true); uerr != nil {
			return 0, uerr
		}
	}
	return 0, trust.ErrLoop{History: history}
}

// attempt runs one iteration's try body (§4.7.1). A verification
// failure or a completed root rotation is reported via error; the
// caller distinguishes the two by type. isRetry marks every iteration
// after the first, per §4.5's is_retry flag, so every fetch it makes
// asks the transport to bypass any caching intermediary.
func (e *Engine) attempt(ctx context.Context, outOfBand []remote.Mirror, now *time.Time, isRetry bool) (Result, error) {
	mirrors := e.mirrorList(outOfBand)

	oldTimestamp, haveOldTS, err := e.readCachedTimestamp()
	if err != nil {
		return 0, err
	}
	oldSnapshot, haveOldSS, err := e.readCachedSnapshot()
	if err != nil {
		return 0, err
	}

	var tsMinVersion *int64
	if haveOldTS {
		v := oldTimestamp.Signed.Version
		tsMinVersion = &v
	}
	newTS, err := fetchAndVerifyRole[data.TimestampPayload](ctx, e, mirrors, e.layout.TimestampRole, e.cache.TimestampPath(), e.cfg.TimestampMaxLength, now, tsMinVersion, isRetry,
		func(p data.TimestampPayload) int64 { return p.Version },
		func(p data.TimestampPayload) time.Time { return p.Expires })
	if err != nil {
		return 0, err
	}
	logging.GetLogger().Info("Downloading", "role", "timestamp")

	newSnapInfo := newTS.verified.Payload().Meta["snapshot"]
	if haveOldTS {
		oldSnapInfo := oldTimestamp.Signed.Meta["snapshot"]
		if newSnapInfo.Equal(oldSnapInfo) {
			if err := e.cache.CacheRemoteFile(newTS.raw, cache.CacheAsTimestamp); err != nil {
				return 0, err
			}
			return NoUpdates, nil
		}
	}

	var ssMinVersion *int64
	if haveOldSS {
		v := oldSnapshot.Signed.Version
		ssMinVersion = &v
	}
	newSS, err := fetchAndVerifyRole[data.SnapshotPayload](ctx, e, mirrors, e.layout.SnapshotRole, e.cache.SnapshotPath(), e.cfg.SnapshotMaxLength, now, ssMinVersion, isRetry,
		func(p data.SnapshotPayload) int64 { return p.Version },
		func(p data.SnapshotPayload) time.Time { return p.Expires })
	if err != nil {
		return 0, err
	}
	if err := newSnapInfo.VerifyLengthHashes(newSS.raw); err != nil {
		return 0, trust.ErrFileInfoMismatch{Path: e.cache.SnapshotPath()}
	}
	logging.GetLogger().Info("Downloading", "role", "snapshot")

	newRootInfo, haveRootInfo := newSS.verified.Payload().Meta["root"]
	rootChanged := false
	if haveOldSS {
		oldRootInfo, haveOldRootInfo := oldSnapshot.Signed.Meta["root"]
		if haveRootInfo && haveOldRootInfo && !newRootInfo.Equal(oldRootInfo) {
			rootChanged = true
		}
	}
	// Absence of a cached snapshot means root is considered unchanged
	// (§4.7.1), so rootChanged stays false when !haveOldSS.

	if rootChanged {
		info := newRootInfo
		if _, err := e.updateRoot(ctx, mirrors, reasonNewRootInSnapshot, &info, now, isRetry); err != nil {
			return 0, err
		}
		return 0, rootUpdated{}
	}

	var mirrorsFetched *fetchedRole[data.MirrorsPayload]
	newMirrorsInfo, haveMirrorsInfo := newSS.verified.Payload().Meta["mirrors"]
	mirrorsChanged := !haveOldSS
	if haveOldSS && haveMirrorsInfo {
		oldMirrorsInfo, haveOldMirrorsInfo := oldSnapshot.Signed.Meta["mirrors"]
		mirrorsChanged = !haveOldMirrorsInfo || !newMirrorsInfo.Equal(oldMirrorsInfo)
	}
	if mirrorsChanged {
		v, err := fetchAndVerifyRole[data.MirrorsPayload](ctx, e, mirrors, e.layout.MirrorsRole, e.cache.MirrorsPath(), e.cfg.MirrorsMaxLength, now, nil, isRetry,
			func(p data.MirrorsPayload) int64 { return p.Version },
			func(p data.MirrorsPayload) time.Time { return p.Expires })
		if err != nil {
			return 0, err
		}
		if haveMirrorsInfo {
			if err := newMirrorsInfo.VerifyLengthHashes(v.raw); err != nil {
				return 0, trust.ErrFileInfoMismatch{Path: e.cache.MirrorsPath()}
			}
		}
		mirrorsFetched = &v
		// The freshly verified entries take effect immediately, ahead of
		// the outer CacheRemoteFile below, so a rootChanged retry within
		// this same CheckForUpdates call already benefits from them.
		e.trustedMirrors = remote.MirrorsFromEntries(v.verified.Payload().Mirrors, e.httpFetcher)
		logging.GetLogger().Info("Downloading", "role", "mirrors")
	}

	indexChanged := !haveOldSS
	newIdxInfo, haveNewIdx := newSS.verified.Payload().Meta[e.indexCompressedKey]
	if haveOldSS && haveNewIdx {
		oldIdxInfo, haveOldIdx := oldSnapshot.Signed.Meta[e.indexCompressedKey]
		indexChanged = !haveOldIdx || !newIdxInfo.Equal(oldIdxInfo)
	}

	var indexContent []byte
	if indexChanged {
		indexContent, err = e.updateIndex(ctx, mirrors, newSS.verified.Payload(), isRetry)
		if err != nil {
			return 0, err
		}
		logging.GetLogger().Info("Downloading", "role", "index")
	}

	if err := e.cache.CacheRemoteFile(newTS.raw, cache.CacheAsTimestamp); err != nil {
		return 0, err
	}
	if err := e.cache.CacheRemoteFile(newSS.raw, cache.CacheAsSnapshot); err != nil {
		return 0, err
	}
	if mirrorsFetched != nil {
		if err := e.cache.CacheRemoteFile(mirrorsFetched.raw, cache.CacheAsMirrors); err != nil {
			return 0, err
		}
	}
	if indexContent != nil {
		if err := e.cache.CacheRemoteFile(indexContent, cache.CacheIndex); err != nil {
			return 0, err
		}
	}

	return HasUpdates, nil
}

func (e *Engine) readCachedTimestamp() (*data.Metadata[data.TimestampPayload], bool, error) {
	raw, ok, err := e.cache.ReadCached(e.cache.TimestampPath())
	if err != nil || !ok {
		return nil, false, err
	}
	m, err := data.FromBytes[data.TimestampPayload](raw, data.TIMESTAMP, e.cache.TimestampPath())
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (e *Engine) readCachedSnapshot() (*data.Metadata[data.SnapshotPayload], bool, error) {
	raw, ok, err := e.cache.ReadCached(e.cache.SnapshotPath())
	if err != nil || !ok {
		return nil, false, err
	}
	m, err := data.FromBytes[data.SnapshotPayload](raw, data.SNAPSHOT, e.cache.SnapshotPath())
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// fetchedRole bundles a verified payload with the exact envelope bytes
// it was parsed from, since the cache must persist the full
// signed+signatures envelope, not just the inner Metadata.RawSigned
// bytes used for verification (§3.4).
type fetchedRole[T data.RolePayload] struct {
	verified trust.Trusted[T]
	raw      []byte
}

// fetchAndVerifyRole downloads roleName whole from the pinned mirror and
// verifies it against the engine's trusted root (§4.3, §4.6
// NeverUpdated). It is a free function, not a method, because Go
// methods cannot introduce their own type parameters. isRetry sets
// MaxAge0 so a retried fetch bypasses any caching intermediary (§4.5).
func fetchAndVerifyRole[T data.RolePayload](ctx context.Context, e *Engine, mirrors []remote.Mirror, uriName, cachePath string, maxLen int64, now *time.Time, minVersion *int64, isRetry bool, version func(T) int64, expires func(T) time.Time) (fetchedRole[T], error) {
	var zero fetchedRole[T]
	var raw []byte

	headers := transport.RequestHeaders{NoTransform: true, MaxAge0: isRetry}
	err := remote.WithMirror(ctx, mirrors, func(ctx context.Context, m remote.Mirror) error {
		_, body, err := m.Get(ctx, headers, "/"+uriName+".json")
		if err != nil {
			return err
		}
		defer body.Close()
		bounded := transport.NewBoundedReader(body, maxLen)
		b, err := io.ReadAll(bounded)
		if err != nil {
			return trust.ClassifyReadError(uriName, err)
		}
		raw = b
		return nil
	})
	if err != nil {
		return zero, err
	}

	verified, err := trust.VerifyRole[T](e.root, uriName, cachePath, raw, minVersion, now, version, expires)
	if err != nil {
		return zero, err
	}
	return fetchedRole[T]{verified: verified, raw: raw}, nil
}

type updateRootReason int

const (
	reasonNewRootInSnapshot updateRootReason = iota
	reasonAfterVerificationError
)
