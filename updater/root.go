package updater

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opentuf/idxclient/cache"
	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/transport"
	"github.com/opentuf/idxclient/trust"
)

// updateRoot implements §4.7.2. maybeInfo is non-nil exactly when the
// caller discovered the change via a new snapshot; in the retry path it
// is nil and the download is bounded by RootRetryMaxLength instead.
// isRetry sets MaxAge0 so the AfterVerificationError transition bypasses
// a caching intermediary (§4.5). It returns whether the root actually
// changed.
//
// When the trusted root declares consistent_snapshot, the candidate is
// fetched by its expected next version number (`/<N+1>.root.json`)
// instead of the plain repository-layout name, generalizing the
// teacher's `loadRoot`'s sequential `<version>.root.json` walk to a
// single-step fetch per call (the outer check-for-updates retry loop
// already re-enters updateRoot on the next iteration if more than one
// version needs to be walked). Plain `root.json` (§6's repository
// layout) is unaffected when consistent_snapshot is false.
func (e *Engine) updateRoot(ctx context.Context, mirrors []remote.Mirror, reason updateRootReason, maybeInfo *data.FileInfo, now *time.Time, isRetry bool) (bool, error) {
	maxLen := e.cfg.RootRetryMaxLength
	if maybeInfo != nil && maybeInfo.Length != 0 {
		maxLen = maybeInfo.Length
	}

	consistentSnapshot := e.root.Signed.ConsistentSnapshot
	nextVersion := e.root.Signed.Version + 1
	uri := "/root.json"
	if consistentSnapshot {
		uri = fmt.Sprintf("/%d.root.json", nextVersion)
	}

	var raw []byte
	headers := transport.RequestHeaders{NoTransform: true, MaxAge0: isRetry}
	err := remote.WithMirror(ctx, mirrors, func(ctx context.Context, m remote.Mirror) error {
		_, body, err := m.Get(ctx, headers, uri)
		if err != nil {
			return err
		}
		defer body.Close()
		b, err := io.ReadAll(transport.NewBoundedReader(body, maxLen))
		if err != nil {
			return trust.ClassifyReadError("root.json", err)
		}
		raw = b
		return nil
	})
	if err != nil {
		// Under consistent-snapshot naming, a missing next version means
		// no further rotation is available: the AfterVerificationError
		// transition's "root did not change" outcome (§4.7.2), matching
		// the teacher's loadRoot loop terminating on a 403/404 response
		// rather than treating it as a hard failure.
		if consistentSnapshot && reason == reasonAfterVerificationError && isNotFoundError(err) {
			return false, nil
		}
		return false, err
	}

	if maybeInfo != nil {
		if err := maybeInfo.VerifyLengthHashes(raw); err != nil {
			return false, trust.ErrFileInfoMismatch{Path: e.cache.RootPath()}
		}
	}

	minVersion := e.root.Signed.Version
	if consistentSnapshot {
		// The requested URI already pins an exact, strictly newer
		// version; requiring it here rejects a misconfigured mirror
		// that serves stale content under the versioned name.
		minVersion = nextVersion
	}
	verified, err := trust.VerifyRole[data.RootPayload](e.root, e.layout.RootRole, e.cache.RootPath(), raw, &minVersion, now,
		func(p data.RootPayload) int64 { return p.Version },
		func(p data.RootPayload) time.Time { return p.Expires })
	if err != nil {
		return false, err
	}

	var changed bool
	switch {
	case consistentSnapshot:
		changed = true
	case reason == reasonNewRootInSnapshot:
		changed = true
	default: // reasonAfterVerificationError, plain root.json naming
		oldRaw, ok, err := e.cache.ReadCached(e.cache.RootPath())
		if err != nil {
			return false, err
		}
		// A cryptographically-identical root re-signed with a different
		// signature set parses identically but is byte-different, so
		// this compares the full downloaded file, never a
		// re-serialization of the parsed struct.
		changed = !ok || !bytes.Equal(oldRaw, raw)
	}

	if !changed {
		return false, nil
	}

	if err := e.cache.CacheRemoteFile(raw, cache.CacheAsRoot); err != nil {
		return false, err
	}
	if err := e.cache.ClearCache(); err != nil {
		return false, err
	}
	e.root = verified.Metadata()
	return true, nil
}

// isNotFoundError reports whether err looks like a "no such file"
// response from a mirror, the same heuristic the teacher's loadRoot
// uses to know when it has walked past the latest root version
// (`metadata/updater/updater.go`).
func isNotFoundError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(msg, "403") || strings.Contains(msg, "not found")
}
