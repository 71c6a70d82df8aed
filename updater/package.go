package updater

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/transport"
	"github.com/opentuf/idxclient/trust"
)

// DownloadPackage implements §4.7.3: it trusts targets.json out of the
// already-verified local index tarball, resolves pkgPath, and downloads
// the package tarball from the pinned mirror. The engine never caches
// the package itself; callback receives a path to the verified bytes
// and is responsible for relocating them (an os.Rename, matching §9's
// acquire-tempfile-then-promote shape), since a plain io.Reader would
// only let the caller stream-copy.
//
// If destPath is non-empty and already holds bytes matching the
// target's FileInfo, the network round trip is skipped entirely and
// callback is invoked with destPath directly — the
// `FindCachedTarget`-style local-freshness check from
// `theupdateframework-go-tuf/metadata/updater/updater.go`.
func (e *Engine) DownloadPackage(ctx context.Context, outOfBand []remote.Mirror, targetsPathInTar, pkgPath, destPath string, callback func(path string) error) error {
	mirrors := e.mirrorList(outOfBand)

	targetsReader, err := e.cache.GetFromIndex(targetsPathInTar)
	if err != nil {
		return err
	}
	defer targetsReader.Close()

	raw, err := io.ReadAll(targetsReader)
	if err != nil {
		return err
	}

	// The index tarball itself was already validated against the
	// snapshot's FileInfo when it was cached, so its contents,
	// including targets.json, are trusted as a local file: no further
	// signature check is performed here, only a shape check.
	var probe struct {
		Signed json.RawMessage `json:"signed"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return trust.ErrDeserialization{Path: targetsPathInTar, Detail: err.Error()}
	}
	var targets data.TargetsPayload
	if err := json.Unmarshal(probe.Signed, &targets); err != nil {
		return trust.ErrDeserialization{Path: targetsPathInTar, Detail: err.Error()}
	}

	info, ok := targets.Targets[pkgPath]
	if !ok {
		return trust.ErrUnknownTarget{Path: pkgPath}
	}

	if destPath != "" {
		if findCachedTarget(destPath, info) {
			return callback(destPath)
		}
	}

	// The package is streamed straight to a temp file rather than
	// buffered in memory (§4.7.3, §5): the file is unlinked on every
	// exit path that doesn't relocate it first.
	tmp, err := os.CreateTemp("", "idxclient-pkg-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	err = remote.WithMirror(ctx, mirrors, func(ctx context.Context, m remote.Mirror) error {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := tmp.Truncate(0); err != nil {
			return err
		}
		_, body, err := m.Get(ctx, transport.RequestHeaders{NoTransform: true}, "/"+pkgPath)
		if err != nil {
			return err
		}
		defer body.Close()
		bound := info.Length
		if bound == 0 {
			bound = e.cfg.TargetsMaxLength
		}
		if _, copyErr := io.Copy(tmp, transport.NewBoundedReader(body, bound)); copyErr != nil {
			return trust.ClassifyReadError(pkgPath, copyErr)
		}
		return nil
	})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	content, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}
	if err := info.VerifyLengthHashes(content); err != nil {
		return trust.ErrFileInfoMismatch{Path: pkgPath}
	}

	return callback(tmpPath)
}

// findCachedTarget reports whether path already holds bytes matching
// info, mirroring the teacher's FindCachedTarget: a hash/length match
// on an existing local file makes a fresh download unnecessary.
func findCachedTarget(path string, info data.FileInfo) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return info.VerifyLengthHashes(content) == nil
}
