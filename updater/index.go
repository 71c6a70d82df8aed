package updater

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/cpuguy83/tar2go"

	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/transport"
	"github.com/opentuf/idxclient/trust"
)

// updateIndex implements the index-tarball half of §4.6: prefer an
// incremental byte-range fetch when eligible. A verification failure on
// that path is returned to the caller on the first check_for_updates
// attempt, so its loop retries with isRetry set; on a retry it degrades
// to a full compressed download instead (§4.6, §7's incremental-index
// propagation rule). It returns the uncompressed tar bytes ready for
// cache.CacheIndex.
func (e *Engine) updateIndex(ctx context.Context, mirrors []remote.Mirror, snapshot data.SnapshotPayload, isRetry bool) ([]byte, error) {
	localPath, hasLocal := e.cache.GetCached(e.cache.IndexPath())
	var localSize int64
	if hasLocal {
		if b, err := statSize(localPath); err == nil {
			localSize = b
		}
	}

	forcedCompressed := false
	for attemptNum := 0; attemptNum < 2; attemptNum++ {
		plan := remote.SelectIndexDownloadMethod(snapshot, e.indexUncompressedKey, e.indexCompressedKey, e.acceptRanges, localSize, hasLocal, e.cfg.IndexTrailerLength, forcedCompressed)

		if plan.Method == remote.Update {
			content, err := e.fetchIncrementalIndex(ctx, mirrors, plan, localPath, isRetry)
			if err == nil {
				return content, nil
			}
			if _, ok := err.(trust.VerificationError); !ok {
				return nil, err
			}
			// On the first check_for_updates attempt the failure is
			// returned so the outer loop retries with MaxAge0; on a
			// retry it degrades to a full download (§4.6, §7).
			if !isRetry {
				return nil, err
			}
			forcedCompressed = true
			continue
		}

		return e.fetchFullIndex(ctx, mirrors, plan, isRetry)
	}
	return e.fetchFullIndex(ctx, mirrors, remote.SelectIndexDownloadMethod(snapshot, e.indexUncompressedKey, e.indexCompressedKey, e.acceptRanges, localSize, hasLocal, e.cfg.IndexTrailerLength, true), isRetry)
}

func (e *Engine) fetchIncrementalIndex(ctx context.Context, mirrors []remote.Mirror, plan remote.IndexUpdatePlan, localPath string, isRetry bool) ([]byte, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prefix, err := io.ReadAll(io.NewSectionReader(f, 0, plan.RangeFrom))
	if err != nil {
		return nil, err
	}

	var suffix []byte
	headers := transport.RequestHeaders{NoTransform: true, MaxAge0: isRetry}
	err = remote.WithMirror(ctx, mirrors, func(ctx context.Context, m remote.Mirror) error {
		respHeaders, body, err := m.GetRange(ctx, headers, "/"+e.indexUncompressedKey, plan.RangeFrom, plan.RangeTo)
		if err != nil {
			return err
		}
		defer body.Close()
		e.observeAcceptRanges(respHeaders)
		b, err := io.ReadAll(transport.NewBoundedReader(body, plan.RangeTo-plan.RangeFrom))
		if err != nil {
			return trust.ClassifyReadError(e.indexUncompressedKey, err)
		}
		suffix = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	content := append(prefix, suffix...)
	if err := plan.UncompressedInfo.VerifyLengthHashes(content); err != nil {
		return nil, trust.ErrFileInfoMismatch{Path: e.indexUncompressedKey}
	}
	if err := validateTarball(content); err != nil {
		return nil, trust.ErrDeserialization{Path: e.indexUncompressedKey, Detail: err.Error()}
	}
	return content, nil
}

func (e *Engine) fetchFullIndex(ctx context.Context, mirrors []remote.Mirror, plan remote.IndexUpdatePlan, isRetry bool) ([]byte, error) {
	var compressed []byte
	headers := transport.RequestHeaders{NoTransform: true, MaxAge0: isRetry}
	err := remote.WithMirror(ctx, mirrors, func(ctx context.Context, m remote.Mirror) error {
		respHeaders, body, err := m.Get(ctx, headers, "/"+e.indexCompressedKey)
		if err != nil {
			return err
		}
		defer body.Close()
		e.observeAcceptRanges(respHeaders)
		b, err := io.ReadAll(transport.NewBoundedReader(body, plan.CompressedInfo.Length))
		if err != nil {
			return trust.ClassifyReadError(e.indexCompressedKey, err)
		}
		compressed = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := plan.CompressedInfo.VerifyLengthHashes(compressed); err != nil {
		return nil, trust.ErrFileInfoMismatch{Path: e.indexCompressedKey}
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, trust.ErrDeserialization{Path: e.indexCompressedKey, Detail: err.Error()}
	}
	defer gz.Close()
	content, err := io.ReadAll(gz)
	if err != nil {
		return nil, trust.ErrDeserialization{Path: e.indexCompressedKey, Detail: err.Error()}
	}

	if plan.UncompressedInfo.Length != 0 {
		if err := plan.UncompressedInfo.VerifyLengthHashes(content); err != nil {
			return nil, trust.ErrFileInfoMismatch{Path: e.indexUncompressedKey}
		}
	}
	return content, nil
}

func (e *Engine) observeAcceptRanges(h transport.ResponseHeaders) {
	if h.AcceptRangesBytes {
		e.acceptRanges = true
	}
}

func statSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// validateTarball is a cheap structural sanity check used before a
// freshly assembled incremental tarball is cached: an unreadable tar
// entry means the byte range math went wrong and the download must be
// treated as fatally corrupt rather than silently cached (§4.4). It
// opens every entry through a tar2go.Index; the cache layer itself
// reads entries by their recorded offsets rather than through tar2go.
func validateTarball(content []byte) error {
	idx := tar2go.NewIndex(bytes.NewReader(content))
	return fs.WalkDir(idx.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rc, err := idx.FS().Open(path)
		if err != nil {
			return err
		}
		return rc.Close()
	})
}
