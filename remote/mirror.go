// Package remote implements C6: download-method selection, mirror
// ordering and failover, and the S3 and HTTP mirror backends.
package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/transport"
)

// Mirror is one place a repository's files can be fetched from.
type Mirror interface {
	transport.Fetcher
	// Base returns the mirror's URL/URI base, used for logging and for
	// deduplicating mirror lists.
	Base() string
}

// HTTPMirror adapts a transport.Fetcher plus a URL base into a Mirror.
type HTTPMirror struct {
	BaseURL string
	Fetcher transport.Fetcher
}

func (m *HTTPMirror) Base() string { return m.BaseURL }

func (m *HTTPMirror) Get(ctx context.Context, headers transport.RequestHeaders, uri string) (transport.ResponseHeaders, io.ReadCloser, error) {
	return m.Fetcher.Get(ctx, headers, m.BaseURL+uri)
}

func (m *HTTPMirror) GetRange(ctx context.Context, headers transport.RequestHeaders, uri string, from, to int64) (transport.ResponseHeaders, io.ReadCloser, error) {
	return m.Fetcher.GetRange(ctx, headers, m.BaseURL+uri, from, to)
}

// OrderMirrors implements §4.6's mirror ordering: out-of-band mirrors
// first, then the trusted mirrors.json entries, de-duplicated by Base
// while preserving first occurrence.
func OrderMirrors(outOfBand, trusted []Mirror) []Mirror {
	seen := map[string]bool{}
	var ordered []Mirror
	for _, group := range [][]Mirror{outOfBand, trusted} {
		for _, m := range group {
			if seen[m.Base()] {
				continue
			}
			seen[m.Base()] = true
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// MirrorsFromEntries converts mirrors.json's trusted entries into
// Mirrors, keeping only those willing to serve full content
// (§3.1's MirrorContentFull) and skipping the rest rather than
// treating a partial-content entry as usable.
func MirrorsFromEntries(entries []data.MirrorEntry, fetcher transport.Fetcher) []Mirror {
	var out []Mirror
	for _, entry := range entries {
		full := false
		for _, c := range entry.Content {
			if c == data.MirrorContentFull {
				full = true
				break
			}
		}
		if !full {
			continue
		}
		out = append(out, &HTTPMirror{BaseURL: entry.URLBase, Fetcher: fetcher})
	}
	return out
}

// WithMirror pins exactly one mirror for the duration of fn, trying
// mirrors in order and falling through to the next on any RemoteError;
// only the final mirror's error is returned (§4.6, §5).
func WithMirror(ctx context.Context, mirrors []Mirror, fn func(ctx context.Context, m Mirror) error) error {
	if len(mirrors) == 0 {
		return fmt.Errorf("remote: no mirrors configured")
	}
	var lastErr error
	for _, m := range mirrors {
		err := fn(ctx, m)
		if err == nil {
			return nil
		}
		var remoteErr transport.RemoteError
		if !isRemoteError(err, &remoteErr) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func isRemoteError(err error, target *transport.RemoteError) bool {
	if re, ok := err.(transport.RemoteError); ok {
		*target = re
		return true
	}
	return false
}
