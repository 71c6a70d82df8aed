// Package transport defines the byte-range fetch contract the engine
// depends on (C5) and a net/http-backed default implementation. The
// engine only ever talks to the Fetcher interface, so tests can swap in
// the in-memory simulator in package internal/simulator without
// touching real sockets.
package transport

import (
	"context"
	"fmt"
	"io"
)

// RequestHeaders are the hints the engine may attach to a fetch. Not
// every adapter can honor every hint; MaxAge0 and NoTransform are
// advisory, ContentCompression is only meaningful on a full Get.
type RequestHeaders struct {
	// MaxAge0 asks the adapter to bypass any caching layer, set after a
	// verification failure forces a retry (§4.5).
	MaxAge0 bool
	// NoTransform asks any intermediary not to alter the body.
	NoTransform bool
	// ContentCompression, if non-empty, names an encoding the caller is
	// willing to receive and have the adapter transparently decode.
	// Never set on a GetRange call.
	ContentCompression string
}

// ResponseHeaders reports what the adapter observed about the server.
type ResponseHeaders struct {
	// AcceptRangesBytes is true once the server has ever advertised
	// byte-range support; callers treat this as monotonic (§5).
	AcceptRangesBytes bool
	// ContentCompression names the encoding the adapter decoded, if any.
	ContentCompression string
}

// ErrFileTooLarge is returned by a BoundedReader once more than its
// limit has been read.
type ErrFileTooLarge struct {
	Limit int64
}

func (e ErrFileTooLarge) Error() string {
	return fmt.Sprintf("transport: response exceeded %d byte limit", e.Limit)
}

// RemoteError wraps any transport-level failure so the engine can treat
// every adapter's native error uniformly (§7).
type RemoteError struct {
	URI string
	Err error
}

func (e RemoteError) Error() string { return fmt.Sprintf("transport: %s: %v", e.URI, e.Err) }
func (e RemoteError) Unwrap() error { return e.Err }

// Fetcher is the C5 contract. Get and GetRange are synchronous and
// blocking from the caller's perspective (§5); an adapter may use
// goroutines internally but must not return before the body is fully
// available for streaming.
type Fetcher interface {
	// Get retrieves uri whole.
	Get(ctx context.Context, headers RequestHeaders, uri string) (ResponseHeaders, io.ReadCloser, error)
	// GetRange retrieves the half-open byte range [from, to) of uri's
	// decompressed representation. ContentCompression in headers is
	// ignored; ranged requests are never compressed (§4.5).
	GetRange(ctx context.Context, headers RequestHeaders, uri string, from, to int64) (ResponseHeaders, io.ReadCloser, error)
}

// BoundedReader wraps r so that reading more than limit bytes returns
// ErrFileTooLarge instead of the caller's expected content, matching
// the "abort as soon as cumulative length exceeds bound" rule (§4.5).
type BoundedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

// NewBoundedReader wraps r with a hard limit of limit bytes.
func NewBoundedReader(r io.Reader, limit int64) *BoundedReader {
	return &BoundedReader{r: r, limit: limit}
}

func (b *BoundedReader) Read(p []byte) (int, error) {
	if b.read >= b.limit {
		return 0, ErrFileTooLarge{Limit: b.limit}
	}
	if remaining := b.limit - b.read; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := b.r.Read(p)
	b.read += int64(n)
	if err == nil && b.read >= b.limit {
		// Confirm the underlying stream doesn't have more waiting; a
		// single extra byte means the true size exceeded the limit.
		var extra [1]byte
		m, extraErr := b.r.Read(extra[:])
		if m > 0 {
			return n, ErrFileTooLarge{Limit: b.limit}
		}
		if extraErr != nil {
			return n, extraErr
		}
	}
	return n, err
}
