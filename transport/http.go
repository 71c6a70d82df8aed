package transport

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPFetcher is the default Fetcher, backed by net/http. It decodes a
// gzip-encoded body itself so the engine always sees the decompressed
// representation (§4.5).
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient
// if client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) do(ctx context.Context, headers RequestHeaders, uri string, rangeHeader string) (ResponseHeaders, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return ResponseHeaders{}, nil, RemoteError{URI: uri, Err: err}
	}
	if headers.MaxAge0 {
		req.Header.Set("Cache-Control", "max-age=0")
	}
	if headers.NoTransform {
		req.Header.Set("Cache-Control", req.Header.Get("Cache-Control")+", no-transform")
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	} else if headers.ContentCompression != "" {
		req.Header.Set("Accept-Encoding", headers.ContentCompression)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return ResponseHeaders{}, nil, RemoteError{URI: uri, Err: err}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return ResponseHeaders{}, nil, RemoteError{URI: uri, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	respHeaders := ResponseHeaders{
		AcceptRangesBytes: resp.Header.Get("Accept-Ranges") == "bytes",
	}

	body := resp.Body
	if enc := resp.Header.Get("Content-Encoding"); enc == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			body.Close()
			return ResponseHeaders{}, nil, RemoteError{URI: uri, Err: err}
		}
		respHeaders.ContentCompression = "gzip"
		return respHeaders, &gzipReadCloser{gz: gz, underlying: body}, nil
	}
	return respHeaders, body, nil
}

func (f *HTTPFetcher) Get(ctx context.Context, headers RequestHeaders, uri string) (ResponseHeaders, io.ReadCloser, error) {
	return f.do(ctx, headers, uri, "")
}

func (f *HTTPFetcher) GetRange(ctx context.Context, headers RequestHeaders, uri string, from, to int64) (ResponseHeaders, io.ReadCloser, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", from, to-1)
	headers.ContentCompression = ""
	return f.do(ctx, headers, uri, rangeHeader)
}

// gzipReadCloser closes both the gzip reader and the underlying HTTP
// body so neither the connection nor the decompressor leaks.
type gzipReadCloser struct {
	gz         *gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	err1 := g.gz.Close()
	err2 := g.underlying.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
