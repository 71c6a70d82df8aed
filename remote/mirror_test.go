package remote

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentuf/idxclient/data"
	"github.com/opentuf/idxclient/transport"
)

type stubMirror struct {
	base string
	err  error
	body string
}

func (s *stubMirror) Base() string { return s.base }
func (s *stubMirror) Get(ctx context.Context, headers transport.RequestHeaders, uri string) (transport.ResponseHeaders, io.ReadCloser, error) {
	if s.err != nil {
		return transport.ResponseHeaders{}, nil, s.err
	}
	return transport.ResponseHeaders{}, io.NopCloser(nil), nil
}
func (s *stubMirror) GetRange(ctx context.Context, headers transport.RequestHeaders, uri string, from, to int64) (transport.ResponseHeaders, io.ReadCloser, error) {
	return s.Get(ctx, headers, uri)
}

func TestOrderMirrorsDedupsPreservingOrder(t *testing.T) {
	oob := []Mirror{&stubMirror{base: "a"}, &stubMirror{base: "b"}}
	trusted := []Mirror{&stubMirror{base: "b"}, &stubMirror{base: "c"}}
	ordered := OrderMirrors(oob, trusted)
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0].Base())
	assert.Equal(t, "b", ordered[1].Base())
	assert.Equal(t, "c", ordered[2].Base())
}

func TestMirrorsFromEntriesKeepsOnlyFullContent(t *testing.T) {
	entries := []data.MirrorEntry{
		{URLBase: "https://full.example", Content: []string{data.MirrorContentFull}},
		{URLBase: "https://partial.example", Content: []string{"metadata"}},
	}
	mirrors := MirrorsFromEntries(entries, transport.NewHTTPFetcher(nil))
	require.Len(t, mirrors, 1)
	assert.Equal(t, "https://full.example", mirrors[0].Base())
}

func TestWithMirrorFailsOverOnRemoteError(t *testing.T) {
	var tried []string
	mirrors := []Mirror{
		&stubMirror{base: "a", err: transport.RemoteError{URI: "x", Err: errors.New("down")}},
		&stubMirror{base: "b"},
	}
	err := WithMirror(context.Background(), mirrors, func(ctx context.Context, m Mirror) error {
		tried = append(tried, m.Base())
		_, _, err := m.Get(ctx, transport.RequestHeaders{}, "/x")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tried)
}

func TestWithMirrorPropagatesNonRemoteErrorImmediately(t *testing.T) {
	boom := errors.New("boom")
	var tried []string
	mirrors := []Mirror{
		&stubMirror{base: "a"},
		&stubMirror{base: "b"},
	}
	err := WithMirror(context.Background(), mirrors, func(ctx context.Context, m Mirror) error {
		tried = append(tried, m.Base())
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, tried)
}

func TestWithMirrorReturnsLastErrorAfterExhaustingAll(t *testing.T) {
	lastErr := transport.RemoteError{URI: "x", Err: errors.New("final")}
	mirrors := []Mirror{
		&stubMirror{base: "a", err: transport.RemoteError{URI: "x", Err: errors.New("first")}},
		&stubMirror{base: "b", err: lastErr},
	}
	err := WithMirror(context.Background(), mirrors, func(ctx context.Context, m Mirror) error {
		_, _, err := m.Get(ctx, transport.RequestHeaders{}, "/x")
		return err
	})
	assert.Equal(t, lastErr, err)
}

func TestWithMirrorNoMirrorsConfigured(t *testing.T) {
	err := WithMirror(context.Background(), nil, func(ctx context.Context, m Mirror) error { return nil })
	assert.Error(t, err)
}
