// Package idxclient ties bootstrap, cache, transport, remote and
// updater together into the single facade most callers need, mirroring
// the shape of the teacher's top-level client.
package idxclient

import (
	"context"
	"time"

	"github.com/opentuf/idxclient/bootstrap"
	"github.com/opentuf/idxclient/cache"
	"github.com/opentuf/idxclient/config"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/transport"
	"github.com/opentuf/idxclient/updater"
)

// Client is the entry point a program embeds. It owns one cache
// directory and one repository's mirror list.
type Client struct {
	store   *cache.Store
	cfg     *config.EngineConfig
	layout  config.RepositoryLayout
	mirrors []remote.Mirror
	engine  *updater.Engine

	indexUncompressedKey string
	indexCompressedKey   string
	httpFetcher          transport.Fetcher
}

// Option configures New.
type Option func(*Client)

// WithFetcher overrides the default net/http fetcher used to build the
// out-of-band HTTP mirrors passed as baseURLs.
func WithFetcher(f transport.Fetcher) Option {
	return func(c *Client) { c.httpFetcher = f }
}

// New opens (or creates) a cache at dir and configures the mirrors an
// out-of-band caller trusts, in priority order.
func New(dir string, baseURLs []string, indexUncompressedKey, indexCompressedKey string, opts ...Option) (*Client, error) {
	layout := config.DefaultRepositoryLayout()
	store, err := cache.New(dir, config.DefaultCacheLayout())
	if err != nil {
		return nil, err
	}
	c := &Client{
		store:                store,
		cfg:                  config.New(),
		layout:               layout,
		indexUncompressedKey: indexUncompressedKey,
		indexCompressedKey:   indexCompressedKey,
	}
	for _, o := range opts {
		o(c)
	}
	if c.httpFetcher == nil {
		c.httpFetcher = transport.NewHTTPFetcher(nil)
	}
	for _, base := range baseURLs {
		c.mirrors = append(c.mirrors, &remote.HTTPMirror{BaseURL: base, Fetcher: c.httpFetcher})
	}
	return c, nil
}

// Bootstrap installs the initial trusted root (§4.8). Call once before
// the first CheckForUpdates.
func (c *Client) Bootstrap(ctx context.Context, trustedKeyIDs []string, threshold int) error {
	if err := bootstrap.Bootstrap(ctx, c.store, c.cfg, c.mirrors, trustedKeyIDs, threshold); err != nil {
		return err
	}
	engine, err := updater.New(c.store, c.layout, c.cfg, c.indexUncompressedKey, c.indexCompressedKey)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

// Open loads an already-bootstrapped cache without re-fetching root.
func (c *Client) Open() error {
	engine, err := updater.New(c.store, c.layout, c.cfg, c.indexUncompressedKey, c.indexCompressedKey)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

// CheckForUpdates runs the C7 state machine (§4.7.1).
func (c *Client) CheckForUpdates(ctx context.Context, now *time.Time) (updater.Result, error) {
	return c.engine.CheckForUpdates(ctx, c.mirrors, now)
}

// DownloadPackage implements §4.7.3. destPath, if non-empty, is both
// the local-freshness check location (skip the download if it already
// holds a verified copy) and the natural place for callback to
// os.Rename the downloaded temp file into once it returns a fresh one.
func (c *Client) DownloadPackage(ctx context.Context, targetsPathInTar, pkgPath, destPath string, callback func(path string) error) error {
	return c.engine.DownloadPackage(ctx, c.mirrors, targetsPathInTar, pkgPath, destPath, callback)
}
