// Package bootstrap implements C8: installing the initial trusted root
// from out-of-band key IDs before an Engine can be constructed.
package bootstrap

import (
	"context"
	"io"

	"github.com/opentuf/idxclient/cache"
	"github.com/opentuf/idxclient/config"
	"github.com/opentuf/idxclient/logging"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/transport"
	"github.com/opentuf/idxclient/trust"
)

// Bootstrap downloads root.json from a mirror, accepts it only if
// enough of trustedKeyIDs' signatures verify against threshold (0
// means trust-on-first-use), installs it atomically, then clears the
// cache to force a fresh check_for_updates (§4.8).
func Bootstrap(ctx context.Context, store *cache.Store, cfg *config.EngineConfig, mirrors []remote.Mirror, trustedKeyIDs []string, threshold int) error {
	var raw []byte
	err := remote.WithMirror(ctx, mirrors, func(ctx context.Context, m remote.Mirror) error {
		_, body, err := m.Get(ctx, transport.RequestHeaders{NoTransform: true}, "/root.json")
		if err != nil {
			return err
		}
		defer body.Close()
		b, err := io.ReadAll(transport.NewBoundedReader(body, cfg.RootMaxLength))
		if err != nil {
			return trust.ClassifyReadError("root.json", err)
		}
		raw = b
		return nil
	})
	if err != nil {
		return err
	}

	if threshold == 0 {
		logging.GetLogger().Info("bootstrap: installing initial root with no signature threshold (trust-on-first-use)", "keyIDs", trustedKeyIDs)
	}

	if _, err := trust.VerifyFingerprints(trustedKeyIDs, threshold, raw, store.RootPath()); err != nil {
		return err
	}

	if err := store.CacheRemoteFile(raw, cache.CacheAsRoot); err != nil {
		return err
	}

	return store.ClearCache()
}
