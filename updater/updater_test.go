package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentuf/idxclient/bootstrap"
	"github.com/opentuf/idxclient/cache"
	"github.com/opentuf/idxclient/config"
	"github.com/opentuf/idxclient/internal/simulator"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/trust"
)

func newTestEngine(t *testing.T, sim *simulator.Simulator) (*Engine, *cache.Store) {
	t.Helper()
	store, err := cache.New(t.TempDir(), config.DefaultCacheLayout())
	require.NoError(t, err)
	cfg := config.New()
	mirrors := []remote.Mirror{sim}

	require.NoError(t, bootstrap.Bootstrap(context.Background(), store, cfg, mirrors, nil, 0))

	engine, err := New(store, config.DefaultRepositoryLayout(), cfg, simulator.IndexUncompressedKey, simulator.IndexCompressedKey)
	require.NoError(t, err)
	return engine, store
}

func TestCheckForUpdatesInitialUpdate(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	result, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)
	assert.Equal(t, HasUpdates, result)
}

func TestCheckForUpdatesNoUpdatesOnlyRefetchesTimestamp(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	sim.FetchLog = nil
	result, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)
	assert.Equal(t, NoUpdates, result)
	assert.Equal(t, []string{"/timestamp.json"}, sim.FetchLog)
}

func TestCheckForUpdatesDetectsNewTarget(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	sim.AddTarget("pkg/foo-1.0.0.tar.gz", []byte("package contents"))

	result, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)
	assert.Equal(t, HasUpdates, result)
}

func TestCheckForUpdatesFollowsKeyRollover(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	sim.RotateTimestampKey()

	result, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)
	assert.Equal(t, HasUpdates, result)
	assert.Equal(t, int64(2), engine.TrustedRoot().Version)
}

func TestCheckForUpdatesFollowsRootKeyRotationViaSnapshot(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	sim.RotateRootKey()
	sim.FetchLog = nil

	result, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)
	assert.Equal(t, HasUpdates, result)
	assert.Equal(t, int64(2), engine.TrustedRoot().Version)

	sawVersionedRootFetch := false
	for _, entry := range sim.FetchLog {
		if entry == "/2.root.json" {
			sawVersionedRootFetch = true
		}
	}
	assert.True(t, sawVersionedRootFetch, "expected the consistent-snapshot version-prefixed root fetch, got %v", sim.FetchLog)
}

func TestCheckForUpdatesPopulatesTrustedMirrorsFromMirrorsJSON(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	require.Len(t, engine.trustedMirrors, 1)
	assert.Equal(t, "sim://", engine.trustedMirrors[0].Base())
}

func TestCheckForUpdatesUsesIncrementalIndexOnSecondFetch(t *testing.T) {
	sim := simulator.New()
	// A target already present before the client's first sync keeps its
	// tarball offset stable once a second target is appended, which is
	// what makes the follow-up byte-range fetch valid.
	sim.AddTarget("pkg/foo-1.0.0.tar.gz", []byte("a small package, already published"))
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	sim.AddTarget("pkg/bar-1.0.0.tar.gz", []byte("a second package"))
	sim.FetchLog = nil

	result, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)
	assert.Equal(t, HasUpdates, result)

	sawRangeFetch := false
	sawFullIndexFetch := false
	for _, entry := range sim.FetchLog {
		if entry == "/index.tar.gz" {
			sawFullIndexFetch = true
		}
		if len(entry) > len("/index.tar[") && entry[:len("/index.tar[")] == "/index.tar[" {
			sawRangeFetch = true
		}
	}
	assert.True(t, sawRangeFetch, "expected an incremental byte-range fetch, got %v", sim.FetchLog)
	assert.False(t, sawFullIndexFetch, "did not expect a full compressed index re-download, got %v", sim.FetchLog)
}

func TestCheckForUpdatesRejectsExpiredTimestamp(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}

	future := sim.Now.Add(400 * 24 * time.Hour)
	_, err := engine.CheckForUpdates(context.Background(), mirrors, &future)
	require.Error(t, err)
}

func TestDownloadPackageRoundTrip(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("pkg/foo-1.0.0.tar.gz", []byte("package contents"))
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	var got []byte
	err = engine.DownloadPackage(context.Background(), mirrors, "targets.json", "pkg/foo-1.0.0.tar.gz", "", func(path string) error {
		b, readErr := os.ReadFile(path)
		got = b
		return readErr
	})
	require.NoError(t, err)
	assert.Equal(t, "package contents", string(got))
}

func TestDownloadPackageSkipsNetworkWhenDestAlreadyFresh(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("pkg/foo-1.0.0.tar.gz", []byte("package contents"))
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	destPath := filepath.Join(t.TempDir(), "foo-1.0.0.tar.gz")
	require.NoError(t, os.WriteFile(destPath, []byte("package contents"), 0o600))

	sim.FetchLog = nil
	var gotPath string
	err = engine.DownloadPackage(context.Background(), mirrors, "targets.json", "pkg/foo-1.0.0.tar.gz", destPath, func(path string) error {
		gotPath = path
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, destPath, gotPath)
	assert.Empty(t, sim.FetchLog, "expected no network fetch when destPath already matches the target's FileInfo")
}

func TestDownloadPackageRejectsUnknownTarget(t *testing.T) {
	sim := simulator.New()
	engine, _ := newTestEngine(t, sim)
	mirrors := []remote.Mirror{sim}
	now := sim.Now

	_, err := engine.CheckForUpdates(context.Background(), mirrors, &now)
	require.NoError(t, err)

	err = engine.DownloadPackage(context.Background(), mirrors, "targets.json", "pkg/does-not-exist.tar.gz", "", func(path string) error {
		return nil
	})
	require.Error(t, err)
	var unknown trust.ErrUnknownTarget
	assert.ErrorAs(t, err, &unknown)
}
