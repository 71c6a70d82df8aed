package idxclient

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentuf/idxclient/internal/simulator"
	"github.com/opentuf/idxclient/remote"
	"github.com/opentuf/idxclient/updater"
)

func TestClientBootstrapAndCheckForUpdates(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("pkg/foo-1.0.0.tar.gz", []byte("package contents"))

	c, err := New(t.TempDir(), nil, simulator.IndexUncompressedKey, simulator.IndexCompressedKey)
	require.NoError(t, err)
	c.mirrors = []remote.Mirror{sim}

	require.NoError(t, c.Bootstrap(context.Background(), nil, 0))

	now := sim.Now
	result, err := c.CheckForUpdates(context.Background(), &now)
	require.NoError(t, err)
	assert.Equal(t, updater.HasUpdates, result)

	var got []byte
	err = c.DownloadPackage(context.Background(), "targets.json", "pkg/foo-1.0.0.tar.gz", "", func(path string) error {
		b, readErr := os.ReadFile(path)
		got = b
		return readErr
	})
	require.NoError(t, err)
	assert.Equal(t, "package contents", string(got))
}

func TestClientOpenReusesBootstrappedCache(t *testing.T) {
	sim := simulator.New()
	dir := t.TempDir()

	c, err := New(dir, nil, simulator.IndexUncompressedKey, simulator.IndexCompressedKey)
	require.NoError(t, err)
	c.mirrors = []remote.Mirror{sim}
	require.NoError(t, c.Bootstrap(context.Background(), nil, 0))

	c2, err := New(dir, nil, simulator.IndexUncompressedKey, simulator.IndexCompressedKey)
	require.NoError(t, err)
	c2.mirrors = []remote.Mirror{sim}
	require.NoError(t, c2.Open())

	now := sim.Now
	result, err := c2.CheckForUpdates(context.Background(), &now)
	require.NoError(t, err)
	assert.Equal(t, updater.HasUpdates, result)
}
