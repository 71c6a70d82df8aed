package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Greater(t, cfg.RootRetryMaxLength, cfg.RootMaxLength)
	assert.Greater(t, cfg.SnapshotMaxLength, cfg.TimestampMaxLength)
}

func TestDefaultRepositoryLayout(t *testing.T) {
	layout := DefaultRepositoryLayout()
	assert.Equal(t, "root", layout.RootRole)
	assert.Equal(t, "timestamp", layout.TimestampRole)
	assert.Equal(t, "snapshot", layout.SnapshotRole)
	assert.Equal(t, "mirrors", layout.MirrorsRole)
}

func TestDefaultCacheLayout(t *testing.T) {
	layout := DefaultCacheLayout()
	assert.Equal(t, "root.json", layout.RootFile)
	assert.Equal(t, "index.tar", layout.IndexTarball)
	assert.NotEqual(t, layout.IndexTarball, layout.IndexSidecar)
}
