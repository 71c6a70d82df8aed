//go:build !windows
// +build !windows

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePermissionAcceptsSubsetOfAllowed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0750))
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.NoError(t, EnsurePermission(fi, 0750))
}

func TestEnsurePermissionRejectsExtraBits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0777))
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	err = EnsurePermission(fi, 0750)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestEnsurePermissionAcceptsMoreRestrictive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0400))
	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.NoError(t, EnsurePermission(fi, 0750))
}
