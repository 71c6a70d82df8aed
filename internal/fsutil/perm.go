//go:build !windows
// +build !windows

package fsutil

import (
	"io/fs"
	"os"
)

// EnsurePermission checks that fi's mode bits are a subset of perm,
// rejecting a cache directory that some other process left group- or
// world-writable.
func EnsurePermission(fi os.FileInfo, perm os.FileMode) error {
	mode := fi.Mode() & fs.ModePerm
	mask := ^perm
	if (mode & mask) != 0 {
		return ErrPermission
	}
	return nil
}
