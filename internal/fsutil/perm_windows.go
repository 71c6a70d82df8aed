package fsutil

import "os"

// EnsurePermission is a no-op on Windows, where the POSIX permission
// bits this checks don't have a compatible meaning.
func EnsurePermission(fi os.FileInfo, perm os.FileMode) error {
	return nil
}
