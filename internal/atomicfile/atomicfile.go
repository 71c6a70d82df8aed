// Package atomicfile writes cache files so that a crash or concurrent
// reader never observes a partially written file: content lands in a
// sibling temp file first, then a single rename publishes it (§4.4,
// §9's atomicity note).
package atomicfile

import (
	"os"
	"path/filepath"
)

// Write atomically replaces path's content with data. perm is applied
// via os.CreateTemp then Chmod, since CreateTemp always creates its file
// with mode 0600 regardless of the requested permission.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
