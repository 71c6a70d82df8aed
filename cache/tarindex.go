package cache

import (
	"archive/tar"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// tarIndexEntry is one row of the persisted sidecar: a path inside the
// index tarball and the byte range it occupies.
type tarIndexEntry struct {
	Name   string
	Offset int64
	Size   int64
}

// loadSidecar reads the gob-encoded offset table written by
// buildSidecar. A missing or corrupt sidecar is reported as an error so
// the caller can rebuild it (§4.4: "if the tar-index cannot be loaded,
// rebuild and retry once").
func loadSidecar(path string) ([]tarIndexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var entries []tarIndexEntry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("cache: decoding tar index sidecar: %w", err)
	}
	return entries, nil
}

// buildSidecar walks tarPath's entries once with archive/tar, recording
// each regular file's exact byte offset the same way tar2go's own
// internal indexer does (`i.rdr.Seek(0, io.SeekCurrent)` right after
// tar.Next() returns the header), then persists the result so future
// opens can seek straight to the payload instead of re-scanning.
func buildSidecar(tarPath, sidecarPath string) ([]tarIndexEntry, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	sr := io.NewSectionReader(f, 0, fi.Size())
	tr := tar.NewReader(sr)

	var entries []tarIndexEntry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cache: indexing tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		offset, err := sr.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("cache: locating tar entry offset: %w", err)
		}
		entries = append(entries, tarIndexEntry{Name: hdr.Name, Offset: offset, Size: hdr.Size})
	}

	tmp := sidecarPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}
	if err := gob.NewEncoder(out).Encode(entries); err != nil {
		out.Close()
		os.Remove(tmp)
		return nil, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, sidecarPath); err != nil {
		return nil, err
	}
	return entries, nil
}

// openIndexed opens entry's payload from the index tarball at tarPath
// by seeking straight to its recorded offset, the payoff of persisting
// real offsets in the sidecar rather than re-scanning the tarball on
// every open.
func openIndexed(tarPath string, entry tarIndexEntry) (io.ReadCloser, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, err
	}
	sr := io.NewSectionReader(f, entry.Offset, entry.Size)
	return &closeBoth{Reader: sr, extra: f}, nil
}

type closeBoth struct {
	Reader io.Reader
	extra  io.Closer
}

func (c *closeBoth) Read(p []byte) (int, error) { return c.Reader.Read(p) }
func (c *closeBoth) Close() error               { return c.extra.Close() }
