package crypto

import (
	"crypto/sha256"
	"io"
)

// HashFile streams r once, returning its length and SHA-256 digest.
// Used so that verifying a downloaded file's FileInfo never requires
// buffering it twice (§4.1).
func HashFile(r io.Reader) (length int64, sha256sum []byte, err error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, nil, err
	}
	return n, h.Sum(nil), nil
}
