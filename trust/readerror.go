package trust

import (
	"errors"

	"github.com/opentuf/idxclient/transport"
)

// ClassifyReadError distinguishes a bound-exceeded body read from any
// other transport failure. A bound breach is a VerificationError that
// must feed the check_for_updates retry loop (§4.5, §7); anything else
// is ordinary mirror-failover material and stays a RemoteError.
func ClassifyReadError(path string, err error) error {
	var tooLarge transport.ErrFileTooLarge
	if errors.As(err, &tooLarge) {
		return ErrFileTooLarge{Path: path}
	}
	return transport.RemoteError{URI: path, Err: err}
}
