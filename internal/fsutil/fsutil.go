// Package fsutil holds small filesystem helpers shared by the cache
// layer, grounded on the teacher's internal/fsutil package.
package fsutil

import "errors"

var ErrPermission = errors.New("fsutil: unexpected permission bits")
