package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opentuf/idxclient/data"
)

func snapshotWith(uncompressed, compressed data.FileInfo) data.SnapshotPayload {
	return data.SnapshotPayload{Meta: map[string]data.FileInfo{
		"index.tar":    uncompressed,
		"index.tar.gz": compressed,
	}}
}

func TestSelectIndexDownloadMethodTable(t *testing.T) {
	uncompressed := data.FileInfo{Length: 10000}
	compressed := data.FileInfo{Length: 4000}
	snapshot := snapshotWith(uncompressed, compressed)

	cases := []struct {
		name                 string
		acceptRanges         bool
		hasLocal             bool
		localSize            int64
		forced               bool
		wantMethod           DownloadMethod
		wantReason           CannotUpdateReason
	}{
		{"forced compressed always wins", true, true, 9000, true, CannotUpdate, ReasonForcedCompressed},
		{"ranges never observed", false, true, 9000, false, CannotUpdate, ReasonRangesNotSupported},
		{"no local copy", true, false, 0, false, CannotUpdate, ReasonNoLocalCopy},
		{"local copy far behind: full download cheaper", true, true, 100, false, CannotUpdate, ReasonNotEnoughSavings},
		{"local copy nearly current: incremental cheaper", true, true, 9990, false, Update, ReasonNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			plan := SelectIndexDownloadMethod(snapshot, "index.tar", "index.tar.gz", c.acceptRanges, c.localSize, c.hasLocal, 1024, c.forced)
			assert.Equal(t, c.wantMethod, plan.Method)
			assert.Equal(t, c.wantReason, plan.Reason)
		})
	}
}

func TestSelectIndexDownloadMethodMissingFileInfo(t *testing.T) {
	snapshot := data.SnapshotPayload{Meta: map[string]data.FileInfo{"index.tar.gz": {Length: 100}}}
	plan := SelectIndexDownloadMethod(snapshot, "index.tar", "index.tar.gz", true, 50, true, 10, false)
	assert.Equal(t, CannotUpdate, plan.Method)
	assert.Equal(t, ReasonMissingFileInfo, plan.Reason)
}

func TestSelectIndexDownloadMethodRangeMath(t *testing.T) {
	uncompressed := data.FileInfo{Length: 10000}
	compressed := data.FileInfo{Length: 4000}
	snapshot := snapshotWith(uncompressed, compressed)

	plan := SelectIndexDownloadMethod(snapshot, "index.tar", "index.tar.gz", true, 8000, true, 1024, false)
	assert.Equal(t, Update, plan.Method)
	assert.Equal(t, int64(8000-1024), plan.RangeFrom)
	assert.Equal(t, int64(10000), plan.RangeTo)
}

func TestSelectIndexDownloadMethodTrailerLargerThanLocal(t *testing.T) {
	uncompressed := data.FileInfo{Length: 10000}
	compressed := data.FileInfo{Length: 9999}
	snapshot := snapshotWith(uncompressed, compressed)

	plan := SelectIndexDownloadMethod(snapshot, "index.tar", "index.tar.gz", true, 500, true, 1024, false)
	assert.Equal(t, Update, plan.Method)
	assert.Equal(t, int64(0), plan.RangeFrom)
}
