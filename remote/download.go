package remote

import "github.com/opentuf/idxclient/data"

// DownloadMethod is the outcome of selecting how to fetch the index
// tarball (§4.6).
type DownloadMethod int

const (
	NeverUpdated DownloadMethod = iota
	Update
	CannotUpdate
)

// CannotUpdateReason explains a CannotUpdate verdict.
type CannotUpdateReason int

const (
	ReasonNone CannotUpdateReason = iota
	ReasonForcedCompressed
	ReasonRangesNotSupported
	ReasonMissingFileInfo
	ReasonNoLocalCopy
	ReasonNotEnoughSavings
)

func (r CannotUpdateReason) String() string {
	switch r {
	case ReasonForcedCompressed:
		return "ForcedCompressed"
	case ReasonRangesNotSupported:
		return "RangesNotSupported"
	case ReasonMissingFileInfo:
		return "MissingFileInfo"
	case ReasonNoLocalCopy:
		return "NoLocalCopy"
	case ReasonNotEnoughSavings:
		return "NotEnoughSavings"
	default:
		return "None"
	}
}

// IndexUpdatePlan is the result of SelectIndexDownloadMethod.
type IndexUpdatePlan struct {
	Method           DownloadMethod
	Reason           CannotUpdateReason
	RangeFrom        int64
	RangeTo          int64
	UncompressedInfo data.FileInfo
	CompressedInfo   data.FileInfo
}

// SelectIndexDownloadMethod implements §4.6's incremental-eligibility
// rule. forcedCompressed is true when the caller has decided it wants
// the compressed form regardless (e.g. after a prior verification
// failure degraded to full download).
func SelectIndexDownloadMethod(snapshot data.SnapshotPayload, uncompressedKey, compressedKey string, acceptRangesObserved bool, localTarSize int64, hasLocalTar bool, trailerLen int64, forcedCompressed bool) IndexUpdatePlan {
	compressedInfo, haveCompressed := snapshot.Meta[compressedKey]
	if forcedCompressed {
		return IndexUpdatePlan{Method: CannotUpdate, Reason: ReasonForcedCompressed, CompressedInfo: compressedInfo}
	}
	if !acceptRangesObserved {
		return IndexUpdatePlan{Method: CannotUpdate, Reason: ReasonRangesNotSupported, CompressedInfo: compressedInfo}
	}
	uncompressedInfo, haveUncompressed := snapshot.Meta[uncompressedKey]
	if !haveUncompressed || !haveCompressed {
		return IndexUpdatePlan{Method: CannotUpdate, Reason: ReasonMissingFileInfo, CompressedInfo: compressedInfo}
	}
	if !hasLocalTar || localTarSize == 0 {
		return IndexUpdatePlan{Method: CannotUpdate, Reason: ReasonNoLocalCopy, CompressedInfo: compressedInfo, UncompressedInfo: uncompressedInfo}
	}

	remaining := uncompressedInfo.Length - localTarSize
	if !(remaining < compressedInfo.Length) {
		return IndexUpdatePlan{Method: CannotUpdate, Reason: ReasonNotEnoughSavings, CompressedInfo: compressedInfo, UncompressedInfo: uncompressedInfo}
	}

	from := localTarSize - trailerLen
	if from < 0 {
		from = 0
	}
	return IndexUpdatePlan{
		Method:           Update,
		RangeFrom:        from,
		RangeTo:          uncompressedInfo.Length,
		UncompressedInfo: uncompressedInfo,
		CompressedInfo:   compressedInfo,
	}
}
