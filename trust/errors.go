// Package trust wraps raw parsed metadata with the verification claims
// that have been checked against policy, per §3.3: Raw, Verified(role),
// and Trusted. The two label types are opaque outside this package so a
// Trusted value can never be forged except through the promotion
// functions here.
package trust

import "fmt"

// VerificationError is the sum type from §7. Every variant carries the
// path of the metadata file it concerns so the engine's history log
// (§4.7.1) can report exactly what failed.
type VerificationError interface {
	error
	verificationError()
}

// ErrVerification is the umbrella every VerificationError variant's Is
// method reports membership in, so callers can test errors.Is(err,
// trust.ErrVerification{}) without enumerating every concrete variant.
type ErrVerification struct{}

func (ErrVerification) Error() string      { return "verification error" }
func (ErrVerification) verificationError() {}

type ErrExpired struct{ Path string }

func (e ErrExpired) Error() string   { return fmt.Sprintf("%s: expired", e.Path) }
func (ErrExpired) verificationError() {}

// Is reports ErrExpired as a subset of ErrVerification.
func (e ErrExpired) Is(target error) bool {
	return target == ErrVerification{} || target == ErrExpired{}
}

type ErrVersionTooLow struct {
	Path     string
	Got, Min int64
}

func (e ErrVersionTooLow) Error() string {
	return fmt.Sprintf("%s: version %d is below minimum %d", e.Path, e.Got, e.Min)
}
func (ErrVersionTooLow) verificationError() {}

// Is reports ErrVersionTooLow as a subset of ErrVerification.
func (e ErrVersionTooLow) Is(target error) bool {
	return target == ErrVerification{} || target == ErrVersionTooLow{}
}

type ErrSignaturesMissing struct {
	Path           string
	Have, Required int
}

func (e ErrSignaturesMissing) Error() string {
	return fmt.Sprintf("%s: %d of %d required signatures present", e.Path, e.Have, e.Required)
}
func (ErrSignaturesMissing) verificationError() {}

// Is reports ErrSignaturesMissing as a subset of ErrVerification.
func (e ErrSignaturesMissing) Is(target error) bool {
	return target == ErrVerification{} || target == ErrSignaturesMissing{}
}

type ErrSignaturesNotUnique struct{ Path string }

func (e ErrSignaturesNotUnique) Error() string {
	return fmt.Sprintf("%s: multiple signatures resolve to the same key", e.Path)
}
func (ErrSignaturesNotUnique) verificationError() {}

// Is reports ErrSignaturesNotUnique as a subset of ErrVerification.
func (e ErrSignaturesNotUnique) Is(target error) bool {
	return target == ErrVerification{} || target == ErrSignaturesNotUnique{}
}

type ErrUnknownKey struct{ KeyID string }

func (e ErrUnknownKey) Error() string   { return fmt.Sprintf("unknown key id %s", e.KeyID) }
func (ErrUnknownKey) verificationError() {}

// Is reports ErrUnknownKey as a subset of ErrVerification.
func (e ErrUnknownKey) Is(target error) bool {
	return target == ErrVerification{} || target == ErrUnknownKey{}
}

type ErrFileInfoMismatch struct{ Path string }

func (e ErrFileInfoMismatch) Error() string   { return fmt.Sprintf("%s: length/hash mismatch", e.Path) }
func (ErrFileInfoMismatch) verificationError() {}

// Is reports ErrFileInfoMismatch as a subset of ErrVerification.
func (e ErrFileInfoMismatch) Is(target error) bool {
	return target == ErrVerification{} || target == ErrFileInfoMismatch{}
}

type ErrFileTooLarge struct{ Path string }

func (e ErrFileTooLarge) Error() string   { return fmt.Sprintf("%s: exceeds size bound", e.Path) }
func (ErrFileTooLarge) verificationError() {}

// Is reports ErrFileTooLarge as a subset of ErrVerification.
func (e ErrFileTooLarge) Is(target error) bool {
	return target == ErrVerification{} || target == ErrFileTooLarge{}
}

type ErrDeserialization struct {
	Path   string
	Detail string
}

func (e ErrDeserialization) Error() string {
	return fmt.Sprintf("%s: deserialization error: %s", e.Path, e.Detail)
}
func (ErrDeserialization) verificationError() {}

// Is reports ErrDeserialization as a subset of ErrVerification.
func (e ErrDeserialization) Is(target error) bool {
	return target == ErrVerification{} || target == ErrDeserialization{}
}

type ErrUnknownTarget struct{ Path string }

func (e ErrUnknownTarget) Error() string   { return fmt.Sprintf("unknown target %s", e.Path) }
func (ErrUnknownTarget) verificationError() {}

// Is reports ErrUnknownTarget as a subset of ErrVerification.
func (e ErrUnknownTarget) Is(target error) bool {
	return target == ErrVerification{} || target == ErrUnknownTarget{}
}

// ErrLoop wraps the verification history accumulated over MAX_ITERATIONS
// unsuccessful attempts (§4.7.1, §7).
type ErrLoop struct {
	History []HistoryEntry
}

func (e ErrLoop) Error() string {
	return fmt.Sprintf("verification did not converge after %d attempts", len(e.History))
}
func (ErrLoop) verificationError() {}

// Is reports ErrLoop as a subset of ErrVerification. Unlike the other
// variants, ErrLoop carries a slice field and so cannot be compared
// with ==; membership is checked by type instead.
func (e ErrLoop) Is(target error) bool {
	if target == (ErrVerification{}) {
		return true
	}
	_, ok := target.(ErrLoop)
	return ok
}

// HistoryEntry records one iteration outcome of check_for_updates: either
// a root rotation happened (RootUpdated) or a VerificationError occurred.
type HistoryEntry struct {
	RootUpdated bool
	Err         VerificationError
}
