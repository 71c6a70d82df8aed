package data

import "fmt"

// ErrMalformedJSON means the bytes handed to a role parser were not valid
// JSON at all.
type ErrMalformedJSON struct {
	Path string
	Err  error
}

func (e ErrMalformedJSON) Error() string {
	return fmt.Sprintf("%s: malformed JSON: %s", e.Path, e.Err)
}

func (e ErrMalformedJSON) Unwrap() error { return e.Err }

// ErrSchema means the JSON parsed but violated the payload schema for the
// expected role: a missing required field, wrong `_type`, or an unknown
// field in payload position (§4.2 parsing is strict).
type ErrSchema struct {
	Path string
	Msg  string
}

func (e ErrSchema) Error() string {
	return fmt.Sprintf("%s: schema violation: %s", e.Path, e.Msg)
}

// ErrUnknownKeyID means a signature referenced a keyid absent from the
// current KeyEnv (the trusted root's keys table).
type ErrUnknownKeyID struct {
	Path  string
	KeyID string
}

func (e ErrUnknownKeyID) Error() string {
	return fmt.Sprintf("%s: unknown key id %s", e.Path, e.KeyID)
}
