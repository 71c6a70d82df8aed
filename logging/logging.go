// Package logging provides the ambient logging surface shared by every
// other package: a small interface shaped like go-logr's, with a
// discarding default and a logrus-backed implementation wired through
// go-logr/stdr so callers can plug in structured logging without this
// module depending on any particular logging framework's types.
package logging

import (
	stdlog "log"
	"strings"

	"github.com/go-logr/stdr"
	"github.com/sirupsen/logrus"
)

// Logger partially implements go-logr/logr's interface: Info for
// non-error events, Error for failures, both taking alternating
// key/value pairs.
type Logger interface {
	Info(msg string, kv ...any)
	Error(err error, msg string, kv ...any)
}

// DiscardLogger drops everything. It is the package default so that
// importing this module never produces output unless a caller opts in.
type DiscardLogger struct{}

func (DiscardLogger) Info(msg string, kv ...any)             {}
func (DiscardLogger) Error(err error, msg string, kv ...any) {}

var log Logger = DiscardLogger{}

// SetLogger installs the logger used by every package in this module.
func SetLogger(logger Logger) { log = logger }

// GetLogger returns the currently installed logger.
func GetLogger() Logger { return log }

// stdrAdapter narrows a go-logr/stdr logger down to this package's
// Logger interface.
type stdrAdapter struct {
	base interface {
		Info(msg string, kv ...any)
		Error(err error, msg string, kv ...any)
	}
}

// NewLogrusLogger returns a Logger backed by base, routed through
// go-logr/stdr so the rest of this module speaks the narrow Logger
// interface while output formatting and level filtering stay logrus's
// job.
func NewLogrusLogger(base *logrus.Logger) Logger {
	std := stdlog.New(logrusWriter{base: base}, "", 0)
	return stdrAdapter{base: stdr.New(std)}
}

// logrusWriter hands each line the standard logger emits to base
// synchronously, so the entry is written before the logging call returns.
type logrusWriter struct{ base *logrus.Logger }

func (w logrusWriter) Write(p []byte) (int, error) {
	w.base.Info(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func (s stdrAdapter) Info(msg string, kv ...any)             { s.base.Info(msg, kv...) }
func (s stdrAdapter) Error(err error, msg string, kv ...any) { s.base.Error(err, msg, kv...) }
