package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestDiscardLoggerIsDefault(t *testing.T) {
	assert.IsType(t, DiscardLogger{}, GetLogger())
}

func TestSetLoggerAndGetLogger(t *testing.T) {
	base := logrus.New()
	var buf bytes.Buffer
	base.SetOutput(&buf)
	logger := NewLogrusLogger(base)

	SetLogger(logger)
	defer SetLogger(DiscardLogger{})

	GetLogger().Info("update available", "role", "timestamp")
	GetLogger().Error(errors.New("boom"), "verification failed", "role", "root")

	assert.Contains(t, buf.String(), "update available")
	assert.Contains(t, buf.String(), "verification failed")
}

func TestDiscardLoggerNeverPanics(t *testing.T) {
	var l Logger = DiscardLogger{}
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Error(errors.New("y"), "z")
	})
}
