package logging

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonlabs/learnd/internal/config"
)

func TestNew_JSONOutput(t *testing.T) {
	// The json format must produce structured lines with the configured level.
	var buf bytes.Buffer
	orig := stdout
	stdout = func() io.Writer { return &buf }
	defer func() { stdout = orig }()

	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	logger.Info("hello", zap.String("component", "test"))
	_ = logger.Sync()

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestNew_DebugFiltered(t *testing.T) {
	// Messages below the configured level are dropped.
	var buf bytes.Buffer
	orig := stdout
	stdout = func() io.Writer { return &buf }
	defer func() { stdout = orig }()

	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("too quiet")
	logger.Warn("loud enough")
	_ = logger.Sync()

	assert.NotContains(t, buf.String(), "too quiet")
	assert.Contains(t, buf.String(), "loud enough")
}

func TestNew_Rejections(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose", Format: "json"})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
