package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Output: &buf, JSONFormat: true})

	logger.Info("cache ready", "tier", "l1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"cache ready"`)
	assert.Contains(t, out, `"tier":"l1"`)
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Output: &buf, Level: slog.LevelWarn})

	logger.Debug("hidden")
	logger.Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), DefaultTracingConfig())
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())
	require.NoError(t, tp.Shutdown(context.Background()))
}
