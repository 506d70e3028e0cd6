package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithTraceID(context.Background(), "trace-123")
	logger.WithContext(ctx).WithAttribute("Colour").Info().Str("source", "web").Msg("attribute extracted")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "part-extractor", entry["service"])
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "Colour", entry["attribute"])
	assert.Equal(t, "web", entry["source"])
	assert.Equal(t, "attribute extracted", entry["message"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
	logger := Nop()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}
