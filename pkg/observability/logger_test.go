package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test-service", &buf).WithLevel(LogLevelDebug)

	logger.Debug("Debug message", map[string]interface{}{"key": "value"})
	logger.Info("Info message", map[string]interface{}{"key": "value"})
	logger.Warn("Warn message", map[string]interface{}{"key": "value"})
	logger.Error("Error message", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4)

	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "Debug message", entries[0]["message"])
	assert.Equal(t, "value", entries[0]["key"])
	assert.Equal(t, "test-service", entries[0]["component"])
	assert.Equal(t, "info", entries[1]["level"])
	assert.Equal(t, "warn", entries[2]["level"])
	assert.Equal(t, "error", entries[3]["level"])
}

func TestLogger_MinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test-service", &buf).WithLevel(LogLevelWarn)

	logger.Debug("Debug message", nil)
	logger.Infof("Info %s", "message")
	logger.Warnf("Warn %d", 1)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Warn 1", entries[0]["message"])
}

func TestLogger_WithAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("root", &buf)

	base.With(map[string]interface{}{"batch_id": "abc"}).
		WithPrefix("writer").
		Info("inserted", map[string]interface{}{"rows": 3})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "writer", entries[0]["component"])
	assert.Equal(t, "abc", entries[0]["batch_id"])
	assert.EqualValues(t, 3, entries[0]["rows"])
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		" error ": LogLevelError,
		"fatal":   LogLevelFatal,
		"verbose": LogLevelInfo,
		"":        LogLevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLogLevel(input), input)
	}
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	assert.NotPanics(t, func() {
		logger.Info("ignored", nil)
		logger.WithPrefix("x").With(nil).Errorf("ignored %d", 1)
	})
}
