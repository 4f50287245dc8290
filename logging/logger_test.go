package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel) (*RelayLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: buf})
	return logger, buf
}

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warn"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("info"))
	assert.Equal(t, LogLevelInfo, ParseLevel("garbage"))
}

func TestRelayLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelWarn)

	logger.Info("should be dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRelayLogger_ContextualAttributes(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.WithComponent("coordinator").WithThread("t-1", "trace-1").Info("running")

	entry := decodeLast(t, buf)
	assert.Equal(t, "coordinator", entry["component"])
	assert.Equal(t, "t-1", entry["thread_id"])
	assert.Equal(t, "trace-1", entry["trace_id"])
}

func TestRelayLogger_LogCancellation(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.LogCancellation("t-1", "trace-1", 12, []string{"on_chain_start", "on_chat_model_stream"}, "client_disconnect_or_timeout")

	entry := decodeLast(t, buf)
	assert.Equal(t, "Run cancelled", entry["msg"])
	assert.Equal(t, "t-1", entry["thread_id"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.EqualValues(t, 12, entry["events_received"])
	assert.Equal(t, "client_disconnect_or_timeout", entry["reason"])
	assert.Len(t, entry["event_kinds"], 2)
}

func TestRelayLogger_LogRaceSuppressedIsDebug(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.LogRaceSuppressed("t-1", "trace-1", 120*time.Millisecond, "context canceled")
	assert.Empty(t, buf.String(), "suppression records stay below info level")

	debugLogger, debugBuf := newBufferedLogger(LogLevelDebug)
	debugLogger.LogRaceSuppressed("t-1", "trace-1", 120*time.Millisecond, "context canceled")

	entry := decodeLast(t, debugBuf)
	assert.Equal(t, "Post-completion race suppressed", entry["msg"])
	assert.Equal(t, "context canceled", entry["cause"])
}
