package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*GraphLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	cfg.AddSource = false
	return NewLogger(cfg), &buf
}

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("verbose"))
}

func TestGraphLogger_KeyValueArgs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("graph").WithThread("t1", "r1").Info("node.start", "node", "agent")

	m := decodeLast(t, buf)
	assert.Equal(t, "node.start", m["msg"])
	assert.Equal(t, "agent", m["node"])
	assert.Equal(t, "graph", m["component"])
	assert.Equal(t, "t1", m["thread_id"])
	assert.Equal(t, "r1", m["run_id"])
}

func TestGraphLogger_LevelFilter(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Equal(t, "kept", decodeLast(t, buf)["msg"])
}

func TestGraphLogger_WithContextDoesNotLeak(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)
	_ = base.WithContext("agent", "drafter")
	base.Info("plain")

	_, ok := decodeLast(t, buf)["agent"]
	assert.False(t, ok)
}

func TestGraphLogger_LogGraphExecution(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogGraphExecution("react", 4, time.Millisecond, false, errors.New("boom"))

	m := decodeLast(t, buf)
	assert.Equal(t, "Graph execution failed", m["msg"])
	assert.Equal(t, "react", m["graph"])
	assert.Equal(t, float64(4), m["step_count"])
	assert.Equal(t, "boom", m["error"])
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.Debug("graph.node.start", "node", "router")

	m := decodeLast(t, &buf)
	assert.Equal(t, "graph.node.start", m["msg"])
	assert.Equal(t, "router", m["node"])
	assert.Equal(t, "DEBUG", m["level"])
}

func TestGraphLogger_ErrorWithStack(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.ErrorWithStack(errors.New("boom"), "tool.call.panic", "tool", "divide")

	m := decodeLast(t, buf)
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "divide", m["tool"])
	assert.Contains(t, m["stack_trace"], "goroutine")
}
