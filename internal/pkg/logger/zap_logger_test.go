package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCoreLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewCoreLogger(core)

	l.Warn("STORAGE", "Failed to save session", map[string]interface{}{"key": "tms_w1_tms_chat_session"})
	l.Error("WIDGET", "boom", map[string]interface{}{"error": errors.New("x")})
	l.Debug("WIDGET", "no details", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "Failed to save session", entries[0].Message)
	assert.Equal(t, "STORAGE", entries[0].ContextMap()["module"])
	assert.Contains(t, entries[1].ContextMap(), "error_ref")
	assert.Equal(t, map[string]interface{}{}, entries[2].ContextMap()["details"])
}

func TestIsolatedLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.log")
	l := NewIsolatedLogger(path)
	l.Info("TEST", "hello", nil)
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("TEST", "ignored", nil)
	assert.NoError(t, l.Sync())
}
