package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wsroster.log")

	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("Connected", zap.String("jid", "alice@example.com/desk"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Connected", entry["msg"])
	assert.Equal(t, "alice@example.com/desk", entry["jid"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsroster.log")

	l, err := New(Config{Level: "error", File: path})
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, l.Level())

	l.SetLevel(zapcore.DebugLevel)
	l.Debug("now visible")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "now visible")
}
