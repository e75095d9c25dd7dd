package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsoleLoggerPrefixesLevel(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	logger, err := New(Options{Writer: out})
	require.NoError(t, err)

	logger.Info("Downloading audio...")
	logger.Error("Failed to download audio", zap.String("url", "https://example.com/v"))
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "[INFO] Downloading audio..."), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "[ERROR] Failed to download audio"), lines[1])
	require.Contains(t, lines[1], "https://example.com/v")
}

func TestVerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	logger, err := New(Options{Verbose: true, Writer: out})
	require.NoError(t, err)

	logger.Debug("running engine")
	require.Contains(t, out.String(), "[DEBUG] running engine")
}

func TestJSONLogger(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	logger, err := New(Options{JSON: true, Writer: out})
	require.NoError(t, err)

	logger.Info("transcript saved", zap.String("path", "demo.txt"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	require.Equal(t, "transcript saved", entry["msg"])
	require.Equal(t, "demo.txt", entry["path"])
	require.Equal(t, "info", entry["level"])
}
