package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		level, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, level, tt.in)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestSetupTextHandlerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "warn", Output: &buf}))
	t.Cleanup(func() { _ = Setup(Options{Level: "info", Output: &buf}) })

	slog.Info("quiet")
	slog.Warn("loud", "component", "store")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "component=store")
}

func TestSetupJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "info", JSON: true, Output: &buf}))
	t.Cleanup(func() { _ = Setup(Options{Level: "info", Output: &buf}) })

	slog.Info("summary stored", "summary_id", "abc123")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "summary stored", line["msg"])
	assert.Equal(t, "abc123", line["summary_id"])
}

func TestSetupRejectsBadLevel(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Setup(Options{Level: "loudest", Output: &buf}))
}
