package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsentry/mailgate/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
		{"  Info ", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	log := logger.New(logger.Config{Level: "debug"})
	require.NotNil(t, log)

	// Console handler floors at info even when the level is debug.
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}

func TestNew_FileCapturesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailgate.log")
	log := logger.New(logger.Config{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1})

	log.Debug("debug line", slog.String("k", "v"))
	log.Info("info line")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "DEBUG", first["level"])
	assert.Equal(t, "debug line", first["msg"])
	assert.Equal(t, "v", first["k"])
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, "error", logger.Error(errors.New("boom")).Key)

	assert.Equal(t, slog.Attr{}, logger.RequestID(""))
	assert.Equal(t, "request_id", logger.RequestID("abc").Key)

	assert.Equal(t, "component", logger.Component("mailer").Key)
}
