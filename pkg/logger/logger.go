// Package logger builds the process-wide slog logger.
//
// Two destinations: a human-readable text stream on stderr for info-level
// operational events, and an optional rotating JSON file that also captures
// debug detail. A broken file destination degrades to console-only instead
// of failing startup.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration with environment variable support.
type Config struct {
	// Level is the minimum level: debug, info, warning or error.
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// File is the rotating log file path. Empty disables file logging.
	File string `env:"LOG_FILE" envDefault:"mailgate.log"`
	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `env:"LOG_FILE_MAX_SIZE_MB" envDefault:"10"`
	// MaxBackups is how many rotated files are retained.
	MaxBackups int `env:"LOG_FILE_MAX_BACKUPS" envDefault:"5"`
}

// New creates a logger from configuration.
// The console handler never logs below info; the file handler follows the
// configured level down to debug.
func New(cfg Config) *slog.Logger {
	level := ParseLevel(cfg.Level)

	consoleLevel := level
	if consoleLevel < slog.LevelInfo {
		consoleLevel = slog.LevelInfo
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: consoleLevel}),
	}

	if cfg.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		handlers = append(handlers,
			slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: level}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(fanoutHandler(handlers))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
// Accepts the common aliases ("warn"/"warning") case-insensitively.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
