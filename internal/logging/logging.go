// Package logging configures the process-wide slog logger: colored text on
// stdout for humans, JSON on stderr for collectors.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps debug, info, warn or error (any case) to a slog.Level.
// Anything else is LevelInfo.
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

// New builds a logger writing tinted text to text and JSON to json.
func New(text, json io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewMultiHandler(
		tint.NewHandler(text, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
		slog.NewJSONHandler(json, &slog.HandlerOptions{Level: level}),
	))
}

// Setup installs the default logger at level.
func Setup(level slog.Level) *slog.Logger {
	logger := New(os.Stdout, os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}
