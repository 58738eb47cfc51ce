// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging/correlation"
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// InitLogger builds a correlation-aware logger writing to w, installs it as
// the slog default and returns it.
// level: "debug", "info", "warn", "error" (unknown values fall back to info)
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string, w io.Writer) *slog.Logger {
	logLevel, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(correlation.NewHandler(handler))
	slog.SetDefault(logger)
	return logger
}

// OpenFile opens (creating parents) an append-only log file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// DefaultFilePath returns ~/.local/state/chatctl/chatctl.log.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "chatctl", "chatctl.log"), nil
}

// Discard returns a logger that drops everything. Handy default for
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
