// Package logging builds the process logger. Hook output on stdout is
// parsed by the host tool, so all logging goes to stderr or a file.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"hooktrace/internal/config"
)

// New builds a logger from the logging config. An unopenable log file
// falls back to stderr rather than failing the invocation.
func New(cfg config.LoggingConfig) *slog.Logger {
	var w *os.File = os.Stderr
	if cfg.File != "" {
		if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level. Unknown names
// mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Discard returns a logger that drops everything, for callers that
// have no logging config yet.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
