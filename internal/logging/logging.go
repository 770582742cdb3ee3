// Package logging builds the process logger: structured console output plus
// the append-only daily error file.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options configures New.
type Options struct {
	// Console receives every record at or above Level.
	Console io.Writer

	// Format is "json" (default) or "text".
	Format string

	// Level is the console level. It may be changed after New returns.
	Level *slog.LevelVar

	// Dir is where the daily error file is written. Empty disables it.
	Dir string
}

// New returns a logger writing to the console and, when opts.Dir is set, to
// the daily error file.
func New(opts Options) *slog.Logger {
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		console = slog.NewTextHandler(opts.Console, handlerOpts)
	} else {
		console = slog.NewJSONHandler(opts.Console, handlerOpts)
	}

	if opts.Dir == "" {
		return slog.New(console)
	}
	return slog.New(Fanout(console, NewDailyFile(opts.Dir, slog.LevelWarn)))
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
