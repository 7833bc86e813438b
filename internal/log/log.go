// Package log provides the application's logging setup.
//
// Loggers are injected, not global: each component receives a
// *slog.Logger via its constructor and adds context with With().
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is an alias for *slog.Logger, the dependency components accept.
type Logger = *slog.Logger

// Config defines logger options.
type Config struct {
	// Level is the minimum level to emit. Default: slog.LevelInfo.
	Level slog.Level

	// JSON switches output from text to JSON.
	JSON bool

	// AddSource attaches source file positions to entries.
	AddSource bool
}

// New creates a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Tests use this to
// capture output in a buffer.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// NewNop creates a logger that discards everything. Test-only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
