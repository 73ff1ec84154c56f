// Package log provides the logging infrastructure for ragchat.
//
// It is a thin layer over log/slog:
//   - A type alias for *slog.Logger so components depend on log.Logger
//   - Factory functions driven by the config keys log_level / log_format
//   - A Nop logger for tests
//
// Loggers are injected via constructors, not globals. Components add
// context with logger.With("component", ...).
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a type alias for *slog.Logger. Using the standard library
// type directly keeps full compatibility with the slog ecosystem and
// avoids a custom interface.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Empty or unknown values fall back to "info".
	Level string

	// Format selects the handler: "text" (default) or "json".
	Format string

	// AddSource adds source file information to log entries.
	AddSource bool
}

// New creates a logger writing to os.Stderr. Stderr keeps stdout free
// for command output (ask/search print results to stdout).
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w. Useful for tests
// that capture output in a buffer.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Tests only;
// production code should use New or NewWithWriter.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a config string to a slog.Level.
// Unknown values map to slog.LevelInfo.
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
