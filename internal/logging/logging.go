// Package logging builds the server's structured logger.
//
// Output always goes to stderr because stdout carries the MCP protocol.
// When a log file is configured, every record is also appended there.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config captures logging options.
type Config struct {
	Level string
	File  string
}

// Logger wraps a slog.Logger together with the file it may own.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a Logger writing text records to stderr, tee'd to cfg.File
// when set.
func New(cfg Config) (*Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg Config, stderr io.Writer) (*Logger, error) {
	l := &Logger{}

	var w io.Writer = stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		w = io.MultiWriter(stderr, f)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: ParseLevel(cfg.Level) == slog.LevelDebug,
	})
	l.Logger = slog.New(handler).With("service", "glm-vision-mcp")
	return l, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values fall back
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
