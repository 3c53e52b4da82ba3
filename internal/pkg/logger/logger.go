// Package logger provides structured logging utilities.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

// RequestIDKey is the context key carrying the request ID.
const RequestIDKey contextKey = "request_id"

// Logger wraps slog.Logger with additional context.
type Logger struct {
	*slog.Logger
}

// Config describes where and how to log.
type Config struct {
	Level      string
	Format     string
	File       string    // empty = console only
	Output     io.Writer // console writer, nil = stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a new logger with the specified level and format.
func New(level, format string) *Logger {
	return &Logger{
		Logger: slog.New(newHandler(os.Stdout, level, format)),
	}
}

// NewWithConfig creates a logger that additionally writes to a rotated file
// when cfg.File is set. The returned func closes the file.
func NewWithConfig(cfg Config) (*Logger, func() error, error) {
	console := cfg.Output
	if console == nil {
		console = os.Stdout
	}
	if cfg.File == "" {
		return &Logger{Logger: slog.New(newHandler(console, cfg.Level, cfg.Format))}, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, err
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
		LocalTime:  true,
	}

	w := io.MultiWriter(console, lj)
	return &Logger{Logger: slog.New(newHandler(w, cfg.Level, cfg.Format))}, lj.Close, nil
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// WithContext returns a logger with context values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := ctx.Value(RequestIDKey); reqID != nil {
		return &Logger{
			Logger: l.With("request_id", reqID),
		}
	}
	return l
}

// WithSession returns a logger tagged with a session ID.
func (l *Logger) WithSession(id string) *Logger {
	return &Logger{
		Logger: l.With("session", id),
	}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err.Error()),
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the default logger.
func Default() *Logger {
	return New("info", "text")
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
