package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug text", "debug", "text"},
		{"info json", "info", "json"},
		{"warn text", "warn", "text"},
		{"error json", "error", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			if logger == nil {
				t.Fatal("New() returned nil")
			}
			if logger.Logger == nil {
				t.Fatal("New() returned logger with nil slog.Logger")
			}
		})
	}
}

func TestNewWithConfig_NoFile(t *testing.T) {
	l, closeFn, err := NewWithConfig(Config{Level: "info", Format: "text"})
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}
	if l == nil || closeFn == nil {
		t.Fatal("NewWithConfig() returned nil logger or close func")
	}
	if err := closeFn(); err != nil {
		t.Errorf("close() error = %v", err)
	}
}

func TestNewWithConfig_Output(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := NewWithConfig(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	l.Info("to buffer")
	if !strings.Contains(buf.String(), `"msg":"to buffer"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewWithConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "siemql.log")

	l, closeFn, err := NewWithConfig(Config{
		Level:      "debug",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}

	l.Info("rotated message", "k", "v")
	if err := closeFn(); err != nil {
		t.Fatalf("close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"rotated message"`) {
		t.Errorf("log file should contain message, got: %s", data)
	}
}

func TestLogger_WithContext(t *testing.T) {
	logger := New("info", "text")

	ctx := context.Background()
	if l := logger.WithContext(ctx); l != logger {
		t.Error("WithContext() without request ID should return the same logger")
	}

	ctx = context.WithValue(ctx, RequestIDKey, "req-123")
	if l := logger.WithContext(ctx); l == nil || l == logger {
		t.Fatal("WithContext() with request_id should return a derived logger")
	}
}

func TestLogger_WithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	logger.WithSession("01HZX").Info("hello")

	if !strings.Contains(buf.String(), "session=01HZX") {
		t.Errorf("expected session attribute, got: %s", buf.String())
	}
}

func TestLogger_WithError(t *testing.T) {
	logger := New("info", "text")

	l := logger.WithError(context.DeadlineExceeded)
	if l == nil {
		t.Fatal("WithError() returned nil")
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	Discard().Info("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_OutputFormat(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := &Logger{Logger: slog.New(newHandler(&buf, "info", "json"))}

		logger.Info("test message")

		if !strings.Contains(buf.String(), `"msg":"test message"`) {
			t.Errorf("JSON output should contain msg field, got: %s", buf.String())
		}
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := &Logger{Logger: slog.New(newHandler(&buf, "info", "text"))}

		logger.Info("test message")

		if !strings.Contains(buf.String(), "test message") {
			t.Errorf("Text output should contain message, got: %s", buf.String())
		}
	})
}
