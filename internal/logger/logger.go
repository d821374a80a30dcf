package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger wraps slog.Logger with an optional file sink.
type Logger struct {
	*slog.Logger

	mu      sync.Mutex
	fileLog *os.File
}

// Config holds logger configuration.
type Config struct {
	Writer   io.Writer
	Format   string
	Level    slog.Level
	FilePath string
}

// New creates a logger. When cfg.FilePath is set every record is also
// appended to that file.
func New(cfg Config) (*Logger, error) {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	l := &Logger{}
	w := cfg.Writer
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.fileLog = f
		w = io.MultiWriter(cfg.Writer, f)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a string to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Close closes the log file if open
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog == nil {
		return nil
	}
	err := l.fileLog.Close()
	l.fileLog = nil
	return err
}
