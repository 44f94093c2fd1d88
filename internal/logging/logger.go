// Package logging sets up structured logging for quickterm.
//
// Records go to a rotating file when a log directory is configured and are
// discarded otherwise, so nothing is ever written over the popup itself.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used as the "component" attribute.
const (
	CompSession  = "session"
	CompDispatch = "dispatch"
	CompComplete = "complete"
	CompHistory  = "history"
	CompUI       = "ui"
)

// Config holds logging configuration.
type Config struct {
	// Dir is the directory for quickterm.log. Empty discards all records.
	Dir string

	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" (default) or "text".
	Format string

	// MaxSizeMB is the size in MB before rotation (default 5).
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default 3).
	MaxBackups int
}

var (
	globalMu     sync.RWMutex
	globalLogger *slog.Logger
	rotator      *lumberjack.Logger
)

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init installs the global logger. It may be called more than once; the
// previous file writer is closed.
func Init(cfg Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}

	if cfg.Dir == "" {
		globalLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return nil
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 5
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}

	rotator = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "quickterm.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(rotator, opts)
	} else {
		handler = slog.NewJSONHandler(rotator, opts)
	}
	globalLogger = slog.New(handler)
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	globalLogger = nil
	return err
}

// Logger returns the global logger. Safe to call before Init.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return globalLogger
}

// ForComponent returns a logger tagged with component. The handler is looked
// up at log time, so package-level loggers created before Init still reach
// the configured output.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{component: name})
}

type dynamicHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &dynamicHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{component: h.component, attrs: h.attrs, group: name}
}
