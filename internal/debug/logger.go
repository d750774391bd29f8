// Package debug provides the process-wide structured logger used for
// statement tracing.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	// logger is the global debug logger instance
	logger *slog.Logger
	// enabled indicates if debug logging is enabled
	enabled bool
	// mu protects the logger and enabled flag
	mu sync.RWMutex
)

func init() {
	Init(false)
}

// Init writes debug logs to os.Stderr when enable is true and discards them
// otherwise. Warnings and errors are always written.
func Init(enable bool) {
	SetOutput(os.Stderr, enable)
}

// SetOutput redirects the logger. Tests use it to capture statement traces.
func SetOutput(w io.Writer, enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable

	level := slog.LevelWarn
	if enable {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Enabled returns whether debug logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Component returns a logger tagged with the emitting component. It resolves
// the global logger on every record, so a later Init or SetOutput applies to
// components built before it.
func Component(name string) *slog.Logger {
	return slog.New(componentHandler{}).With("component", name)
}

// componentHandler forwards records to the current global handler, replaying
// the attributes and groups added through With and WithGroup.
type componentHandler struct {
	wrap []func(slog.Handler) slog.Handler
}

func (h componentHandler) handler() slog.Handler {
	out := current().Handler()
	for _, fn := range h.wrap {
		out = fn(out)
	}
	return out
}

func (h componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return current().Handler().Enabled(ctx, level)
}

func (h componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler().Handle(ctx, r)
}

func (h componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h componentHandler) WithGroup(name string) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h componentHandler) with(fn func(slog.Handler) slog.Handler) slog.Handler {
	wrap := make([]func(slog.Handler) slog.Handler, len(h.wrap), len(h.wrap)+1)
	copy(wrap, h.wrap)
	return componentHandler{wrap: append(wrap, fn)}
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	return current()
}
