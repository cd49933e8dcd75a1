package log

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// DefaultContextProvider supplies the context of logging calls that do
// not take one.
var DefaultContextProvider = context.TODO

var (
	defaultMu  sync.RWMutex
	defaultLog = Make(os.Stderr)
)

// Default returns the process-wide logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	return defaultLog
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defaultLog = l
	defaultMu.Unlock()
}

// Config modifies the process-wide logger with opts.
func Config(opts ...Option) {
	defaultMu.Lock()
	defaultLog = defaultLog.Wrap(opts...)
	defaultMu.Unlock()
}

// With returns the process-wide logger with attrs added.
func With(attrs ...slog.Attr) Logger { return Default().With(attrs...) }

// TraceContext logs at [LevelTrace] to the process-wide logger.
func TraceContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().logDepth(ctx, 3, LevelTrace, msg, attrs)
}

// DebugContext logs at [LevelDebug] to the process-wide logger.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().logDepth(ctx, 3, LevelDebug, msg, attrs)
}

// InfoContext logs at [LevelInfo] to the process-wide logger.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().logDepth(ctx, 3, LevelInfo, msg, attrs)
}

// WarnContext logs at [LevelWarn] to the process-wide logger.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().logDepth(ctx, 3, LevelWarn, msg, attrs)
}

// ErrorContext logs at [LevelError] to the process-wide logger.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().logDepth(ctx, 3, LevelError, msg, attrs)
}

// Trace logs at [LevelTrace] to the process-wide logger.
func Trace(msg string, attrs ...slog.Attr) {
	Default().logDepth(DefaultContextProvider(), 3, LevelTrace, msg, attrs)
}

// Debug logs at [LevelDebug] to the process-wide logger.
func Debug(msg string, attrs ...slog.Attr) {
	Default().logDepth(DefaultContextProvider(), 3, LevelDebug, msg, attrs)
}

// Info logs at [LevelInfo] to the process-wide logger.
func Info(msg string, attrs ...slog.Attr) {
	Default().logDepth(DefaultContextProvider(), 3, LevelInfo, msg, attrs)
}

// Warn logs at [LevelWarn] to the process-wide logger.
func Warn(msg string, attrs ...slog.Attr) {
	Default().logDepth(DefaultContextProvider(), 3, LevelWarn, msg, attrs)
}

// Error logs at [LevelError] to the process-wide logger.
func Error(msg string, attrs ...slog.Attr) {
	Default().logDepth(DefaultContextProvider(), 3, LevelError, msg, attrs)
}
