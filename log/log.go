package log

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// Logger writes leveled, structured records. The zero value discards
// everything.
type Logger struct {
	*slog.Logger
	config
}

// Make returns a logger writing to w, configured by opts on top of the
// package defaults.
func Make(w io.Writer, opts ...Option) Logger {
	cfg := defaults(w).with(opts...)

	return Logger{Logger: slog.New(cfg.handler()), config: cfg}
}

// Wrap returns a logger with the configuration of l modified by opts.
// Attributes added with [Logger.With] are not carried over.
func (l Logger) Wrap(opts ...Option) Logger {
	cfg := l.config
	if l.Logger == nil {
		cfg = defaults(nil)
	}

	cfg = cfg.with(opts...)

	return Logger{Logger: slog.New(cfg.handler()), config: cfg}
}

// With returns a logger that adds attrs to every record.
func (l Logger) With(attrs ...slog.Attr) Logger {
	if l.Logger == nil || len(attrs) == 0 {
		return l
	}

	return Logger{Logger: slog.New(l.Handler().WithAttrs(attrs)), config: l.config}
}

// Level returns the minimum level written.
func (l Logger) Level() Level {
	if l.Logger == nil {
		return DefaultLevel
	}

	return l.level
}

// Format returns the record encoding.
func (l Logger) Format() Format {
	if l.Logger == nil {
		return DefaultFormat
	}

	return l.format
}

// Enabled reports whether records at level would be written.
func (l Logger) Enabled(ctx context.Context, level Level) bool {
	return l.Logger != nil && l.Logger.Enabled(ctx, slog.Level(level))
}

// TraceContext logs at [LevelTrace].
func (l Logger) TraceContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, LevelTrace, msg, attrs)
}

// DebugContext logs at [LevelDebug].
func (l Logger) DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, LevelDebug, msg, attrs)
}

// InfoContext logs at [LevelInfo].
func (l Logger) InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, LevelInfo, msg, attrs)
}

// WarnContext logs at [LevelWarn].
func (l Logger) WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, LevelWarn, msg, attrs)
}

// ErrorContext logs at [LevelError].
func (l Logger) ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, LevelError, msg, attrs)
}

// Trace logs at [LevelTrace] with [DefaultContextProvider].
func (l Logger) Trace(msg string, attrs ...slog.Attr) {
	l.log(DefaultContextProvider(), LevelTrace, msg, attrs)
}

// Debug logs at [LevelDebug] with [DefaultContextProvider].
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.log(DefaultContextProvider(), LevelDebug, msg, attrs)
}

// Info logs at [LevelInfo] with [DefaultContextProvider].
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.log(DefaultContextProvider(), LevelInfo, msg, attrs)
}

// Warn logs at [LevelWarn] with [DefaultContextProvider].
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.log(DefaultContextProvider(), LevelWarn, msg, attrs)
}

// Error logs at [LevelError] with [DefaultContextProvider].
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.log(DefaultContextProvider(), LevelError, msg, attrs)
}

// log must be called directly by an exported method: skipping four
// frames from runtime.Callers lands on that method's caller.
func (l Logger) log(ctx context.Context, level Level, msg string, attrs []slog.Attr) {
	l.logDepth(ctx, 4, level, msg, attrs)
}

func (l Logger) logDepth(ctx context.Context, skip int, level Level, msg string, attrs []slog.Attr) {
	if l.Logger == nil {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if !l.Logger.Enabled(ctx, slog.Level(level)) {
		return
	}

	var pc uintptr

	if l.caller {
		var pcs [1]uintptr

		runtime.Callers(skip, pcs[:])
		pc = pcs[0]
	}

	r := slog.NewRecord(time.Now(), slog.Level(level), msg, pc)
	r.AddAttrs(attrs...)

	_ = l.Handler().Handle(ctx, r)
}
