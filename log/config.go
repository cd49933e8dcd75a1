package log

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeLayout is the timestamp layout of a logger built without
// [WithTimeLayout].
const DefaultTimeLayout = time.RFC3339

const (
	DefaultCaller = false
	DefaultPretty = true
)

// config is the immutable description of a logger. Options return a
// modified copy.
type config struct {
	output     io.Writer
	formatTime func(time.Time) string
	layout     string
	level      Level
	format     Format
	caller     bool
	pretty     bool
}

// Option modifies a logger configuration.
type Option func(config) config

func defaults(w io.Writer) config {
	if w == nil {
		w = io.Discard
	}

	return config{
		output:     w,
		formatTime: timeFormatter(DefaultTimeLayout),
		layout:     DefaultTimeLayout,
		level:      DefaultLevel,
		format:     DefaultFormat,
		caller:     DefaultCaller,
		pretty:     DefaultPretty,
	}
}

func (c config) with(opts ...Option) config {
	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// WithOutput sets the destination of log records. A nil writer discards
// them.
func WithOutput(w io.Writer) Option {
	return func(c config) config {
		if w == nil {
			w = io.Discard
		}

		c.output = w

		return c
	}
}

// WithLevel sets the minimum level written.
func WithLevel(level Level) Option {
	return func(c config) config {
		c.level = level

		return c
	}
}

// WithFormat sets the record encoding.
func WithFormat(format Format) Option {
	return func(c config) config {
		c.format = format

		return c
	}
}

// WithTimeLayout sets the timestamp layout: a name such as "RFC3339Nano"
// or "kitchen" (case and punctuation are ignored), or a literal
// [time.Time.Format] layout. An empty layout or "none" omits timestamps.
func WithTimeLayout(layout string) Option {
	return func(c config) config {
		c.layout = layout
		c.formatTime = timeFormatter(layout)

		return c
	}
}

// WithCaller adds the source file and line of each call.
func WithCaller(enable bool) Option {
	return func(c config) config {
		c.caller = enable

		return c
	}
}

// WithPretty selects the colorized console handler. Colors are only
// emitted when the output is a terminal.
func WithPretty(enable bool) Option {
	return func(c config) config {
		c.pretty = enable

		return c
	}
}

var namedLayout = map[string]string{
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"rfc1123":     time.RFC1123,
	"rfc1123z":    time.RFC1123Z,
	"rfc822":      time.RFC822,
	"rfc822z":     time.RFC822Z,
	"rfc850":      time.RFC850,
	"ansic":       time.ANSIC,
	"unixdate":    time.UnixDate,
	"rubydate":    time.RubyDate,
	"kitchen":     time.Kitchen,
	"datetime":    time.DateTime,
	"dateonly":    time.DateOnly,
	"timeonly":    time.TimeOnly,
	"stamp":       time.Stamp,
	"stampmilli":  time.StampMilli,
	"stampmicro":  time.StampMicro,
	"stampnano":   time.StampNano,
	"ms":          time.StampMilli,
	"us":          time.StampMicro,
	"ns":          time.StampNano,
	"none":        "",
}

// layoutKey reduces a layout name to lowercase letters and digits.
func layoutKey(layout string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}

		return -1
	}, layout)
}

func timeFormatter(layout string) func(time.Time) string {
	key := layoutKey(layout)
	if key == "" {
		return func(time.Time) string { return "" }
	}

	if std, ok := namedLayout[key]; ok {
		if std == "" {
			return func(time.Time) string { return "" }
		}

		layout = std
	}

	return func(t time.Time) string { return t.Format(layout) }
}

// replaceAttr formats the time and level of every record.
func (c config) replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}

	switch a.Key {
	case slog.TimeKey:
		t, ok := a.Value.Any().(time.Time)
		if !ok {
			return a
		}

		s := c.formatTime(t)
		if s == "" {
			return slog.Attr{}
		}

		return slog.String(slog.TimeKey, s)

	case slog.LevelKey:
		if l, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, strings.ToUpper(Level(l).String()))
		}
	}

	return a
}

func (c config) handler() slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource:   c.caller,
		Level:       slog.Level(c.level),
		ReplaceAttr: c.replaceAttr,
	}

	switch {
	case c.pretty:
		return newConsoleHandler(c.output, opts, c.format == FormatJSON)
	case c.format == FormatJSON:
		return slog.NewJSONHandler(c.output, opts)
	default:
		return slog.NewTextHandler(c.output, opts)
	}
}
