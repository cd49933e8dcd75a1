package log

import (
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"
)

// Level is the severity of a log message.
type Level slog.Level

const (
	LevelTrace = Level(slog.LevelDebug - 4)
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// DefaultLevel is the level of a logger built without [WithLevel].
const DefaultLevel = LevelInfo

var levelName = map[Level]string{
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lowercase level name. Levels between the named ones
// are written as an offset from the nearest lower name, e.g. "info+2".
func (l Level) String() string {
	if name, ok := levelName[l]; ok {
		return name
	}

	base := LevelTrace

	for _, named := range []Level{LevelError, LevelWarn, LevelInfo, LevelDebug} {
		if l > named {
			base = named

			break
		}
	}

	delta := int(l - base)
	if delta >= 0 {
		return levelName[base] + "+" + strconv.Itoa(delta)
	}

	return levelName[base] + strconv.Itoa(delta)
}

// MarshalText implements [encoding.TextMarshaler].
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler]. It accepts the
// names slog accepts plus "trace", in any case.
func (l *Level) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	if rest, ok := cutFold(s, "trace"); ok {
		delta := 0

		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return fmt.Errorf("invalid log level %q", s)
			}

			delta = n
		}

		*l = LevelTrace + Level(delta)

		return nil
	}

	var sl slog.Level
	if err := sl.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("invalid log level %q", s)
	}

	*l = Level(sl)

	return nil
}

func cutFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}

	return s[len(prefix):], true
}

// ParseLevel returns the level named by s, or [DefaultLevel] when s is not
// a level.
func ParseLevel(s string) Level {
	var l Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return DefaultLevel
	}

	return l
}

// Levels yields the names of the predefined levels in increasing
// severity.
func Levels() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, l := range []Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError} {
			if !yield(l.String()) {
				return
			}
		}
	}
}

// Format is the encoding of log records.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// DefaultFormat is the format of a logger built without [WithFormat].
const DefaultFormat = FormatText

var formatName = [...]string{
	FormatText: "text",
	FormatJSON: "json",
}

// String returns the format name.
func (f Format) String() string {
	if f >= 0 && int(f) < len(formatName) {
		return formatName[f]
	}

	return "Format(" + strconv.Itoa(int(f)) + ")"
}

// MarshalText implements [encoding.TextMarshaler].
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (f *Format) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))

	for i, name := range formatName {
		if s == name {
			*f = Format(i)

			return nil
		}
	}

	return fmt.Errorf("invalid log format %q", s)
}

// ParseFormat returns the format named by s, or [DefaultFormat] when s is
// not a format.
func ParseFormat(s string) Format {
	var f Format
	if err := f.UnmarshalText([]byte(s)); err != nil {
		return DefaultFormat
	}

	return f
}

// Formats yields the names of the supported formats.
func Formats() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range formatName {
			if !yield(name) {
				return
			}
		}
	}
}
