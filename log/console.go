package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// theme holds the console styles. Styles built from a renderer whose
// output is not a terminal render text unchanged.
type theme struct {
	key, msg, str, num, yes, no, dur, when lipgloss.Style
	trace, debug, info, warn, fail         lipgloss.Style
}

func newTheme(w io.Writer) *theme {
	r := lipgloss.NewRenderer(w)
	fg := func(c string) lipgloss.Style { return r.NewStyle().Foreground(lipgloss.Color(c)) }

	return &theme{
		key:   fg("8"),
		msg:   r.NewStyle().Bold(true),
		str:   fg("6"),
		num:   fg("3"),
		yes:   fg("2"),
		no:    fg("1"),
		dur:   fg("5"),
		when:  fg("4"),
		trace: fg("8"),
		debug: fg("4"),
		info:  fg("2"),
		warn:  fg("3"),
		fail:  fg("1").Bold(true),
	}
}

func (t *theme) level(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return t.fail
	case l >= slog.LevelWarn:
		return t.warn
	case l >= slog.LevelInfo:
		return t.info
	case l >= slog.LevelDebug:
		return t.debug
	default:
		return t.trace
	}
}

// paint styles single-line text only; lipgloss pads multi-line blocks.
func paint(s lipgloss.Style, text string) string {
	if strings.ContainsAny(text, "\n\t") {
		return text
	}

	return s.Render(text)
}

// consoleHandler writes records for people: unquoted key=value lines, or
// with block set, one indented field per line.
type consoleHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	theme  *theme
	attrs  []slog.Attr
	groups []string
	block  bool
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions, block bool) *consoleHandler {
	return &consoleHandler{
		opts:  *opts,
		mu:    &sync.Mutex{},
		w:     w,
		theme: newTheme(w),
		block: block,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := slog.LevelInfo
	if h.opts.Level != nil {
		floor = h.opts.Level.Level()
	}

	return level >= floor
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clip(h.attrs)

	for _, a := range attrs {
		c.attrs = h.appendAttr(c.attrs, h.groups, a)
	}

	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.groups = append(slices.Clip(h.groups), name)

	return &c
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]slog.Attr, 0, 4+len(h.attrs)+r.NumAttrs())

	if !r.Time.IsZero() {
		fields = h.appendAttr(fields, nil, slog.Time(slog.TimeKey, r.Time))
	}

	fields = h.appendAttr(fields, nil, slog.Any(slog.LevelKey, r.Level))

	if h.opts.AddSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fields = h.appendAttr(fields, nil,
			slog.String(slog.SourceKey, filepath.Base(f.File)+":"+strconv.Itoa(f.Line)))
	}

	fields = h.appendAttr(fields, nil, slog.String(slog.MessageKey, r.Message))
	fields = append(fields, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		fields = h.appendAttr(fields, h.groups, a)

		return true
	})

	var buf bytes.Buffer

	if h.block {
		h.writeBlock(&buf, r.Level, fields)
	} else {
		h.writeLine(&buf, r.Level, fields)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

// appendAttr resolves a, flattens groups into dotted keys and applies
// ReplaceAttr.
func (h *consoleHandler) appendAttr(dst []slog.Attr, groups []string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(slices.Clip(groups), a.Key)
		}

		for _, ga := range a.Value.Group() {
			dst = h.appendAttr(dst, inner, ga)
		}

		return dst
	}

	if h.opts.ReplaceAttr != nil {
		a = h.opts.ReplaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}

	if a.Key == "" {
		return dst
	}

	if len(groups) > 0 {
		a.Key = strings.Join(groups, ".") + "." + a.Key
	}

	return append(dst, a)
}

func (h *consoleHandler) writeLine(buf *bytes.Buffer, level slog.Level, fields []slog.Attr) {
	for i, a := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(paint(h.theme.key, a.Key))
		buf.WriteByte('=')
		buf.WriteString(h.value(level, a))
	}

	buf.WriteByte('\n')
}

func (h *consoleHandler) writeBlock(buf *bytes.Buffer, level slog.Level, fields []slog.Attr) {
	buf.WriteString("{\n")

	for i, a := range fields {
		if i > 0 {
			buf.WriteString(",\n")
		}

		buf.WriteString("  ")
		buf.WriteString(paint(h.theme.key, a.Key))
		buf.WriteString(": ")
		buf.WriteString(h.value(level, a))
	}

	buf.WriteString("\n}\n")
}

func (h *consoleHandler) value(level slog.Level, a slog.Attr) string {
	v := a.Value

	switch a.Key {
	case slog.LevelKey:
		return paint(h.theme.level(level), v.String())
	case slog.MessageKey:
		return paint(h.theme.msg, v.String())
	}

	switch v.Kind() {
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return paint(h.theme.num, v.String())
	case slog.KindBool:
		if v.Bool() {
			return paint(h.theme.yes, "true")
		}

		return paint(h.theme.no, "false")
	case slog.KindDuration:
		return paint(h.theme.dur, v.Duration().String())
	case slog.KindTime:
		return paint(h.theme.when, v.Time().Format(time.RFC3339Nano))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return paint(h.theme.no, err.Error())
		}
	}

	s := v.String()
	if s == "" {
		return `""`
	}

	return paint(h.theme.str, s)
}
