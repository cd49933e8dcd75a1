package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// swapDefault installs a logger writing to a buffer for the duration of t.
func swapDefault(t *testing.T, opts ...Option) *bytes.Buffer {
	t.Helper()

	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer

	SetDefault(Make(&buf, quiet(opts...)...))

	return &buf
}

func TestDefault_PackageFunctions(t *testing.T) {
	buf := swapDefault(t)

	Info("started", slog.String("dir", "views"))
	DebugContext(t.Context(), "hidden")

	if got, want := buf.String(), "level=INFO msg=started dir=views\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestDefault_Config(t *testing.T) {
	buf := swapDefault(t)

	Config(WithLevel(LevelTrace), WithCaller(true))

	if Default().Level() != LevelTrace {
		t.Fatalf("Config() level = %v, want trace", Default().Level())
	}

	Trace("deep")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") || !strings.Contains(out, "source=default_test.go:") {
		t.Errorf("output = %q, want trace record with caller", out)
	}
}

func TestDefault_With(t *testing.T) {
	buf := swapDefault(t)

	With(slog.String("request", "r1")).Warn("slow")

	if !strings.Contains(buf.String(), "request=r1") {
		t.Errorf("output = %q, want request attribute", buf.String())
	}
}
