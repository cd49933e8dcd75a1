package lang

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestError_Is(t *testing.T) {
	wrapped := ErrTemplateNotFound.Wrap(io.EOF).With(slog.String("template", "a.html"))

	if !errors.Is(wrapped, ErrTemplateNotFound) {
		t.Errorf("derived error is not its sentinel")
	}

	if !errors.Is(wrapped, io.EOF) {
		t.Errorf("wrapped cause lost")
	}

	if errors.Is(wrapped, ErrUnknownFilter) {
		t.Errorf("derived error matches another sentinel")
	}

	outer := fmt.Errorf("load: %w", wrapped)
	if !errors.Is(outer, ErrTemplateNotFound) {
		t.Errorf("sentinel not found through fmt wrapping")
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NewError("boom"), "boom"},
		{NewError("boom").Wrap(io.EOF), "boom: EOF"},
		{WrapError(io.EOF), "EOF"},
		{&Error{}, ""},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestError_With(t *testing.T) {
	base := ErrUndefined.With(slog.String("name", "x"))
	more := base.With(slog.Int("line", 3))

	if len(base.Attrs()) != 1 || len(more.Attrs()) != 2 {
		t.Fatalf("attrs = %d/%d, want 1/2", len(base.Attrs()), len(more.Attrs()))
	}

	if len(ErrUndefined.Attrs()) != 0 {
		t.Errorf("With() modified the sentinel")
	}

	v := more.Wrap(io.EOF).LogValue()

	got := map[string]string{}
	for _, a := range v.Group() {
		got[a.Key] = a.Value.String()
	}

	want := map[string]string{"error": "undefined value", "cause": "EOF", "name": "x", "line": "3"}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("LogValue %s = %q, want %q", k, got[k], w)
		}
	}
}

func TestWrapError(t *testing.T) {
	derived := ErrArtifact.Wrap(io.EOF)

	if got := WrapError(fmt.Errorf("outer: %w", derived)); got != derived {
		t.Errorf("WrapError() = %v, want the *Error in the chain", got)
	}

	if got := WrapError(io.EOF); !errors.Is(got, io.EOF) {
		t.Errorf("WrapError(io.EOF) lost its cause")
	}
}
