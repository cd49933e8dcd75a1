package lang

import (
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrUnexpectedEOF    = NewError("unexpected end of input")
	ErrUnexpectedToken  = NewError("unexpected token")
	ErrUnknownTag       = NewError("unknown statement tag")
	ErrNoRegistry       = NewError("statement tag used without an engine")
	ErrInvalidOperator  = NewError("invalid operator")
	ErrTemplateNotFound = NewError("template not found")
	ErrUnknownFilter    = NewError("unknown filter")
	ErrUnknownTest      = NewError("unknown test")
	ErrNotCallable      = NewError("value is not callable")
	ErrUndefined        = NewError("undefined value")
	ErrInvalidOperand   = NewError("invalid operand")
	ErrIndexOutOfRange  = NewError("index out of range")
	ErrMacroArgs        = NewError("macro argument mismatch")
	ErrExprCompile      = NewError("expression compilation failed")
	ErrExprEvaluate     = NewError("expression evaluation failed")
	ErrArtifact         = NewError("compiled artifact unusable")
	ErrReadInput        = NewError("failed to read input")
	ErrParserReused     = NewError("parser already used")
)

// Error is a message, an optional cause and slog attributes describing
// where it happened. Errors derived from a sentinel with Wrap or With still
// match it under errors.Is. Values are never modified after creation.
type Error struct {
	msg   string
	err   error
	base  *Error
	attrs []slog.Attr
}

func NewError(msg string) *Error { return &Error{msg: msg} }

// WrapError returns the first *Error in the chain of err, or a new Error
// with err as its cause.
func WrapError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return &Error{err: err}
}

func (e *Error) Error() string {
	switch {
	case e.err == nil:
		return e.msg
	case e.msg == "":
		return e.err.Error()
	}

	return e.msg + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// Is matches e against its own sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && (e == t || e.base != nil && e.base == t.origin())
}

// LogValue groups the message, the cause and the attributes.
func (e *Error) LogValue() slog.Value {
	var head []slog.Attr

	if e.msg != "" {
		head = append(head, slog.String("error", e.msg))
	}

	if e.err != nil {
		head = append(head, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(slices.Concat(head, e.attrs)...)
}

// Wrap returns a copy of e caused by err.
func (e *Error) Wrap(err error) *Error {
	d := e.derive()
	d.err = err

	return d
}

// With returns a copy of e with attrs appended.
func (e *Error) With(attrs ...slog.Attr) *Error {
	d := e.derive()
	d.attrs = slices.Concat(e.attrs, attrs)

	return d
}

func (e *Error) Attrs() []slog.Attr { return e.attrs }

func (e *Error) derive() *Error {
	return &Error{msg: e.msg, err: e.err, base: e.origin(), attrs: slices.Clip(e.attrs)}
}

func (e *Error) origin() *Error {
	if e.base != nil {
		return e.base
	}

	return e
}

// LexerError reports input the lexer cannot make progress on.
type LexerError struct {
	Input  string // Offending input slice
	Line   int
	Offset int
}

// Error implements the error interface.
func (e *LexerError) Error() string {
	in := e.Input
	if len(in) > 20 {
		in = in[:20] + "..."
	}

	return "lexer error at line " + strconv.Itoa(e.Line) +
		", offset " + strconv.Itoa(e.Offset) + ": " + strconv.Quote(in)
}

// LogValue implements slog.LogValuer.
func (e *LexerError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("error", "lexer error"),
		slog.Int("line", e.Line),
		slog.Int("offset", e.Offset),
	)
}

// ParserError reports a grammar violation.
// Reason holds one of the parser sentinels so callers can match it with
// errors.Is.
type ParserError struct {
	Reason *Error
	Msg    string
	Token  string // Literal text of the offending token
	Source string // Template source, when known
	Line   int    // 1-based
}

// Error implements the error interface.
func (e *ParserError) Error() string {
	var buf strings.Builder

	buf.WriteString("parse error at line ")
	buf.WriteString(strconv.Itoa(e.Line))
	buf.WriteString(": ")

	switch {
	case e.Msg != "":
		buf.WriteString(e.Msg)
	case e.Reason != nil:
		buf.WriteString(e.Reason.msg)
	default:
		buf.WriteString("syntax error")
	}

	if e.Token != "" {
		buf.WriteString(" '")
		buf.WriteString(e.Token)
		buf.WriteString("'")
	}

	if snippet := e.snippet(); snippet != "" {
		buf.WriteString("\n")
		buf.WriteString(snippet)
	}

	return buf.String()
}

// Unwrap returns the sentinel reason.
func (e *ParserError) Unwrap() error {
	if e.Reason == nil {
		return nil
	}

	return e.Reason
}

// LogValue implements slog.LogValuer.
func (e *ParserError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("error", "parse error"),
		slog.Int("line", e.Line),
	}

	if e.Msg != "" {
		attrs = append(attrs, slog.String("message", e.Msg))
	}

	if e.Token != "" {
		attrs = append(attrs, slog.String("token", e.Token))
	}

	return slog.GroupValue(attrs...)
}

// snippet formats the offending source line with its line number.
func (e *ParserError) snippet() string {
	if e.Source == "" || e.Line <= 0 {
		return ""
	}

	lines := strings.Split(e.Source, "\n")
	if e.Line > len(lines) {
		return ""
	}

	return "  " + strconv.Itoa(e.Line) + " | " + lines[e.Line-1]
}

// RenderError reports a failure while rendering a template.
type RenderError struct {
	Err      error
	Template string
	Line     int
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	var buf strings.Builder

	buf.WriteString("render error")

	if e.Template != "" {
		buf.WriteString(" in ")
		buf.WriteString(strconv.Quote(e.Template))
	}

	if e.Line > 0 {
		buf.WriteString(" at line ")
		buf.WriteString(strconv.Itoa(e.Line))
	}

	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())

	return buf.String()
}

// Unwrap returns the underlying failure.
func (e *RenderError) Unwrap() error { return e.Err }

// LogValue implements slog.LogValuer.
func (e *RenderError) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("error", e.Err.Error()),
		slog.String("template", e.Template),
		slog.Int("line", e.Line),
	)
}

// lineError tags err with the line of the node that failed. Errors that
// already carry a line are returned unchanged.
func lineError(err error, line int) error {
	if err == nil {
		return nil
	}

	var re *RenderError
	if errors.As(err, &re) {
		return err
	}

	var pe *ParserError
	if errors.As(err, &pe) {
		return err
	}

	return &RenderError{Err: err, Line: line}
}
