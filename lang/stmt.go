package lang

import (
	"io"
)

// Statement is a pluggable tag implementation, such as "if" or "for".
//
// Parse is called with the parser positioned after the tag name and the
// whitespace following it. Attrs and Restore carry the statement's own
// fields through the compiled artifact; Restore receives the children in
// the order Children returned them.
type Statement interface {
	Node
	Tag() string
	Parse(p *Parser) error
	Attrs() map[string]any
	Restore(attrs map[string]any, children []Node) error
}

// OwnCloser is implemented by statements that consume their own closing
// delimiter, such as a tag that swallows the rest of the template.
type OwnCloser interface {
	OwnsClose() bool
}

// Includer is implemented by statements that render another template. The
// optimizer preloads the named template for the compiled form.
type Includer interface {
	IncludeName() (string, bool)
}

// Registry resolves statement tag names to new statement instances.
type Registry interface {
	NewStatement(tag string) (Statement, bool)
}

// RegistryFunc adapts a function to [Registry].
type RegistryFunc func(tag string) (Statement, bool)

// NewStatement calls f.
func (f RegistryFunc) NewStatement(tag string) (Statement, bool) { return f(tag) }

// StatementBase provides the bookkeeping shared by statements. Embed it
// and call SetLine from Parse or Restore.
type StatementBase struct {
	line int
}

func (s *StatementBase) Kind() Kind { return KindStatement }

func (s *StatementBase) Line() int { return s.line }

// SetLine records the line the statement starts on.
func (s *StatementBase) SetLine(line int) { s.line = line }

// StatementWrapper is the "{% tag ... %}" construct. It owns the statement
// its tag resolved to.
type StatementWrapper struct {
	Stmt Statement
	line int
}

func (w *StatementWrapper) Kind() Kind { return KindStatementWrapper }

func (w *StatementWrapper) Line() int { return w.line }

func (w *StatementWrapper) Children() []Node { return []Node{w.Stmt} }

func (w *StatementWrapper) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	_, err := w.Stmt.Render(ctx, data, out)

	return nil, lineError(err, w.line)
}

func (w *StatementWrapper) Compile(cc *Compiler) (Compiled, error) {
	stmt, err := w.Stmt.Compile(cc)
	if err != nil {
		return nil, err
	}

	if stmt == nil {
		return nil, nil
	}

	line := w.line

	return func(x *Exec, data any) (any, error) {
		_, err := stmt(x, data)

		return nil, lineError(err, line)
	}, nil
}

// parse resolves the tag and lets the statement parse itself.
func (w *StatementWrapper) parse(p *Parser) error {
	tok, err := p.ExpectKind(TokenIdentifier)
	if err != nil {
		return err
	}

	if p.registry == nil {
		return p.errorAt(ErrNoRegistry, tok, "")
	}

	stmt, ok := p.registry.NewStatement(tok.Value)
	if !ok {
		return p.errorAt(ErrUnknownTag, tok, "unknown statement")
	}

	if sb, ok := stmt.(interface{ SetLine(int) }); ok {
		sb.SetLine(tok.Line)
	}

	p.SkipWhitespace()

	if err := stmt.Parse(p); err != nil {
		return err
	}

	w.Stmt = stmt

	if oc, ok := stmt.(OwnCloser); ok && oc.OwnsClose() {
		return nil
	}

	p.SkipWhitespace()

	return p.ExpectStatementEnd()
}
