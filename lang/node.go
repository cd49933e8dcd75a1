package lang

import (
	"io"
	"slices"
	"strconv"
)

// Kind tags every variant of the node family.
type Kind uint8

// Node kinds.
const (
	KindTemplate Kind = iota
	KindWrapper
	KindText
	KindOutput
	KindExpression
	KindQuery
	KindFilter
	KindString
	KindInt
	KindFloat
	KindBool
	KindNone
	KindList
	KindNot
	KindBinary
	KindStatementWrapper
	KindStatementBody
	KindStatement
	KindPreload
)

var kindName = [...]string{
	KindTemplate:         "template",
	KindWrapper:          "wrapper",
	KindText:             "text",
	KindOutput:           "exprw",
	KindExpression:       "expr",
	KindQuery:            "query",
	KindFilter:           "filter",
	KindString:           "string",
	KindInt:              "int",
	KindFloat:            "float",
	KindBool:             "bool",
	KindNone:             "none",
	KindList:             "list",
	KindNot:              "not",
	KindBinary:           "binary",
	KindStatementWrapper: "stw",
	KindStatementBody:    "stb",
	KindStatement:        "statement",
	KindPreload:          "preload",
}

// String returns the short type name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindName) {
		return kindName[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a member of the template AST.
//
// Render evaluates the node directly against a context and returns its
// value; Compile produces a closure with the same observable behavior.
// Children lists owned nodes in declaration order.
type Node interface {
	Kind() Kind
	Line() int
	Children() []Node
	Render(ctx *Context, data any, out io.StringWriter) (any, error)
	Compile(cc *Compiler) (Compiled, error)
}

// TypeName returns the dump name of n: the operator name for binary
// operators, "st" plus the tag for statements, and the kind name otherwise.
func TypeName(n Node) string {
	switch x := n.(type) {
	case *Binary:
		return x.Op.Name
	case Statement:
		return "st" + x.Tag()
	}

	return n.Kind().String()
}

// Wrapper is an ordered sequence of child nodes.
type Wrapper struct {
	children []Node
	line     int
}

func (w *Wrapper) Kind() Kind { return KindWrapper }

func (w *Wrapper) Line() int { return w.line }

func (w *Wrapper) Children() []Node { return w.children }

// Add appends a child node.
func (w *Wrapper) Add(n Node) { w.children = append(w.children, n) }

// Render renders each child in order.
func (w *Wrapper) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	return nil, renderAll(w.children, ctx, data, out)
}

func (w *Wrapper) Compile(cc *Compiler) (Compiled, error) {
	return cc.Sequence(w.children)
}

func renderAll(nodes []Node, ctx *Context, data any, out io.StringWriter) error {
	for _, n := range nodes {
		if _, err := n.Render(ctx, data, out); err != nil {
			return err
		}
	}

	return nil
}

// Root is the top node of a parsed template.
type Root struct {
	Wrapper
}

func (r *Root) Kind() Kind { return KindTemplate }

// Preloads returns the names of the include placeholders at the front of
// the template.
func (r *Root) Preloads() []string {
	var names []string

	for _, n := range r.children {
		p, ok := n.(*Preload)
		if !ok {
			break
		}

		names = append(names, p.Name)
	}

	return names
}

// setPreloads replaces any include placeholders with one per name.
func (r *Root) setPreloads(names []string) {
	r.children = slices.DeleteFunc(r.children, func(n Node) bool {
		_, ok := n.(*Preload)

		return ok
	})

	head := make([]Node, 0, len(names)+len(r.children))
	for _, name := range names {
		head = append(head, &Preload{Name: name, line: 1})
	}

	r.children = append(head, r.children...)
}

// StatementBody collects the nodes between a statement and its
// terminating tag.
type StatementBody struct {
	Wrapper
}

func (b *StatementBody) Kind() Kind { return KindStatementBody }

// Text is literal template output.
type Text struct {
	Value string
	line  int
}

func (t *Text) Kind() Kind { return KindText }

func (t *Text) Line() int { return t.line }

func (t *Text) Children() []Node { return nil }

func (t *Text) Render(_ *Context, _ any, out io.StringWriter) (any, error) {
	_, err := out.WriteString(t.Value)

	return nil, err
}

func (t *Text) Compile(*Compiler) (Compiled, error) {
	s := t.Value

	return func(x *Exec, _ any) (any, error) {
		_, err := x.out.WriteString(s)

		return nil, err
	}, nil
}

// Output writes the value of an expression: the "{{ ... }}" construct.
type Output struct {
	Expr *Expression
	line int
}

func (o *Output) Kind() Kind { return KindOutput }

func (o *Output) Line() int { return o.line }

func (o *Output) Children() []Node { return []Node{o.Expr} }

func (o *Output) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	v, err := o.Expr.Render(ctx, data, out)
	if err != nil {
		return nil, lineError(err, o.line)
	}

	return nil, o.emit(ctx, out, v)
}

func (o *Output) Compile(cc *Compiler) (Compiled, error) {
	expr, err := o.Expr.Compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *Exec, data any) (any, error) {
		v, err := expr(x, data)
		if err != nil {
			return nil, lineError(err, o.line)
		}

		return nil, o.emit(x.ctx, x.out, v)
	}, nil
}

func (o *Output) emit(ctx *Context, out io.StringWriter, v any) error {
	if err := ctx.Emit(out, v); err != nil {
		if ctx.IsUndefined(v) {
			return lineError(ErrUndefined, o.line)
		}

		return lineError(err, o.line)
	}

	return nil
}

// Preload is the placeholder the optimizer puts in front of a template for
// every included template. Compiling it resolves the include target so the
// compiled body can run it without another lookup.
type Preload struct {
	Name string
	line int
}

func (p *Preload) Kind() Kind { return KindPreload }

func (p *Preload) Line() int { return p.line }

func (p *Preload) Children() []Node { return nil }

func (p *Preload) Render(*Context, any, io.StringWriter) (any, error) {
	return nil, nil
}

func (p *Preload) Compile(cc *Compiler) (Compiled, error) {
	t, err := cc.engine.Template(p.Name)
	if err != nil {
		// The include reports the failure if it ever runs.
		cc.engine.logger.Debug("preload skipped",
			stringAttr("template", p.Name), errAttr(err))

		return nil, nil
	}

	cc.Preload(t)

	return func(*Exec, any) (any, error) {
		if _, err := t.Program(); err != nil {
			cc.engine.logger.Debug("preload compile failed",
				stringAttr("template", p.Name), errAttr(err))
		}

		return nil, nil
	}, nil
}
