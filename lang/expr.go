package lang

import (
	"fmt"
	"io"
	"strconv"
)

// Expression holds exactly one child: a parenthesized expression, a list,
// a negation, a value with filters, or an operator tree built from a tail.
type Expression struct {
	Child Node
	line  int
}

func (e *Expression) Kind() Kind { return KindExpression }

func (e *Expression) Line() int { return e.line }

func (e *Expression) Children() []Node { return []Node{e.Child} }

func (e *Expression) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	return e.Child.Render(ctx, data, out)
}

func (e *Expression) Compile(cc *Compiler) (Compiled, error) {
	return e.Child.Compile(cc)
}

// Const is a literal: string, integer, float, boolean or none.
type Const struct {
	Value any
	kind  Kind
	line  int
}

// NewConst returns a literal node of kind k holding v.
func NewConst(k Kind, v any, line int) *Const {
	return &Const{Value: v, kind: k, line: line}
}

func (c *Const) Kind() Kind { return c.kind }

func (c *Const) Line() int { return c.line }

func (c *Const) Children() []Node { return nil }

func (c *Const) Render(*Context, any, io.StringWriter) (any, error) {
	return c.Value, nil
}

func (c *Const) Compile(*Compiler) (Compiled, error) {
	v := c.Value

	return func(*Exec, any) (any, error) { return v, nil }, nil
}

// constFromToken converts a literal token.
func constFromToken(tok Token, negative bool) (*Const, error) {
	sign := ""
	if negative {
		sign = "-"
	}

	switch tok.Kind {
	case TokenInteger:
		i, err := strconv.ParseInt(sign+tok.Value, 10, 64)
		if err != nil {
			return nil, err
		}

		return NewConst(KindInt, i, tok.Line), nil
	case TokenFloat:
		f, err := strconv.ParseFloat(sign+tok.Value, 64)
		if err != nil {
			return nil, err
		}

		return NewConst(KindFloat, f, tok.Line), nil
	default:
		return NewConst(KindString, tok.Value, tok.Line), nil
	}
}

// keywordConst maps the literal keywords to their values.
var keywordConst = map[string]struct {
	kind  Kind
	value any
}{
	"true":  {KindBool, true},
	"false": {KindBool, false},
	"none":  {KindNone, nil},
	"True":  {KindBool, true},
	"False": {KindBool, false},
	"None":  {KindNone, nil},
}

// List is a list literal.
type List struct {
	Items []Node
	line  int
}

func (l *List) Kind() Kind { return KindList }

func (l *List) Line() int { return l.line }

func (l *List) Children() []Node { return l.Items }

func (l *List) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	vals := make([]any, len(l.Items))

	for i, item := range l.Items {
		v, err := item.Render(ctx, data, out)
		if err != nil {
			return nil, err
		}

		vals[i] = v
	}

	return vals, nil
}

func (l *List) Compile(cc *Compiler) (Compiled, error) {
	items, err := compileAll(cc, l.Items)
	if err != nil {
		return nil, err
	}

	return func(x *Exec, data any) (any, error) {
		return evalAll(items, x, data)
	}, nil
}

func compileAll(cc *Compiler, nodes []Node) ([]Compiled, error) {
	out := make([]Compiled, len(nodes))

	for i, n := range nodes {
		c, err := n.Compile(cc)
		if err != nil {
			return nil, err
		}

		out[i] = c
	}

	return out, nil
}

func evalAll(cs []Compiled, x *Exec, data any) ([]any, error) {
	vals := make([]any, len(cs))

	for i, c := range cs {
		v, err := c(x, data)
		if err != nil {
			return nil, err
		}

		vals[i] = v
	}

	return vals, nil
}

func renderValues(nodes []Node, ctx *Context, data any, out io.StringWriter) ([]any, error) {
	vals := make([]any, len(nodes))

	for i, n := range nodes {
		v, err := n.Render(ctx, data, out)
		if err != nil {
			return nil, err
		}

		vals[i] = v
	}

	return vals, nil
}

// Not negates the truthiness of its operand.
type Not struct {
	Child Node
	line  int
}

func (n *Not) Kind() Kind { return KindNot }

func (n *Not) Line() int { return n.line }

func (n *Not) Children() []Node { return []Node{n.Child} }

func (n *Not) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	v, err := n.Child.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	return !Truth(v), nil
}

func (n *Not) Compile(cc *Compiler) (Compiled, error) {
	child, err := n.Child.Compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *Exec, data any) (any, error) {
		v, err := child(x, data)
		if err != nil {
			return nil, err
		}

		return !Truth(v), nil
	}, nil
}

// Filter applies a named engine filter to Value with extra Args.
type Filter struct {
	Name  string
	Value Node
	Args  []Node
	line  int
}

func (f *Filter) Kind() Kind { return KindFilter }

func (f *Filter) Line() int { return f.line }

func (f *Filter) Children() []Node {
	return append([]Node{f.Value}, f.Args...)
}

func (f *Filter) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	v, err := f.Value.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	args, err := renderValues(f.Args, ctx, data, out)
	if err != nil {
		return nil, err
	}

	return f.apply(ctx, v, args)
}

func (f *Filter) Compile(cc *Compiler) (Compiled, error) {
	value, err := f.Value.Compile(cc)
	if err != nil {
		return nil, err
	}

	args, err := compileAll(cc, f.Args)
	if err != nil {
		return nil, err
	}

	return func(x *Exec, data any) (any, error) {
		v, err := value(x, data)
		if err != nil {
			return nil, err
		}

		vals, err := evalAll(args, x, data)
		if err != nil {
			return nil, err
		}

		return f.apply(x.ctx, v, vals)
	}, nil
}

func (f *Filter) apply(ctx *Context, v any, args []any) (any, error) {
	fn, ok := ctx.engine.filter(f.Name)
	if !ok {
		return nil, ErrUnknownFilter.With(stringAttr("filter", f.Name)).
			Wrap(fmt.Errorf("%q", f.Name))
	}

	r, err := callFilter(ctx, fn, v, args)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", f.Name, err)
	}

	return r, nil
}

// FilterFunc is a filter or test that receives the render context.
type FilterFunc func(ctx *Context, value any, args ...any) (any, error)

func callFilter(ctx *Context, fn any, v any, args []any) (any, error) {
	if ff, ok := fn.(FilterFunc); ok {
		return ff(ctx, v, args...)
	}

	return Invoke(fn, append([]any{v}, args...)...)
}
