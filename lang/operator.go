package lang

import (
	"fmt"
	"io"
)

// Operator describes a unary or binary operator.
type Operator struct {
	Name       string // dump name
	Lexeme     string // source spelling
	Precedence int    // larger binds tighter
	RightAssoc bool
	Binary     bool

	apply func(a, b any) (any, error)
}

func compare(op string, test func(int) bool) func(a, b any) (any, error) {
	return func(a, b any) (any, error) {
		c, err := Compare(op, a, b)
		if err != nil {
			return nil, err
		}

		return test(c), nil
	}
}

// symbolOperators are spelled with symbols; lookups try two characters
// before one.
var symbolOperators = map[string]*Operator{
	"+":  {Name: "add", Lexeme: "+", Precedence: 50, Binary: true, apply: Add},
	"-":  {Name: "sub", Lexeme: "-", Precedence: 50, Binary: true, apply: Sub},
	"*":  {Name: "mult", Lexeme: "*", Precedence: 60, Binary: true, apply: Mul},
	"/":  {Name: "div", Lexeme: "/", Precedence: 60, Binary: true, apply: Div},
	"//": {Name: "divint", Lexeme: "//", Precedence: 60, Binary: true, apply: FloorDiv},
	"%":  {Name: "mod", Lexeme: "%", Precedence: 60, Binary: true, apply: Mod},
	"**": {Name: "pow", Lexeme: "**", Precedence: 70, RightAssoc: true, Binary: true, apply: Pow},
	"~":  {Name: "concat", Lexeme: "~", Precedence: 40, Binary: true, apply: Concat},
	"==": {
		Name: "eq", Lexeme: "==", Precedence: 30, Binary: true,
		apply: func(a, b any) (any, error) { return Equal(a, b), nil },
	},
	"!=": {
		Name: "neq", Lexeme: "!=", Precedence: 30, Binary: true,
		apply: func(a, b any) (any, error) { return !Equal(a, b), nil },
	},
	"<":  {Name: "lt", Lexeme: "<", Precedence: 30, Binary: true, apply: compare("<", func(c int) bool { return c < 0 })},
	"<=": {Name: "lte", Lexeme: "<=", Precedence: 30, Binary: true, apply: compare("<=", func(c int) bool { return c <= 0 })},
	">":  {Name: "gt", Lexeme: ">", Precedence: 30, Binary: true, apply: compare(">", func(c int) bool { return c > 0 })},
	">=": {Name: "gte", Lexeme: ">=", Precedence: 30, Binary: true, apply: compare(">=", func(c int) bool { return c >= 0 })},
}

// wordOperators are spelled with identifiers.
var wordOperators = map[string]*Operator{
	"or":  {Name: "or", Lexeme: "or", Precedence: 10, Binary: true},
	"and": {Name: "and", Lexeme: "and", Precedence: 20, Binary: true},
	"not": {Name: "not", Lexeme: "not", Precedence: 25},
	"in":  {Name: "in", Lexeme: "in", Precedence: 30, Binary: true},
	"is":  {Name: "is", Lexeme: "is", Precedence: 30, Binary: true},
}

// operatorByName maps dump names back to operators.
var operatorByName = func() map[string]*Operator {
	m := map[string]*Operator{}
	for _, table := range []map[string]*Operator{symbolOperators, wordOperators} {
		for _, op := range table {
			m[op.Name] = op
		}
	}

	return m
}()

// LookupOperator returns the operator with the given dump name.
func LookupOperator(name string) (*Operator, bool) {
	op, ok := operatorByName[name]

	return op, ok
}

// operatorStart reports whether c may begin a symbol operator.
func operatorStart(s string) bool {
	for lexeme := range symbolOperators {
		if lexeme[:1] == s {
			return true
		}
	}

	return false
}

// Binary is a binary operator applied to two operands.
//
// Negate records "is not" and "not in".
type Binary struct {
	Op     *Operator
	Left   Node
	Right  Node
	Negate bool
	line   int
}

func (b *Binary) Kind() Kind { return KindBinary }

func (b *Binary) Line() int { return b.line }

func (b *Binary) Children() []Node { return []Node{b.Left, b.Right} }

// looser reports whether b binds less tightly than op, so op belongs in
// b's right operand.
func (b *Binary) looser(op *Operator) bool {
	return b.Op.Precedence < op.Precedence ||
		(b.Op.Precedence == op.Precedence && op.RightAssoc)
}

// graft places a new binary operator into the tree rooted at root. The
// operator descends the right spine past every operator that binds looser
// and takes the node it stops at as its left operand.
func graft(root Node, op *Binary) Node {
	top, ok := root.(*Binary)
	if !ok || !top.looser(op.Op) {
		op.Left = root

		return op
	}

	parent := top
	for {
		next, ok := parent.Right.(*Binary)
		if !ok || !next.looser(op.Op) {
			break
		}

		parent = next
	}

	op.Left = parent.Right
	parent.Right = op

	return root
}

func (b *Binary) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	left, err := b.Left.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	switch b.Op.Name {
	case "and":
		if !Truth(left) {
			return left, nil
		}

		return b.Right.Render(ctx, data, out)

	case "or":
		if Truth(left) {
			return left, nil
		}

		return b.Right.Render(ctx, data, out)

	case "is":
		if test, args, ok := b.testCall(ctx); ok {
			vals, err := renderValues(args, ctx, data, out)
			if err != nil {
				return nil, err
			}

			return b.runTest(ctx, test, left, vals)
		}
	}

	right, err := b.Right.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	return b.eval(left, right)
}

func (b *Binary) Compile(cc *Compiler) (Compiled, error) {
	left, err := b.Left.Compile(cc)
	if err != nil {
		return nil, err
	}

	if b.Op.Name == "is" {
		if name, args, ok := b.testName(); ok {
			return b.compileTest(cc, left, name, args)
		}
	}

	right, err := b.Right.Compile(cc)
	if err != nil {
		return nil, err
	}

	switch b.Op.Name {
	case "and":
		return func(x *Exec, data any) (any, error) {
			l, err := left(x, data)
			if err != nil || !Truth(l) {
				return l, err
			}

			return right(x, data)
		}, nil

	case "or":
		return func(x *Exec, data any) (any, error) {
			l, err := left(x, data)
			if err != nil || Truth(l) {
				return l, err
			}

			return right(x, data)
		}, nil
	}

	return func(x *Exec, data any) (any, error) {
		l, err := left(x, data)
		if err != nil {
			return nil, err
		}

		r, err := right(x, data)
		if err != nil {
			return nil, err
		}

		return b.eval(l, r)
	}, nil
}

// compileTest compiles "x is name(args)". The test is resolved when the
// expression runs, so the compiled and interpreted forms agree even when
// the name is bound later.
func (b *Binary) compileTest(
	cc *Compiler, left Compiled, name string, argNodes []Node,
) (Compiled, error) {
	args, err := compileAll(cc, argNodes)
	if err != nil {
		return nil, err
	}

	right, err := b.Right.Compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *Exec, data any) (any, error) {
		l, err := left(x, data)
		if err != nil {
			return nil, err
		}

		if test, ok := x.ctx.engine.test(name); ok {
			vals, err := evalAll(args, x, data)
			if err != nil {
				return nil, err
			}

			return b.runTest(x.ctx, test, l, vals)
		}

		r, err := right(x, data)
		if err != nil {
			return nil, err
		}

		return b.eval(l, r)
	}, nil
}

// testName reports whether the right operand has the shape of a test:
// a bare name or a call of a bare name.
func (b *Binary) testName() (string, []Node, bool) {
	expr, ok := b.Right.(*Expression)
	if !ok {
		return "", nil, false
	}

	q, ok := expr.Child.(*Query)
	if !ok || !q.Head || q.Tail != nil {
		return "", nil, false
	}

	switch q.Type {
	case QueryProperty:
		return q.Name, nil, true
	case QueryCall:
		return q.Name, q.Args, true
	}

	return "", nil, false
}

func (b *Binary) testCall(ctx *Context) (any, []Node, bool) {
	name, args, ok := b.testName()
	if !ok {
		return nil, nil, false
	}

	test, ok := ctx.engine.test(name)
	if !ok {
		return nil, nil, false
	}

	return test, args, true
}

func (b *Binary) runTest(ctx *Context, test, v any, args []any) (any, error) {
	r, err := callFilter(ctx, test, v, args)
	if err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}

	return Truth(r) != b.Negate, nil
}

// eval applies a non-short-circuit operator to evaluated operands.
func (b *Binary) eval(left, right any) (any, error) {
	switch b.Op.Name {
	case "and":
		if !Truth(left) {
			return left, nil
		}

		return right, nil
	case "or":
		if Truth(left) {
			return left, nil
		}

		return right, nil
	case "is":
		return Equal(left, right) != b.Negate, nil
	case "in":
		found, err := Contains(right, left)
		if err != nil {
			return nil, err
		}

		return found != b.Negate, nil
	}

	if b.Op.apply == nil {
		return nil, ErrInvalidOperator.Wrap(fmt.Errorf("%s", b.Op.Lexeme))
	}

	return b.Op.apply(left, right)
}
