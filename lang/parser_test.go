package lang

import (
	"errors"
	"io"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// testStmt is a minimal statement used to exercise the parser and the
// optimizer without the core extension. "inc" names a template; "wrap"
// collects a body up to "endwrap".
type testStmt struct {
	StatementBase
	tag  string
	name string
	body *StatementBody
}

func (s *testStmt) Tag() string { return s.tag }

func (s *testStmt) Parse(p *Parser) error {
	switch s.tag {
	case "inc":
		tok, err := p.ExpectKind(TokenStringSingle, TokenStringDouble)
		if err != nil {
			return err
		}

		s.name = tok.Value

	case "wrap":
		if err := p.ExpectStatementEnd(); err != nil {
			return err
		}

		body, _, err := p.ParseUntil("endwrap")
		if err != nil {
			return err
		}

		s.body = body

		_, err = p.ExpectIdentifier("endwrap")

		return err
	}

	return nil
}

func (s *testStmt) Children() []Node {
	if s.body == nil {
		return nil
	}

	return []Node{s.body}
}

func (s *testStmt) Render(*Context, any, io.StringWriter) (any, error) { return nil, nil }

func (s *testStmt) Compile(*Compiler) (Compiled, error) { return nil, nil }

func (s *testStmt) Attrs() map[string]any { return map[string]any{"name": s.name} }

func (s *testStmt) Restore(map[string]any, []Node) error { return nil }

func (s *testStmt) IncludeName() (string, bool) { return s.name, s.tag == "inc" }

var testRegistry = RegistryFunc(func(tag string) (Statement, bool) {
	switch tag {
	case "inc", "wrap":
		return &testStmt{tag: tag}, true
	}

	return nil, false
})

func parse(src string, reg Registry) (*Root, error) {
	return NewParser(reg).Parse((&Lexer{}).All(src), src)
}

// describeExpr parses "{{ src }}" and describes its expression.
func describeExpr(t *testing.T, src string) string {
	t.Helper()

	root, err := parse("{{ "+src+" }}", nil)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}

	children := root.Children()
	if len(children) != 1 {
		t.Fatalf("parse %q: got %d nodes, want 1", src, len(children))
	}

	out, ok := children[0].(*Output)
	if !ok {
		t.Fatalf("parse %q: got %T, want *Output", src, children[0])
	}

	return Describe(out.Expr)
}

func TestParser_Precedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(add 1 (mult 2 3))"},
		{"(1 + 2) * 3", "(mult (add 1 2) 3)"},
		{"1 * 2 + 3", "(add (mult 1 2) 3)"},
		{"1 - 2 - 3", "(sub (sub 1 2) 3)"},
		{"2 ** 3 ** 2", "(pow 2 (pow 3 2))"},
		{"1 + 2 ** 3 * 4", "(add 1 (mult (pow 2 3) 4))"},
		{"a or b and c", "(or a (and b c))"},
		{"a and b or c", "(or (and a b) c)"},
		{"1 < 2 == 3", "(eq (lt 1 2) 3)"},
		{"'a' ~ 1 + 2", "(concat 'a' (add 1 2))"},
		{"7 // 2 % 3", "(mod (divint 7 2) 3)"},
		{"not a or b", "(or (not a) b)"},
		{"a is not b", "(is not a b)"},
		{"a not in b", "(in not a b)"},
		{"x.y[0] + 1", "(add x.y[...] 1)"},
		{"-3 * 2", "(mult -3 2)"},
		{"[1, 'b'] ~ c", "(concat [1, 'b'] c)"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := describeExpr(t, tt.src); got != tt.want {
				t.Errorf("Describe(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

// reference builds the expected description by precedence climbing over
// the same operator tables the parser uses.
type reference struct {
	toks []string
	pos  int
	ops  map[string]*Operator
}

func (r *reference) atom() string {
	if r.toks[r.pos] == "not" {
		r.pos += 2

		return "(not " + r.toks[r.pos-1] + ")"
	}

	r.pos++

	return r.toks[r.pos-1]
}

func (r *reference) expr(minPrec int) string {
	lhs := r.atom()

	for r.pos < len(r.toks) {
		op := r.ops[r.toks[r.pos]]
		if op.Precedence < minPrec {
			break
		}

		r.pos++

		next := op.Precedence + 1
		if op.RightAssoc {
			next = op.Precedence
		}

		lhs = "(" + op.Name + " " + lhs + " " + r.expr(next) + ")"
	}

	return lhs
}

func TestParser_PrecedenceMatchesReference(t *testing.T) {
	ops := map[string]*Operator{}

	for _, table := range []map[string]*Operator{symbolOperators, wordOperators} {
		for lexeme, op := range table {
			if op.Binary {
				ops[lexeme] = op
			}
		}
	}

	lexemes := make([]string, 0, len(ops))
	for lexeme := range ops {
		lexemes = append(lexemes, lexeme)
	}

	sort.Strings(lexemes)

	rng := rand.New(rand.NewPCG(1, 2))

	for i := range 500 {
		var toks []string

		// "is not" reads as a negated test, so no prefix follows "is".
		operand := func() {
			if rng.IntN(6) == 0 && (len(toks) == 0 || toks[len(toks)-1] != "is") {
				toks = append(toks, "not")
			}

			toks = append(toks, strconv.Itoa(1+rng.IntN(9)))
		}

		operand()

		for range 1 + rng.IntN(6) {
			toks = append(toks, lexemes[rng.IntN(len(lexemes))])
			operand()
		}

		src := strings.Join(toks, " ")
		ref := &reference{toks: toks, ops: ops}
		want := ref.expr(0)

		if got := describeExpr(t, src); got != want {
			t.Fatalf("case %d: Describe(%q) = %s, want %s", i, src, got, want)
		}
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		reg  Registry
		want error
	}{
		{"unknown tag", "{% nope %}", testRegistry, ErrUnknownTag},
		{"no registry", "{% inc 'a' %}", nil, ErrNoRegistry},
		{"unterminated expression", "{{ a", nil, ErrUnexpectedEOF},
		{"unterminated body", "{% wrap %}abc", testRegistry, ErrUnexpectedEOF},
		{"assignment in expression", "{{ a = b }}", nil, ErrInvalidOperator},
		{"bare not as operator", "{{ a not b }}", nil, ErrInvalidOperator},
		{"stray expression end", "{% wrap }}", testRegistry, ErrUnexpectedToken},
		{"empty subscript", "{{ a[] }}", nil, ErrUnexpectedToken},
		{"non-integer slice", "{{ a['x':2] }}", nil, ErrUnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.src, tt.reg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.src, err, tt.want)
			}

			var pe *ParserError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q) error %T is not a *ParserError", tt.src, err)
			}
		})
	}
}

func TestParser_ErrorLine(t *testing.T) {
	_, err := parse("{{ a }}\n\n{% nope %}", testRegistry)

	var pe *ParserError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParserError", err)
	}

	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
}

func TestParser_Reused(t *testing.T) {
	p := NewParser(nil)

	if _, err := p.Parse((&Lexer{}).All("a"), "a"); err != nil {
		t.Fatalf("first Parse() error = %v", err)
	}

	if _, err := p.Parse((&Lexer{}).All("a"), "a"); !errors.Is(err, ErrParserReused) {
		t.Fatalf("second Parse() error = %v, want %v", err, ErrParserReused)
	}
}

func TestParser_ParseUntil(t *testing.T) {
	root, err := parse("{% wrap %}a{{ x }}{# c #}{% endwrap %}b", testRegistry)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	children := root.Children()
	if len(children) != 2 {
		t.Fatalf("got %d nodes, want 2", len(children))
	}

	w, ok := children[0].(*StatementWrapper)
	if !ok {
		t.Fatalf("first node is %T, want *StatementWrapper", children[0])
	}

	body := w.Stmt.(*testStmt).body
	if n := len(body.Children()); n != 2 {
		t.Errorf("body has %d nodes, want 2", n)
	}

	if text, ok := children[1].(*Text); !ok || text.Value != "b" {
		t.Errorf("second node = %#v, want text %q", children[1], "b")
	}
}

func TestParser_Literals(t *testing.T) {
	tests := []struct {
		src  string
		kind Kind
		want any
	}{
		{"42", KindInt, int64(42)},
		{"-7", KindInt, int64(-7)},
		{"2.5", KindFloat, 2.5},
		{"'s'", KindString, "s"},
		{`"d"`, KindString, "d"},
		{"true", KindBool, true},
		{"False", KindBool, false},
		{"none", KindNone, nil},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			root, err := parse("{{ "+tt.src+" }}", nil)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			c, ok := root.Children()[0].(*Output).Expr.Child.(*Const)
			if !ok {
				t.Fatalf("expression is not a constant")
			}

			if c.Kind() != tt.kind || c.Value != tt.want {
				t.Errorf("got %v %#v, want %v %#v", c.Kind(), c.Value, tt.kind, tt.want)
			}
		})
	}
}
