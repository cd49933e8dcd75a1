package core

import (
	"io"
	"reflect"

	"github.com/ardnew/cairn/lang"
)

// Loop describes the current iteration of a for statement. Templates see
// it as "loop":
//
//	{% for x in items %}{{ loop.index }}/{{ loop.length }}{% endfor %}
type Loop struct {
	Index     int
	Index0    int
	RevIndex  int
	RevIndex0 int
	Length    int
	First     bool
	Last      bool
	PrevItem  any
	NextItem  any
}

// Cycle returns the argument selected by the iteration index, wrapping
// around.
func (l *Loop) Cycle(args ...any) any {
	if len(args) == 0 {
		return nil
	}

	return args[l.Index0%len(args)]
}

func (l *Loop) advance(i int, items []pair) {
	n := len(items)
	*l = Loop{
		Index: i + 1, Index0: i,
		RevIndex: n - i, RevIndex0: n - i - 1,
		Length: n,
		First:  i == 0, Last: i == n-1,
	}

	if i > 0 {
		l.PrevItem = items[i-1].value
	}

	if i < n-1 {
		l.NextItem = items[i+1].value
	}
}

// pair is one loop item. With two loop names the key is bound to the
// first.
type pair struct {
	key, value any
}

// For renders its body once per item of a sequence:
//
//	{% for x in seq if cond %}...{% else %}...{% endfor %}
//	{% for k, v in mapping %}...{% endfor %}
//
// The else body renders when no item remains after filtering.
type For struct {
	lang.StatementBase

	Names []string
	Seq   *lang.Expression
	Cond  *lang.Expression
	Body  *lang.StatementBody
	Else  *lang.StatementBody
}

func (s *For) Tag() string { return "for" }

func (s *For) Parse(p *lang.Parser) error {
	name, err := p.ExpectIdentifier()
	if err != nil {
		return err
	}

	s.Names = []string{name}

	p.SkipWhitespace()

	if p.IsNext(lang.TokenSymbol, ",") {
		p.Read()
		p.SkipWhitespace()

		if name, err = p.ExpectIdentifier(); err != nil {
			return err
		}

		s.Names = append(s.Names, name)

		p.SkipWhitespace()
	}

	if _, err := p.ExpectIdentifier("in"); err != nil {
		return err
	}

	p.SkipWhitespace()

	if s.Seq, err = p.ParseExpression(); err != nil {
		return err
	}

	p.SkipWhitespace()

	if p.IsNext(lang.TokenIdentifier, "if") {
		p.Read()
		p.SkipWhitespace()

		if s.Cond, err = p.ParseExpression(); err != nil {
			return err
		}
	}

	if err := endStatement(p); err != nil {
		return err
	}

	body, tag, err := p.ParseUntil("else", "endfor")
	if err != nil {
		return err
	}

	s.Body = body

	if _, err := p.ExpectIdentifier(tag); err != nil {
		return err
	}

	if tag == "else" {
		if err := endStatement(p); err != nil {
			return err
		}

		if s.Else, _, err = p.ParseUntil("endfor"); err != nil {
			return err
		}

		_, err = p.ExpectIdentifier("endfor")

		return err
	}

	return nil
}

// Children lists the sequence, the optional condition, the body and the
// optional else body.
func (s *For) Children() []lang.Node {
	nodes := []lang.Node{s.Seq}
	if s.Cond != nil {
		nodes = append(nodes, s.Cond)
	}

	nodes = append(nodes, s.Body)
	if s.Else != nil {
		nodes = append(nodes, s.Else)
	}

	return nodes
}

func (s *For) Attrs() map[string]any {
	names := make([]any, len(s.Names))
	for i, n := range s.Names {
		names[i] = n
	}

	attrs := map[string]any{"names": names}
	if s.Cond != nil {
		attrs["cond"] = true
	}

	if s.Else != nil {
		attrs["else"] = true
	}

	return attrs
}

func (s *For) Restore(attrs map[string]any, children []lang.Node) error {
	names, _ := attrs["names"].([]any)
	for _, n := range names {
		if name, ok := n.(string); ok {
			s.Names = append(s.Names, name)
		}
	}

	hasCond, _ := attrs["cond"].(bool)
	hasElse, _ := attrs["else"].(bool)

	want := 2
	if hasCond {
		want++
	}

	if hasElse {
		want++
	}

	if len(s.Names) == 0 || len(children) != want {
		return errChildren
	}

	var err error

	if s.Seq, err = asExpr(children[0]); err != nil {
		return err
	}

	children = children[1:]

	if hasCond {
		if s.Cond, err = asExpr(children[0]); err != nil {
			return err
		}

		children = children[1:]
	}

	if s.Body, err = asBody(children[0]); err != nil {
		return err
	}

	if hasElse {
		s.Else, err = asBody(children[1])
	}

	return err
}

// items expands the sequence into loop items. Mappings iterate keys in
// sorted order; with two names each key is paired with its value.
func (s *For) items(seq any) ([]pair, error) {
	keys, err := lang.Iterate(seq)
	if err != nil {
		return nil, err
	}

	items := make([]pair, len(keys))

	if len(s.Names) < 2 {
		for i, k := range keys {
			items[i] = pair{value: k}
		}

		return items, nil
	}

	mapping := isMapping(seq)

	for i, k := range keys {
		if mapping {
			items[i] = pair{key: k, value: lang.Item(seq, k, nil)}

			continue
		}

		parts, err := lang.Iterate(k)
		if err != nil || len(parts) != 2 {
			return nil, errUnpack
		}

		items[i] = pair{key: parts[0], value: parts[1]}
	}

	return items, nil
}

func isMapping(v any) bool {
	switch v.(type) {
	case map[string]any, lang.Namespace:
		return true
	}

	rv := reflect.ValueOf(v)

	return rv.IsValid() && rv.Kind() == reflect.Map
}

// bind assigns the loop names for one item.
func (s *For) bind(ctx *lang.Context, it pair) {
	if len(s.Names) < 2 {
		ctx.SetLocal(s.Names[0], it.value)

		return
	}

	ctx.SetLocal(s.Names[0], it.key)
	ctx.SetLocal(s.Names[1], it.value)
}

// loop runs body for each item that passes cond, or els when none does.
func (s *For) loop(
	ctx *lang.Context, seq any,
	cond func() (bool, error), body, els func() error,
) error {
	items, err := s.items(seq)
	if err != nil {
		return err
	}

	for _, name := range s.Names {
		ctx.PushLocal(name, nil)
	}

	defer func() {
		for _, name := range s.Names {
			ctx.PopLocal(name)
		}
	}()

	if cond != nil {
		kept := items[:0:0]

		for _, it := range items {
			s.bind(ctx, it)

			ok, err := cond()
			if err != nil {
				return err
			}

			if ok {
				kept = append(kept, it)
			}
		}

		items = kept
	}

	if len(items) == 0 {
		if els != nil {
			return els()
		}

		return nil
	}

	l := &Loop{}

	ctx.PushLocal("loop", l)
	defer ctx.PopLocal("loop")

	for i, it := range items {
		l.advance(i, items)
		s.bind(ctx, it)

		if err := body(); err != nil {
			return err
		}
	}

	return nil
}

func (s *For) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	seq, err := s.Seq.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	var cond func() (bool, error)
	if s.Cond != nil {
		cond = func() (bool, error) {
			v, err := s.Cond.Render(ctx, data, out)

			return lang.Truth(v), err
		}
	}

	var els func() error
	if s.Else != nil {
		els = func() error {
			_, err := s.Else.Render(ctx, data, out)

			return err
		}
	}

	return nil, s.loop(ctx, seq, cond,
		func() error {
			_, err := s.Body.Render(ctx, data, out)

			return err
		}, els)
}

func (s *For) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	seq, err := s.Seq.Compile(cc)
	if err != nil {
		return nil, err
	}

	cc.StartScope()

	for _, name := range append([]string{"loop"}, s.Names...) {
		cc.UncacheQuery(name)
	}

	var cond lang.Compiled
	if s.Cond != nil {
		if cond, err = s.Cond.Compile(cc); err != nil {
			cc.EndScope()

			return nil, err
		}
	}

	body, err := cc.Sequence(s.Body.Children())

	cc.EndScope()

	if err != nil {
		return nil, err
	}

	var els lang.Compiled
	if s.Else != nil {
		if els, err = cc.Scoped(s.Else.Children()); err != nil {
			return nil, err
		}
	}

	return func(x *lang.Exec, data any) (any, error) {
		v, err := seq(x, data)
		if err != nil {
			return nil, err
		}

		var condFn func() (bool, error)
		if cond != nil {
			condFn = func() (bool, error) {
				v, err := cond(x, data)

				return lang.Truth(v), err
			}
		}

		var elsFn func() error
		if els != nil {
			elsFn = func() error {
				_, err := els(x, data)

				return err
			}
		}

		return nil, s.loop(x.Context(), v, condFn,
			func() error {
				_, err := body(x, data)

				return err
			}, elsFn)
	}, nil
}
