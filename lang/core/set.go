package core

import (
	"io"
	"strings"

	"github.com/ardnew/cairn/lang"
)

// Set binds a local variable, either to an expression or to the rendered
// output of a body:
//
//	{% set x = a + 1 %}
//	{% set greeting %}Hello {{ name }}{% endset %}
type Set struct {
	lang.StatementBase

	Name  string
	Value *lang.Expression
	Body  *lang.StatementBody
}

func (s *Set) Tag() string { return "set" }

func (s *Set) Parse(p *lang.Parser) error {
	name, err := p.ExpectIdentifier()
	if err != nil {
		return err
	}

	s.Name = name

	p.SkipWhitespace()

	if p.PeekKind() == lang.TokenStmtEnd {
		p.Read()

		if s.Body, _, err = p.ParseUntil("endset"); err != nil {
			return err
		}

		_, err = p.ExpectIdentifier("endset")

		return err
	}

	if err := p.ExpectSymbol("="); err != nil {
		return err
	}

	p.SkipWhitespace()

	s.Value, err = p.ParseExpression()

	return err
}

func (s *Set) Children() []lang.Node {
	if s.Body != nil {
		return []lang.Node{s.Body}
	}

	return []lang.Node{s.Value}
}

func (s *Set) Attrs() map[string]any { return map[string]any{"name": s.Name} }

func (s *Set) Restore(attrs map[string]any, children []lang.Node) error {
	s.Name, _ = attrs["name"].(string)
	if s.Name == "" || len(children) != 1 {
		return errChildren
	}

	if b, ok := children[0].(*lang.StatementBody); ok {
		s.Body = b

		return nil
	}

	var err error
	s.Value, err = asExpr(children[0])

	return err
}

func (s *Set) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	if s.Body != nil {
		var sb strings.Builder
		if _, err := s.Body.Render(ctx, data, &sb); err != nil {
			return nil, err
		}

		ctx.SetLocal(s.Name, lang.Safe(sb.String()))

		return nil, nil
	}

	v, err := s.Value.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	ctx.SetLocal(s.Name, v)

	return nil, nil
}

func (s *Set) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	name := s.Name

	if s.Body != nil {
		body, err := cc.Scoped(s.Body.Children())
		if err != nil {
			return nil, err
		}

		return func(x *lang.Exec, data any) (any, error) {
			var sb strings.Builder

			err := x.WithOut(&sb, func() error {
				_, err := body(x, data)

				return err
			})
			if err != nil {
				return nil, err
			}

			x.Context().SetLocal(name, lang.Safe(sb.String()))

			return nil, nil
		}, nil
	}

	value, err := s.Value.Compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *lang.Exec, data any) (any, error) {
		v, err := value(x, data)
		if err != nil {
			return nil, err
		}

		x.Context().SetLocal(name, v)

		return nil, nil
	}, nil
}
