package core

import (
	"io"

	"github.com/ardnew/cairn/lang"
)

// If renders the body of the first branch whose condition is true:
//
//	{% if a %}...{% elif b %}...{% else %}...{% endif %}
type If struct {
	lang.StatementBase

	Conds  []*lang.Expression
	Bodies []*lang.StatementBody
	Else   *lang.StatementBody
}

func (s *If) Tag() string { return "if" }

func (s *If) Parse(p *lang.Parser) error {
	for {
		cond, err := p.ParseExpression()
		if err != nil {
			return err
		}

		if err := endStatement(p); err != nil {
			return err
		}

		body, tag, err := p.ParseUntil("elif", "else", "endif")
		if err != nil {
			return err
		}

		s.Conds = append(s.Conds, cond)
		s.Bodies = append(s.Bodies, body)

		if _, err := p.ExpectIdentifier(tag); err != nil {
			return err
		}

		p.SkipWhitespace()

		switch tag {
		case "elif":
			continue
		case "else":
			if err := p.ExpectStatementEnd(); err != nil {
				return err
			}

			if s.Else, _, err = p.ParseUntil("endif"); err != nil {
				return err
			}

			_, err = p.ExpectIdentifier("endif")

			return err
		}

		return nil
	}
}

// Children lists each condition followed by its body, then the else body.
func (s *If) Children() []lang.Node {
	nodes := make([]lang.Node, 0, 2*len(s.Conds)+1)
	for i, cond := range s.Conds {
		nodes = append(nodes, cond, s.Bodies[i])
	}

	if s.Else != nil {
		nodes = append(nodes, s.Else)
	}

	return nodes
}

func (s *If) Attrs() map[string]any {
	if s.Else == nil {
		return nil
	}

	return map[string]any{"else": true}
}

func (s *If) Restore(attrs map[string]any, children []lang.Node) error {
	if hasElse, _ := attrs["else"].(bool); hasElse {
		if len(children) == 0 {
			return errChildren
		}

		els, err := asBody(children[len(children)-1])
		if err != nil {
			return err
		}

		s.Else, children = els, children[:len(children)-1]
	}

	if len(children)%2 != 0 {
		return errChildren
	}

	for i := 0; i < len(children); i += 2 {
		cond, err := asExpr(children[i])
		if err != nil {
			return err
		}

		b, err := asBody(children[i+1])
		if err != nil {
			return err
		}

		s.Conds = append(s.Conds, cond)
		s.Bodies = append(s.Bodies, b)
	}

	return nil
}

func (s *If) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	for i, cond := range s.Conds {
		v, err := cond.Render(ctx, data, out)
		if err != nil {
			return nil, err
		}

		if lang.Truth(v) {
			return s.Bodies[i].Render(ctx, data, out)
		}
	}

	if s.Else != nil {
		return s.Else.Render(ctx, data, out)
	}

	return nil, nil
}

func (s *If) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	conds := make([]lang.Compiled, len(s.Conds))
	bodies := make([]lang.Compiled, len(s.Bodies))

	for i, cond := range s.Conds {
		c, err := cond.Compile(cc)
		if err != nil {
			return nil, err
		}

		b, err := cc.Scoped(s.Bodies[i].Children())
		if err != nil {
			return nil, err
		}

		conds[i], bodies[i] = c, b
	}

	var els lang.Compiled

	if s.Else != nil {
		var err error
		if els, err = cc.Scoped(s.Else.Children()); err != nil {
			return nil, err
		}
	}

	return func(x *lang.Exec, data any) (any, error) {
		for i, cond := range conds {
			v, err := cond(x, data)
			if err != nil {
				return nil, err
			}

			if lang.Truth(v) {
				return bodies[i](x, data)
			}
		}

		if els != nil {
			return els(x, data)
		}

		return nil, nil
	}, nil
}
