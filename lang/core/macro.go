package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/ardnew/cairn/lang"
)

// Param is a macro parameter with an optional constant default.
type Param struct {
	Name    string
	Default *lang.Const
}

// Macro defines a callable that renders its body with the arguments bound
// as locals and returns the output:
//
//	{% macro input(name, kind='text') %}<input type="{{ kind }}" name="{{ name }}">{% endmacro %}
//	{{ input('user') }}
//
// Missing arguments without a default are undefined.
type Macro struct {
	lang.StatementBase

	Name   string
	Params []Param
	Body   *lang.StatementBody
}

func (s *Macro) Tag() string { return "macro" }

func (s *Macro) Parse(p *lang.Parser) error {
	name, err := p.ExpectIdentifier()
	if err != nil {
		return err
	}

	s.Name = name

	p.SkipWhitespace()

	if err := p.ExpectSymbol("("); err != nil {
		return err
	}

	if err := s.parseParams(p); err != nil {
		return err
	}

	if err := endStatement(p); err != nil {
		return err
	}

	if s.Body, _, err = p.ParseUntil("endmacro"); err != nil {
		return err
	}

	_, err = p.ExpectIdentifier("endmacro")

	return err
}

func (s *Macro) parseParams(p *lang.Parser) error {
	for {
		p.SkipWhitespace()

		if p.IsNext(lang.TokenSymbol, ")") {
			p.Read()

			return nil
		}

		if len(s.Params) > 0 {
			if err := p.ExpectSymbol(","); err != nil {
				return err
			}

			p.SkipWhitespace()
		}

		name, err := p.ExpectIdentifier()
		if err != nil {
			return err
		}

		param := Param{Name: name}

		p.SkipWhitespace()

		if p.IsNext(lang.TokenSymbol, "=") {
			p.Read()
			p.SkipWhitespace()

			def, err := p.ParseExpression()
			if err != nil {
				return err
			}

			c, ok := def.Child.(*lang.Const)
			if !ok {
				return p.Errorf(lang.ErrUnexpectedToken,
					"default of parameter %q must be a constant", name)
			}

			param.Default = c
		} else if n := len(s.Params); n > 0 && s.Params[n-1].Default != nil {
			return p.Errorf(lang.ErrUnexpectedToken,
				"parameter %q without default follows a default", name)
		}

		s.Params = append(s.Params, param)
	}
}

// Children lists the body followed by the parameter defaults in order.
func (s *Macro) Children() []lang.Node {
	nodes := []lang.Node{s.Body}

	for _, param := range s.Params {
		if param.Default != nil {
			nodes = append(nodes, param.Default)
		}
	}

	return nodes
}

func (s *Macro) Attrs() map[string]any {
	params := make([]any, len(s.Params))
	defaults := make([]any, len(s.Params))

	for i, param := range s.Params {
		params[i] = param.Name
		defaults[i] = param.Default != nil
	}

	return map[string]any{"name": s.Name, "params": params, "defaults": defaults}
}

func (s *Macro) Restore(attrs map[string]any, children []lang.Node) error {
	s.Name, _ = attrs["name"].(string)
	params, _ := attrs["params"].([]any)
	defaults, _ := attrs["defaults"].([]any)

	if s.Name == "" || len(children) == 0 || len(params) != len(defaults) {
		return errChildren
	}

	var err error
	if s.Body, err = asBody(children[0]); err != nil {
		return err
	}

	children = children[1:]

	for i, v := range params {
		name, _ := v.(string)
		param := Param{Name: name}

		if hasDefault, _ := defaults[i].(bool); hasDefault {
			if len(children) == 0 {
				return errChildren
			}

			c, ok := children[0].(*lang.Const)
			if !ok {
				return errChildren
			}

			param.Default, children = c, children[1:]
		}

		s.Params = append(s.Params, param)
	}

	if len(children) != 0 {
		return errChildren
	}

	return nil
}

// bind checks args against the parameter list and returns a context for
// the body with the parameters bound.
func (s *Macro) bind(ctx *lang.Context, args []any) (*lang.Context, error) {
	if len(args) > len(s.Params) {
		return nil, lang.ErrMacroArgs.Wrap(fmt.Errorf(
			"%s takes %d arguments, got %d", s.Name, len(s.Params), len(args)))
	}

	child := ctx.CreateChild()

	for i, param := range s.Params {
		switch {
		case i < len(args):
			child.SetLocal(param.Name, args[i])
		case param.Default != nil:
			child.SetLocal(param.Name, param.Default.Value)
		default:
			child.SetLocal(param.Name, ctx.Undefined())
		}
	}

	return child, nil
}

// define binds the macro in ctx. run renders the body with the bound
// context.
func (s *Macro) define(
	ctx *lang.Context,
	run func(ctx *lang.Context, data any, out io.StringWriter) error,
) {
	ctx.SetLocal(s.Name, lang.ContextFunc(
		func(caller *lang.Context, data any, _ io.StringWriter, args ...any) (any, error) {
			child, err := s.bind(caller, args)
			if err != nil {
				return nil, err
			}

			var sb strings.Builder
			if err := run(child, data, &sb); err != nil {
				return nil, err
			}

			return lang.Safe(sb.String()), nil
		}))
}

func (s *Macro) Render(ctx *lang.Context, _ any, _ io.StringWriter) (any, error) {
	s.define(ctx, func(ctx *lang.Context, data any, out io.StringWriter) error {
		_, err := s.Body.Render(ctx, data, out)

		return err
	})

	return nil, nil
}

func (s *Macro) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	prog, err := cc.Unit(func() (lang.Compiled, error) {
		return cc.Sequence(s.Body.Children())
	})
	if err != nil {
		return nil, err
	}

	return func(x *lang.Exec, _ any) (any, error) {
		s.define(x.Context(), prog.Execute)

		return nil, nil
	}, nil
}
