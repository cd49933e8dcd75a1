package core

import (
	"errors"
	"io"
	"strings"

	"github.com/ardnew/cairn/lang"
)

// templateRef is the target of a statement that renders another template.
// A constant name is resolved once at compile time.
type templateRef struct {
	Name *lang.Expression
}

// IncludeName returns the target name when it is a string constant.
func (r *templateRef) IncludeName() (string, bool) {
	if r.Name == nil {
		return "", false
	}

	c, ok := r.Name.Child.(*lang.Const)
	if !ok || c.Kind() != lang.KindString {
		return "", false
	}

	s, ok := c.Value.(string)

	return s, ok
}

func (r *templateRef) parse(p *lang.Parser) error {
	var err error
	r.Name, err = p.ParseExpression()

	return err
}

// lookup evaluates the target name and loads the template.
func (r *templateRef) lookup(ctx *lang.Context, v any) (*lang.Template, error) {
	name, ok := v.(string)
	if !ok {
		if s, isSafe := v.(lang.Safe); isSafe {
			name, ok = string(s), true
		}
	}

	if !ok {
		return nil, errTemplateArg
	}

	return ctx.Engine().Template(name)
}

// compile returns a function that resolves the target at run time, using
// the preloaded template for a constant name until its source changes.
func (r *templateRef) compile(
	cc *lang.Compiler,
) (func(x *lang.Exec, data any) (*lang.Template, error), error) {
	if name, ok := r.IncludeName(); ok {
		if t, ok := cc.Preloaded(name); ok {
			return func(x *lang.Exec, _ any) (*lang.Template, error) {
				if t.Current() {
					return t, nil
				}

				return x.Context().Engine().Template(name)
			}, nil
		}
	}

	name, err := r.Name.Compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *lang.Exec, data any) (*lang.Template, error) {
		v, err := name(x, data)
		if err != nil {
			return nil, err
		}

		return r.lookup(x.Context(), v)
	}, nil
}

// Include renders another template in place, sharing the current context:
//
//	{% include 'header.html' %}
//	{% include name ignore missing %}
type Include struct {
	lang.StatementBase
	templateRef

	IgnoreMissing bool
}

func (s *Include) Tag() string { return "include" }

func (s *Include) Parse(p *lang.Parser) error {
	if err := s.parse(p); err != nil {
		return err
	}

	p.SkipWhitespace()

	if p.IsNext(lang.TokenIdentifier, "ignore") {
		p.Read()
		p.SkipWhitespace()

		if _, err := p.ExpectIdentifier("missing"); err != nil {
			return err
		}

		s.IgnoreMissing = true
	}

	return nil
}

func (s *Include) Children() []lang.Node { return []lang.Node{s.Name} }

func (s *Include) Attrs() map[string]any {
	if !s.IgnoreMissing {
		return nil
	}

	return map[string]any{"ignore_missing": true}
}

func (s *Include) Restore(attrs map[string]any, children []lang.Node) error {
	if len(children) != 1 {
		return errChildren
	}

	s.IgnoreMissing, _ = attrs["ignore_missing"].(bool)

	var err error
	s.Name, err = asExpr(children[0])

	return err
}

func (s *Include) run(
	t *lang.Template, err error, ctx *lang.Context, data any, out io.StringWriter,
) error {
	if err != nil {
		if s.IgnoreMissing && errors.Is(err, lang.ErrTemplateNotFound) {
			return nil
		}

		return err
	}

	return t.Run(ctx, data, out)
}

func (s *Include) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	v, err := s.Name.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	t, err := s.lookup(ctx, v)

	return nil, s.run(t, err, ctx, data, out)
}

func (s *Include) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	target, err := s.compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *lang.Exec, data any) (any, error) {
		t, err := target(x, data)

		return nil, s.run(t, err, x.Context(), data, x.Out())
	}, nil
}

// Import renders another template for its definitions only and binds its
// locals, typically macros, as a namespace:
//
//	{% import 'forms.html' as forms %}{{ forms.input('user') }}
type Import struct {
	lang.StatementBase
	templateRef

	Alias string
}

func (s *Import) Tag() string { return "import" }

func (s *Import) Parse(p *lang.Parser) error {
	if err := s.parse(p); err != nil {
		return err
	}

	p.SkipWhitespace()

	if _, err := p.ExpectIdentifier("as"); err != nil {
		return err
	}

	p.SkipWhitespace()

	alias, err := p.ExpectIdentifier()
	s.Alias = alias

	return err
}

func (s *Import) Children() []lang.Node { return []lang.Node{s.Name} }

func (s *Import) Attrs() map[string]any { return map[string]any{"alias": s.Alias} }

func (s *Import) Restore(attrs map[string]any, children []lang.Node) error {
	s.Alias, _ = attrs["alias"].(string)
	if s.Alias == "" || len(children) != 1 {
		return errChildren
	}

	var err error
	s.Name, err = asExpr(children[0])

	return err
}

func (s *Import) run(t *lang.Template, ctx *lang.Context, data any) error {
	child := ctx.CreateChild()

	var discard strings.Builder
	if err := t.Run(child, data, &discard); err != nil {
		return err
	}

	ctx.MergeChild(child, s.Alias)

	return nil
}

func (s *Import) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	v, err := s.Name.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	t, err := s.lookup(ctx, v)
	if err != nil {
		return nil, err
	}

	return nil, s.run(t, ctx, data)
}

func (s *Import) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	target, err := s.compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *lang.Exec, data any) (any, error) {
		t, err := target(x, data)
		if err != nil {
			return nil, err
		}

		return nil, s.run(t, x.Context(), data)
	}, nil
}
