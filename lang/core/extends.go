package core

import (
	"io"

	"github.com/ardnew/cairn/lang"
)

// Extends renders a parent template with the blocks of the current one
// overriding the parent's. It consumes the rest of the template; content
// outside blocks is ignored.
//
//	{% extends 'base.html' %}
//	{% block title %}Home{% endblock %}
type Extends struct {
	lang.StatementBase
	templateRef

	Body *lang.StatementBody
}

func (s *Extends) Tag() string { return "extends" }

// OwnsClose reports that Extends consumes its own "%}".
func (s *Extends) OwnsClose() bool { return true }

func (s *Extends) Parse(p *lang.Parser) error {
	if err := s.parse(p); err != nil {
		return err
	}

	if err := endStatement(p); err != nil {
		return err
	}

	var err error
	s.Body, _, err = p.ParseUntil()

	return err
}

func (s *Extends) Children() []lang.Node { return []lang.Node{s.Name, s.Body} }

func (s *Extends) Attrs() map[string]any { return nil }

func (s *Extends) Restore(_ map[string]any, children []lang.Node) error {
	if len(children) != 2 {
		return errChildren
	}

	var err error
	if s.Name, err = asExpr(children[0]); err != nil {
		return err
	}

	s.Body, err = asBody(children[1])

	return err
}

// blocks returns every block statement in the body, outermost first.
func (s *Extends) blocks() []*Block {
	var found []*Block

	var walk func(nodes []lang.Node)
	walk = func(nodes []lang.Node) {
		for _, n := range nodes {
			if n == nil {
				continue
			}

			if b, ok := n.(*Block); ok {
				found = append(found, b)
			}

			walk(n.Children())
		}
	}

	walk(body(s.Body))

	return found
}

// run registers overrides, renders the parent and removes the overrides
// this statement added.
func (s *Extends) run(
	t *lang.Template, overrides map[string]lang.BlockFunc,
	ctx *lang.Context, data any, out io.StringWriter,
) error {
	var added []string

	for name, fn := range overrides {
		if ctx.SetBlock(name, fn) {
			added = append(added, name)
		}
	}

	defer func() {
		for _, name := range added {
			ctx.DeleteBlock(name)
		}
	}()

	return t.Run(ctx, data, out)
}

func (s *Extends) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	v, err := s.Name.Render(ctx, data, out)
	if err != nil {
		return nil, err
	}

	t, err := s.lookup(ctx, v)
	if err != nil {
		return nil, err
	}

	overrides := map[string]lang.BlockFunc{}

	for _, b := range s.blocks() {
		if _, ok := overrides[b.Name]; ok {
			continue
		}

		overrides[b.Name] = func(ctx *lang.Context, data any, out io.StringWriter) error {
			_, err := b.Body.Render(ctx, data, out)

			return err
		}
	}

	return nil, s.run(t, overrides, ctx, data, out)
}

func (s *Extends) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	target, err := s.compile(cc)
	if err != nil {
		return nil, err
	}

	overrides := map[string]lang.BlockFunc{}

	for _, b := range s.blocks() {
		if _, ok := overrides[b.Name]; ok {
			continue
		}

		prog, err := cc.Unit(func() (lang.Compiled, error) {
			return cc.Sequence(b.Body.Children())
		})
		if err != nil {
			return nil, err
		}

		overrides[b.Name] = prog.Execute
	}

	return func(x *lang.Exec, data any) (any, error) {
		t, err := target(x, data)
		if err != nil {
			return nil, err
		}

		return nil, s.run(t, overrides, x.Context(), data, x.Out())
	}, nil
}

// Block is a named region a child template may override:
//
//	{% block content %}default{% endblock %}
type Block struct {
	lang.StatementBase

	Name string
	Body *lang.StatementBody
}

func (s *Block) Tag() string { return "block" }

func (s *Block) Parse(p *lang.Parser) error {
	name, err := p.ExpectIdentifier()
	if err != nil {
		return err
	}

	s.Name = name

	if err := endStatement(p); err != nil {
		return err
	}

	if s.Body, _, err = p.ParseUntil("endblock"); err != nil {
		return err
	}

	if _, err := p.ExpectIdentifier("endblock"); err != nil {
		return err
	}

	p.SkipWhitespace()

	if p.PeekKind() == lang.TokenIdentifier {
		_, err = p.ExpectIdentifier(s.Name)
	}

	return err
}

func (s *Block) Children() []lang.Node { return []lang.Node{s.Body} }

func (s *Block) Attrs() map[string]any { return map[string]any{"name": s.Name} }

func (s *Block) Restore(attrs map[string]any, children []lang.Node) error {
	s.Name, _ = attrs["name"].(string)
	if s.Name == "" || len(children) != 1 {
		return errChildren
	}

	var err error
	s.Body, err = asBody(children[0])

	return err
}

func (s *Block) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	if fn, ok := ctx.Block(s.Name); ok {
		return nil, fn(ctx, data, out)
	}

	return s.Body.Render(ctx, data, out)
}

func (s *Block) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	own, err := cc.Scoped(s.Body.Children())
	if err != nil {
		return nil, err
	}

	name := s.Name

	return func(x *lang.Exec, data any) (any, error) {
		if fn, ok := x.Context().Block(name); ok {
			return nil, fn(x.Context(), data, x.Out())
		}

		return own(x, data)
	}, nil
}
