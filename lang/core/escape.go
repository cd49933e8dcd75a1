package core

import (
	"io"
	"strings"

	"github.com/ardnew/cairn/lang"
)

// Autoescape switches HTML escaping of output for its body:
//
//	{% autoescape false %}{{ html }}{% endautoescape %}
//
// Without an argument escaping is turned on.
type Autoescape struct {
	lang.StatementBase

	On   bool
	Body *lang.StatementBody
}

func (s *Autoescape) Tag() string { return "autoescape" }

func (s *Autoescape) Parse(p *lang.Parser) error {
	s.On = true

	if p.PeekKind() == lang.TokenIdentifier {
		tok, _ := p.Read()

		switch strings.ToLower(tok.Value) {
		case "true", "on":
		case "false", "off":
			s.On = false
		default:
			return p.Errorf(lang.ErrUnexpectedToken,
				"autoescape expects true or false, got %q", tok.Value)
		}
	}

	if err := endStatement(p); err != nil {
		return err
	}

	var err error
	if s.Body, _, err = p.ParseUntil("endautoescape"); err != nil {
		return err
	}

	_, err = p.ExpectIdentifier("endautoescape")

	return err
}

func (s *Autoescape) Children() []lang.Node { return []lang.Node{s.Body} }

func (s *Autoescape) Attrs() map[string]any { return map[string]any{"on": s.On} }

func (s *Autoescape) Restore(attrs map[string]any, children []lang.Node) error {
	if len(children) != 1 {
		return errChildren
	}

	s.On, _ = attrs["on"].(bool)

	var err error
	s.Body, err = asBody(children[0])

	return err
}

func (s *Autoescape) Render(ctx *lang.Context, data any, out io.StringWriter) (any, error) {
	prev := ctx.SetAutoescape(s.On)
	defer ctx.SetAutoescape(prev)

	return s.Body.Render(ctx, data, out)
}

func (s *Autoescape) Compile(cc *lang.Compiler) (lang.Compiled, error) {
	body, err := cc.Scoped(s.Body.Children())
	if err != nil {
		return nil, err
	}

	on := s.On

	return func(x *lang.Exec, data any) (any, error) {
		prev := x.Context().SetAutoescape(on)
		defer x.Context().SetAutoescape(prev)

		return body(x, data)
	}, nil
}

// Raw writes its content verbatim, without interpreting tags:
//
//	{% raw %}{{ not evaluated }}{% endraw %}
type Raw struct {
	lang.StatementBase

	Text string
}

func (s *Raw) Tag() string { return "raw" }

func (s *Raw) Parse(p *lang.Parser) error {
	if err := p.ExpectStatementEnd(); err != nil {
		return err
	}

	var sb strings.Builder

	for {
		tok, ok := p.Read()
		if !ok {
			return p.Errorf(lang.ErrUnexpectedEOF,
				"unexpected end of template, expected endraw")
		}

		if tok.Kind != lang.TokenStmtBegin {
			sb.WriteString(p.Literal(tok))

			continue
		}

		pending := p.Literal(tok)

		if ws, ok := p.Peek(); ok && ws.Kind == lang.TokenWhitespace {
			p.Read()

			pending += p.Literal(ws)
		}

		if p.IsNext(lang.TokenIdentifier, "endraw") {
			p.Read()
			s.Text = sb.String()

			return nil
		}

		sb.WriteString(pending)
	}
}

func (s *Raw) Children() []lang.Node { return nil }

func (s *Raw) Attrs() map[string]any { return map[string]any{"text": s.Text} }

func (s *Raw) Restore(attrs map[string]any, children []lang.Node) error {
	if len(children) != 0 {
		return errChildren
	}

	s.Text, _ = attrs["text"].(string)

	return nil
}

func (s *Raw) Render(_ *lang.Context, _ any, out io.StringWriter) (any, error) {
	_, err := out.WriteString(s.Text)

	return nil, err
}

func (s *Raw) Compile(*lang.Compiler) (lang.Compiled, error) {
	text := s.Text

	return func(x *lang.Exec, _ any) (any, error) {
		_, err := x.Out().WriteString(text)

		return nil, err
	}, nil
}
