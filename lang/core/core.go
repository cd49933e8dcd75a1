// Package core provides the standard statement tags, filters, tests and
// globals of the template language.
//
// Register it with an engine:
//
//	e, err := lang.NewEngine(lang.WithExtension(core.New()))
package core

import (
	"github.com/ardnew/cairn/lang"
)

// Extension is the core extension.
type Extension struct{}

// New returns the core extension.
func New() Extension { return Extension{} }

// Statements implements [lang.Extension].
func (Extension) Statements() map[string]func() lang.Statement {
	return map[string]func() lang.Statement{
		"if":         func() lang.Statement { return &If{} },
		"for":        func() lang.Statement { return &For{} },
		"set":        func() lang.Statement { return &Set{} },
		"include":    func() lang.Statement { return &Include{} },
		"import":     func() lang.Statement { return &Import{} },
		"extends":    func() lang.Statement { return &Extends{} },
		"block":      func() lang.Statement { return &Block{} },
		"macro":      func() lang.Statement { return &Macro{} },
		"autoescape": func() lang.Statement { return &Autoescape{} },
		"raw":        func() lang.Statement { return &Raw{} },
	}
}

// Filters implements [lang.Extension].
func (Extension) Filters() map[string]any { return filters() }

// Tests implements [lang.Extension].
func (Extension) Tests() map[string]any { return tests() }

// Globals implements [lang.Extension].
func (Extension) Globals() map[string]any { return globals() }

// endStatement consumes optional whitespace and the "%}" that closes the
// opening tag of a block statement.
func endStatement(p *lang.Parser) error {
	p.SkipWhitespace()

	return p.ExpectStatementEnd()
}

// body returns the children of an optional statement body.
func body(b *lang.StatementBody) []lang.Node {
	if b == nil {
		return nil
	}

	return b.Children()
}

// asBody checks that n is a statement body.
func asBody(n lang.Node) (*lang.StatementBody, error) {
	b, ok := n.(*lang.StatementBody)
	if !ok {
		return nil, lang.ErrArtifact.Wrap(errNotBody)
	}

	return b, nil
}

// asExpr checks that n is an expression.
func asExpr(n lang.Node) (*lang.Expression, error) {
	e, ok := n.(*lang.Expression)
	if !ok {
		return nil, lang.ErrArtifact.Wrap(errNotExpr)
	}

	return e, nil
}
