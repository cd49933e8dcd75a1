package lang

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/ardnew/cairn/log"
)

// Parser builds a template AST from a token sequence.
//
// A parser is single use. Statement tags are resolved through the registry
// given to [NewParser]; a parser without one rejects every statement.
type Parser struct {
	Logger log.Logger

	registry Registry
	source   string
	next     func() (Token, error, bool)
	peeked   *Token
	err      error
	line     int
	done     bool
	used     bool
}

// NewParser returns a parser that resolves statement tags with reg, which
// may be nil.
func NewParser(reg Registry) *Parser {
	return &Parser{registry: reg, line: 1}
}

// Parse consumes tokens and returns the template they describe. The source
// text, when given, is used for error snippets and raw token text.
func (p *Parser) Parse(tokens iter.Seq2[Token, error], source string) (*Root, error) {
	if p.used {
		return nil, ErrParserReused
	}

	p.used = true
	p.source = source

	next, stop := iter.Pull2(tokens)
	defer stop()

	p.next = next

	root := &Root{}
	root.line = 1

	if _, err := p.parseContent(&root.Wrapper, nil); err != nil {
		return nil, err
	}

	p.Logger.TraceContext(context.Background(), "parse complete",
		slog.Int("nodes", len(root.children)),
		slog.Int("lines", p.line),
	)

	return root, nil
}

// Line returns the line of the most recently read token.
func (p *Parser) Line() int { return p.line }

// Source returns the template source being parsed, if known.
func (p *Parser) Source() string { return p.source }

func (p *Parser) pull() (Token, bool) {
	if p.next == nil || p.err != nil || p.done {
		return Token{}, false
	}

	tok, err, ok := p.next()
	if !ok {
		p.done = true

		return Token{}, false
	}

	if err != nil {
		p.err = err

		return Token{}, false
	}

	return tok, true
}

// Read consumes and returns the next token. It reports false at the end of
// input or after a lexer error.
func (p *Parser) Read() (Token, bool) {
	if p.peeked != nil {
		tok := *p.peeked
		p.peeked = nil
		p.line = tok.Line

		return tok, true
	}

	tok, ok := p.pull()
	if ok {
		p.line = tok.Line
	}

	return tok, ok
}

// Peek returns the next token without consuming it.
func (p *Parser) Peek() (Token, bool) {
	if p.peeked != nil {
		return *p.peeked, true
	}

	tok, ok := p.pull()
	if !ok {
		return Token{}, false
	}

	p.peeked = &tok

	return tok, true
}

// PeekKind returns the kind of the next token, or an invalid kind at the
// end of input.
func (p *Parser) PeekKind() TokenKind {
	tok, ok := p.Peek()
	if !ok {
		return tokenNone
	}

	return tok.Kind
}

// PeekValue returns the value of the next token.
func (p *Parser) PeekValue() string {
	tok, _ := p.Peek()

	return tok.Value
}

// IsNext reports whether the next token has the given kind and, if any
// values are given, one of those values.
func (p *Parser) IsNext(kind TokenKind, values ...string) bool {
	tok, ok := p.Peek()
	if !ok || tok.Kind != kind {
		return false
	}

	return len(values) == 0 || slices.Contains(values, tok.Value)
}

// Skip consumes the next token if it has the given kind.
func (p *Parser) Skip(kind TokenKind) bool {
	if !p.IsNext(kind) {
		return false
	}

	p.Read()

	return true
}

// SkipWhitespace consumes a whitespace token, if one is next.
func (p *Parser) SkipWhitespace() { p.Skip(TokenWhitespace) }

// ExpectKind consumes the next token, which must have one of kinds.
func (p *Parser) ExpectKind(kinds ...TokenKind) (Token, error) {
	tok, ok := p.Read()
	if !ok {
		return Token{}, p.eof()
	}

	if !slices.Contains(kinds, tok.Kind) {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}

		return Token{}, p.errorAt(ErrUnexpectedToken, tok,
			"expected "+strings.Join(names, " or ")+", got")
	}

	return tok, nil
}

// Expect consumes the next token, which must have the given kind and
// value.
func (p *Parser) Expect(kind TokenKind, value string) (Token, error) {
	tok, err := p.ExpectKind(kind)
	if err != nil {
		return Token{}, err
	}

	if tok.Value != value {
		return Token{}, p.errorAt(ErrUnexpectedToken, tok,
			fmt.Sprintf("expected %q, got", value))
	}

	return tok, nil
}

// ExpectIdentifier consumes an identifier. If names are given, the
// identifier must be one of them.
func (p *Parser) ExpectIdentifier(names ...string) (string, error) {
	tok, err := p.ExpectKind(TokenIdentifier)
	if err != nil {
		return "", err
	}

	if len(names) > 0 && !slices.Contains(names, tok.Value) {
		return "", p.errorAt(ErrUnexpectedToken, tok,
			"expected "+strings.Join(names, " or ")+", got")
	}

	return tok.Value, nil
}

// ExpectSymbol consumes the symbol s.
func (p *Parser) ExpectSymbol(s string) error {
	_, err := p.Expect(TokenSymbol, s)

	return err
}

// ExpectStatementEnd consumes the closing "%}" of a statement.
func (p *Parser) ExpectStatementEnd() error {
	_, err := p.ExpectKind(TokenStmtEnd)

	return err
}

// Literal returns tok as written in the source. Text tokens keep the
// whitespace control applied by the lexer.
func (p *Parser) Literal(tok Token) string {
	if tok.Kind == TokenText {
		return tok.Value
	}

	return tok.literal(p.source)
}

// Errorf returns a parse error at the current line.
func (p *Parser) Errorf(reason *Error, format string, args ...any) error {
	return &ParserError{
		Reason: reason,
		Msg:    fmt.Sprintf(format, args...),
		Source: p.source,
		Line:   p.line,
	}
}

func (p *Parser) errorAt(reason *Error, tok Token, msg string) error {
	lit := tok.literal(p.source)
	if len(lit) > 40 {
		lit = lit[:40] + "..."
	}

	return &ParserError{
		Reason: reason,
		Msg:    msg,
		Token:  lit,
		Source: p.source,
		Line:   tok.Line,
	}
}

// eof reports running out of input, or the lexer error that ended it.
func (p *Parser) eof() error {
	if p.err != nil {
		return p.err
	}

	return &ParserError{
		Reason: ErrUnexpectedEOF,
		Msg:    "unexpected end of template",
		Source: p.source,
		Line:   p.line,
	}
}

// ParseUntil collects template content into a statement body until a
// statement whose tag is one of tags. It returns the tag found, leaving
// the tag name as the next token.
func (p *Parser) ParseUntil(tags ...string) (*StatementBody, string, error) {
	body := &StatementBody{}
	body.line = p.line

	tag, err := p.parseContent(&body.Wrapper, tags)
	if err != nil {
		return nil, "", err
	}

	return body, tag, nil
}

func (p *Parser) parseContent(into *Wrapper, tags []string) (string, error) {
	for {
		tok, ok := p.Read()
		if !ok {
			if p.err != nil {
				return "", p.err
			}

			if len(tags) > 0 {
				return "", p.Errorf(ErrUnexpectedEOF,
					"unexpected end of template, expected %s",
					strings.Join(tags, " or "))
			}

			return "", nil
		}

		switch tok.Kind {
		case TokenText:
			if tok.Value != "" {
				into.Add(&Text{Value: tok.Value, line: tok.Line})
			}

		case TokenComment:

		case TokenExprBegin:
			p.SkipWhitespace()

			expr, err := p.parseExpression(true)
			if err != nil {
				return "", err
			}

			p.SkipWhitespace()

			if _, err := p.ExpectKind(TokenExprEnd); err != nil {
				return "", err
			}

			into.Add(&Output{Expr: expr, line: tok.Line})

		case TokenStmtBegin:
			p.SkipWhitespace()

			if next, ok := p.Peek(); ok && next.Kind == TokenIdentifier &&
				slices.Contains(tags, next.Value) {
				return next.Value, nil
			}

			w := &StatementWrapper{line: tok.Line}
			if err := w.parse(p); err != nil {
				return "", err
			}

			into.Add(w)

		default:
			return "", p.errorAt(ErrUnexpectedToken, tok, "unexpected token")
		}
	}
}

// ParseExpression parses a full expression, including operator tails.
func (p *Parser) ParseExpression() (*Expression, error) {
	return p.parseExpression(true)
}

func (p *Parser) parseExpression(withTail bool) (*Expression, error) {
	tok, ok := p.Peek()
	if !ok {
		return nil, p.eof()
	}

	e := &Expression{line: tok.Line}

	switch {
	case tok.Kind == TokenSymbol && tok.Value == "(":
		p.Read()
		p.SkipWhitespace()

		inner, err := p.parseExpression(true)
		if err != nil {
			return nil, err
		}

		p.SkipWhitespace()

		if err := p.ExpectSymbol(")"); err != nil {
			return nil, err
		}

		p.SkipWhitespace()

		if e.Child, err = p.parseFilters(inner); err != nil {
			return nil, err
		}

	case tok.Kind == TokenSymbol && tok.Value == "[":
		p.Read()

		list, err := p.parseList(tok.Line)
		if err != nil {
			return nil, err
		}

		p.SkipWhitespace()

		if e.Child, err = p.parseFilters(list); err != nil {
			return nil, err
		}

	case tok.Kind == TokenIdentifier && tok.Value == "not":
		p.Read()
		p.SkipWhitespace()

		operand, err := p.parseExpression(false)
		if err != nil {
			return nil, err
		}

		e.Child = &Not{Child: operand, line: tok.Line}

	default:
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}

		p.SkipWhitespace()

		if e.Child, err = p.parseFilters(v); err != nil {
			return nil, err
		}
	}

	p.SkipWhitespace()

	if withTail {
		if err := p.parseTail(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// parseTail folds trailing binary operators into e.
func (p *Parser) parseTail(e *Expression) error {
	for {
		tok, ok := p.Peek()
		if !ok {
			return nil
		}

		var (
			op     *Operator
			negate bool
		)

		switch tok.Kind {
		case TokenIdentifier:
			w, found := wordOperators[tok.Value]
			if !found {
				return nil
			}

			p.Read()
			p.SkipWhitespace()

			if !w.Binary {
				if w.Name != "not" || !p.IsNext(TokenIdentifier, "in") {
					return p.errorAt(ErrInvalidOperator, tok, "operator is not binary")
				}

				p.Read()
				p.SkipWhitespace()

				w, negate = wordOperators["in"], true
			}

			if w.Name == "is" && p.IsNext(TokenIdentifier, "not") {
				p.Read()
				p.SkipWhitespace()

				negate = true
			}

			op = w

		case TokenSymbol:
			if !operatorStart(tok.Value) {
				return nil
			}

			p.Read()

			lexeme := tok.Value
			if next, ok := p.Peek(); ok && next.Kind == TokenSymbol {
				if _, found := symbolOperators[lexeme+next.Value]; found {
					p.Read()

					lexeme += next.Value
				}
			}

			s, found := symbolOperators[lexeme]
			if !found {
				return p.errorAt(ErrInvalidOperator, tok, "invalid operator")
			}

			p.SkipWhitespace()

			op = s

		default:
			return nil
		}

		b := &Binary{Op: op, Negate: negate, line: tok.Line}

		right, err := p.parseExpression(false)
		if err != nil {
			return err
		}

		b.Right = right
		e.Child = graft(e.Child, b)
	}
}

// parseValue parses a literal or a variable path.
func (p *Parser) parseValue() (Node, error) {
	tok, ok := p.Read()
	if !ok {
		return nil, p.eof()
	}

	switch tok.Kind {
	case TokenIdentifier:
		if kw, ok := keywordConst[tok.Value]; ok {
			return NewConst(kw.kind, kw.value, tok.Line), nil
		}

		return p.parseQuery(tok, true)

	case TokenStringSingle, TokenStringDouble, TokenInteger, TokenFloat:
		return p.literal(tok, false)

	case TokenSymbol:
		if tok.Value == "-" {
			num, err := p.ExpectKind(TokenInteger, TokenFloat)
			if err != nil {
				return nil, err
			}

			return p.literal(num, true)
		}
	}

	return nil, p.errorAt(ErrUnexpectedToken, tok, "unexpected token")
}

func (p *Parser) literal(tok Token, negative bool) (Node, error) {
	c, err := constFromToken(tok, negative)
	if err != nil {
		return nil, p.errorAt(ErrUnexpectedToken, tok, "invalid number")
	}

	return c, nil
}

// parseFilters wraps v in each "|name(args)" that follows.
func (p *Parser) parseFilters(v Node) (Node, error) {
	for p.IsNext(TokenSymbol, "|") {
		bar, _ := p.Read()
		p.SkipWhitespace()

		name, err := p.ExpectIdentifier()
		if err != nil {
			return nil, err
		}

		f := &Filter{Name: name, Value: v, line: bar.Line}

		if p.IsNext(TokenSymbol, "(") {
			p.Read()

			if f.Args, err = p.parseArgs(); err != nil {
				return nil, err
			}
		}

		v = f

		p.SkipWhitespace()
	}

	return v, nil
}

// parseArgs parses a comma-separated argument list after "(" up to and
// including ")".
func (p *Parser) parseArgs() ([]Node, error) {
	var args []Node

	p.SkipWhitespace()

	for !p.IsNext(TokenSymbol, ")") {
		if len(args) > 0 {
			if err := p.ExpectSymbol(","); err != nil {
				return nil, err
			}

			p.SkipWhitespace()
		}

		arg, err := p.parseExpression(true)
		if err != nil {
			return nil, err
		}

		args = append(args, arg)

		p.SkipWhitespace()
	}

	p.Read()

	return args, nil
}

// parseList parses list items after "[" up to and including "]".
func (p *Parser) parseList(line int) (*List, error) {
	l := &List{line: line}

	p.SkipWhitespace()

	for !p.IsNext(TokenSymbol, "]") {
		if len(l.Items) > 0 {
			if err := p.ExpectSymbol(","); err != nil {
				return nil, err
			}

			p.SkipWhitespace()

			if p.IsNext(TokenSymbol, "]") {
				break
			}
		}

		item, err := p.parseExpression(true)
		if err != nil {
			return nil, err
		}

		l.Items = append(l.Items, item)

		p.SkipWhitespace()
	}

	p.Read()

	return l, nil
}

// parseQuery parses one path segment named by tok and any chained tail.
func (p *Parser) parseQuery(tok Token, head bool) (*Query, error) {
	q := &Query{Name: tok.Value, Head: head, line: tok.Line}

	switch {
	case p.IsNext(TokenSymbol, "["):
		p.Read()

		if err := p.parseSubscript(q); err != nil {
			return nil, err
		}

	case p.IsNext(TokenSymbol, "("):
		p.Read()

		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}

		q.Type, q.Args = QueryCall, args
	}

	if p.IsNext(TokenSymbol, ".") {
		p.Read()

		name, err := p.ExpectKind(TokenIdentifier)
		if err != nil {
			return nil, err
		}

		if q.Tail, err = p.parseQuery(name, false); err != nil {
			return nil, err
		}
	}

	return q, nil
}

// parseSubscript parses an index, slice or key after "[" up to and
// including "]". Indices and slice bounds are integer literals; any other
// expression is a mapping key.
func (p *Parser) parseSubscript(q *Query) error {
	p.SkipWhitespace()

	var first *Expression

	if !p.IsNext(TokenSymbol, ":") {
		e, err := p.parseExpression(true)
		if err != nil {
			return err
		}

		first = e

		p.SkipWhitespace()
	}

	switch {
	case p.IsNext(TokenSymbol, ":"):
		colon, _ := p.Read()
		p.SkipWhitespace()

		q.Type, q.Slice = QueryArrayItem, true

		if first != nil {
			lo, ok := intLiteral(first)
			if !ok {
				return p.errorAt(ErrUnexpectedToken, colon, "slice bounds must be integers before")
			}

			q.Index1 = &lo
		}

		if !p.IsNext(TokenSymbol, "]") {
			e, err := p.parseExpression(true)
			if err != nil {
				return err
			}

			hi, ok := intLiteral(e)
			if !ok {
				return p.Errorf(ErrUnexpectedToken, "slice bounds must be integers")
			}

			q.Index2 = &hi

			p.SkipWhitespace()
		}

	case first == nil:
		return p.Errorf(ErrUnexpectedToken, "empty subscript")

	default:
		if i, ok := intLiteral(first); ok {
			q.Type, q.Index1 = QueryArrayItem, &i
		} else {
			q.Type, q.Args = QueryMapItem, []Node{first}
		}
	}

	return p.ExpectSymbol("]")
}

func intLiteral(e *Expression) (int, bool) {
	c, ok := e.Child.(*Const)
	if !ok || c.kind != KindInt {
		return 0, false
	}

	i, ok := c.Value.(int64)

	return int(i), ok
}
