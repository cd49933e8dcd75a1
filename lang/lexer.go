package lang

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/ardnew/cairn/log"
)

// lexMode tracks which construct the lexer is inside.
type lexMode uint8

const (
	modeText lexMode = iota
	modeExpr
	modeStmt
)

// symbols lists the characters emitted as single-character symbol tokens.
const symbols = ".:,!=+-*/<>|()[]~%"

// Lexer converts template source into tokens.
//
// TrimBlocks removes the first newline after every statement end unless the
// end is written "+%}"; LstripBlocks applies the mirror rule before every
// statement begin unless it is written "{%+".
type Lexer struct {
	Logger       log.Logger
	TrimBlocks   bool
	LstripBlocks bool
}

// match is the result of one successful rule.
type match struct {
	next    int
	lead    int // bytes stripped from the front of the matched span
	trail   int // bytes stripped from the back of the matched span
	kind    TokenKind
	mode    lexMode
	setMode bool
	flush   bool
}

// rule attempts a match at pos and reports whether it applied.
type rule struct {
	try    func(src string, pos int) (match, bool)
	name   string
	inText bool // active outside expressions and statements
	inExpr bool
	inStmt bool
}

func (r rule) active(m lexMode) bool {
	switch m {
	case modeExpr:
		return r.inExpr
	case modeStmt:
		return r.inStmt
	default:
		return r.inText
	}
}

// rules is ordered by priority; the first match wins.
var rules = []rule{
	{name: "whitespace", try: lexWhitespace, inExpr: true, inStmt: true},
	{name: "identifier", try: lexIdentifier, inExpr: true, inStmt: true},
	{name: "string", try: lexString, inExpr: true, inStmt: true},
	{name: "number", try: lexNumber, inExpr: true, inStmt: true},
	{name: "expr_begin", try: lexExprBegin, inText: true},
	{name: "stmt_begin", try: lexStmtBegin, inText: true},
	{name: "expr_end", try: lexExprEnd, inExpr: true},
	{name: "stmt_end", try: lexStmtEnd, inStmt: true},
	{name: "comment", try: lexComment, inText: true},
	{name: "symbol", try: lexSymbol, inExpr: true, inStmt: true},
	{name: "text", try: lexText, inText: true, inExpr: true, inStmt: true},
}

func lexWhitespace(src string, pos int) (match, bool) {
	i := pos
	for i < len(src) && isSpace(src[i]) {
		i++
	}

	return match{kind: TokenWhitespace, next: i}, i > pos
}

func lexIdentifier(src string, pos int) (match, bool) {
	if !isIdentStart(src[pos]) {
		return match{}, false
	}

	i := pos + 1
	for i < len(src) && isIdentPart(src[i]) {
		i++
	}

	return match{kind: TokenIdentifier, next: i}, true
}

func lexString(src string, pos int) (match, bool) {
	q := src[pos]
	if q != '\'' && q != '"' {
		return match{}, false
	}

	kind := TokenStringSingle
	if q == '"' {
		kind = TokenStringDouble
	}

	for i := pos + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			if i+1 < len(src) && src[i+1] == q {
				i++
			}
		case q:
			return match{kind: kind, next: i + 1, lead: 1, trail: 1}, true
		}
	}

	// Unterminated strings run to the end of input.
	return match{kind: kind, next: len(src), lead: 1}, true
}

func lexNumber(src string, pos int) (match, bool) {
	i := pos
	for i < len(src) && isDigit(src[i]) {
		i++
	}

	if i == pos {
		return match{}, false
	}

	// A float needs a digit right after the dot.
	if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
		i += 2
		for i < len(src) && isDigit(src[i]) {
			i++
		}

		return match{kind: TokenFloat, next: i}, true
	}

	return match{kind: TokenInteger, next: i}, true
}

func lexExprBegin(src string, pos int) (match, bool) {
	if !strings.HasPrefix(src[pos:], "{{") {
		return match{}, false
	}

	return match{
		kind: TokenExprBegin, next: pos + 2, lead: 2,
		mode: modeExpr, setMode: true,
	}, true
}

func lexStmtBegin(src string, pos int) (match, bool) {
	if !strings.HasPrefix(src[pos:], "{%") {
		return match{}, false
	}

	m := match{
		kind: TokenStmtBegin, next: pos + 2, lead: 2,
		mode: modeStmt, setMode: true,
	}

	if pos+2 < len(src) {
		switch src[pos+2] {
		case '-':
			m.kind, m.next, m.lead = tokenStmtBeginTrim, pos+3, 3
		case '+':
			m.kind, m.next, m.lead = tokenStmtBeginAdd, pos+3, 3
		}
	}

	return m, true
}

func lexExprEnd(src string, pos int) (match, bool) {
	if !strings.HasPrefix(src[pos:], "}}") {
		return match{}, false
	}

	return match{
		kind: TokenExprEnd, next: pos + 2, lead: 2,
		mode: modeText, setMode: true,
	}, true
}

func lexStmtEnd(src string, pos int) (match, bool) {
	m := match{mode: modeText, setMode: true}

	switch rest := src[pos:]; {
	case strings.HasPrefix(rest, "%}"):
		m.kind, m.next, m.lead = TokenStmtEnd, pos+2, 2
	case strings.HasPrefix(rest, "-%}"):
		m.kind, m.next, m.lead = tokenStmtEndTrim, pos+3, 3
	case strings.HasPrefix(rest, "+%}"):
		m.kind, m.next, m.lead = tokenStmtEndAdd, pos+3, 3
	default:
		return match{}, false
	}

	return m, true
}

func lexComment(src string, pos int) (match, bool) {
	if !strings.HasPrefix(src[pos:], "{#") {
		return match{}, false
	}

	end := strings.Index(src[pos+2:], "#}")
	if end < 0 {
		// Unterminated comments run to the end of input.
		return match{kind: TokenComment, next: len(src), lead: 2}, true
	}

	return match{
		kind: TokenComment, next: pos + 2 + end + 2, lead: 2, trail: 2,
	}, true
}

func lexSymbol(src string, pos int) (match, bool) {
	if strings.IndexByte(symbols, src[pos]) < 0 {
		return match{}, false
	}

	return match{kind: TokenSymbol, next: pos + 1, flush: true}, true
}

func lexText(src string, pos int) (match, bool) {
	// Always consume at least one byte, even if it is the '{' that failed
	// to open a construct.
	next := strings.IndexByte(src[pos+1:], '{')
	if next < 0 {
		return match{kind: TokenText, next: len(src)}, true
	}

	return match{kind: TokenText, next: pos + 1 + next}, true
}

// Tokenize returns every token of src.
func (l *Lexer) Tokenize(src string) ([]Token, error) {
	var tokens []Token

	for tok, err := range l.All(src) {
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, tok)
	}

	l.Logger.TraceContext(context.Background(), "lex complete",
		slog.Int("source_bytes", len(src)),
		slog.Int("token_count", len(tokens)),
	)

	return tokens, nil
}

// All returns a lazy single-pass sequence over the tokens of src. Iteration
// stops after the first error.
func (l *Lexer) All(src string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		var (
			prev    = tokenNone
			pending *Token
		)

		emit := func(t Token) bool {
			t.Kind = t.Kind.public()

			return yield(t, nil)
		}

		for tok, err := range l.raw(src) {
			if err != nil {
				yield(Token{}, err)

				return
			}

			if pending != nil {
				pending.Value = l.trimRight(pending.Value, tok.Kind)
				if !emit(*pending) {
					return
				}

				pending = nil
			}

			if tok.Kind == TokenText {
				tok.Value = l.trimLeft(tok.Value, prev)
				pending = &tok
			} else if !emit(tok) {
				return
			}

			prev = tok.Kind
		}

		if pending != nil {
			pending.Value = l.trimRight(pending.Value, tokenNone)
			emit(*pending)
		}
	}
}

// trimLeft strips the leading whitespace of a text run that follows a
// statement end of kind prev.
func (l *Lexer) trimLeft(s string, prev TokenKind) string {
	if prev != tokenStmtEndTrim &&
		!(l.TrimBlocks && prev == TokenStmtEnd) {
		return s
	}

	s = strings.TrimLeft(s, " \t")

	switch {
	case strings.HasPrefix(s, "\r\n"):
		return s[2:]
	case strings.HasPrefix(s, "\n"), strings.HasPrefix(s, "\r"):
		return s[1:]
	}

	return s
}

// trimRight strips the trailing whitespace of a text run that precedes a
// statement begin of kind next.
func (l *Lexer) trimRight(s string, next TokenKind) string {
	if next != tokenStmtBeginTrim &&
		!(l.LstripBlocks && next == TokenStmtBegin) {
		return s
	}

	s = strings.TrimRight(s, " \t")

	switch {
	case strings.HasSuffix(s, "\r\n"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "\n"), strings.HasSuffix(s, "\r"):
		return s[:len(s)-1]
	}

	return s
}

// raw yields buffered tokens with whitespace-control kinds intact.
func (l *Lexer) raw(src string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		var (
			mode = modeText
			line = 1
			pos  = 0
			cur  *Token
			buf  strings.Builder
		)

		flush := func() bool {
			if cur == nil {
				return true
			}

			cur.Value = buf.String()
			buf.Reset()

			t := *cur
			cur = nil

			return yield(t, nil)
		}

		for pos < len(src) {
			m, ok := l.next(src, pos, mode)
			if !ok || m.next <= pos {
				yield(Token{}, &LexerError{
					Input:  src[pos:],
					Line:   line,
					Offset: pos,
				})

				return
			}

			if cur == nil || cur.Kind != m.kind || m.flush {
				if !flush() {
					return
				}

				cur = &Token{Kind: m.kind, Line: line, Start: pos}
			}

			piece := src[pos+m.lead : m.next-m.trail]
			if m.kind.IsString() {
				piece = unescapeQuote(piece, src[pos])
			}

			buf.WriteString(piece)
			cur.End = m.next

			line += strings.Count(src[pos:m.next], "\n")
			pos = m.next

			if m.setMode {
				mode = m.mode
			}
		}

		flush()
	}
}

// next tries each active rule at pos in priority order.
func (l *Lexer) next(src string, pos int, mode lexMode) (match, bool) {
	for _, r := range rules {
		if !r.active(mode) {
			continue
		}

		if m, ok := r.try(src, pos); ok {
			return m, true
		}
	}

	return match{}, false
}

func unescapeQuote(s string, q byte) string {
	esc := string([]byte{'\\', q})
	if !strings.Contains(s, esc) {
		return s
	}

	return strings.ReplaceAll(s, esc, string(q))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
