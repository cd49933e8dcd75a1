package lang

import (
	"strconv"
)

// TokenKind identifies the lexical class of a [Token].
type TokenKind uint8

// Token kinds visible to the parser.
const (
	TokenText TokenKind = iota
	TokenWhitespace
	TokenComment
	TokenExprBegin
	TokenExprEnd
	TokenStmtBegin
	TokenStmtEnd
	TokenIdentifier
	TokenInteger
	TokenFloat
	TokenStringSingle
	TokenStringDouble
	TokenSymbol

	// Whitespace-control variants of the statement delimiters. The lexer
	// collapses them to TokenStmtBegin/TokenStmtEnd before they leave it.
	tokenStmtBeginTrim
	tokenStmtBeginAdd
	tokenStmtEndTrim
	tokenStmtEndAdd

	tokenNone TokenKind = 0xff
)

var tokenKindName = map[TokenKind]string{
	TokenText:          "text",
	TokenWhitespace:    "whitespace",
	TokenComment:       "comment",
	TokenExprBegin:     "expr_begin",
	TokenExprEnd:       "expr_end",
	TokenStmtBegin:     "stmt_begin",
	TokenStmtEnd:       "stmt_end",
	TokenIdentifier:    "identifier",
	TokenInteger:       "integer",
	TokenFloat:         "float",
	TokenStringSingle:  "string_single",
	TokenStringDouble:  "string_double",
	TokenSymbol:        "symbol",
	tokenStmtBeginTrim: "stmt_begin_trim",
	tokenStmtBeginAdd:  "stmt_begin_add",
	tokenStmtEndTrim:   "stmt_end_trim",
	tokenStmtEndAdd:    "stmt_end_add",
}

// String returns the lowercase name of the token kind.
func (k TokenKind) String() string {
	if s, ok := tokenKindName[k]; ok {
		return s
	}

	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseTokenKind returns the kind whose name is s.
func ParseTokenKind(s string) (TokenKind, bool) {
	for k, name := range tokenKindName {
		if name == s && k < tokenStmtBeginTrim {
			return k, true
		}
	}

	return tokenNone, false
}

// IsString reports whether k is either quoted string kind.
func (k TokenKind) IsString() bool {
	return k == TokenStringSingle || k == TokenStringDouble
}

// public collapses whitespace-control variants to their public kind.
func (k TokenKind) public() TokenKind {
	switch k {
	case tokenStmtBeginTrim, tokenStmtBeginAdd:
		return TokenStmtBegin
	case tokenStmtEndTrim, tokenStmtEndAdd:
		return TokenStmtEnd
	default:
		return k
	}
}

// Token is a typed, line-tagged span of template source.
//
// Value holds the token text with delimiters, quotes and trim markers
// stripped. Start and End delimit the raw source bytes the token covers, so
// concatenating source[Start:End] over every token reproduces the input.
type Token struct {
	Value string
	Line  int
	Start int
	End   int
	Kind  TokenKind
}

// String formats the token for diagnostics.
func (t Token) String() string {
	return "(" + strconv.Itoa(t.Line) + ", " + t.Kind.String() + ", " +
		strconv.Quote(t.Value) + ")"
}

// literal returns the token as it would be written in a template, with
// delimiters and quotes restored.
func (t Token) literal(source string) string {
	if source != "" && t.End <= len(source) && t.Start < t.End {
		return source[t.Start:t.End]
	}

	switch t.Kind {
	case TokenExprBegin:
		return "{{"
	case TokenExprEnd:
		return "}}"
	case TokenStmtBegin:
		return "{%"
	case TokenStmtEnd:
		return "%}"
	case TokenComment:
		return "{#" + t.Value + "#}"
	case TokenStringSingle:
		return "'" + t.Value + "'"
	case TokenStringDouble:
		return `"` + t.Value + `"`
	default:
		return t.Value
	}
}
