package lang

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}

	return out
}

func values(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Value
	}

	return out
}

func joinSpans(src string, tokens []Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(src[t.Start:t.End])
	}

	return sb.String()
}

func TestLexer_Kinds(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		kinds  []TokenKind
		values []string
	}{
		{
			name:   "text only",
			src:    "plain { text }",
			kinds:  []TokenKind{TokenText},
			values: []string{"plain { text }"},
		},
		{
			name: "expression",
			src:  "a{{ b }}c",
			kinds: []TokenKind{
				TokenText, TokenExprBegin, TokenWhitespace, TokenIdentifier,
				TokenWhitespace, TokenExprEnd, TokenText,
			},
			values: []string{"a", "", " ", "b", " ", "", "c"},
		},
		{
			name: "statement with trim markers",
			src:  "{%- if x -%}",
			kinds: []TokenKind{
				TokenStmtBegin, TokenWhitespace, TokenIdentifier, TokenWhitespace,
				TokenIdentifier, TokenWhitespace, TokenStmtEnd,
			},
			values: []string{"", " ", "if", " ", "x", " ", ""},
		},
		{
			name:   "comment",
			src:    "{# note #}",
			kinds:  []TokenKind{TokenComment},
			values: []string{" note "},
		},
		{
			name:   "unterminated comment",
			src:    "a{# open",
			kinds:  []TokenKind{TokenText, TokenComment},
			values: []string{"a", " open"},
		},
		{
			name: "symbols are single characters",
			src:  "{{a**b}}",
			kinds: []TokenKind{
				TokenExprBegin, TokenIdentifier, TokenSymbol, TokenSymbol,
				TokenIdentifier, TokenExprEnd,
			},
			values: []string{"", "a", "*", "*", "b", ""},
		},
		{
			name: "numbers",
			src:  "{{1 2.5 3.}}",
			kinds: []TokenKind{
				TokenExprBegin, TokenInteger, TokenWhitespace, TokenFloat,
				TokenWhitespace, TokenInteger, TokenSymbol, TokenExprEnd,
			},
			values: []string{"", "1", " ", "2.5", " ", "3", ".", ""},
		},
		{
			name: "strings",
			src:  `{{'it\'s' "say \"hi\""}}`,
			kinds: []TokenKind{
				TokenExprBegin, TokenStringSingle, TokenWhitespace,
				TokenStringDouble, TokenExprEnd,
			},
			values: []string{"", "it's", " ", `say "hi"`, ""},
		},
		{
			name:   "unterminated string",
			src:    "{{ 'open",
			kinds:  []TokenKind{TokenExprBegin, TokenWhitespace, TokenStringSingle},
			values: []string{"", " ", "open"},
		},
		{
			name: "percent outside statement end",
			src:  "{{ 7 % 2 }}",
			kinds: []TokenKind{
				TokenExprBegin, TokenWhitespace, TokenInteger, TokenWhitespace,
				TokenSymbol, TokenWhitespace, TokenInteger, TokenWhitespace,
				TokenExprEnd,
			},
			values: []string{"", " ", "7", " ", "%", " ", "2", " ", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := (&Lexer{}).Tokenize(tt.src)
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}

			gotKinds := kinds(tokens)
			if len(gotKinds) != len(tt.kinds) {
				t.Fatalf("got %d tokens %v, want %d %v",
					len(gotKinds), tokens, len(tt.kinds), tt.kinds)
			}

			for i := range gotKinds {
				if gotKinds[i] != tt.kinds[i] {
					t.Errorf("token %d kind = %v, want %v", i, gotKinds[i], tt.kinds[i])
				}
			}

			gotValues := values(tokens)
			for i := range gotValues {
				if gotValues[i] != tt.values[i] {
					t.Errorf("token %d value = %q, want %q", i, gotValues[i], tt.values[i])
				}
			}

			if got := joinSpans(tt.src, tokens); got != tt.src {
				t.Errorf("spans = %q, want %q", got, tt.src)
			}
		})
	}
}

func TestLexer_Lines(t *testing.T) {
	src := "a\nb{{ x\n}}\n{% y %}"

	tokens, err := (&Lexer{}).Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	want := map[string]int{"x": 2, "y": 4}

	for _, tok := range tokens {
		if line, ok := want[tok.Value]; ok && tok.Line != line {
			t.Errorf("%q on line %d, want %d", tok.Value, tok.Line, line)
		}
	}

	if tokens[0].Line != 1 {
		t.Errorf("first token on line %d, want 1", tokens[0].Line)
	}
}

func TestLexer_Whitespace(t *testing.T) {
	tests := []struct {
		name  string
		lexer Lexer
		src   string
		text  []string
	}{
		{
			name: "trim markers strip one newline and adjacent blanks",
			src:  "a  \n\n \t{%- x -%}\t \n\nb",
			text: []string{"a  \n", "\nb"},
		},
		{
			name: "no markers keep everything",
			src:  "a \n{% x %}\n b",
			text: []string{"a \n", "\n b"},
		},
		{
			name:  "trim blocks drops newline after end",
			lexer: Lexer{TrimBlocks: true},
			src:   "a\n{% x %}\nb",
			text:  []string{"a\n", "b"},
		},
		{
			name:  "plus disables trim blocks",
			lexer: Lexer{TrimBlocks: true},
			src:   "a\n{% x +%}\nb",
			text:  []string{"a\n", "\nb"},
		},
		{
			name:  "lstrip blocks drops blanks before begin",
			lexer: Lexer{LstripBlocks: true},
			src:   "a\n  {% x %}b",
			text:  []string{"a", "b"},
		},
		{
			name:  "plus disables lstrip blocks",
			lexer: Lexer{LstripBlocks: true},
			src:   "a\n  {%+ x %}b",
			text:  []string{"a\n  ", "b"},
		},
		{
			name:  "expressions are never trimmed",
			lexer: Lexer{TrimBlocks: true, LstripBlocks: true},
			src:   "a \n{{ x }}\n b",
			text:  []string{"a \n", "\n b"},
		},
		{
			name: "crlf counts as one newline",
			src:  "a\r\n{%- x -%}\r\n\r\nb",
			text: []string{"a", "\r\nb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := tt.lexer.Tokenize(tt.src)
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}

			var text []string

			for _, tok := range tokens {
				if tok.Kind == TokenText {
					text = append(text, tok.Value)
				}
			}

			if len(text) != len(tt.text) {
				t.Fatalf("text runs = %q, want %q", text, tt.text)
			}

			for i := range text {
				if text[i] != tt.text[i] {
					t.Errorf("text run %d = %q, want %q", i, text[i], tt.text[i])
				}
			}

			if got := joinSpans(tt.src, tokens); got != tt.src {
				t.Errorf("spans = %q, want %q", got, tt.src)
			}
		})
	}
}

func TestLexer_AllStopsEarly(t *testing.T) {
	n := 0

	for range (&Lexer{}).All("a{{ b }}c{{ d }}") {
		n++
		if n == 3 {
			break
		}
	}

	if n != 3 {
		t.Errorf("visited %d tokens, want 3", n)
	}
}

func TestLexerError_Error(t *testing.T) {
	err := error(&LexerError{Input: strings.Repeat("x", 30), Line: 2, Offset: 7})

	var le *LexerError
	if !errors.As(err, &le) {
		t.Fatal("errors.As failed")
	}

	msg := err.Error()
	if !strings.Contains(msg, "line 2") || !strings.Contains(msg, "offset 7") {
		t.Errorf("Error() = %q", msg)
	}

	if !strings.Contains(msg, "...") {
		t.Errorf("Error() = %q, want truncated input", msg)
	}
}

// FuzzLexer checks that any input tokenizes without error and that the
// token spans cover the input exactly.
func FuzzLexer(f *testing.F) {
	f.Add("Hello {{ name }}!")
	f.Add("{%- if a is b -%}x{% endif %}")
	f.Add("{# unterminated")
	f.Add("{{ 'it\\'s' ~ \"q\" }}")
	f.Add("{{ 1.5 // 2 ** -3 }}")
	f.Add("{%+ raw +%}{{ }}{% endraw %}")
	f.Add("{{{%}}%}")

	f.Fuzz(func(t *testing.T, input string) {
		if !utf8.ValidString(input) {
			t.Skip("invalid UTF-8")
		}

		tokens, err := (&Lexer{TrimBlocks: true, LstripBlocks: true}).Tokenize(input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error = %v", input, err)
		}

		if got := joinSpans(input, tokens); got != input {
			t.Fatalf("spans = %q, want %q", got, input)
		}

		for i, tok := range tokens {
			if tok.Kind >= tokenStmtBeginTrim {
				t.Errorf("token %d has internal kind %v", i, tok.Kind)
			}
		}
	})
}
