package repl

import (
	"maps"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/cairn/lang"
)

// commands are the control-mode commands.
var commands = []string{"help", "names", "data", "set", "unset", "edit", "clear", "quit"}

func isBoundary(r rune) bool {
	return strings.ContainsRune(" \t.()[]+-*/%<>=!|,~{}'\"", r)
}

// wordAt returns the word around cursor and its byte bounds.
func wordAt(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))
	start, end = cursor, cursor

	for start > 0 {
		r, n := utf8.DecodeLastRuneInString(input[:start])
		if isBoundary(r) {
			break
		}

		start -= n
	}

	for end < len(input) {
		r, n := utf8.DecodeRuneInString(input[end:])
		if isBoundary(r) {
			break
		}

		end += n
	}

	return input[start:end], start, end
}

// slot is the syntactic position a completion fills.
type slot int

const (
	slotName slot = iota
	slotMember
	slotFilter
	slotTest
	slotTag
)

// slotAt classifies the text before a word starting at start. For members,
// it also returns the dotted path of the value being accessed.
func slotAt(input string, start int) (slot, string) {
	before := input[:start]

	if strings.HasSuffix(before, ".") {
		end := len(before) - 1
		pos := end

		for pos > 0 {
			r, n := utf8.DecodeLastRuneInString(before[:pos])
			if r != '.' && isBoundary(r) {
				break
			}

			pos -= n
		}

		return slotMember, before[pos:end]
	}

	trimmed := strings.TrimRight(before, " \t")

	switch {
	case strings.HasSuffix(trimmed, "|"):
		return slotFilter, ""
	case strings.HasSuffix(trimmed, "{%"), strings.HasSuffix(trimmed, "{%-"):
		return slotTag, ""
	}

	fields := strings.Fields(trimmed)
	if n := len(fields); n > 0 && len(trimmed) < len(before) {
		if fields[n-1] == "is" || (fields[n-1] == "not" && n > 1 && fields[n-2] == "is") {
			return slotTest, ""
		}
	}

	return slotName, ""
}

// candidates returns the completions for a slot.
func (m *model) candidates(s slot, path string) []string {
	names := m.engine.Names()

	switch s {
	case slotFilter:
		return names["filters"]
	case slotTest:
		return names["tests"]
	case slotTag:
		return names["statements"]
	case slotMember:
		return memberNames(m.lookup(path))
	}

	out := slices.Concat(slices.Sorted(maps.Keys(m.data)), names["globals"])
	slices.Sort(out)

	return slices.Compact(out)
}

// lookup resolves a dotted path against the data, then the globals.
func (m *model) lookup(path string) any {
	head, rest, _ := strings.Cut(path, ".")

	v, ok := m.data[head]
	if !ok {
		v, ok = m.engine.Global(head)
	}

	if !ok {
		return nil
	}

	for part := range strings.SplitSeq(rest, ".") {
		if part == "" {
			continue
		}

		mv, ok := v.(map[string]any)
		if !ok {
			return nil
		}

		v = mv[part]
	}

	return v
}

func memberNames(v any) []string {
	if m, ok := v.(map[string]any); ok {
		return slices.Sorted(maps.Keys(m))
	}

	return nil
}

// matches fuzzy-matches the word at the cursor against the candidates of
// its position. An empty word lists every member after a dot and nothing
// elsewhere.
func (m *model) matches() (fuzzy.Matches, int, int) {
	input := m.input.Value()

	word, start, end := wordAt(input, m.input.Position())

	var list []string

	if m.mode == modeCtrl {
		if start > 0 {
			return nil, start, end
		}

		list = commands
	} else {
		s, path := slotAt(input, start)
		list = m.candidates(s, path)

		if word == "" && s != slotMember {
			return nil, start, end
		}
	}

	if word == "" {
		all := make(fuzzy.Matches, len(list))
		for i, c := range list {
			all[i] = fuzzy.Match{Str: c, Index: i}
		}

		return all, start, end
	}

	return fuzzy.Find(word, list), start, end
}

// candidateBar renders matches on one line no wider than width.
func candidateBar(matches fuzzy.Matches, selected, width int) string {
	const sep = "  "

	more := hintStyle.Render("...")

	var b strings.Builder

	used := 0

	for i, match := range matches {
		item := renderMatch(match, i == selected)
		w := lipgloss.Width(item)

		if i > 0 {
			w += len(sep)
		}

		if i > 0 && used+w+lipgloss.Width(more) > width {
			b.WriteString(sep + more)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(item)

		used += w
	}

	return b.String()
}

func renderMatch(match fuzzy.Match, selected bool) string {
	base, mark := suggestionStyle, matchStyle
	if selected {
		base, mark = selectedStyle, selectedStyle.Bold(true)
	}

	var b strings.Builder

	next := 0

	for i, r := range match.Str {
		if next < len(match.MatchedIndexes) && match.MatchedIndexes[next] == i {
			b.WriteString(mark.Render(string(r)))

			next++

			continue
		}

		b.WriteString(base.Render(string(r)))
	}

	return b.String()
}

// call describes the innermost open call around the cursor.
type call struct {
	name   string
	arg    int
	filter bool // Called as "|name(...)"
}

// openCall finds the innermost unclosed parenthesis before cursor and the
// index of the argument the cursor is in.
func openCall(input string, cursor int) (call, bool) {
	cursor = min(cursor, len(input))
	depth, commas := 0, 0
	quote := rune(0)

	for i := cursor - 1; i >= 0; i-- {
		c := rune(input[i])

		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ')' || c == ']':
			depth++
		case c == '[' && depth > 0:
			depth--
		case c == '[':
			commas = 0
		case c == ',' && depth == 0:
			commas++
		case c == '(' && depth > 0:
			depth--
		case c == '(':
			end := i
			for end > 0 && input[end-1] == ' ' {
				end--
			}

			start := end
			for start > 0 {
				r, n := utf8.DecodeLastRuneInString(input[:start])
				if r != '.' && isBoundary(r) {
					break
				}

				start -= n
			}

			if start == end {
				return call{}, false
			}

			pre := strings.TrimRight(input[:start], " ")

			return call{name: input[start:end], arg: commas, filter: strings.HasSuffix(pre, "|")}, true
		}
	}

	return call{}, false
}

// signature returns the parameter types of the callable a call names.
// Filters hide the filtered value, which is bound by the pipe.
func (m *model) signature(c call) ([]string, bool) {
	var fn any

	if c.filter {
		f, ok := m.engine.Filter(c.name)
		if !ok {
			return nil, false
		}

		fn = f
	} else {
		fn = m.lookup(c.name)
	}

	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, false
	}

	params := make([]string, t.NumIn())
	for i := range params {
		pt := t.In(i)
		if t.IsVariadic() && i == t.NumIn()-1 {
			params[i] = "..." + pt.Elem().String()
		} else {
			params[i] = pt.String()
		}
	}

	if c.filter && len(params) > 0 {
		params = params[1:]
	}

	return params, true
}

// signatureHint renders name(params) with the current argument emphasized.
func signatureHint(name string, params []string, arg int) string {
	var b strings.Builder

	b.WriteString(nameStyle.Render(name))
	b.WriteString(hintStyle.Render("("))

	for i, p := range params {
		if i > 0 {
			b.WriteString(hintStyle.Render(", "))
		}

		current := i == arg || (i == len(params)-1 && arg > i && strings.HasPrefix(p, "..."))
		if current {
			b.WriteString(paramStyle.Render(p))
		} else {
			b.WriteString(hintStyle.Render(p))
		}
	}

	b.WriteString(hintStyle.Render(")"))

	return b.String()
}

// describe summarizes the names of an engine and its data for the names
// command.
func describe(e *lang.Engine, data map[string]any, category string) string {
	names := e.Names()
	names["data"] = slices.Sorted(maps.Keys(data))

	var b strings.Builder

	for _, k := range slices.Sorted(maps.Keys(names)) {
		if category != "" && k != category {
			continue
		}

		b.WriteString(nameStyle.Render(k))
		b.WriteString("\n  ")
		b.WriteString(strings.Join(names[k], " "))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
