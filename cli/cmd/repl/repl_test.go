package repl

import (
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/cairn/lang"
	"github.com/ardnew/cairn/lang/core"
	"github.com/ardnew/cairn/log"
)

func testModel(t *testing.T) model {
	t.Helper()

	e, err := lang.NewEngine(lang.WithExtension(core.New()))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	data := map[string]any{
		"name": "ann",
		"user": map[string]any{"name": "Bo", "age": 7},
	}

	return newModel(t.Context(), e, data, NewHistory(""), log.Logger{})
}

func send(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()

	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(model)
	}

	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestWordAt(t *testing.T) {
	tests := []struct {
		input  string
		cursor int
		word   string
		start  int
	}{
		{"", 0, "", 0},
		{"name", 4, "name", 0},
		{"name", 2, "name", 0},
		{"x|upp", 5, "upp", 2},
		{"user.na", 7, "na", 5},
		{"a + ", 4, "", 4},
		{"{%if", 4, "if", 2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			word, start, _ := wordAt(tt.input, tt.cursor)
			if word != tt.word || start != tt.start {
				t.Errorf("wordAt(%q, %d) = %q@%d, want %q@%d",
					tt.input, tt.cursor, word, start, tt.word, tt.start)
			}
		})
	}
}

func TestSlotAt(t *testing.T) {
	tests := []struct {
		input string
		slot  slot
		path  string
	}{
		{"", slotName, ""},
		{"x + ", slotName, ""},
		{"x|", slotFilter, ""},
		{"x | ", slotFilter, ""},
		{"x is ", slotTest, ""},
		{"x is not ", slotTest, ""},
		{"{% ", slotTag, ""},
		{"{%- ", slotTag, ""},
		{"user.", slotMember, "user"},
		{"1 + a.b.", slotMember, "a.b"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, path := slotAt(tt.input, len(tt.input))
			if s != tt.slot || path != tt.path {
				t.Errorf("slotAt(%q) = %v %q, want %v %q", tt.input, s, path, tt.slot, tt.path)
			}
		})
	}
}

func TestOpenCall(t *testing.T) {
	tests := []struct {
		input string
		want  call
		ok    bool
	}{
		{"x|join(', '", call{name: "join", filter: true}, true},
		{"range(1, 2", call{name: "range", arg: 1}, true},
		{"f(a(b), ", call{name: "f", arg: 1}, true},
		{"path.cat(cwd(), ", call{name: "path.cat", arg: 1}, true},
		{"f(x)", call{}, false},
		{"no call", call{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := openCall(tt.input, len(tt.input))
			if ok != tt.ok || got != tt.want {
				t.Errorf("openCall(%q) = %+v %v, want %+v %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestModel_Signature(t *testing.T) {
	m := testModel(t)

	tests := []struct {
		call call
		want []string
	}{
		{call{name: "join", filter: true}, []string{"...string"}},
		{call{name: "replace", filter: true}, []string{"string", "string"}},
		{call{name: "range"}, []string{"...int"}},
	}

	for _, tt := range tests {
		t.Run(tt.call.name, func(t *testing.T) {
			got, ok := m.signature(tt.call)
			if !ok || !slices.Equal(got, tt.want) {
				t.Errorf("signature(%+v) = %v %v, want %v", tt.call, got, ok, tt.want)
			}
		})
	}

	if _, ok := m.signature(call{name: "name"}); ok {
		t.Error("signature of a data string reported a function")
	}
}

func TestModel_Candidates(t *testing.T) {
	m := testModel(t)

	if got := m.candidates(slotMember, "user"); !slices.Equal(got, []string{"age", "name"}) {
		t.Errorf("members of user = %v", got)
	}

	names := m.candidates(slotName, "")
	for _, want := range []string{"name", "user", "range", "now"} {
		if !slices.Contains(names, want) {
			t.Errorf("top-level candidates %v lack %q", names, want)
		}
	}

	if tags := m.candidates(slotTag, ""); !slices.Contains(tags, "for") {
		t.Errorf("tag candidates %v lack for", tags)
	}
}

func TestSnippet(t *testing.T) {
	tests := map[string]string{
		"name":                   "{{ name }}",
		"{{ name }}!":            "{{ name }}!",
		"{% if x %}y{% endif %}": "{% if x %}y{% endif %}",
		"{# note #}":             "{# note #}",
	}

	for in, want := range tests {
		if got := snippet(in); got != want {
			t.Errorf("snippet(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestModel_RenderAndSet(t *testing.T) {
	m := testModel(t)

	out, err := m.render("user.name|upper ~ '!'")
	if err != nil || out != "BO!" {
		t.Fatalf("render() = %q, %v, want BO!", out, err)
	}

	m, _ = m.command("set n=3")

	if fmt.Sprint(m.data["n"]) != "3" {
		t.Fatalf("set n=3 stored %#v", m.data["n"])
	}

	if out, err = m.render("n * 2"); err != nil || out != "6" {
		t.Errorf("render(n * 2) = %q, %v, want 6", out, err)
	}

	m, _ = m.command("unset n")

	if _, ok := m.data["n"]; ok {
		t.Error("unset n kept the key")
	}

	if _, err = m.render("1 +"); err == nil {
		t.Error("render(1 +) succeeded")
	}
}

func TestModel_TabCompletes(t *testing.T) {
	m := send(t, testModel(t), runes("name|wordc"))

	if len(m.found) != 1 || m.found[0].Str != "wordcount" {
		t.Fatalf("matches = %v, want [wordcount]", m.found)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})

	if got := m.input.Value(); got != "name|wordcount" {
		t.Errorf("input after tab = %q", got)
	}
}

func TestModel_CommandMode(t *testing.T) {
	m := send(t, testModel(t), runes("name"), tea.KeyMsg{Type: tea.KeyEsc})

	if m.mode != modeCtrl || m.input.Value() != "" {
		t.Fatalf("after esc: mode %v input %q", m.mode, m.input.Value())
	}

	m = send(t, m, runes("qu"))

	if len(m.found) != 1 || m.found[0].Str != "quit" {
		t.Fatalf("command matches = %v", m.found)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	if m.mode != modeRender || m.input.Value() != "name" {
		t.Fatalf("back in render mode: input %q", m.input.Value())
	}
}

func TestModel_Quit(t *testing.T) {
	m := send(t, testModel(t), tea.KeyMsg{Type: tea.KeyEsc}, runes("quit"))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !next.(model).quitting || cmd == nil {
		t.Fatal("quit did not stop the program")
	}

	if e, ok := next.(model).history.Entry(0); !ok || e != (Entry{Line: "quit", Mode: modeCtrl}) {
		t.Errorf("history entry = %+v %v", e, ok)
	}
}

func TestHistory_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), historyFile)
	h := NewHistory(path)

	for _, e := range []Entry{
		{"name", modeRender},
		{"help", modeCtrl},
		{"name", modeRender},
		{"r x", modeRender},
		{"help", modeCtrl},
	} {
		if err := h.Add(e.Line, e.Mode); err != nil {
			t.Fatalf("Add(%q) error = %v", e.Line, err)
		}
	}

	want := []Entry{{"name", modeRender}, {"r x", modeRender}, {"help", modeCtrl}}

	loaded := NewHistory(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, hist := range []*History{h, loaded} {
		if hist.Len() != len(want) {
			t.Fatalf("Len() = %d, want %d", hist.Len(), len(want))
		}

		for i, w := range want {
			if got, _ := hist.Entry(i); got != w {
				t.Errorf("Entry(%d) = %+v, want %+v", i, got, w)
			}
		}
	}
}

func TestModel_HistoryWalk(t *testing.T) {
	m := testModel(t)
	_ = m.history.Add("name", modeRender)
	_ = m.history.Add("data", modeCtrl)
	m.histAt = m.history.Len()

	m = send(t, m, tea.KeyMsg{Type: tea.KeyUp})

	if m.mode != modeCtrl || m.input.Value() != "data" {
		t.Fatalf("up: mode %v input %q", m.mode, m.input.Value())
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyUp})

	if m.mode != modeRender || m.input.Value() != "name" {
		t.Fatalf("up again: mode %v input %q", m.mode, m.input.Value())
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})

	if m.input.Value() != "" || m.histAt != m.history.Len() {
		t.Errorf("down past end: input %q at %d", m.input.Value(), m.histAt)
	}
}
