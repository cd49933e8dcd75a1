// Package repl renders template snippets interactively.
package repl

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/cairn/lang"
	"github.com/ardnew/cairn/log"
)

const help = `Input is rendered as a template. A line without {{ or {% is
rendered as an expression: "user.name|upper" is "{{ user.name|upper }}".

Commands (Esc toggles command mode):
  help            show this text
  names [KIND]    list statements, filters, tests, globals and data
  data            show the data as YAML
  set KEY=VALUE   set a data value, VALUE read as YAML
  unset KEY       remove a data value
  edit            edit the data in $EDITOR
  clear           clear the screen
  quit            exit

Tab and Shift-Tab cycle completions, Up and Down walk the history,
Ctrl-C clears the line and exits on an empty one.`

// mode is the input mode.
type mode int

const (
	modeRender mode = iota
	modeCtrl
)

var prompt = map[mode]string{modeRender: "» ", modeCtrl: ": "}

var (
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	ctrlStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	outputStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	paramStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle      = suggestionStyle.Bold(true)
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("4"))
)

func (m mode) style() lipgloss.Style {
	if m == modeCtrl {
		return ctrlStyle
	}

	return promptStyle
}

type (
	editedMsg   struct{ data map[string]any }
	editFailMsg struct{ err error }
)

type model struct {
	ctx     context.Context
	engine  *lang.Engine
	data    map[string]any
	logger  log.Logger
	history *History
	input   textinput.Model

	mode   mode
	saved  map[mode]string // input of the inactive mode
	histAt int

	found      fuzzy.Matches
	wordStart  int
	wordEnd    int
	selected   int
	cycling    bool
	beforeTab  string
	beforeTabX int

	width    int
	quitting bool
}

// Run starts the REPL. History is kept in dir when it is not empty.
func Run(ctx context.Context, e *lang.Engine, data map[string]any, dir string, logger log.Logger) error {
	if data == nil {
		data = map[string]any{}
	}

	path := ""
	if dir != "" {
		path = filepath.Join(dir, historyFile)
	}

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		logger.WarnContext(ctx, "history unavailable", slog.String("error", err.Error()))
	}

	logger.TraceContext(ctx, "repl start",
		slog.Int("history", h.Len()),
		slog.Int("data", len(data)),
	)

	_, err := tea.NewProgram(newModel(ctx, e, data, h, logger), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

func newModel(ctx context.Context, e *lang.Engine, data map[string]any, h *History, logger log.Logger) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(prompt[modeRender])
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	return model{
		ctx:      ctx,
		engine:   e,
		data:     data,
		logger:   logger,
		history:  h,
		input:    ti,
		saved:    map[mode]string{},
		histAt:   h.Len(),
		selected: -1,
		width:    80,
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)

		return m, nil

	case editedMsg:
		if msg.data == nil {
			return m, tea.Println(hintStyle.Render("edit cancelled"))
		}

		m.data = msg.data

		return m, tea.Println(hintStyle.Render("data updated: " + strconv.Itoa(len(m.data)) + " keys"))

	case editFailMsg:
		if errors.Is(msg.err, ErrEditDeclined) {
			return m, tea.Println(hintStyle.Render("edit discarded"))
		}

		return m, tea.Println(errorStyle.Render("edit: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var hint string

	input := m.input.Value()
	c, inCall := openCall(input, m.input.Position())

	switch {
	case m.histAt < m.history.Len():
		hint = hintStyle.Render("history " + strconv.Itoa(m.histAt+1) + "/" + strconv.Itoa(m.history.Len()))

	case strings.TrimSpace(input) == "" && m.mode == modeRender:
		hint = hintStyle.Render("type a template or an expression, Esc for commands")

	case strings.TrimSpace(input) == "":
		hint = hintStyle.Render(strings.Join(commands, " ") + " (Esc returns)")

	case len(m.found) > 0:
		hint = candidateBar(m.found, m.selected, m.width)

	case inCall && m.mode == modeRender:
		if params, ok := m.signature(c); ok {
			hint = signatureHint(c.name, params, c.arg)
		}
	}

	return m.input.View() + "\n" + hint + "\n"
}

func (m model) key(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.reset()

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if m.cycling {
			m.cycling = false
			m.refresh(true)

			return m, nil
		}

		return m.submit()

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.walk(-1), nil

	case tea.KeyDown:
		return m.walk(1), nil

	case tea.KeyEsc:
		if m.cycling {
			m.cycling = false
			m.input.SetValue(m.beforeTab)
			m.input.SetCursor(m.beforeTabX)
			m.refresh(false)

			return m, nil
		}

		return m.switchMode(1 - m.mode), nil
	}

	typed := msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace

	if msg.Type != tea.KeyRunes {
		m.cycling = false
	}

	var cmd tea.Cmd

	m.histAt = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	m.refresh(typed)

	return m, cmd
}

// reset clears completion and history navigation state.
func (m *model) reset() {
	m.cycling = false
	m.histAt = m.history.Len()
	m.refresh(false)
}

// refresh recomputes the completions. With confirm set, a word that
// already equals its only candidate is accepted.
func (m *model) refresh(confirm bool) {
	m.found, m.wordStart, m.wordEnd = m.matches()

	if !m.cycling {
		m.selected = -1
	}

	if confirm && len(m.found) == 1 && m.input.Value()[m.wordStart:m.wordEnd] == m.found[0].Str {
		m.found = nil
	}
}

func (m *model) replaceWord(s string) {
	v := m.input.Value()
	m.input.SetValue(v[:m.wordStart] + s + v[m.wordEnd:])
	m.wordEnd = m.wordStart + len(s)
	m.input.SetCursor(m.wordEnd)
}

// cycle moves the completion selection by step and writes it into the
// input. A single candidate is accepted outright.
func (m model) cycle(step int) model {
	n := len(m.found)

	switch {
	case n == 0:
		return m
	case n == 1:
		m.replaceWord(m.found[0].Str)
		m.cycling = false
		m.found = nil
		m.selected = -1

		return m
	case !m.cycling:
		m.cycling = true
		m.beforeTab = m.input.Value()
		m.beforeTabX = m.input.Position()
		m.selected = 0

		if step < 0 {
			m.selected = n - 1
		}
	default:
		m.selected = (m.selected + step + n) % n
	}

	m.replaceWord(m.found[m.selected].Str)

	return m
}

// walk moves through the history by step, switching to the mode of the
// recalled entry.
func (m model) walk(step int) model {
	at := m.histAt + step
	if at < 0 {
		return m
	}

	e, ok := m.history.Entry(at)
	if !ok {
		m.histAt = m.history.Len()
		m.input.SetValue("")
		m.refresh(false)

		return m
	}

	if e.Mode != m.mode {
		m = m.switchMode(e.Mode)
	}

	m.histAt = at
	m.input.SetValue(e.Line)
	m.input.CursorEnd()
	m.refresh(false)

	return m
}

func (m model) switchMode(to mode) model {
	m.saved[m.mode] = m.input.Value()
	m.mode = to
	m.input.Prompt = to.style().Render(prompt[to])
	m.input.SetValue(m.saved[to])
	m.input.CursorEnd()
	m.cycling = false
	m.refresh(false)

	return m
}

func (m model) submit() (model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	if err := m.history.Add(line, m.mode); err != nil {
		m.logger.DebugContext(m.ctx, "history write failed", slog.String("error", err.Error()))
	}

	m.input.SetValue("")
	m.saved[m.mode] = ""
	m.reset()

	echo := tea.Println(m.mode.style().Render(prompt[m.mode]) + line)

	if m.mode == modeCtrl {
		next, cmd := m.command(line)

		return next, tea.Sequence(echo, cmd)
	}

	out, err := m.render(line)
	if err != nil {
		return m, tea.Sequence(echo, tea.Println(errorStyle.Render(err.Error())))
	}

	return m, tea.Sequence(echo, tea.Println(outputStyle.Render(out)))
}

// snippet returns line as template source, wrapping a bare expression in
// an output tag.
func snippet(line string) string {
	for _, open := range []string{"{{", "{%", "{#"} {
		if strings.Contains(line, open) {
			return line
		}
	}

	return "{{ " + line + " }}"
}

func (m model) render(line string) (string, error) {
	t, err := m.engine.FromString(snippet(line))
	if err != nil {
		return "", err
	}

	out, err := t.Render(m.ctx, m.data)

	m.logger.TraceContext(m.ctx, "repl render",
		slog.String("input", line),
		slog.Int("bytes", len(out)),
		slog.Bool("failed", err != nil),
	)

	return out, err
}

func (m model) command(line string) (model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Quit

	case "h", "help":
		return m, tea.Println(help)

	case "n", "names":
		return m, tea.Println(describe(m.engine, m.data, arg))

	case "d", "data":
		text, err := yaml.MarshalWithOptions(m.data, yaml.IndentSequence(true))
		if err != nil {
			return m, tea.Println(errorStyle.Render(err.Error()))
		}

		return m, tea.Println(strings.TrimRight(string(text), "\n"))

	case "set":
		key, value, ok := strings.Cut(arg, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			return m, tea.Println(errorStyle.Render("usage: set KEY=VALUE"))
		}

		m.data[key] = decode(strings.TrimSpace(value))

		return m, nil

	case "unset":
		delete(m.data, arg)

		return m, nil

	case "e", "edit":
		c := &editData{ctx: m.ctx, data: maps.Clone(m.data)}

		return m, tea.Exec(c, func(err error) tea.Msg {
			if err != nil {
				return editFailMsg{err}
			}

			return editedMsg{c.result}
		})

	case "c", "clear":
		return m, tea.ClearScreen
	}

	return m, tea.Println(errorStyle.Render("unknown command " + strconv.Quote(name) + " (try help)"))
}

// decode reads s as YAML, keeping s itself when it does not parse.
func decode(s string) any {
	var v any
	if s == "" || yaml.Unmarshal([]byte(s), &v) != nil {
		return s
	}

	return v
}
