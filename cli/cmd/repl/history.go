package repl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
)

const historyFile = "history"

// Entry is a history line and the mode it was entered in.
type Entry struct {
	Line string
	Mode mode
}

var modePrefix = map[mode]string{modeRender: "r ", modeCtrl: ": "}

func (e Entry) encode() string { return modePrefix[e.Mode] + e.Line + "\n" }

func decodeEntry(line string) Entry {
	for m, p := range modePrefix {
		if rest, ok := strings.CutPrefix(line, p); ok {
			return Entry{Line: rest, Mode: m}
		}
	}

	return Entry{Line: line, Mode: modeRender}
}

// History is the persistent input history. An empty path keeps it in
// memory only.
type History struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
}

// NewHistory returns a history stored at path.
func NewHistory(path string) *History { return &History{path: path} }

// Load replaces the entries with the contents of the history file. A
// missing file is an empty history.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil

	if h.path == "" {
		return nil
	}

	f, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			h.entries = append(h.entries, decodeEntry(line))
		}
	}

	return sc.Err()
}

// Add appends line, moving an earlier identical entry to the end.
func (h *History) Add(line string, m mode) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	e := Entry{Line: line, Mode: m}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && h.entries[n-1] == e {
		return nil
	}

	if i := slices.Index(h.entries, e); i >= 0 {
		h.entries = slices.Delete(h.entries, i, i+1)
		h.entries = append(h.entries, e)

		return h.rewrite()
	}

	h.entries = append(h.entries, e)

	return h.append(e)
}

// Entry returns the entry at i, oldest first.
func (h *History) Entry(i int) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return Entry{}, false
	}

	return h.entries[i], true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}

func (h *History) append(e Entry) error {
	if h.path == "" {
		return nil
	}

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(e.encode()); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}

func (h *History) rewrite() error {
	if h.path == "" {
		return nil
	}

	var b strings.Builder
	for _, e := range h.entries {
		b.WriteString(e.encode())
	}

	return os.WriteFile(h.path, []byte(b.String()), 0o600)
}
