package lang

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/readahead"
)

// Source is template text with the modification time of its origin.
type Source struct {
	Text    string
	ModTime time.Time
}

// Loader finds template sources by name.
//
// ModTime must be cheap; the engine calls it on every lookup to decide
// whether a cached template is stale.
type Loader interface {
	Load(name string) (Source, error)
	ModTime(name string) (time.Time, error)
}

func notFound(name string) error {
	return ErrTemplateNotFound.With(slog.String("template", name)).
		Wrap(errors.New(name))
}

// StringsLoader serves templates from memory. Every entry has the zero
// modification time.
type StringsLoader map[string]string

// Load implements [Loader].
func (l StringsLoader) Load(name string) (Source, error) {
	s, ok := l[name]
	if !ok {
		return Source{}, notFound(name)
	}

	return Source{Text: s}, nil
}

// ModTime implements [Loader].
func (l StringsLoader) ModTime(name string) (time.Time, error) {
	if _, ok := l[name]; !ok {
		return time.Time{}, notFound(name)
	}

	return time.Time{}, nil
}

// FileSystemLoader serves templates from files under a list of
// directories; the first directory containing the name wins.
type FileSystemLoader struct {
	Dirs []string
}

// NewFileSystemLoader returns a loader searching dirs in order.
func NewFileSystemLoader(dirs ...string) *FileSystemLoader {
	return &FileSystemLoader{Dirs: dirs}
}

func (l *FileSystemLoader) find(name string) (string, fs.FileInfo, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", nil, notFound(name)
	}

	for _, dir := range l.Dirs {
		path := filepath.Join(dir, clean)

		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, info, nil
		}
	}

	return "", nil, notFound(name)
}

// Load implements [Loader].
func (l *FileSystemLoader) Load(name string) (Source, error) {
	path, info, err := l.find(name)
	if err != nil {
		return Source{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Source{}, ErrReadInput.Wrap(err).With(slog.String("path", path))
	}
	defer f.Close()

	text, err := ReadAll(f)
	if err != nil {
		return Source{}, ErrReadInput.Wrap(err).With(slog.String("path", path))
	}

	return Source{Text: text, ModTime: info.ModTime()}, nil
}

// ModTime implements [Loader].
func (l *FileSystemLoader) ModTime(name string) (time.Time, error) {
	_, info, err := l.find(name)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

// CompositeLoader tries each loader in order.
type CompositeLoader []Loader

// Load implements [Loader].
func (c CompositeLoader) Load(name string) (Source, error) {
	for _, l := range c {
		src, err := l.Load(name)
		if err == nil {
			return src, nil
		}

		if !errors.Is(err, ErrTemplateNotFound) {
			return Source{}, err
		}
	}

	return Source{}, notFound(name)
}

// ModTime implements [Loader].
func (c CompositeLoader) ModTime(name string) (time.Time, error) {
	for _, l := range c {
		t, err := l.ModTime(name)
		if err == nil {
			return t, nil
		}

		if !errors.Is(err, ErrTemplateNotFound) {
			return time.Time{}, err
		}
	}

	return time.Time{}, notFound(name)
}

// ReadAll reads r to the end with asynchronous read-ahead.
func ReadAll(r io.Reader) (string, error) {
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
