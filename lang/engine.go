package lang

import (
	"context"
	"iter"
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ardnew/cairn/log"
)

// Extension bundles statement tags, filters, tests and globals.
type Extension interface {
	Statements() map[string]func() Statement
	Filters() map[string]any
	Tests() map[string]any
	Globals() map[string]any
}

// Engine owns the configuration shared by every template it loads: the
// loader, registered extensions and the template cache.
//
// An Engine is safe for concurrent use once constructed.
type Engine struct {
	logger     log.Logger
	loader     Loader
	statements map[string]func() Statement
	filters    map[string]any
	tests      map[string]any
	globals    map[string]any
	undefined  any
	cacheDir   string

	mu        sync.RWMutex
	templates map[string]*Template
	group     singleflight.Group

	resolution      Resolution
	autoescape      bool
	trimBlocks      bool
	lstripBlocks    bool
	compiled        bool
	strictUndefined bool

	err error // first option failure, reported by NewEngine
}

// Option configures an [Engine].
type Option func(*Engine)

// NewEngine returns an engine configured by opts.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		statements: map[string]func() Statement{},
		filters:    map[string]any{},
		tests:      map[string]any{},
		globals:    map[string]any{},
		undefined:  Undefined,
		templates:  map[string]*Template{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.err != nil {
		return nil, e.err
	}

	if e.loader == nil {
		e.loader = StringsLoader{}
	}

	e.logger.TraceContext(context.Background(), "engine ready",
		slog.Int("statements", len(e.statements)),
		slog.Int("filters", len(e.filters)),
		slog.Int("tests", len(e.tests)),
		slog.Int("globals", len(e.globals)),
		slog.Bool("compiled", e.compiled),
	)

	return e, nil
}

func (e *Engine) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// WithLogger sets the logger used for trace and debug diagnostics.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLoader sets the template source.
func WithLoader(l Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithExtension registers every statement, filter, test and global of x.
func WithExtension(x Extension) Option {
	return func(e *Engine) {
		maps.Copy(e.statements, x.Statements())
		maps.Copy(e.filters, x.Filters())
		maps.Copy(e.tests, x.Tests())
		maps.Copy(e.globals, x.Globals())
	}
}

// WithStatement registers a statement tag.
func WithStatement(tag string, fn func() Statement) Option {
	return func(e *Engine) { e.statements[tag] = fn }
}

// WithGlobals adds global variables visible to every template.
func WithGlobals(globals map[string]any) Option {
	return func(e *Engine) { maps.Copy(e.globals, globals) }
}

// WithFilter registers a filter function. Plain Go functions receive the
// filtered value as their first argument; a [FilterFunc] also receives
// the render context.
func WithFilter(name string, fn any) Option {
	return func(e *Engine) { e.filters[name] = fn }
}

// WithTest registers a test used on the right side of "is".
func WithTest(name string, fn any) Option {
	return func(e *Engine) { e.tests[name] = fn }
}

// WithAutoescape turns HTML escaping of output on or off.
func WithAutoescape(on bool) Option {
	return func(e *Engine) { e.autoescape = on }
}

// WithTrimBlocks removes the first newline after a statement.
func WithTrimBlocks(on bool) Option {
	return func(e *Engine) { e.trimBlocks = on }
}

// WithLstripBlocks strips whitespace before a statement on its line.
func WithLstripBlocks(on bool) Option {
	return func(e *Engine) { e.lstripBlocks = on }
}

// WithResolution sets whether attributes or mapping keys are tried first.
func WithResolution(r Resolution) Option {
	return func(e *Engine) { e.resolution = r }
}

// WithCompiled makes Render run compiled programs instead of walking the
// tree.
func WithCompiled(on bool) Option {
	return func(e *Engine) { e.compiled = on }
}

// WithCacheDir stores compiled artifacts in dir and reuses them while the
// template source is unchanged.
func WithCacheDir(dir string) Option {
	return func(e *Engine) { e.cacheDir = dir }
}

// WithUndefined sets the value produced by failed lookups.
func WithUndefined(v any) Option {
	return func(e *Engine) { e.undefined = v }
}

// WithStrictUndefined makes writing an undefined value an error.
func WithStrictUndefined(on bool) Option {
	return func(e *Engine) { e.strictUndefined = on }
}

// Logger returns the engine logger.
func (e *Engine) Logger() log.Logger { return e.logger }

// Loader returns the template source.
func (e *Engine) Loader() Loader { return e.loader }

// NewStatement implements [Registry].
func (e *Engine) NewStatement(tag string) (Statement, bool) {
	fn, ok := e.statements[tag]
	if !ok {
		return nil, false
	}

	return fn(), true
}

func (e *Engine) filter(name string) (any, bool) {
	fn, ok := e.filters[name]

	return fn, ok
}

func (e *Engine) test(name string) (any, bool) {
	fn, ok := e.tests[name]

	return fn, ok
}

// Filter returns the filter registered under name.
func (e *Engine) Filter(name string) (any, bool) { return e.filter(name) }

// Test returns the test registered under name.
func (e *Engine) Test(name string) (any, bool) { return e.test(name) }

// Global returns the global variable registered under name.
func (e *Engine) Global(name string) (any, bool) {
	v, ok := e.globals[name]

	return v, ok
}

// Names returns the sorted names of every statement tag, filter, test and
// global, keyed by category.
func (e *Engine) Names() map[string][]string {
	return map[string][]string{
		"statements": sortedKeys(e.statements),
		"filters":    sortedKeys(e.filters),
		"tests":      sortedKeys(e.tests),
		"globals":    sortedKeys(e.globals),
	}
}

func (e *Engine) isUndefined(v any) bool {
	if IsUndefined(v) {
		return true
	}

	if IsUndefined(e.undefined) {
		return false
	}

	t := reflect.TypeOf(v)
	if t != reflect.TypeOf(e.undefined) {
		return false
	}

	return t == nil || (t.Comparable() && v == e.undefined)
}

// Lexer returns a lexer configured with the engine's whitespace control.
func (e *Engine) Lexer() *Lexer {
	return &Lexer{
		Logger:       e.logger,
		TrimBlocks:   e.trimBlocks,
		LstripBlocks: e.lstripBlocks,
	}
}

// Tokens returns the token sequence of src.
func (e *Engine) Tokens(src string) iter.Seq2[Token, error] {
	return e.Lexer().All(src)
}

// Parse lexes and parses src without optimizing it.
func (e *Engine) Parse(src string) (*Root, error) {
	p := NewParser(e)
	p.Logger = e.logger

	return p.Parse(e.Tokens(src), src)
}

// FromString returns an uncached template for src.
func (e *Engine) FromString(src string) (*Template, error) {
	root, err := e.Parse(src)
	if err != nil {
		return nil, err
	}

	Optimize(root, e.logger)

	return newTemplate(e, "<string>", root, Source{Text: src}), nil
}
