package lang

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the compilation state of a template.
type State uint8

const (
	NotCompiled State = iota
	CompiledInMemory
	CompiledOnDisk
)

var stateName = [...]string{
	NotCompiled:      "not_compiled",
	CompiledInMemory: "compiled_in_memory",
	CompiledOnDisk:   "compiled_on_disk",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateName) {
		return stateName[s]
	}

	return "unknown"
}

// Template is a loaded, parsed and optimized template.
//
// The compiled program is built at most once, on first use, no matter how
// many goroutines render the template.
type Template struct {
	engine  *Engine
	name    string
	source  string
	modTime time.Time
	root    *Root

	mu       sync.Mutex
	state    State
	artifact string
	restored bool
	program  *Program
	err      error
}

func newTemplate(e *Engine, name string, root *Root, src Source) *Template {
	return &Template{
		engine:  e,
		name:    name,
		source:  src.Text,
		modTime: src.ModTime,
		root:    root,
	}
}

// Name returns the name the template was loaded under.
func (t *Template) Name() string { return t.name }

// Source returns the template text.
func (t *Template) Source() string { return t.source }

// ModTime returns the modification time of the source the template was
// built from.
func (t *Template) ModTime() time.Time { return t.modTime }

// Current reports whether the loader still has the source the template
// was built from.
func (t *Template) Current() bool {
	modTime, err := t.engine.loader.ModTime(t.name)

	return err == nil && modTime.Equal(t.modTime)
}

// Root returns the optimized AST.
func (t *Template) Root() *Root { return t.root }

// State reports the compilation state and, for CompiledOnDisk, the
// artifact path.
func (t *Template) State() (State, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state, t.artifact
}

// Program returns the compiled program, compiling it on first call. The
// outcome, including a failure, is kept for later calls.
func (t *Template) Program() (*Program, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program != nil || t.err != nil {
		return t.program, t.err
	}

	ctx := context.Background()
	start := time.Now()

	t.engine.logger.TraceContext(ctx, "compile start", slog.String("template", t.name))

	prog, err := newCompiler(t.engine).compileRoot(t.root)
	if err != nil {
		t.err = err

		return nil, err
	}

	t.program = prog
	t.state = CompiledInMemory

	if t.restored {
		t.state = CompiledOnDisk
	} else if path, ok := t.engine.storeArtifact(t); ok {
		t.artifact = path
		t.state = CompiledOnDisk
	}

	t.engine.logger.TraceContext(ctx, "compile finish",
		slog.String("template", t.name),
		slog.String("state", t.state.String()),
		slog.Int("slots", prog.slots),
		slog.Duration("elapsed", time.Since(start)),
	)

	return prog, nil
}

// Render renders the template with the engine's default strategy.
func (t *Template) Render(ctx context.Context, data any) (string, error) {
	return t.render(ctx, data, t.engine.compiled)
}

// Interpret renders the template by walking the tree.
func (t *Template) Interpret(ctx context.Context, data any) (string, error) {
	return t.render(ctx, data, false)
}

// Compiled renders the template with its compiled program.
func (t *Template) Compiled(ctx context.Context, data any) (string, error) {
	return t.render(ctx, data, true)
}

func (t *Template) render(ctx context.Context, data any, compiled bool) (string, error) {
	var sb strings.Builder

	c := t.engine.NewContext()
	c.compiled = compiled

	if err := t.Run(c, data, &sb); err != nil {
		t.engine.logger.DebugContext(ctx, "render failed",
			slog.String("template", t.name),
			slog.Bool("compiled", compiled),
			errAttr(err),
		)

		return "", err
	}

	return sb.String(), nil
}

// Execute renders the template to w with the engine's default strategy.
func (t *Template) Execute(ctx context.Context, w io.Writer, data any) error {
	s, err := t.Render(ctx, data)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, s)

	return err
}

// Run renders the template into out using an existing context, with the
// strategy the context was created for.
func (t *Template) Run(c *Context, data any, out io.StringWriter) error {
	var err error

	if c.compiled {
		var prog *Program
		if prog, err = t.Program(); err == nil {
			err = prog.Execute(c, data, out)
		}
	} else {
		_, err = t.root.Render(c, data, out)
	}

	var re *RenderError
	if errors.As(err, &re) && re.Template == "" {
		re.Template = t.name
	}

	return err
}
