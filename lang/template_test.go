package lang_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/cairn/lang"
	"github.com/ardnew/cairn/lang/core"
)

type fixture struct {
	Templates map[string]string `yaml:"templates"`
	Data      map[string]any    `yaml:"data"`
	Name      string            `yaml:"name"`
	Source    string            `yaml:"source"`
	Output    string            `yaml:"output"`
	Error     string            `yaml:"error"`
	Options   struct {
		Autoescape   bool `yaml:"autoescape"`
		TrimBlocks   bool `yaml:"trim_blocks"`
		LstripBlocks bool `yaml:"lstrip_blocks"`
		Strict       bool `yaml:"strict"`
	} `yaml:"options"`
}

func loadFixtures(t *testing.T, path string) []fixture {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	var fixtures []fixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}

	return fixtures
}

func newEngine(t *testing.T, opts ...lang.Option) *lang.Engine {
	t.Helper()

	e, err := lang.NewEngine(append([]lang.Option{lang.WithExtension(core.New())}, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	return e
}

func (f fixture) engine(t *testing.T) *lang.Engine {
	t.Helper()

	sources := lang.StringsLoader{"main": f.Source}
	for name, src := range f.Templates {
		sources[name] = src
	}

	return newEngine(t,
		lang.WithLoader(sources),
		lang.WithAutoescape(f.Options.Autoescape),
		lang.WithTrimBlocks(f.Options.TrimBlocks),
		lang.WithLstripBlocks(f.Options.LstripBlocks),
		lang.WithStrictUndefined(f.Options.Strict),
	)
}

func TestRender_Fixtures(t *testing.T) {
	modes := []struct {
		name   string
		render func(*lang.Template, context.Context, any) (string, error)
	}{
		{"interpreted", (*lang.Template).Interpret},
		{"compiled", (*lang.Template).Compiled},
	}

	for _, f := range loadFixtures(t, filepath.Join("testdata", "render.yaml")) {
		t.Run(f.Name, func(t *testing.T) {
			for _, mode := range modes {
				t.Run(mode.name, func(t *testing.T) {
					out, err := f.render(t, mode.render)

					if f.Error != "" {
						if err == nil {
							t.Fatalf("rendered %q, want error containing %q", out, f.Error)
						}

						if !strings.Contains(err.Error(), f.Error) {
							t.Fatalf("error = %v, want it to contain %q", err, f.Error)
						}

						return
					}

					if err != nil {
						t.Fatalf("error = %v", err)
					}

					if out != f.Output {
						t.Errorf("output = %q, want %q", out, f.Output)
					}
				})
			}
		})
	}
}

func (f fixture) render(
	t *testing.T,
	fn func(*lang.Template, context.Context, any) (string, error),
) (string, error) {
	t.Helper()

	tmpl, err := f.engine(t).Template("main")
	if err != nil {
		return "", err
	}

	return fn(tmpl, t.Context(), f.Data)
}

func TestEngine_TemplateCached(t *testing.T) {
	e := newEngine(t, lang.WithLoader(lang.StringsLoader{"a": "{{ x }}"}))

	const workers = 16

	got := make([]*lang.Template, workers)

	var wg sync.WaitGroup

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tmpl, err := e.Template("a")
			if err != nil {
				t.Errorf("Template() error = %v", err)

				return
			}

			got[i] = tmpl
		}()
	}

	wg.Wait()

	for i, tmpl := range got {
		if tmpl != got[0] {
			t.Fatalf("worker %d got a different template", i)
		}
	}

	e.Forget("a")

	again, err := e.Template("a")
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}

	if again == got[0] {
		t.Errorf("Forget() kept the cached template")
	}
}

func TestTemplate_CompileOnce(t *testing.T) {
	e := newEngine(t, lang.WithLoader(lang.StringsLoader{
		"a": "{% for i in range(n) %}{{ i }}{% endfor %}",
	}))

	tmpl, err := e.Template("a")
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}

	if state, _ := tmpl.State(); state != lang.NotCompiled {
		t.Fatalf("State() = %v before first use", state)
	}

	var wg sync.WaitGroup

	progs := make([]*lang.Program, 32)

	for i := range progs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			out, err := tmpl.Compiled(t.Context(), map[string]any{"n": i % 4})
			if err != nil {
				t.Errorf("Compiled() error = %v", err)

				return
			}

			if want := "0123"[:i%4]; out != want {
				t.Errorf("Compiled(n=%d) = %q, want %q", i%4, out, want)
			}

			progs[i], _ = tmpl.Program()
		}()
	}

	wg.Wait()

	for i, p := range progs {
		if p == nil || p != progs[0] {
			t.Fatalf("render %d used program %p, want %p", i, p, progs[0])
		}
	}

	if state, _ := tmpl.State(); state != lang.CompiledInMemory {
		t.Errorf("State() = %v, want %v", state, lang.CompiledInMemory)
	}
}

func writeTemplate(t *testing.T, path, text string, modTime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_ReloadsChangedSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.txt")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeTemplate(t, path, "v1 {{ x }}", base)

	e := newEngine(t, lang.WithLoader(lang.NewFileSystemLoader(dir)))
	data := map[string]any{"x": "!"}

	render := func() string {
		t.Helper()

		tmpl, err := e.Template("page.txt")
		if err != nil {
			t.Fatalf("Template() error = %v", err)
		}

		out, err := tmpl.Render(t.Context(), data)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}

		return out
	}

	if got := render(); got != "v1 !" {
		t.Fatalf("first render = %q", got)
	}

	// Same modification time: the cached tree is reused.
	writeTemplate(t, path, "v2 {{ x }}", base)

	if got := render(); got != "v1 !" {
		t.Errorf("render with unchanged modtime = %q, want cached v1", got)
	}

	writeTemplate(t, path, "v3 {{ x }}", base.Add(time.Minute))

	if got := render(); got != "v3 !" {
		t.Errorf("render after change = %q, want v3", got)
	}
}

func TestEngine_ReloadsChangedInclude(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeTemplate(t, filepath.Join(dir, "page.txt"), "[{% include 'part.txt' %}]", base)
	writeTemplate(t, filepath.Join(dir, "part.txt"), "v1", base)

	e := newEngine(t, lang.WithLoader(lang.NewFileSystemLoader(dir)))

	tmpl, err := e.Template("page.txt")
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}

	for _, tt := range []struct {
		name string
		text string
		mod  time.Time
		want string
	}{
		{"first", "v1", base, "[v1]"},
		{"unchanged modtime", "v2", base, "[v1]"},
		{"changed modtime", "v3", base.Add(time.Minute), "[v3]"},
	} {
		writeTemplate(t, filepath.Join(dir, "part.txt"), tt.text, tt.mod)

		for _, mode := range []struct {
			name string
			fn   func(context.Context, any) (string, error)
		}{
			{"interpreted", tmpl.Interpret},
			{"compiled", tmpl.Compiled},
		} {
			out, err := mode.fn(t.Context(), nil)
			if err != nil {
				t.Fatalf("%s/%s: error = %v", tt.name, mode.name, err)
			}

			if out != tt.want {
				t.Errorf("%s/%s = %q, want %q", tt.name, mode.name, out, tt.want)
			}
		}
	}
}

func TestFileSystemLoader_RejectsEscapes(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner")

	if err := os.Mkdir(inner, 0o755); err != nil {
		t.Fatal(err)
	}

	writeTemplate(t, filepath.Join(dir, "secret"), "s", time.Now())
	writeTemplate(t, filepath.Join(inner, "ok"), "ok", time.Now())

	l := lang.NewFileSystemLoader(inner)

	if src, err := l.Load("ok"); err != nil || src.Text != "ok" {
		t.Fatalf("Load(ok) = %q, %v", src.Text, err)
	}

	for _, name := range []string{"../secret", filepath.Join(dir, "secret"), "..", "missing"} {
		if _, err := l.Load(name); !errors.Is(err, lang.ErrTemplateNotFound) {
			t.Errorf("Load(%q) error = %v, want %v", name, err, lang.ErrTemplateNotFound)
		}

		if _, err := l.ModTime(name); !errors.Is(err, lang.ErrTemplateNotFound) {
			t.Errorf("ModTime(%q) error = %v, want %v", name, err, lang.ErrTemplateNotFound)
		}
	}
}

func TestCompositeLoader(t *testing.T) {
	l := lang.CompositeLoader{
		lang.StringsLoader{"a": "first"},
		lang.StringsLoader{"a": "second", "b": "only"},
	}

	tests := []struct {
		name string
		want string
	}{
		{"a", "first"},
		{"b", "only"},
	}

	for _, tt := range tests {
		src, err := l.Load(tt.name)
		if err != nil || src.Text != tt.want {
			t.Errorf("Load(%q) = %q, %v, want %q", tt.name, src.Text, err, tt.want)
		}
	}

	if _, err := l.Load("c"); !errors.Is(err, lang.ErrTemplateNotFound) {
		t.Errorf("Load(c) error = %v", err)
	}
}

func TestTemplate_Artifacts(t *testing.T) {
	srcDir, cacheDir := t.TempDir(), t.TempDir()
	path := filepath.Join(srcDir, "page")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	writeTemplate(t, path,
		"{% macro b(x) %}[{{ x }}]{% endmacro %}{% for i in items %}{{ b(i) }}{% endfor %}",
		base)

	data := map[string]any{"items": []any{1, 2}}

	render := func() (string, string) {
		t.Helper()

		e := newEngine(t,
			lang.WithLoader(lang.NewFileSystemLoader(srcDir)),
			lang.WithCacheDir(cacheDir),
		)

		tmpl, err := e.Template("page")
		if err != nil {
			t.Fatalf("Template() error = %v", err)
		}

		out, err := tmpl.Compiled(t.Context(), data)
		if err != nil {
			t.Fatalf("Compiled() error = %v", err)
		}

		state, artifact := tmpl.State()
		if state != lang.CompiledOnDisk {
			t.Fatalf("State() = %v, want %v", state, lang.CompiledOnDisk)
		}

		if _, err := os.Stat(artifact); err != nil {
			t.Fatalf("artifact %s: %v", artifact, err)
		}

		return out, artifact
	}

	first, artifact := render()
	if first != "[1][2]" {
		t.Fatalf("first render = %q", first)
	}

	again, reused := render()
	if again != first || reused != artifact {
		t.Errorf("restored render = %q at %s, want %q at %s", again, reused, first, artifact)
	}

	if err := os.WriteFile(artifact, []byte("{not: [valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if out, _ := render(); out != first {
		t.Errorf("render with corrupt artifact = %q, want %q", out, first)
	}

	writeTemplate(t, path, "{{ items|join('+') }}", base.Add(time.Hour))

	if out, _ := render(); out != "1+2" {
		t.Errorf("render after source change = %q, want %q", out, "1+2")
	}
}

func TestTemplate_FromStringNotStored(t *testing.T) {
	e := newEngine(t, lang.WithCacheDir(t.TempDir()))

	tmpl, err := e.FromString("{{ 1 + 1 }}")
	if err != nil {
		t.Fatalf("FromString() error = %v", err)
	}

	if out, err := tmpl.Compiled(t.Context(), nil); err != nil || out != "2" {
		t.Fatalf("Compiled() = %q, %v", out, err)
	}

	if state, path := tmpl.State(); state != lang.CompiledInMemory || path != "" {
		t.Errorf("State() = %v %q, want in-memory only", state, path)
	}
}

func TestTemplate_Execute(t *testing.T) {
	e := newEngine(t, lang.WithCompiled(true))

	tmpl, err := e.FromString("{{ greeting }}, {{ name|default('you') }}")
	if err != nil {
		t.Fatalf("FromString() error = %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(t.Context(), &buf, map[string]any{"greeting": "hey"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if buf.String() != "hey, you" {
		t.Errorf("Execute() wrote %q", buf.String())
	}

	if state, _ := tmpl.State(); state != lang.CompiledInMemory {
		t.Errorf("State() = %v, want compiled", state)
	}
}

func TestRenderError_Line(t *testing.T) {
	e := newEngine(t, lang.WithLoader(lang.StringsLoader{"t": "a\nb\n{{ 1 // 0 }}"}))

	tmpl, err := e.Template("t")
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}

	for _, render := range []func(context.Context, any) (string, error){
		tmpl.Interpret, tmpl.Compiled,
	} {
		_, err := render(t.Context(), nil)

		var re *lang.RenderError
		if !errors.As(err, &re) {
			t.Fatalf("error = %v, want *RenderError", err)
		}

		if re.Line != 3 || re.Template != "t" {
			t.Errorf("error at %q line %d, want \"t\" line 3", re.Template, re.Line)
		}

		if !errors.Is(err, lang.ErrInvalidOperand) {
			t.Errorf("error = %v, want %v", err, lang.ErrInvalidOperand)
		}
	}
}

func TestWithExprFilter(t *testing.T) {
	e := newEngine(t,
		lang.WithExprFilter("double", "value * 2"),
		lang.WithExprTest("positive", "value > 0"),
	)

	tmpl, err := e.FromString("{{ n|double }} {{ n is positive }} {{ -1 is positive }}")
	if err != nil {
		t.Fatalf("FromString() error = %v", err)
	}

	out, err := tmpl.Render(t.Context(), map[string]any{"n": 21})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if out != "42 true false" {
		t.Errorf("Render() = %q", out)
	}

	_, err = lang.NewEngine(lang.WithExprFilter("broken", "value +"))
	if !errors.Is(err, lang.ErrExprCompile) {
		t.Errorf("NewEngine() error = %v, want %v", err, lang.ErrExprCompile)
	}
}

func TestWithSystemGlobals(t *testing.T) {
	t.Setenv("CAIRN_TEST_VALUE", "set")

	e := newEngine(t, lang.WithSystemGlobals())

	tmpl, err := e.FromString(
		"{{ path.base('a/b.txt') }} {{ file.exists('no/such/file') }} " +
			"{{ env('CAIRN_TEST_VALUE') }} {{ env('CAIRN_TEST_UNSET', 'fallback') }}")
	if err != nil {
		t.Fatalf("FromString() error = %v", err)
	}

	out, err := tmpl.Render(t.Context(), nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if out != "b.txt false set fallback" {
		t.Errorf("Render() = %q", out)
	}

	names := lang.SystemGlobalNames()
	for _, want := range []string{"env", "path", "path.cat", "mung.prefixif"} {
		if !slices.Contains(names, want) {
			t.Errorf("SystemGlobalNames() missing %q", want)
		}
	}
}

func TestEngine_Names(t *testing.T) {
	names := newEngine(t).Names()

	for category, want := range map[string]string{
		"statements": "for",
		"filters":    "join",
		"tests":      "divisibleby",
		"globals":    "range",
	} {
		if !slices.Contains(names[category], want) {
			t.Errorf("Names()[%q] missing %q", category, want)
		}

		if !slices.IsSorted(names[category]) {
			t.Errorf("Names()[%q] not sorted", category)
		}
	}
}

func BenchmarkRender(b *testing.B) {
	e, err := lang.NewEngine(lang.WithExtension(core.New()), lang.WithLoader(lang.StringsLoader{
		"list": "{% for x in items %}{% if loop.first %}<ul>{% endif %}<li>{{ x.name|upper }}</li>{% endfor %}</ul>",
	}))
	if err != nil {
		b.Fatal(err)
	}

	tmpl, err := e.Template("list")
	if err != nil {
		b.Fatal(err)
	}

	items := make([]any, 50)
	for i := range items {
		items[i] = map[string]any{"name": "item"}
	}

	data := map[string]any{"items": items}

	for _, mode := range []struct {
		name   string
		render func(context.Context, any) (string, error)
	}{
		{"interpreted", tmpl.Interpret},
		{"compiled", tmpl.Compiled},
	} {
		b.Run(mode.name, func(b *testing.B) {
			for b.Loop() {
				if _, err := mode.render(b.Context(), data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
