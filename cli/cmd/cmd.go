package cmd

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/cairn/lang"
	"github.com/ardnew/cairn/lang/core"
	"github.com/ardnew/cairn/log"
)

type (
	kongKey   struct{}
	outputKey struct{}
	inputKey  struct{}
)

// WithContext returns ctx carrying the parsed command line.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, kongKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, _ := ctx.Value(kongKey{}).(*kong.Context)

	return ktx
}

// WithOutput returns ctx directing command output to w instead of
// standard output.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

func outputFrom(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok {
		return w
	}

	return os.Stdout
}

// WithInput returns ctx reading "-" sources from r instead of standard
// input.
func WithInput(ctx context.Context, r io.Reader) context.Context {
	return context.WithValue(ctx, inputKey{}, r)
}

func inputFrom(ctx context.Context) io.Reader {
	if r, ok := ctx.Value(inputKey{}).(io.Reader); ok {
		return r
	}

	return os.Stdin
}

// stdinSource names standard input on the command line.
const stdinSource = "-"

// readSource returns the text of path, or of the context input for "-".
func readSource(ctx context.Context, path string) (string, error) {
	if path == "" || path == stdinSource {
		return lang.ReadAll(inputFrom(ctx))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return lang.ReadAll(f)
}

// EngineFlags configure the engine shared by every command.
type EngineFlags struct {
	Dir          []string          `default:"."  help:"Template search directories."                   placeholder:"DIR"      short:"d" type:"path"`
	Compiled     bool              `             help:"Render compiled programs instead of the tree."`
	CacheDir     string            `             help:"Store compiled templates in DIR."              placeholder:"DIR"                type:"path"`
	Autoescape   bool              `             help:"HTML-escape output by default."`
	TrimBlocks   bool              `             help:"Drop the first newline after a statement."`
	LstripBlocks bool              `             help:"Strip indentation before a statement."`
	MappingFirst bool              `             help:"Look up mapping keys before attributes."`
	Strict       bool              `             help:"Fail when writing an undefined value."`
	System       bool              `             help:"Expose platform, environment and path globals."`
	Filter       map[string]string `             help:"Define a filter as an expr program over value and args." placeholder:"NAME=EXPR"`
	Test         map[string]string `             help:"Define a test as an expr program over value and args."   placeholder:"NAME=EXPR"`
}

// Engine builds an engine from the flags. Every engine logs through the
// default logger.
func (f *EngineFlags) Engine() (*lang.Engine, error) {
	opts := []lang.Option{
		lang.WithLogger(log.Default()),
		lang.WithExtension(core.New()),
		lang.WithLoader(lang.NewFileSystemLoader(f.Dir...)),
		lang.WithCompiled(f.Compiled),
		lang.WithAutoescape(f.Autoescape),
		lang.WithTrimBlocks(f.TrimBlocks),
		lang.WithLstripBlocks(f.LstripBlocks),
		lang.WithStrictUndefined(f.Strict),
	}

	if f.CacheDir != "" {
		opts = append(opts, lang.WithCacheDir(f.CacheDir))
	}

	if f.MappingFirst {
		opts = append(opts, lang.WithResolution(lang.MappingFirst))
	}

	if f.System {
		opts = append(opts, lang.WithSystemGlobals())
	}

	for _, name := range slices.Sorted(maps.Keys(f.Filter)) {
		opts = append(opts, lang.WithExprFilter(name, f.Filter[name]))
	}

	for _, name := range slices.Sorted(maps.Keys(f.Test)) {
		opts = append(opts, lang.WithExprTest(name, f.Test[name]))
	}

	return lang.NewEngine(opts...)
}

// DataFlags select the data a template renders against.
type DataFlags struct {
	Data string            `help:"YAML or JSON file holding the template data."  placeholder:"FILE" short:"D" type:"existingfile"`
	Set  map[string]string `help:"Set a data value; VALUE is read as YAML."      placeholder:"KEY=VALUE" short:"s"`
}

// Load decodes the data file and applies --set values on top of it.
func (f *DataFlags) Load() (map[string]any, error) {
	data := map[string]any{}

	if f.Data != "" {
		buf, err := os.ReadFile(f.Data)
		if err != nil {
			return nil, ErrData.Wrap(err).With(slog.String("file", f.Data))
		}

		if err := yaml.Unmarshal(buf, &data); err != nil {
			return nil, ErrData.Wrap(err).With(slog.String("file", f.Data))
		}

		if data == nil {
			data = map[string]any{}
		}
	}

	for k, v := range f.Set {
		data[k] = scalar(v)
	}

	return data, nil
}

// scalar decodes s as YAML, keeping s itself when it does not parse.
func scalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || s == "" {
		return s
	}

	return v
}
