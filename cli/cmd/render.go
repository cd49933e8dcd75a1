package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/ardnew/cairn/log"
)

// Render renders a named template to standard output.
type Render struct {
	Name   string `arg:"" help:"Template name, relative to a search directory."`
	Output string `       help:"Write to FILE instead of standard output." placeholder:"FILE" short:"o" type:"path"`

	DataFlags `embed:""`
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context, flags *EngineFlags) (err error) {
	e, err := flags.Engine()
	if err != nil {
		return err
	}

	data, err := r.Load()
	if err != nil {
		return err
	}

	t, err := e.Template(r.Name)
	if err != nil {
		return ErrRender.Wrap(err).With(slog.String("template", r.Name))
	}

	out, err := t.Render(ctx, data)
	if err != nil {
		return ErrRender.Wrap(err).With(slog.String("template", r.Name))
	}

	w := outputFrom(ctx)

	if r.Output != "" {
		f, err := os.Create(r.Output)
		if err != nil {
			return err
		}

		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()

		w = f
	}

	if _, err = io.WriteString(w, out); err != nil {
		return err
	}

	state, artifact := t.State()

	log.DebugContext(ctx, "rendered",
		slog.String("template", t.Name()),
		slog.Int("bytes", len(out)),
		slog.String("state", state.String()),
		slog.String("artifact", artifact),
	)

	return nil
}
