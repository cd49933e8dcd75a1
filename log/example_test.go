package log_test

import (
	"log/slog"
	"os"

	"github.com/ardnew/cairn/log"
)

func ExampleMake() {
	l := log.Make(os.Stdout, log.WithPretty(false), log.WithTimeLayout("none"))

	l.Info("template loaded", slog.String("template", "index.html"), slog.Int("nodes", 12))
	l.Debug("not written")

	// Output:
	// level=INFO msg="template loaded" template=index.html nodes=12
}

func ExampleLogger_Wrap() {
	l := log.Make(os.Stdout, log.WithPretty(false), log.WithTimeLayout("none"))

	l.Wrap(log.WithFormat(log.FormatJSON), log.WithLevel(log.LevelTrace)).
		Trace("compiled", slog.Int("slots", 3))

	// Output:
	// {"level":"TRACE","msg":"compiled","slots":3}
}
