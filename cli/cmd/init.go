package cmd

import (
	"context"
	"encoding"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/cairn/log"
	"github.com/ardnew/cairn/profile"
)

// Init writes the current global flag values to the configuration file.
type Init struct {
	Force bool `help:"Overwrite an existing configuration file." short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) error {
	ktx := kongContextFrom(ctx)
	if ktx == nil {
		return ErrWriteConfig.Wrap(errors.New("command line unavailable"))
	}

	path := ktx.Model.Vars()[ConfigIdentifier]

	if _, err := os.Stat(path); err == nil && !i.Force {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(ErrFileExists)
	}

	data, err := yaml.MarshalWithOptions(configDoc(ktx), yaml.IndentSequence(true))
	if err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	log.DebugContext(ctx, "configuration written", slog.String("file", path))

	return nil
}

// configDoc collects the set, non-empty global flags in declaration order.
func configDoc(ktx *kong.Context) yaml.MapSlice {
	var doc yaml.MapSlice

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || skipFlag(flag.Name) {
			continue
		}

		if v, ok := configValue(ktx.FlagValue(flag)); ok {
			doc = append(doc, yaml.MapItem{Key: flag.Name, Value: v})
		}
	}

	return doc
}

func skipFlag(name string) bool {
	return name == "help" || name == "version" || strings.HasPrefix(name, profile.Tag)
}

// configValue reports the YAML form of a flag value, or false when the
// value is empty.
func configValue(v any) (any, bool) {
	if m, ok := v.(encoding.TextMarshaler); ok {
		text, err := m.MarshalText()

		return string(text), err == nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Invalid:
		return nil, false
	case reflect.String, reflect.Slice, reflect.Map:
		return v, rv.Len() > 0
	}

	return v, true
}
