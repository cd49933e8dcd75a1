package cli

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/cairn/log"
)

// loadYAML is a [kong.ConfigurationLoader] for YAML configuration files.
//
// A flag is looked up by its name, by its name with hyphens replaced by
// underscores, and as a path of nested mappings split at hyphens, so all of
// these set --log-level:
//
//	log-level: debug
//	log_level: debug
//	log:
//	  level: debug
//
// A mapping sets a map-typed flag such as --filter, and is read as nested
// keys for any other flag. Flags given on the command line take precedence. A file that does not
// parse is logged and ignored so that `init --force` can replace it.
func loadYAML(r io.Reader) (kong.Resolver, error) {
	var values map[string]any

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &values); err != nil {
		log.Warn("ignoring configuration file", slog.String("error", err.Error()))

		values = nil
	}

	return yamlResolver(values), nil
}

type yamlResolver map[string]any

// Validate implements [kong.Resolver].
func (yamlResolver) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (r yamlResolver) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	v, ok := r.lookup(flag.Name, flag.Target.Kind() == reflect.Map)
	if !ok {
		return nil, nil
	}

	return flagValue(v), nil
}

// lookup finds the value for the flag name. A mapping is only a value when
// mapping is set, otherwise it is a group of nested keys.
func (r yamlResolver) lookup(name string, mapping bool) (any, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		v, ok := r[key]
		if !ok {
			continue
		}

		if _, nested := v.(map[string]any); !nested || mapping {
			return v, true
		}
	}

	var cur any = map[string]any(r)

	for part := range strings.SplitSeq(name, "-") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}

	if _, nested := cur.(map[string]any); nested && !mapping {
		return nil, false
	}

	return cur, true
}

// flagValue converts a decoded YAML value to the form kong decodes: bools
// and strings unchanged, numbers as text, sequences joined with commas and
// mappings as "k=v" pairs joined with semicolons.
func flagValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string:
		return x

	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(flagValue(e))
		}

		return strings.Join(parts, ",")

	case map[string]any:
		parts := make([]string, 0, len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			parts = append(parts, k+"="+fmt.Sprint(flagValue(x[k])))
		}

		return strings.Join(parts, ";")

	default:
		return fmt.Sprint(x)
	}
}
