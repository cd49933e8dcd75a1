package lang

import (
	"log/slog"
	"sort"
)

func stringAttr(key, value string) slog.Attr { return slog.String(key, value) }

func errAttr(err error) slog.Attr { return slog.Any("error", err) }

func sortedKeys[T any](m map[string]T) []string {
	if len(m) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
