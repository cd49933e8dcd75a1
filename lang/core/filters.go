package core

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lestrrat-go/strftime"
	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ardnew/cairn/lang"
)

func filters() map[string]any {
	return map[string]any{
		"abs":        abs,
		"capitalize": capitalize,
		"center":     center,
		"default":    lang.FilterFunc(defaultValue),
		"d":          lang.FilterFunc(defaultValue),
		"escape":     escape,
		"e":          escape,
		"safe":       safe,
		"keys":       keys,
		"values":     values,
		"items":      items,
		"sort":       sortList,
		"reverse":    reverse,
		"join":       join,
		"first":      lang.FilterFunc(first),
		"last":       lang.FilterFunc(last),
		"length":     length,
		"count":      length,
		"wordcount":  wordcount,
		"trim":       trim,
		"replace":    replace,
		"titlecase":  titlecase,
		"title":      titlecase,
		"uppercase":  uppercase,
		"upper":      uppercase,
		"lowercase":  lowercase,
		"lower":      lowercase,
		"md5":        md5sum,
		"xmldate":    xmldate,
		"emaildate":  emaildate,
		"date":       date,
		"markdown":   markdown,
		"int":        toInt,
		"float":      toFloat,
		"string":     lang.ToString,
		"list":       toList,
	}
}

// keepSafe returns s as [lang.Safe] when the input was safe.
func keepSafe(in any, s string) any {
	if _, ok := in.(lang.Safe); ok {
		return lang.Safe(s)
	}

	return s
}

func abs(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return math.Abs(x), nil
	case float32:
		return math.Abs(float64(x)), nil
	}

	i, err := lang.Sub(0, v)
	if err != nil {
		return nil, err
	}

	if c, err := lang.Compare("<", v, 0); err == nil && c < 0 {
		return i, nil
	}

	return v, nil
}

func capitalize(v any) any {
	s := lang.ToString(v)

	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return keepSafe(v, s)
	}

	head := cases.Upper(language.Und).String(string(r))
	tail := cases.Lower(language.Und).String(s[n:])

	return keepSafe(v, head+tail)
}

// center pads v with spaces to width, 80 by default.
func center(v any, width ...int) any {
	s := lang.ToString(v)
	w := 80

	if len(width) > 0 {
		w = width[0]
	}

	pad := w - utf8.RuneCountInString(s)
	if pad <= 0 {
		return keepSafe(v, s)
	}

	left := pad / 2

	return keepSafe(v, strings.Repeat(" ", left)+s+strings.Repeat(" ", pad-left))
}

// defaultValue replaces an undefined value, or with a true second
// argument any false value.
func defaultValue(ctx *lang.Context, v any, args ...any) (any, error) {
	var fallback any = ""
	if len(args) > 0 {
		fallback = args[0]
	}

	if ctx.IsUndefined(v) || (len(args) > 1 && lang.Truth(args[1]) && !lang.Truth(v)) {
		return fallback, nil
	}

	return v, nil
}

func escape(v any) lang.Safe {
	if s, ok := v.(lang.Safe); ok {
		return s
	}

	return lang.Safe(html.EscapeString(lang.ToString(v)))
}

func safe(v any) lang.Safe { return lang.Safe(lang.ToString(v)) }

func keys(v any) ([]any, error) {
	if !isMapping(v) {
		return nil, fmt.Errorf("%T is not a mapping", v)
	}

	return lang.Iterate(v)
}

func values(v any) ([]any, error) {
	ks, err := keys(v)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(ks))
	for i, k := range ks {
		out[i] = lang.Item(v, k, nil)
	}

	return out, nil
}

// items returns [key, value] pairs of a mapping in key order.
func items(v any) ([]any, error) {
	ks, err := keys(v)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(ks))
	for i, k := range ks {
		out[i] = []any{k, lang.Item(v, k, nil)}
	}

	return out, nil
}

// sortList returns a sorted copy of a sequence. Values that do not compare
// as numbers or strings are ordered by their output text.
func sortList(v any, reversed ...bool) ([]any, error) {
	l, err := lang.Iterate(v)
	if err != nil {
		return nil, err
	}

	l = slices.Clone(l)

	slices.SortStableFunc(l, func(a, b any) int {
		if c, err := lang.Compare("<", a, b); err == nil {
			return c
		}

		return strings.Compare(lang.ToString(a), lang.ToString(b))
	})

	if len(reversed) > 0 && reversed[0] {
		slices.Reverse(l)
	}

	return l, nil
}

func reverse(v any) (any, error) {
	if s, ok := v.(string); ok {
		r := []rune(s)
		slices.Reverse(r)

		return string(r), nil
	}

	l, err := lang.Iterate(v)
	if err != nil {
		return nil, err
	}

	l = slices.Clone(l)
	slices.Reverse(l)

	return l, nil
}

// join concatenates the output text of each item, separated by a space
// unless a separator is given.
func join(v any, sep ...string) (string, error) {
	l, err := lang.Iterate(v)
	if err != nil {
		return "", err
	}

	delim := " "
	if len(sep) > 0 {
		delim = sep[0]
	}

	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = lang.ToString(e)
	}

	return strings.Join(parts, delim), nil
}

func first(ctx *lang.Context, v any, _ ...any) (any, error) {
	l, err := lang.Iterate(v)
	if err != nil || len(l) == 0 {
		return ctx.Undefined(), err
	}

	return l[0], nil
}

func last(ctx *lang.Context, v any, _ ...any) (any, error) {
	l, err := lang.Iterate(v)
	if err != nil || len(l) == 0 {
		return ctx.Undefined(), err
	}

	return l[len(l)-1], nil
}

func length(v any) (int, error) {
	n, ok := lang.Len(v)
	if !ok {
		return 0, fmt.Errorf("%T has no length", v)
	}

	return n, nil
}

func wordcount(v any) int { return len(strings.Fields(lang.ToString(v))) }

func trim(v any) any { return keepSafe(v, strings.TrimSpace(lang.ToString(v))) }

func replace(v any, old, repl string) any {
	return keepSafe(v, strings.ReplaceAll(lang.ToString(v), old, repl))
}

func titlecase(v any) any {
	return keepSafe(v, cases.Title(language.Und).String(lang.ToString(v)))
}

func uppercase(v any) any {
	return keepSafe(v, cases.Upper(language.Und).String(lang.ToString(v)))
}

func lowercase(v any) any {
	return keepSafe(v, cases.Lower(language.Und).String(lang.ToString(v)))
}

func md5sum(v any) string {
	sum := md5.Sum([]byte(lang.ToString(v)))

	return hex.EncodeToString(sum[:])
}

// toTime accepts a time, Unix seconds, or an RFC 3339 or plain date
// string.
func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x != nil {
			return *x, nil
		}
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
	case int, int64, int32, uint, uint64, uint32:
		i, err := strconv.ParseInt(lang.ToString(x), 10, 64)
		if err == nil {
			return time.Unix(i, 0).UTC(), nil
		}
	case float64:
		sec, frac := math.Modf(x)

		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("cannot use %T as a date", v)
}

// xmldate formats a date for XML feeds.
func xmldate(v any) (string, error) {
	t, err := toTime(v)
	if err != nil {
		return "", err
	}

	return t.Format(time.RFC3339), nil
}

// emaildate formats a date for mail and RSS headers.
func emaildate(v any) (string, error) {
	t, err := toTime(v)
	if err != nil {
		return "", err
	}

	return t.Format(time.RFC1123Z), nil
}

// date formats a date with a strftime pattern, "%Y-%m-%d" by default.
func date(v any, pattern ...string) (string, error) {
	t, err := toTime(v)
	if err != nil {
		return "", err
	}

	p := "%Y-%m-%d"
	if len(pattern) > 0 {
		p = pattern[0]
	}

	return strftime.Format(p, t)
}

func markdown(v any) (lang.Safe, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(lang.ToString(v)), &buf); err != nil {
		return "", err
	}

	return lang.Safe(buf.String()), nil
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return int64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}

		return int64(f), nil
	case bool:
		if x {
			return int64(1), nil
		}

		return int64(0), nil
	}

	return lang.FloorDiv(v, 1)
}

func toFloat(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}

	return lang.Div(v, 1)
}

func toList(v any) ([]any, error) {
	l, err := lang.Iterate(v)
	if err != nil {
		return nil, err
	}

	return slices.Clone(l), nil
}
