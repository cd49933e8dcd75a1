package core

import (
	"fmt"
	"reflect"

	"github.com/ardnew/cairn/lang"
)

func tests() map[string]any {
	return map[string]any{
		"defined":     lang.FilterFunc(defined),
		"undefined":   lang.FilterFunc(notDefined),
		"none":        isNone,
		"divisibleby": divisibleBy,
		"even":        even,
		"odd":         odd,
		"number":      isNumber,
		"string":      isString,
		"mapping":     isMapping,
		"sequence":    isSequence,
		"iterable":    isIterable,
		"callable":    isCallable,
	}
}

func defined(ctx *lang.Context, v any, _ ...any) (any, error) {
	return !ctx.IsUndefined(v), nil
}

func notDefined(ctx *lang.Context, v any, _ ...any) (any, error) {
	return ctx.IsUndefined(v), nil
}

func isNone(v any) bool { return v == nil }

func divisibleBy(v, n any) (bool, error) {
	if lang.Equal(n, 0) {
		return false, fmt.Errorf("divisibleby: %w", lang.ErrInvalidOperand)
	}

	r, err := lang.Mod(v, n)
	if err != nil {
		return false, err
	}

	return lang.Equal(r, 0), nil
}

func even(v any) (bool, error) { return divisibleBy(v, 2) }

func odd(v any) (bool, error) {
	ok, err := divisibleBy(v, 2)

	return !ok && err == nil, err
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}

func isString(v any) bool {
	switch v.(type) {
	case string, lang.Safe:
		return true
	}

	return false
}

func isSequence(v any) bool {
	if isString(v) || isMapping(v) {
		return false
	}

	_, ok := lang.Len(v)

	return ok
}

func isIterable(v any) bool {
	if v == nil || lang.IsUndefined(v) {
		return false
	}

	_, err := lang.Iterate(v)

	return err == nil
}

func isCallable(v any) bool {
	rv := reflect.ValueOf(v)

	return rv.Kind() == reflect.Func && !rv.IsNil()
}
