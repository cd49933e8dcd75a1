package lang

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeFor[error]()

// Invoke calls an arbitrary Go function with template values, converting
// numeric arguments to the parameter types where needed.
//
// A function may return nothing, one value, an error, or a value and an
// error.
func Invoke(fn any, args ...any) (any, error) {
	switch f := fn.(type) {
	case func(...any) (any, error):
		return f(args...)
	case func(...any) any:
		return f(args...), nil
	case func(any) any:
		if len(args) != 1 {
			return nil, arity(1, len(args))
		}

		return f(args[0]), nil
	case func() any:
		if len(args) != 0 {
			return nil, arity(0, len(args))
		}

		return f(), nil
	}

	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, ErrNotCallable.Wrap(fmt.Errorf("%s", typeName(fn)))
	}

	ft := fv.Type()

	in, err := convertArgs(ft, args)
	if err != nil {
		return nil, err
	}

	return results(fv.Call(in))
}

func arity(want, got int) error {
	return ErrInvalidOperand.Wrap(
		fmt.Errorf("expected %d arguments, got %d", want, got))
}

func convertArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	n := ft.NumIn()

	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, ErrInvalidOperand.Wrap(fmt.Errorf(
				"expected at least %d arguments, got %d", n-1, len(args)))
		}
	} else if len(args) != n {
		return nil, arity(n, len(args))
	}

	in := make([]reflect.Value, len(args))

	for i, arg := range args {
		var pt reflect.Type

		switch {
		case ft.IsVariadic() && i >= n-1:
			pt = ft.In(n - 1).Elem()
		default:
			pt = ft.In(i)
		}

		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, ErrInvalidOperand.Wrap(
				fmt.Errorf("argument %d: %w", i+1, err))
		}

		in[i] = v
	}

	return in, nil
}

func convertArg(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil || IsUndefined(arg) {
		if pt.Kind() == reflect.Interface {
			if arg == nil {
				return reflect.Zero(pt), nil
			}

			return reflect.ValueOf(arg), nil
		}

		return reflect.Zero(pt), nil
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(pt) {
		return av, nil
	}

	if n, ok := toNumber(arg); ok {
		switch pt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
			reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16,
			reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
			return reflect.ValueOf(n.value()).Convert(pt), nil
		}
	}

	if s, ok := stringOf(arg); ok && pt.Kind() == reflect.String {
		return reflect.ValueOf(s).Convert(pt), nil
	}

	if l, ok := listOf(arg); ok && pt.Kind() == reflect.Slice {
		out := reflect.MakeSlice(pt, len(l), len(l))

		for i, e := range l {
			ev, err := convertArg(e, pt.Elem())
			if err != nil {
				return reflect.Value{}, err
			}

			out.Index(i).Set(ev)
		}

		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", typeName(arg), pt)
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			if nilValue(out[0]) {
				return nil, nil
			}

			return nil, out[0].Interface().(error)
		}

		return out[0].Interface(), nil
	default:
		var err error
		if e := out[len(out)-1]; e.Type().Implements(errorType) && !nilValue(e) {
			err = e.Interface().(error)
		}

		return out[0].Interface(), err
	}
}

func nilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
