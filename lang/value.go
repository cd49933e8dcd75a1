package lang

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Safe is a string that is written verbatim even when autoescaping is on.
type Safe string

// Namespace is a name-to-value mapping produced by statements such as
// import.
type Namespace map[string]any

// undefined is the type of the default undefined sentinel.
type undefined struct{}

func (undefined) String() string { return "" }

// Undefined is the default sentinel produced when a lookup fails at every
// resolution stage.
var Undefined any = undefined{}

// IsUndefined reports whether v is the default undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)

	return ok
}

// Truth reports the truthiness of a template value: nil, undefined, false,
// zero numbers and empty strings or containers are false.
func Truth(v any) bool {
	switch x := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case Safe:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	}

	if n, ok := toNumber(v); ok {
		return !n.zero()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}

// ToString converts a template value to its output text.
func ToString(v any) string {
	switch x := v.(type) {
	case nil, undefined:
		return ""
	case string:
		return x
	case Safe:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}

	if n, ok := toNumber(v); ok {
		return n.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}

		var sb strings.Builder

		sb.WriteByte('[')

		for i := range rv.Len() {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(repr(rv.Index(i).Interface()))
		}

		sb.WriteByte(']')

		return sb.String()

	case reflect.Map:
		var sb strings.Builder

		sb.WriteByte('{')

		for i, k := range sortedMapKeys(rv) {
			if i > 0 {
				sb.WriteString(", ")
			}

			sb.WriteString(repr(k.Interface()))
			sb.WriteString(": ")
			sb.WriteString(repr(rv.MapIndex(k).Interface()))
		}

		sb.WriteByte('}')

		return sb.String()
	}

	return fmt.Sprint(v)
}

// repr formats container elements, quoting strings.
func repr(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", `\'`) + "'"
	case Safe:
		return repr(string(x))
	case nil:
		return "none"
	}

	return ToString(v)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return s
}

// number is a normalized numeric operand.
type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}

	return float64(n.i)
}

func (n number) zero() bool {
	if n.isFloat {
		return n.f == 0
	}

	return n.i == 0
}

func (n number) value() any {
	if n.isFloat {
		return n.f
	}

	return n.i
}

func (n number) String() string {
	if n.isFloat {
		return formatFloat(n.f)
	}

	return strconv.FormatInt(n.i, 10)
}

// toNumber converts any Go integer or float to a number.
func toNumber(v any) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{i: int64(x)}, true
	case int64:
		return number{i: x}, true
	case float64:
		return number{f: x, isFloat: true}, true
	case bool, string, nil:
		return number{}, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return number{i: int64(rv.Uint())}, true
	case reflect.Float32, reflect.Float64:
		return number{f: rv.Float(), isFloat: true}, true
	default:
		return number{}, false
	}
}

func operands(op string, a, b any) (number, number, error) {
	x, ok := toNumber(a)
	if !ok {
		return number{}, number{}, invalidOperand(op, a, b)
	}

	y, ok := toNumber(b)
	if !ok {
		return number{}, number{}, invalidOperand(op, a, b)
	}

	return x, y, nil
}

func invalidOperand(op string, a, b any) error {
	return ErrInvalidOperand.Wrap(fmt.Errorf(
		"unsupported operand types for %s: %s and %s",
		op, typeName(a), typeName(b),
	))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "none"
	case undefined:
		return "undefined"
	}

	return reflect.TypeOf(v).String()
}

// Add implements "+": numeric addition, string and list concatenation.
func Add(a, b any) (any, error) {
	if s, ok := stringOf(a); ok {
		if t, ok := stringOf(b); ok {
			return s + t, nil
		}
	}

	if la, ok := listOf(a); ok {
		if lb, ok := listOf(b); ok {
			return append(slices.Clip(la), lb...), nil
		}
	}

	x, y, err := operands("+", a, b)
	if err != nil {
		return nil, err
	}

	if x.isFloat || y.isFloat {
		return x.float() + y.float(), nil
	}

	return x.i + y.i, nil
}

// Sub implements "-".
func Sub(a, b any) (any, error) {
	x, y, err := operands("-", a, b)
	if err != nil {
		return nil, err
	}

	if x.isFloat || y.isFloat {
		return x.float() - y.float(), nil
	}

	return x.i - y.i, nil
}

// Mul implements "*", including repetition of a string by an integer.
func Mul(a, b any) (any, error) {
	if s, ok := stringOf(a); ok {
		if n, ok := toNumber(b); ok && !n.isFloat {
			return strings.Repeat(s, int(max(n.i, 0))), nil
		}
	}

	x, y, err := operands("*", a, b)
	if err != nil {
		return nil, err
	}

	if x.isFloat || y.isFloat {
		return x.float() * y.float(), nil
	}

	return x.i * y.i, nil
}

// Div implements "/", which always produces a float.
func Div(a, b any) (any, error) {
	x, y, err := operands("/", a, b)
	if err != nil {
		return nil, err
	}

	if y.zero() {
		return nil, ErrInvalidOperand.Wrap(fmt.Errorf("division by zero"))
	}

	return x.float() / y.float(), nil
}

// FloorDiv implements "//".
func FloorDiv(a, b any) (any, error) {
	x, y, err := operands("//", a, b)
	if err != nil {
		return nil, err
	}

	if y.zero() {
		return nil, ErrInvalidOperand.Wrap(fmt.Errorf("division by zero"))
	}

	if x.isFloat || y.isFloat {
		return math.Floor(x.float() / y.float()), nil
	}

	q := x.i / y.i
	if (x.i%y.i != 0) && ((x.i < 0) != (y.i < 0)) {
		q--
	}

	return q, nil
}

// Mod implements "%"; the result takes the sign of the divisor.
func Mod(a, b any) (any, error) {
	x, y, err := operands("%", a, b)
	if err != nil {
		return nil, err
	}

	if y.zero() {
		return nil, ErrInvalidOperand.Wrap(fmt.Errorf("modulo by zero"))
	}

	if x.isFloat || y.isFloat {
		m := math.Mod(x.float(), y.float())
		if m != 0 && (m < 0) != (y.float() < 0) {
			m += y.float()
		}

		return m, nil
	}

	m := x.i % y.i
	if m != 0 && (m < 0) != (y.i < 0) {
		m += y.i
	}

	return m, nil
}

// Pow implements "**".
func Pow(a, b any) (any, error) {
	x, y, err := operands("**", a, b)
	if err != nil {
		return nil, err
	}

	if x.isFloat || y.isFloat || y.i < 0 {
		return math.Pow(x.float(), y.float()), nil
	}

	if r, ok := intPow(x.i, y.i); ok {
		return r, nil
	}

	return math.Pow(x.float(), y.float()), nil
}

// intPow computes x**y by squaring. It reports false when the result does
// not fit in an int64.
func intPow(x, y int64) (int64, bool) {
	r := int64(1)

	for y > 0 {
		var ok bool

		if y&1 == 1 {
			if r, ok = mulInt(r, x); !ok {
				return 0, false
			}
		}

		if y >>= 1; y > 0 {
			if x, ok = mulInt(x, x); !ok {
				return 0, false
			}
		}
	}

	return r, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}

	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}

	return c, true
}

// Concat implements "~": both operands are converted to strings.
func Concat(a, b any) (any, error) {
	return ToString(a) + ToString(b), nil
}

// Equal implements "==" with numeric normalization.
func Equal(a, b any) bool {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			if x.isFloat || y.isFloat {
				return x.float() == y.float()
			}

			return x.i == y.i
		}

		return false
	}

	if s, ok := stringOf(a); ok {
		t, ok := stringOf(b)

		return ok && s == t
	}

	if la, ok := listOf(a); ok {
		lb, ok := listOf(b)
		if !ok || len(la) != len(lb) {
			return false
		}

		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}

		return true
	}

	return reflect.DeepEqual(a, b)
}

// Compare orders two numbers or two strings.
func Compare(op string, a, b any) (int, error) {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			if x.isFloat || y.isFloat {
				return cmp.Compare(x.float(), y.float()), nil
			}

			return cmp.Compare(x.i, y.i), nil
		}
	}

	if s, ok := stringOf(a); ok {
		if t, ok := stringOf(b); ok {
			return strings.Compare(s, t), nil
		}
	}

	return 0, invalidOperand(op, a, b)
}

// Contains implements "in": substring, element, or mapping key membership.
func Contains(container, item any) (bool, error) {
	if s, ok := stringOf(container); ok {
		t, ok := stringOf(item)
		if !ok {
			return false, invalidOperand("in", item, container)
		}

		return strings.Contains(s, t), nil
	}

	if l, ok := listOf(container); ok {
		for _, e := range l {
			if Equal(e, item) {
				return true, nil
			}
		}

		return false, nil
	}

	rv := reflect.ValueOf(container)
	if rv.Kind() == reflect.Map {
		k, ok := mapKey(rv, item)
		if !ok {
			return false, nil
		}

		return rv.MapIndex(k).IsValid(), nil
	}

	if IsUndefined(container) || container == nil {
		return false, nil
	}

	return false, invalidOperand("in", item, container)
}

// Len returns the length of a string, list or mapping.
func Len(v any) (int, bool) {
	if s, ok := stringOf(v); ok {
		return len([]rune(s)), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	default:
		return 0, false
	}
}

// Iterate returns the elements visited by a for loop over v: list elements,
// sorted mapping keys, or the characters of a string.
func Iterate(v any) ([]any, error) {
	switch x := v.(type) {
	case nil, undefined:
		return nil, nil
	case []any:
		return x, nil
	}

	if s, ok := stringOf(v); ok {
		out := make([]any, 0, len(s))
		for _, r := range s {
			out = append(out, string(r))
		}

		return out, nil
	}

	if l, ok := listOf(v); ok {
		return l, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		keys := sortedMapKeys(rv)
		out := make([]any, len(keys))

		for i, k := range keys {
			out[i] = k.Interface()
		}

		return out, nil
	}

	return nil, ErrInvalidOperand.Wrap(
		fmt.Errorf("%s is not iterable", typeName(v)))
}

// Index returns element i of a list or string; negative indices count from
// the end. Out-of-range access yields undef.
func Index(v any, i int, undef any) any {
	if s, ok := stringOf(v); ok {
		r := []rune(s)
		if i < 0 {
			i += len(r)
		}

		if i < 0 || i >= len(r) {
			return undef
		}

		return string(r[i])
	}

	l, ok := listOf(v)
	if !ok {
		return undef
	}

	if i < 0 {
		i += len(l)
	}

	if i < 0 || i >= len(l) {
		return undef
	}

	return l[i]
}

// Slice returns v[lo:hi] for a list or string with clamped, possibly
// negative bounds. A nil bound is open.
func Slice(v any, lo, hi *int, undef any) any {
	bounds := func(n int) (int, int) {
		a, b := 0, n
		if lo != nil {
			a = clampIndex(*lo, n)
		}

		if hi != nil {
			b = clampIndex(*hi, n)
		}

		return a, max(a, b)
	}

	if s, ok := stringOf(v); ok {
		r := []rune(s)
		a, b := bounds(len(r))

		return string(r[a:b])
	}

	l, ok := listOf(v)
	if !ok {
		return undef
	}

	a, b := bounds(len(l))

	return slices.Clone(l[a:b])
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}

	return min(max(i, 0), n)
}

// Item looks up key in a mapping, or an integer key in a list or string.
func Item(v any, key any, undef any) any {
	if n, ok := toNumber(key); ok && !n.isFloat {
		if _, isMap := v.(map[string]any); !isMap &&
			reflect.ValueOf(v).Kind() != reflect.Map {
			return Index(v, int(n.i), undef)
		}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		k, ok := mapKey(rv, key)
		if !ok {
			return undef
		}

		if e := rv.MapIndex(k); e.IsValid() {
			return e.Interface()
		}
	}

	return undef
}

// stringOf reports whether v is a string-like value.
func stringOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case Safe:
		return string(x), true
	}

	return "", false
}

// listOf converts slices and arrays (other than byte slices) to []any.
func listOf(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}

		return out, true
	case nil, string, Safe:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

// mapKey converts key to the key type of the map value rv.
func mapKey(rv reflect.Value, key any) (reflect.Value, bool) {
	kt := rv.Type().Key()
	if key == nil {
		return reflect.Value{}, false
	}

	kv := reflect.ValueOf(key)
	if kv.Type().AssignableTo(kt) {
		return kv, true
	}

	if kt.Kind() == reflect.String {
		if s, ok := stringOf(key); ok {
			return reflect.ValueOf(s).Convert(kt), true
		}
	}

	if kv.Type().ConvertibleTo(kt) && kv.Kind() != reflect.String &&
		kt.Kind() != reflect.String {
		return kv.Convert(kt), true
	}

	return reflect.Value{}, false
}

// sortedMapKeys returns the keys of a map value in a stable order.
func sortedMapKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		if c, err := Compare("<", a.Interface(), b.Interface()); err == nil {
			return c
		}

		return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})

	return keys
}
