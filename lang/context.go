package lang

import (
	"html"
	"io"
	"maps"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Resolution selects which accessor is tried first when a name is looked up
// on a data value.
type Resolution uint8

const (
	// AttributeFirst tries struct fields and methods before mapping keys.
	AttributeFirst Resolution = iota
	// MappingFirst tries mapping keys before struct fields and methods.
	MappingFirst
)

// String returns the configuration name of the resolution mode.
func (r Resolution) String() string {
	if r == MappingFirst {
		return "mapping"
	}

	return "attribute"
}

// ParseResolution parses "attribute" or "mapping".
func ParseResolution(s string) (Resolution, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attribute", "attr", "":
		return AttributeFirst, true
	case "mapping", "map", "item":
		return MappingFirst, true
	default:
		return AttributeFirst, false
	}
}

// BlockFunc renders an overridden block body.
type BlockFunc func(ctx *Context, data any, out io.StringWriter) error

// ContextFunc is a callable that receives the render context. Macros are
// exposed to templates as ContextFuncs.
type ContextFunc func(
	ctx *Context, data any, out io.StringWriter, args ...any,
) (any, error)

// shadowed records a local binding hidden by a push.
type shadowed struct {
	value   any
	present bool
}

// Context is the per-render state: local variables, a snapshot of the
// engine globals and block overrides.
//
// A child context keeps a pointer to its parent for lookups only; it never
// writes through it.
type Context struct {
	engine  *Engine
	parent  *Context
	locals  map[string]any
	globals map[string]any
	shadow  map[string][]shadowed
	blocks  map[string]BlockFunc

	version    uint64
	mode       Resolution
	autoescape bool
	compiled   bool
}

// NewContext returns a fresh render context for e.
func (e *Engine) NewContext() *Context {
	return &Context{
		engine:     e,
		locals:     map[string]any{},
		globals:    maps.Clone(e.globals),
		shadow:     map[string][]shadowed{},
		blocks:     map[string]BlockFunc{},
		mode:       e.resolution,
		autoescape: e.autoescape,
	}
}

// Engine returns the engine the context renders for.
func (c *Context) Engine() *Engine { return c.engine }

// Compiled reports whether the current render runs compiled programs.
func (c *Context) Compiled() bool { return c.compiled }

// Autoescape reports whether output is HTML-escaped.
func (c *Context) Autoescape() bool { return c.autoescape }

// SetAutoescape changes the autoescape flag and returns its prior value.
func (c *Context) SetAutoescape(on bool) bool {
	prev := c.autoescape
	c.autoescape = on

	return prev
}

// Undefined returns the engine's undefined sentinel.
func (c *Context) Undefined() any { return c.engine.undefined }

// IsUndefined reports whether v is the engine's undefined sentinel.
func (c *Context) IsUndefined(v any) bool {
	return c.engine.isUndefined(v)
}

// Query looks up name on data, following the resolution mode. Failed
// attempts fall through silently; a complete miss yields undefined.
func (c *Context) Query(data any, name string) any {
	if v, ok := c.lookup(data, name); ok {
		return v
	}

	return c.engine.undefined
}

// QueryRoot resolves a head name: locals, then data, then globals, then
// the parent context.
func (c *Context) QueryRoot(data any, name string) any {
	if v, ok := c.queryRoot(data, name); ok {
		return v
	}

	return c.engine.undefined
}

func (c *Context) queryRoot(data any, name string) (any, bool) {
	if v, ok := c.locals[name]; ok {
		return v, true
	}

	if v, ok := c.lookup(data, name); ok {
		return v, true
	}

	if v, ok := c.globals[name]; ok {
		return v, true
	}

	if c.parent != nil {
		return c.parent.queryRoot(data, name)
	}

	return nil, false
}

func (c *Context) lookup(data any, name string) (any, bool) {
	if data == nil || c.engine.isUndefined(data) {
		return nil, false
	}

	if m, ok := data.(map[string]any); ok {
		v, ok := m[name]

		return v, ok
	}

	if c.mode == MappingFirst {
		if v, ok := lookupItem(data, name); ok {
			return v, true
		}

		return lookupAttr(data, name)
	}

	if v, ok := lookupAttr(data, name); ok {
		return v, true
	}

	return lookupItem(data, name)
}

// lookupItem resolves name as a mapping key.
func lookupItem(data any, name string) (any, bool) {
	switch m := data.(type) {
	case Namespace:
		v, ok := m[name]

		return v, ok
	case map[string]string:
		v, ok := m[name]

		return v, ok
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Map {
		return nil, false
	}

	k, ok := mapKey(rv, name)
	if !ok {
		return nil, false
	}

	if e := rv.MapIndex(k); e.IsValid() {
		return e.Interface(), true
	}

	return nil, false
}

// lookupAttr resolves name as a struct field or a method. Field names match
// exactly, then case-insensitively; methods match exactly or with the first
// letter capitalized.
func lookupAttr(data any, name string) (any, bool) {
	rv := reflect.ValueOf(data)

	if m, ok := method(rv, name); ok {
		return m, true
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	rt := rv.Type()

	if sf, ok := rt.FieldByName(name); ok {
		f, err := rv.FieldByIndexErr(sf.Index)
		if err != nil {
			// Promoted through a nil embedded pointer.
			return nil, false
		}

		if f.CanInterface() {
			return f.Interface(), true
		}
	}

	for i := range rt.NumField() {
		sf := rt.Field(i)
		if sf.IsExported() && strings.EqualFold(sf.Name, name) {
			return rv.Field(i).Interface(), true
		}
	}

	return nil, false
}

func method(rv reflect.Value, name string) (any, bool) {
	if !rv.IsValid() {
		return nil, false
	}

	if m := rv.MethodByName(name); m.IsValid() {
		return m.Interface(), true
	}

	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return nil, false
	}

	if m := rv.MethodByName(string(unicode.ToUpper(r)) + name[size:]); m.IsValid() {
		return m.Interface(), true
	}

	return nil, false
}

// Local returns the local binding of name.
func (c *Context) Local(name string) (any, bool) {
	v, ok := c.locals[name]

	return v, ok
}

// Locals returns the current local bindings.
func (c *Context) Locals() map[string]any { return c.locals }

// PushLocal binds name, remembering any binding it hides.
func (c *Context) PushLocal(name string, v any) {
	old, ok := c.locals[name]
	c.shadow[name] = append(c.shadow[name], shadowed{value: old, present: ok})
	c.locals[name] = v
	c.version++
}

// PopLocal undoes the most recent PushLocal of name. A name with nothing
// to restore is removed.
func (c *Context) PopLocal(name string) {
	c.version++

	stack := c.shadow[name]
	if len(stack) == 0 {
		delete(c.locals, name)

		return
	}

	top := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(c.shadow, name)
	} else {
		c.shadow[name] = stack[:len(stack)-1]
	}

	if top.present {
		c.locals[name] = top.value
	} else {
		delete(c.locals, name)
	}
}

// SetLocal rebinds name in place without touching the shadow stack.
func (c *Context) SetLocal(name string, v any) {
	c.locals[name] = v
	c.version++
}

// Version changes whenever a local binding changes.
func (c *Context) Version() uint64 { return c.version }

// CreateChild returns an empty context that falls back to c for lookups.
func (c *Context) CreateChild() *Context {
	return &Context{
		engine:     c.engine,
		parent:     c,
		locals:     map[string]any{},
		globals:    c.globals,
		shadow:     map[string][]shadowed{},
		blocks:     map[string]BlockFunc{},
		mode:       c.mode,
		autoescape: c.autoescape,
		compiled:   c.compiled,
	}
}

// MergeChild copies the locals of child into c. With an endpoint the
// locals are bound as one namespace under that name.
func (c *Context) MergeChild(child *Context, endpoint string) {
	if endpoint == "" {
		maps.Copy(c.locals, child.locals)
	} else {
		c.locals[endpoint] = Namespace(maps.Clone(child.locals))
	}

	c.version++
}

// Block returns the override registered for a block name.
func (c *Context) Block(name string) (BlockFunc, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if fn, ok := ctx.blocks[name]; ok {
			return fn, true
		}
	}

	return nil, false
}

// SetBlock registers a block override unless one already exists, and
// reports whether it was added.
func (c *Context) SetBlock(name string, fn BlockFunc) bool {
	if _, ok := c.blocks[name]; ok {
		return false
	}

	c.blocks[name] = fn

	return true
}

// DeleteBlock removes a block override.
func (c *Context) DeleteBlock(name string) { delete(c.blocks, name) }

// Emit writes the output form of v, escaping it when autoescape is on.
func (c *Context) Emit(out io.StringWriter, v any) error {
	if c.engine.isUndefined(v) && c.engine.strictUndefined {
		return ErrUndefined
	}

	switch s := v.(type) {
	case Safe:
		_, err := out.WriteString(string(s))

		return err
	case string:
		if c.autoescape {
			s = html.EscapeString(s)
		}

		_, err := out.WriteString(s)

		return err
	}

	s := ToString(v)
	if c.autoescape {
		s = html.EscapeString(s)
	}

	_, err := out.WriteString(s)

	return err
}

// Call invokes fn with args. ContextFuncs also receive the context, the
// render data and the output.
func (c *Context) Call(
	fn any, data any, out io.StringWriter, args ...any,
) (any, error) {
	if cf, ok := fn.(ContextFunc); ok {
		return cf(c, data, out, args...)
	}

	if c.engine.isUndefined(fn) || fn == nil {
		return nil, ErrNotCallable
	}

	return Invoke(fn, args...)
}
