package lang

import (
	"fmt"
	"io"
)

// QueryType selects how a query segment accesses its value.
type QueryType uint8

const (
	QueryProperty  QueryType = iota // a.b
	QueryArrayItem                  // a[0], a[1:2]
	QueryMapItem                    // a['k'], a[k]
	QueryCall                       // a(b, c)
)

var queryTypeName = [...]string{
	QueryProperty:  "property",
	QueryArrayItem: "array_item",
	QueryMapItem:   "dict_item",
	QueryCall:      "func_call",
}

// String returns the dump name of the query type.
func (t QueryType) String() string {
	if int(t) < len(queryTypeName) {
		return queryTypeName[t]
	}

	return fmt.Sprintf("QueryType(%d)", t)
}

// Query is one segment of a variable path such as a.b[c].d(e).
//
// The head segment resolves its name against the render context; every
// later segment resolves against the value of the segment before it. Args
// holds the key expression of a mapping access or the arguments of a call.
// Index1 and Index2 are the bounds of an array access; nil is open.
type Query struct {
	Name       string
	Type       QueryType
	Slice      bool
	Index1     *int
	Index2     *int
	Args       []Node
	Tail       *Query
	Head       bool
	ForceCache bool
	line       int
}

func (q *Query) Kind() Kind { return KindQuery }

func (q *Query) Line() int { return q.line }

// Children returns the argument expressions followed by the tail.
func (q *Query) Children() []Node {
	nodes := make([]Node, 0, len(q.Args)+1)
	nodes = append(nodes, q.Args...)

	if q.Tail != nil {
		nodes = append(nodes, q.Tail)
	}

	return nodes
}

// Path returns the dotted form of the query chain, for diagnostics.
func (q *Query) Path() string {
	s := q.Name

	switch q.Type {
	case QueryArrayItem:
		s += "[...]"
	case QueryMapItem:
		s += "[...]"
	case QueryCall:
		s += "(...)"
	}

	if q.Tail != nil {
		s += "." + q.Tail.Path()
	}

	return s
}

func (q *Query) Render(ctx *Context, data any, out io.StringWriter) (any, error) {
	return q.render(ctx, data, nil, out)
}

// render resolves the segment. Argument expressions always evaluate
// against the render data; value is the result of the previous segment.
func (q *Query) render(
	ctx *Context, data, value any, out io.StringWriter,
) (any, error) {
	var v any
	if q.Head {
		v = ctx.QueryRoot(data, q.Name)
	} else {
		v = ctx.Query(value, q.Name)
	}

	args, err := renderValues(q.Args, ctx, data, out)
	if err != nil {
		return nil, err
	}

	v, err = q.access(ctx, data, out, v, args)
	if err != nil {
		return nil, err
	}

	if q.Tail != nil {
		return q.Tail.render(ctx, data, v, out)
	}

	return v, nil
}

// access applies the segment's item access or call to v.
func (q *Query) access(
	ctx *Context, data any, out io.StringWriter, v any, args []any,
) (any, error) {
	undef := ctx.engine.undefined

	switch q.Type {
	case QueryArrayItem:
		if q.Slice {
			return Slice(v, q.Index1, q.Index2, undef), nil
		}

		if q.Index1 == nil {
			return undef, nil
		}

		return Index(v, *q.Index1, undef), nil

	case QueryMapItem:
		if len(args) == 0 {
			return undef, nil
		}

		return Item(v, args[0], undef), nil

	case QueryCall:
		r, err := ctx.Call(v, data, out, args...)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", q.Name, err)
		}

		return r, nil
	}

	return v, nil
}

func (q *Query) Compile(cc *Compiler) (Compiled, error) {
	run, err := q.compile(cc)
	if err != nil {
		return nil, err
	}

	return func(x *Exec, data any) (any, error) {
		return run(x, data, nil)
	}, nil
}

type compiledQuery func(x *Exec, data, value any) (any, error)

func (q *Query) compile(cc *Compiler) (compiledQuery, error) {
	var lookup func(x *Exec, data, value any) any

	name := q.Name

	switch {
	case !q.Head:
		lookup = func(x *Exec, _, value any) any { return x.ctx.Query(value, name) }
	default:
		if i, ok := cc.CachedQuery(name); ok {
			lookup = func(x *Exec, data, _ any) any { return x.cached(i, name, data) }
		} else if q.ForceCache {
			i := cc.NewSlot()
			cc.CacheQuery(name, i)
			lookup = func(x *Exec, data, _ any) any { return x.store(i, name, data) }
		} else {
			lookup = func(x *Exec, data, _ any) any { return x.ctx.QueryRoot(data, name) }
		}
	}

	args, err := compileAll(cc, q.Args)
	if err != nil {
		return nil, err
	}

	var tail compiledQuery
	if q.Tail != nil {
		if tail, err = q.Tail.compile(cc); err != nil {
			return nil, err
		}
	}

	return func(x *Exec, data, value any) (any, error) {
		v := lookup(x, data, value)

		vals, err := evalAll(args, x, data)
		if err != nil {
			return nil, err
		}

		v, err = q.access(x.ctx, data, x.out, v, vals)
		if err != nil {
			return nil, err
		}

		if tail != nil {
			return tail(x, data, v)
		}

		return v, nil
	}, nil
}
