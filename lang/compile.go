package lang

import (
	"io"
)

// Compiled is the executable form of a node. It returns the node's value,
// which is nil for nodes that only write output.
type Compiled func(x *Exec, data any) (any, error)

// slot holds one cached head lookup. A slot is stale once the context's
// local bindings changed after it was filled.
type slot struct {
	value   any
	version uint64
	set     bool
}

// Exec is the run-time state of one compiled unit.
type Exec struct {
	ctx   *Context
	out   io.StringWriter
	slots []slot
}

// Context returns the render context.
func (x *Exec) Context() *Context { return x.ctx }

// Out returns the output the unit writes to.
func (x *Exec) Out() io.StringWriter { return x.out }

// WithOut runs fn with output redirected to out.
func (x *Exec) WithOut(out io.StringWriter, fn func() error) error {
	prev := x.out
	x.out = out

	defer func() { x.out = prev }()

	return fn()
}

// store looks up name and fills slot i with the result.
func (x *Exec) store(i int, name string, data any) any {
	v := x.ctx.QueryRoot(data, name)
	x.slots[i] = slot{value: v, version: x.ctx.version, set: true}

	return v
}

// cached returns slot i if it is still fresh and repeats the lookup
// otherwise.
func (x *Exec) cached(i int, name string, data any) any {
	if s := x.slots[i]; s.set && s.version == x.ctx.version {
		return s.value
	}

	return x.store(i, name, data)
}

// Program is a compiled unit: a template body, macro body or block body.
type Program struct {
	run   Compiled
	slots int
}

// Execute runs the program against ctx.
func (p *Program) Execute(ctx *Context, data any, out io.StringWriter) error {
	x := &Exec{ctx: ctx, out: out, slots: make([]slot, p.slots)}
	_, err := p.run(x, data)

	return err
}

// Eval runs the program and returns its value.
func (p *Program) Eval(ctx *Context, data any, out io.StringWriter) (any, error) {
	x := &Exec{ctx: ctx, out: out, slots: make([]slot, p.slots)}

	return p.run(x, data)
}

// scope maps cached names to slots. A negative slot hides a name cached in
// an enclosing scope.
type scope map[string]int

type unit struct {
	scopes []scope
	slots  int
}

// Compiler holds the state of one compilation: a stack of units with their
// lexical cache scopes, preloaded include targets and finalizers.
type Compiler struct {
	engine     *Engine
	units      []*unit
	preloaded  map[string]*Template
	finalizers []func()
}

func newCompiler(e *Engine) *Compiler {
	return &Compiler{engine: e, preloaded: map[string]*Template{}}
}

// Engine returns the engine being compiled for.
func (cc *Compiler) Engine() *Engine { return cc.engine }

func (cc *Compiler) unit() *unit { return cc.units[len(cc.units)-1] }

// Unit compiles body as an independent program with its own slots and
// scopes.
func (cc *Compiler) Unit(body func() (Compiled, error)) (*Program, error) {
	u := &unit{scopes: []scope{{}}}
	cc.units = append(cc.units, u)

	defer func() { cc.units = cc.units[:len(cc.units)-1] }()

	run, err := body()
	if err != nil {
		return nil, err
	}

	return &Program{run: run, slots: u.slots}, nil
}

// StartScope opens a nested cache scope.
func (cc *Compiler) StartScope() {
	u := cc.unit()
	u.scopes = append(u.scopes, scope{})
}

// EndScope closes the innermost cache scope, forgetting its entries.
func (cc *Compiler) EndScope() {
	u := cc.unit()
	if len(u.scopes) > 1 {
		u.scopes = u.scopes[:len(u.scopes)-1]
	}
}

// NewSlot allocates a slot in the current unit.
func (cc *Compiler) NewSlot() int {
	u := cc.unit()
	u.slots++

	return u.slots - 1
}

// CacheQuery records that name is held in slot i for the current scope.
func (cc *Compiler) CacheQuery(name string, i int) {
	u := cc.unit()
	u.scopes[len(u.scopes)-1][name] = i
}

// CachedQuery returns the slot that holds name, searching inner scopes
// first.
func (cc *Compiler) CachedQuery(name string) (int, bool) {
	u := cc.unit()
	for i := len(u.scopes) - 1; i >= 0; i-- {
		if s, ok := u.scopes[i][name]; ok {
			return s, s >= 0
		}
	}

	return 0, false
}

// UncacheQuery hides name from cached lookups in the current scope.
func (cc *Compiler) UncacheQuery(name string) {
	u := cc.unit()
	u.scopes[len(u.scopes)-1][name] = -1
}

// Preload registers a template an include in this compilation will use.
func (cc *Compiler) Preload(t *Template) {
	name := t.Name()
	cc.preloaded[name] = t
	cc.AddFinalizer(func() { delete(cc.preloaded, name) })
}

// Preloaded returns the template preloaded under name.
func (cc *Compiler) Preloaded(name string) (*Template, bool) {
	t, ok := cc.preloaded[name]

	return t, ok
}

// AddFinalizer registers fn to run once compilation completes.
func (cc *Compiler) AddFinalizer(fn func()) {
	cc.finalizers = append(cc.finalizers, fn)
}

func (cc *Compiler) finalize() {
	for i := len(cc.finalizers) - 1; i >= 0; i-- {
		cc.finalizers[i]()
	}

	cc.finalizers = nil
}

// Sequence compiles nodes into one closure that runs them in order.
func (cc *Compiler) Sequence(nodes []Node) (Compiled, error) {
	steps := make([]Compiled, 0, len(nodes))

	for _, n := range nodes {
		c, err := n.Compile(cc)
		if err != nil {
			return nil, err
		}

		if c != nil {
			steps = append(steps, c)
		}
	}

	switch len(steps) {
	case 0:
		return func(*Exec, any) (any, error) { return nil, nil }, nil
	case 1:
		one := steps[0]

		return func(x *Exec, data any) (any, error) {
			_, err := one(x, data)

			return nil, err
		}, nil
	}

	return func(x *Exec, data any) (any, error) {
		for _, step := range steps {
			if _, err := step(x, data); err != nil {
				return nil, err
			}
		}

		return nil, nil
	}, nil
}

// Scoped compiles nodes inside a fresh cache scope.
func (cc *Compiler) Scoped(nodes []Node) (Compiled, error) {
	cc.StartScope()
	defer cc.EndScope()

	return cc.Sequence(nodes)
}

// compileRoot compiles a whole template.
func (cc *Compiler) compileRoot(root *Root) (*Program, error) {
	defer cc.finalize()

	return cc.Unit(func() (Compiled, error) {
		return cc.Sequence(root.children)
	})
}
