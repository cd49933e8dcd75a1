package lang

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ardnew/cairn/log"
)

// visitor holds the hooks the optimizer runs for one node kind. A pre hook
// returning false skips the node's children; the post hook still runs.
type visitor struct {
	pre  func(o *optimizer, n Node) bool
	post func(o *optimizer, n Node)
}

type optimizer struct {
	seen     map[string]bool
	outer    []map[string]bool
	includes []string
	forced   int
}

// visitors dispatches on node kind; kinds without an entry use the zero
// visitor, which descends and does nothing else.
var visitors = map[Kind]visitor{
	KindQuery:         {pre: (*optimizer).visitQuery},
	KindStatement:     {pre: (*optimizer).visitStatement},
	KindStatementBody: {pre: (*optimizer).enterBody, post: (*optimizer).leaveBody},
	KindPreload:       {pre: func(*optimizer, Node) bool { return false }},
	KindTemplate:      {post: (*optimizer).leaveTemplate},
}

// Optimize rewrites root in place for compilation: the first head lookup
// of each variable in each statement body is marked for caching, and the
// lookups a body marks are forgotten when it ends. Every included template
// gets a preload placeholder at the front. Optimizing twice yields the
// same tree.
func Optimize(root *Root, logger log.Logger) {
	o := &optimizer{seen: map[string]bool{}}
	o.walk(root)

	logger.TraceContext(context.Background(), "optimize complete",
		slog.Int("cached_names", o.forced),
		slog.Any("preloads", o.includes),
	)
}

func (o *optimizer) walk(n Node) {
	if n == nil {
		return
	}

	v := visitors[n.Kind()]

	descend := true
	if v.pre != nil {
		descend = v.pre(o, n)
	}

	if descend {
		for _, c := range n.Children() {
			o.walk(c)
		}
	}

	if v.post != nil {
		v.post(o, n)
	}
}

func (o *optimizer) visitQuery(n Node) bool {
	q := n.(*Query)
	if !q.Head {
		return true
	}

	q.ForceCache = !o.seen[q.Name]
	if q.ForceCache {
		o.seen[q.Name] = true
		o.forced++
	}

	return true
}

func (o *optimizer) visitStatement(n Node) bool {
	if inc, ok := n.(Includer); ok {
		if name, ok := inc.IncludeName(); ok && !slices.Contains(o.includes, name) {
			o.includes = append(o.includes, name)
		}
	}

	return true
}

// enterBody opens a cache scope: names seen outside stay seen inside.
func (o *optimizer) enterBody(Node) bool {
	o.outer = append(o.outer, o.seen)
	o.seen = maps.Clone(o.seen)

	return true
}

func (o *optimizer) leaveBody(Node) {
	n := len(o.outer) - 1
	o.seen, o.outer = o.outer[n], o.outer[:n]
}

func (o *optimizer) leaveTemplate(n Node) {
	n.(*Root).setPreloads(o.includes)
}
