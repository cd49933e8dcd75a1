package lang

import (
	"slices"
	"testing"

	"github.com/ardnew/cairn/log"
)

// headQueries returns every head query of the tree in walk order.
func headQueries(n Node) []*Query {
	var out []*Query

	var walk func(Node)
	walk = func(n Node) {
		if q, ok := n.(*Query); ok && q.Head {
			out = append(out, q)
		}

		for _, c := range n.Children() {
			if c != nil {
				walk(c)
			}
		}
	}

	walk(n)

	return out
}

func TestOptimize_ForceCacheFirstHeadOnly(t *testing.T) {
	root, err := parse("{{ a }}{{ a.b }}{{ b ~ a }}{{ x[a] }}", nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	Optimize(root, log.Logger{})

	forced := map[string]int{}
	seen := map[string]int{}

	for _, q := range headQueries(root) {
		seen[q.Name]++
		if q.ForceCache {
			forced[q.Name]++
		}
	}

	if seen["a"] != 4 {
		t.Fatalf("saw %d head queries of a, want 4", seen["a"])
	}

	for name := range seen {
		if forced[name] != 1 {
			t.Errorf("%s forced %d times, want 1", name, forced[name])
		}
	}

	if q := headQueries(root)[0]; q.Name != "a" || !q.ForceCache {
		t.Errorf("first query = %s (forced %v), want forced a", q.Name, q.ForceCache)
	}
}

func TestOptimize_ForceCachePerBody(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []bool
	}{
		{"first in body", "{% wrap %}{{ a }}{% endwrap %}{{ a }}{{ a }}", []bool{true, true, false}},
		{"seen before body", "{{ a }}{% wrap %}{{ a }}{% endwrap %}{{ a }}", []bool{true, false, false}},
		{"nested bodies", "{% wrap %}{% wrap %}{{ a }}{% endwrap %}{{ a }}{% endwrap %}{{ a }}", []bool{true, true, true}},
		{"sibling bodies", "{% wrap %}{{ a }}{{ a }}{% endwrap %}{% wrap %}{{ a }}{% endwrap %}", []bool{true, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := parse(tt.src, testRegistry)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			Optimize(root, log.Logger{})

			if got := forcedFlags(root); !slices.Equal(got, tt.want) {
				t.Errorf("forced flags = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptimize_Preloads(t *testing.T) {
	src := "{% inc 'x' %}{% wrap %}{% inc 'y' %}{% endwrap %}{% inc 'x' %}tail"

	root, err := parse(src, testRegistry)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	before := len(root.Children())

	Optimize(root, log.Logger{})

	if got, want := root.Preloads(), []string{"x", "y"}; !slices.Equal(got, want) {
		t.Fatalf("Preloads() = %v, want %v", got, want)
	}

	if got := len(root.Children()); got != before+2 {
		t.Errorf("got %d nodes, want %d", got, before+2)
	}

	for i, n := range root.Children()[:2] {
		if n.Kind() != KindPreload {
			t.Errorf("node %d is %v, want preload", i, n.Kind())
		}
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	root, err := parse("{% inc 'x' %}{{ a }}{{ a }}{% inc 'y' %}", testRegistry)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	Optimize(root, log.Logger{})

	first := shape(root)
	firstForced := forcedFlags(root)

	Optimize(root, log.Logger{})

	if got := shape(root); !slices.Equal(got, first) {
		t.Errorf("second pass = %s, want %s", got, first)
	}

	if got := forcedFlags(root); !slices.Equal(got, firstForced) {
		t.Errorf("forced flags = %v, want %v", got, firstForced)
	}

	if got := root.Preloads(); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("Preloads() = %v", got)
	}
}

// shape lists the type name of every node in walk order.
func shape(n Node) []string {
	out := []string{TypeName(n)}
	for _, c := range n.Children() {
		out = append(out, shape(c)...)
	}

	return out
}

func forcedFlags(root *Root) []bool {
	var out []bool
	for _, q := range headQueries(root) {
		out = append(out, q.ForceCache)
	}

	return out
}
