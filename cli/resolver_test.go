package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ardnew/cairn/log"
)

func TestYAMLResolver_Lookup(t *testing.T) {
	const doc = `
log-time: kitchen
cache_dir: /tmp/c
log:
  level: debug
  caller: true
filter:
  shout: upper(value)
dir:
  - a
  - b
`

	res, err := loadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("loadYAML() error = %v", err)
	}

	r := res.(yamlResolver)

	tests := []struct {
		flag    string
		mapping bool
		want    any
		ok      bool
	}{
		{"log-time", false, "kitchen", true},
		{"cache-dir", false, "/tmp/c", true},
		{"log-level", false, "debug", true},
		{"log-caller", false, true, true},
		{"dir", false, "a,b", true},
		{"filter", true, "shout=upper(value)", true},
		{"filter", false, nil, false},
		{"filter-shout", false, "upper(value)", true},
		{"log", false, nil, false},
		{"log-format", false, nil, false},
		{"log-level-extra", false, nil, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/mapping=%v", tt.flag, tt.mapping), func(t *testing.T) {
			v, ok := r.lookup(tt.flag, tt.mapping)
			if ok != tt.ok {
				t.Fatalf("lookup(%q) ok = %v, want %v", tt.flag, ok, tt.ok)
			}

			if ok && flagValue(v) != tt.want {
				t.Errorf("lookup(%q) = %#v, want %#v", tt.flag, flagValue(v), tt.want)
			}
		})
	}
}

func TestFlagValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{true, true},
		{"s", "s"},
		{uint64(3), "3"},
		{1.5, "1.5"},
		{[]any{uint64(1), "x", false}, "1,x,false"},
		{map[string]any{"b": uint64(2), "a": "1"}, "a=1;b=2"},
	}

	for _, tt := range tests {
		if got := flagValue(tt.in); got != tt.want {
			t.Errorf("flagValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestLoadYAML_Malformed(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	var buf strings.Builder
	log.SetDefault(log.Make(&buf, log.WithTimeLayout("none"), log.WithPretty(false)))

	res, err := loadYAML(strings.NewReader("a: [1\n"))
	if err != nil {
		t.Fatalf("loadYAML() error = %v", err)
	}

	if _, ok := res.(yamlResolver).lookup("a", false); ok {
		t.Errorf("malformed file resolved a value")
	}

	if !strings.Contains(buf.String(), "ignoring configuration file") {
		t.Errorf("no warning logged: %q", buf.String())
	}
}
