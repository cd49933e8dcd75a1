// Package pkg holds project metadata shared by the command line and the
// library.
package pkg

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version returns the semantic version embedded at build time.
func Version() string { return strings.TrimSpace(version) }

const (
	// Name is the command name. It also names the configuration and cache
	// directories.
	Name = "cairn"

	// Description is the one-line summary shown in help output.
	Description = "Compile-once template engine"
)

// Author identifies a maintainer.
type Author struct {
	Name  string
	Email string
}

// Authors lists the maintainers.
var Authors = []Author{
	{"ardnew", "andrew@ardnew.com"},
}
