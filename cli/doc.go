// Package cli is the cairn command line.
//
//	cairn render index.html -d views -D data.yaml --set title=Home
//	cairn tokens page.tmpl
//	cairn ast --optimize -f json page.tmpl
//	cairn repl -D data.yaml
//	cairn init
//
// Global flags may also be read from config.yaml in the user configuration
// directory, written by init. Keys are flag names, with hyphens or
// underscores, or nested at hyphens:
//
//	log:
//	  level: debug
//	dir:
//	  - views
//	compiled: true
//
// Log flags take effect before parsing, wherever they appear on the
// command line. Profiling flags exist only in binaries built with the
// pprof tag.
package cli
