// Package cmd implements the cairn subcommands: render, tokens, ast, repl
// and init.
//
// Commands read "-" sources from the input installed with [WithInput] and
// write to the output installed with [WithOutput], defaulting to the
// standard streams.
package cmd

var (
	// CacheIdentifier is the kong variable holding the cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable holding the configuration file
	// path.
	ConfigIdentifier = "config"
)
