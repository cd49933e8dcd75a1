package cmd

import (
	"context"

	"github.com/ardnew/cairn/cli/cmd/repl"
	"github.com/ardnew/cairn/log"
)

// Repl renders template snippets interactively.
type Repl struct {
	DataFlags `embed:""`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context, flags *EngineFlags) error {
	e, err := flags.Engine()
	if err != nil {
		return err
	}

	data, err := r.Load()
	if err != nil {
		return err
	}

	dir := ""
	if ktx := kongContextFrom(ctx); ktx != nil {
		dir = ktx.Model.Vars()[CacheIdentifier]
	}

	return repl.Run(ctx, e, data, dir, log.Default())
}
