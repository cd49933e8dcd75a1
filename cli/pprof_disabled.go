//go:build !pprof

package cli

import (
	"context"

	"github.com/alecthomas/kong"
)

// pprofConfig has no flags without the pprof build tag.
type pprofConfig struct{}

func (pprofConfig) vars() kong.Vars { return kong.Vars{} }

func (pprofConfig) group() kong.Group { return kong.Group{Key: "pprof", Title: "Profiling"} }

func (pprofConfig) start(context.Context) (stop func()) { return func() {} }
