//go:build pprof

package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/cairn/log"
	"github.com/ardnew/cairn/profile"
)

type pprofConfig struct {
	Mode string `default:""            enum:",${pprofModes}" help:"Profile the run: ${pprofModes}." placeholder:"MODE" short:"p"`
	Dir  string `default:"${pprofDir}"                       help:"Profile output directory."       type:"path"`
}

func (pprofConfig) vars() kong.Vars {
	return kong.Vars{
		"pprofModes": strings.Join(profile.Modes(), ","),
		"pprofDir":   filepath.Join(cacheDir(), profile.Tag),
	}
}

func (pprofConfig) group() kong.Group {
	return kong.Group{Key: "pprof", Title: "Profiling"}
}

func (c pprofConfig) start(ctx context.Context) (stop func()) {
	if c.Mode == "" {
		return func() {}
	}

	attrs := []slog.Attr{slog.String("mode", c.Mode), slog.String("dir", c.Dir)}

	log.DebugContext(ctx, "profiling started", attrs...)

	p := profile.Profiler{Mode: c.Mode, Dir: c.Dir, Quiet: true}.Start()

	return func() {
		p.Stop()
		log.DebugContext(ctx, "profiling stopped", attrs...)
	}
}
