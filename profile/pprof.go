//go:build pprof

package profile

import (
	"maps"
	"slices"

	"github.com/pkg/profile"

	_ "net/http/pprof" // register HTTP handlers
)

var modes = map[string]func(*profile.Profile){
	"allocs":    profile.MemProfileAllocs,
	"block":     profile.BlockProfile,
	"clock":     profile.ClockProfile,
	"cpu":       profile.CPUProfile,
	"goroutine": profile.GoroutineProfile,
	"heap":      profile.MemProfileHeap,
	"mem":       profile.MemProfile,
	"mutex":     profile.MutexProfile,
	"thread":    profile.ThreadcreationProfile,
	"trace":     profile.TraceProfile,
}

// Modes returns the sorted profiling modes.
func Modes() []string { return slices.Sorted(maps.Keys(modes)) }

func start(p Profiler) Stopper {
	mode, ok := modes[p.Mode]
	if !ok {
		return nop{}
	}

	opts := []func(*profile.Profile){mode, profile.NoShutdownHook}

	if p.Dir != "" {
		opts = append(opts, profile.ProfilePath(p.Dir))
	}

	if p.Quiet {
		opts = append(opts, profile.Quiet)
	}

	return profile.Start(opts...)
}
