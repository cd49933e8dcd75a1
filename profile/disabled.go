//go:build !pprof

package profile

// Modes returns nil: profiling is compiled out.
func Modes() []string { return nil }

func start(Profiler) Stopper { return nop{} }
