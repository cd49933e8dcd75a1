package profile

// Stopper ends a profiling session and flushes its output.
type Stopper interface{ Stop() }

// Profiler describes a profiling session.
type Profiler struct {
	Mode  string // One of [Modes]; empty disables profiling
	Dir   string // Output directory; empty uses the working directory
	Quiet bool   // Suppress the profiler's own log lines
}

// Start begins profiling. Unknown or empty modes, and binaries built without
// [Tag], yield a no-op [Stopper].
func (p Profiler) Start() Stopper {
	if p.Mode == "" {
		return nop{}
	}

	return start(p)
}

type nop struct{}

func (nop) Stop() {}
