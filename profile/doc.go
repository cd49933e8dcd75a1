// Package profile wraps [github.com/pkg/profile] behind the pprof build tag.
//
// Built without the tag, [Modes] is empty and [Profiler.Start] returns a
// stopper that does nothing:
//
//	go build -tags pprof .
//	cairn --pprof-mode=cpu render index.html
//
// Supported modes are allocs, block, clock, cpu, goroutine, heap, mem,
// mutex, thread and trace. Output goes to [Profiler.Dir], which the CLI
// defaults to the pprof subdirectory of the user cache directory.
package profile

// Tag is the build tag that enables profiling.
const Tag = `pprof`
