package profile

import (
	"slices"
	"testing"
)

func TestProfiler_StartEmptyMode(t *testing.T) {
	s := Profiler{Dir: t.TempDir()}.Start()
	if _, ok := s.(nop); !ok {
		t.Fatalf("Start() with no mode = %T, want no-op", s)
	}

	s.Stop()
}

func TestProfiler_UnknownMode(t *testing.T) {
	if slices.Contains(Modes(), "bogus") {
		t.Fatal("bogus listed as a mode")
	}

	s := Profiler{Mode: "bogus", Dir: t.TempDir(), Quiet: true}.Start()
	if _, ok := s.(nop); !ok {
		t.Fatalf("Start() with unknown mode = %T, want no-op", s)
	}
}

func TestModes_Sorted(t *testing.T) {
	if m := Modes(); !slices.IsSorted(m) {
		t.Errorf("Modes() = %v is not sorted", m)
	}
}
