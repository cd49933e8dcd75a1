package log

import (
	"slices"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"trace+1", LevelTrace + 1},
		{"debug", LevelDebug},
		{" Info ", LevelInfo},
		{"info+2", LevelInfo + 2},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"loud", DefaultLevel},
		{"trace+x", DefaultLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelTrace, "trace"},
		{LevelWarn, "warn"},
		{LevelInfo + 2, "info+2"},
		{LevelError + 4, "error+4"},
		{LevelTrace + 2, "trace+2"},
		{LevelTrace - 2, "trace-2"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}

		var back Level
		if err := back.UnmarshalText([]byte(tt.want)); err != nil || back != tt.level {
			t.Errorf("UnmarshalText(%q) = %v, %v, want %v", tt.want, back, err, tt.level)
		}
	}
}

func TestLevels(t *testing.T) {
	got := slices.Collect(Levels())
	want := []string{"trace", "debug", "info", "warn", "error"}

	if !slices.Equal(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}
}

func TestFormat_Text(t *testing.T) {
	if got := ParseFormat("JSON"); got != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v", got)
	}

	if got := ParseFormat("yaml"); got != DefaultFormat {
		t.Errorf("ParseFormat(yaml) = %v, want default", got)
	}

	var f Format
	if err := f.UnmarshalText([]byte("xml")); err == nil {
		t.Errorf("UnmarshalText(xml) succeeded")
	}

	if s := Format(7).String(); s != "Format(7)" {
		t.Errorf("Format(7).String() = %q", s)
	}

	if got := slices.Collect(Formats()); !slices.Equal(got, []string{"text", "json"}) {
		t.Errorf("Formats() = %v", got)
	}
}
