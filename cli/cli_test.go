package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/cairn/cli/cmd"
	"github.com/ardnew/cairn/log"
)

func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "cairn-cli")
	if err != nil {
		panic(err)
	}

	os.Setenv("HOME", home)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	os.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))

	code := m.Run()

	os.RemoveAll(home)
	os.Exit(code)
}

// keepDefault restores the default logger after flags have modified it.
func keepDefault(t *testing.T) {
	t.Helper()

	prev := log.Default()
	log.SetDefault(log.Make(nil))

	t.Cleanup(func() { log.SetDefault(prev) })
}

func noExit(t *testing.T) func(int) {
	return func(code int) { t.Fatalf("unexpected exit(%d)", code) }
}

func TestRun_Render(t *testing.T) {
	keepDefault(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.txt"), []byte("Hi {{ name }}"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer

	ctx := cmd.WithOutput(t.Context(), &out)

	err := run(ctx, noExit(t), filepath.Join(dir, "absent.yaml"),
		"render", "-d", dir, "--set", "name=ada", "page.txt")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if out.String() != "Hi ada" {
		t.Errorf("output = %q, want %q", out.String(), "Hi ada")
	}
}

func TestRun_ConfigFile(t *testing.T) {
	keepDefault(t)

	dir := t.TempDir()
	views := filepath.Join(dir, "views")

	if err := os.Mkdir(views, 0o700); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(views, "x.txt"), []byte("{{ 2 * 3 }}{{ 4|double }}"), 0o600); err != nil {
		t.Fatal(err)
	}

	config := filepath.Join(dir, "config.yaml")
	text := "log:\n  level: error\nfilter:\n  double: value * 2\ndir:\n  - " + views + "\n"

	if err := os.WriteFile(config, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer

	if err := run(cmd.WithOutput(t.Context(), &out), noExit(t), config, "render", "x.txt"); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if out.String() != "68" {
		t.Errorf("output = %q, want %q", out.String(), "68")
	}

	if log.Default().Level() != log.LevelError {
		t.Errorf("log level = %v, want error from configuration", log.Default().Level())
	}
}

func TestRun_Init(t *testing.T) {
	keepDefault(t)

	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")

	if err := run(t.Context(), noExit(t), config, "--log-level", "warn", "-d", dir, "init"); err != nil {
		t.Fatalf("init error = %v", err)
	}

	data, err := os.ReadFile(config)
	if err != nil {
		t.Fatalf("read configuration: %v", err)
	}

	for _, want := range []string{"log-level: warn", "log-format: text", "- " + dir} {
		if !strings.Contains(string(data), want) {
			t.Errorf("configuration lacks %q:\n%s", want, data)
		}
	}

	if strings.Contains(string(data), "pprof") || strings.Contains(string(data), "help") {
		t.Errorf("configuration holds skipped flags:\n%s", data)
	}

	err = run(t.Context(), noExit(t), config, "init")
	if !errors.Is(err, cmd.ErrFileExists) {
		t.Errorf("second init error = %v, want ErrFileExists", err)
	}

	if err := run(t.Context(), noExit(t), config, "init", "--force"); err != nil {
		t.Errorf("forced init error = %v", err)
	}
}

func TestLogConfig_Scan(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		level  log.Level
		format log.Format
		caller bool
		pretty bool
	}{
		{
			name:   "separate operands",
			args:   []string{"render", "--log-level", "debug", "--log-format", "json", "x"},
			level:  log.LevelDebug,
			format: log.FormatJSON,
			pretty: true,
		},
		{
			name:   "assigned operands",
			args:   []string{"--log-level=trace", "--log-caller", "--no-log-pretty"},
			level:  log.LevelTrace,
			caller: true,
		},
		{
			name:   "stops at double dash",
			args:   []string{"--", "--log-level", "error"},
			level:  log.LevelInfo,
			pretty: true,
		},
		{
			name:   "malformed value ignored",
			args:   []string{"--log-level", "loud", "--log-caller=maybe"},
			level:  log.LevelInfo,
			pretty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keepDefault(t)

			c := logConfig{Level: logLevel(log.LevelInfo), Pretty: true}
			c.scan(tt.args)

			if log.Level(c.Level) != tt.level || log.Format(c.Format) != tt.format {
				t.Errorf("scan() = %v/%v, want %v/%v",
					log.Level(c.Level), log.Format(c.Format), tt.level, tt.format)
			}

			if c.Caller != tt.caller || c.Pretty != tt.pretty {
				t.Errorf("scan() caller/pretty = %v/%v, want %v/%v",
					c.Caller, c.Pretty, tt.caller, tt.pretty)
			}

			if log.Default().Level() != tt.level {
				t.Errorf("default logger level = %v, want %v", log.Default().Level(), tt.level)
			}
		})
	}
}

func TestSwitchValue(t *testing.T) {
	tests := []struct {
		name, value string
		assigned    bool
		want, ok    bool
	}{
		{"--log-caller", "", false, true, true},
		{"--no-log-caller", "", false, false, true},
		{"--log-caller", "false", true, false, true},
		{"--no-log-caller", "false", true, true, true},
		{"--log-caller", "maybe", true, false, false},
	}

	for _, tt := range tests {
		got, ok := switchValue(tt.name, tt.value, tt.assigned)
		if got != tt.want || ok != tt.ok {
			t.Errorf("switchValue(%q, %q, %v) = %v, %v; want %v, %v",
				tt.name, tt.value, tt.assigned, got, ok, tt.want, tt.ok)
		}
	}
}
