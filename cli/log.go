package cli

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/cairn/log"
)

// logLevel applies itself to the default logger as soon as kong decodes it,
// so messages emitted while parsing honor it.
type logLevel log.Level

func (l *logLevel) UnmarshalText(text []byte) error {
	var lv log.Level
	if err := lv.UnmarshalText(text); err != nil {
		return err
	}

	*l = logLevel(lv)
	log.Config(log.WithLevel(lv))

	return nil
}

// logFormat applies itself to the default logger as soon as kong decodes it.
type logFormat log.Format

func (f *logFormat) UnmarshalText(text []byte) error {
	var lf log.Format
	if err := lf.UnmarshalText(text); err != nil {
		return err
	}

	*f = logFormat(lf)
	log.Config(log.WithFormat(lf))

	return nil
}

type logConfig struct {
	Level  logLevel  `default:"info"    help:"Minimum level: ${logLevels}."                  placeholder:"LEVEL"`
	Format logFormat `default:"text"    help:"Record encoding: ${logFormats}."               placeholder:"FORMAT"`
	Time   string    `default:"RFC3339" help:"Timestamp layout name, Go layout, or 'none'."`
	Caller bool      `default:"false"   help:"Include the caller's file and line."          negatable:""`
	Pretty bool      `default:"true"    help:"Colorize records written to a terminal."      negatable:""`
}

func (logConfig) vars() kong.Vars {
	return kong.Vars{
		"logLevels":  strings.Join(slices.Collect(log.Levels()), ", "),
		"logFormats": strings.Join(slices.Collect(log.Formats()), ", "),
	}
}

func (logConfig) group() kong.Group {
	return kong.Group{Key: "log", Title: "Logging"}
}

func (c *logConfig) options() []log.Option {
	return []log.Option{
		log.WithLevel(log.Level(c.Level)),
		log.WithFormat(log.Format(c.Format)),
		log.WithTimeLayout(c.Time),
		log.WithCaller(c.Caller),
		log.WithPretty(c.Pretty),
	}
}

// start applies every parsed flag to the default logger.
func (c *logConfig) start(ctx context.Context) {
	log.Config(c.options()...)

	log.DebugContext(ctx, "logger configured",
		slog.String("level", log.Level(c.Level).String()),
		slog.String("format", log.Format(c.Format).String()),
		slog.String("time", c.Time),
		slog.Bool("caller", c.Caller),
		slog.Bool("pretty", c.Pretty),
	)
}

// scan applies log flags found in args before kong parses them, so the
// logger is configured no matter where the flags appear. Malformed values
// are left for kong to report.
func (c *logConfig) scan(args []string) {
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			return
		}

		name, value, assigned := strings.Cut(args[i], "=")

		operand := func() string {
			if !assigned && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++

				return args[i]
			}

			return value
		}

		switch name {
		case "--log-level":
			_ = c.Level.UnmarshalText([]byte(operand()))

		case "--log-format":
			_ = c.Format.UnmarshalText([]byte(operand()))

		case "--log-time":
			c.Time = operand()
			log.Config(log.WithTimeLayout(c.Time))

		case "--log-caller", "--no-log-caller":
			if v, ok := switchValue(name, value, assigned); ok {
				c.Caller = v
				log.Config(log.WithCaller(v))
			}

		case "--log-pretty", "--no-log-pretty":
			if v, ok := switchValue(name, value, assigned); ok {
				c.Pretty = v
				log.Config(log.WithPretty(v))
			}
		}
	}
}

// switchValue interprets a boolean flag and its optional "=value".
func switchValue(name, value string, assigned bool) (bool, bool) {
	v := true

	if assigned {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, false
		}

		v = b
	}

	if strings.HasPrefix(name, "--no-") {
		v = !v
	}

	return v, true
}

func (l logLevel) MarshalText() ([]byte, error) { return log.Level(l).MarshalText() }

func (f logFormat) MarshalText() ([]byte, error) { return log.Format(f).MarshalText() }
