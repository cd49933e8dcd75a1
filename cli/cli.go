package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/ardnew/cairn/cli/cmd"
	"github.com/ardnew/cairn/pkg"
)

// CLI is the cairn command line.
type CLI struct {
	Log    logConfig       `embed:"" group:"log"   prefix:"log-"`
	Pprof  pprofConfig     `embed:"" group:"pprof" prefix:"pprof-"`
	Engine cmd.EngineFlags `embed:"" group:"engine"`

	Version kong.VersionFlag `help:"Print the version and exit." short:"V"`

	Render cmd.Render `cmd:"" help:"Render a template."`
	Tokens cmd.Tokens `cmd:"" help:"Dump the tokens of a template."`
	AST    cmd.AST    `cmd:"" help:"Dump the syntax tree of a template." name:"ast"`
	Repl   cmd.Repl   `cmd:"" help:"Render snippets interactively."`
	Init   cmd.Init   `cmd:"" help:"Write the current global flags to the configuration file."`
}

// Run parses args and executes the selected command. exit is called when
// kong terminates early, as for --help.
func Run(ctx context.Context, exit func(code int), args ...string) error {
	return run(ctx, exit, configPath(configBase), args...)
}

func run(ctx context.Context, exit func(code int), config string, args ...string) error {
	var cli CLI

	if err := mkdirs(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cli.Log.scan(args)

	vars := kong.Vars{
		"version":            pkg.Name + " " + pkg.Version(),
		cmd.ConfigIdentifier: config,
		cmd.CacheIdentifier:  cacheDir(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups([]kong.Group{
			cli.Log.group(),
			cli.Pprof.group(),
			{Key: "engine", Title: "Engine"},
		}),
		kong.BindSingletonProvider(func() context.Context { return ctx }),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(loadYAML, config),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)

	cli.Log.start(ctx)

	stop := cli.Pprof.start(ctx)
	defer stop()

	return ktx.Run(&cli.Engine)
}
