package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/cairn/lang"
	"github.com/ardnew/cairn/log"
)

// Tokens dumps the token stream of a template.
type Tokens struct {
	Source string `arg:"" default:"-"    help:"Template file or '-' for standard input."`
	Format string `       default:"yaml" enum:"yaml,json" help:"Dump encoding: yaml or json." short:"f"`
}

// Run executes the tokens command.
func (c *Tokens) Run(ctx context.Context, flags *EngineFlags) error {
	e, err := flags.Engine()
	if err != nil {
		return err
	}

	src, err := readSource(ctx, c.Source)
	if err != nil {
		return lang.ErrReadInput.Wrap(err).With(slog.String("source", c.Source))
	}

	var tokens []lang.Token

	for tok, err := range e.Tokens(src) {
		if err != nil {
			return err
		}

		tokens = append(tokens, tok)
	}

	log.TraceContext(ctx, "lexed", slog.Int("tokens", len(tokens)))

	if err := lang.WriteTokens(outputFrom(ctx), tokens, lang.ParseFormat(c.Format)); err != nil {
		return ErrEncode.Wrap(err)
	}

	return nil
}

// AST dumps the node tree of a template.
type AST struct {
	Source   string `arg:"" default:"-"    help:"Template file or '-' for standard input."`
	Format   string `       default:"yaml" enum:"yaml,json" help:"Dump encoding: yaml or json." short:"f"`
	Optimize bool   `                      help:"Dump the tree after optimization."`
}

// Run executes the ast command.
func (c *AST) Run(ctx context.Context, flags *EngineFlags) error {
	e, err := flags.Engine()
	if err != nil {
		return err
	}

	src, err := readSource(ctx, c.Source)
	if err != nil {
		return lang.ErrReadInput.Wrap(err).With(slog.String("source", c.Source))
	}

	root, err := e.Parse(src)
	if err != nil {
		return err
	}

	if c.Optimize {
		lang.Optimize(root, e.Logger())
	}

	if err := lang.WriteTree(outputFrom(ctx), root, lang.ParseFormat(c.Format)); err != nil {
		return ErrEncode.Wrap(err)
	}

	return nil
}
