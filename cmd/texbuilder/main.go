package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/texbuilder/cmd/texbuilder/commands"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	cli := &commands.CLI{}
	g := &commands.Global{}
	parser, err := kong.New(cli,
		kong.Name("texbuilder"),
		kong.Description("Compile, inspect and aggregate LaTeX teaching documents."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		panic(err)
	}
	adapter := errors.NewCLIErrorAdapter(false, nil)

	kctx, err := parser.Parse(args)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return adapter.Report(os.Stderr, err)
		}
		parser.Errorf("%s", err)
		return 2
	}
	adapter = errors.NewCLIErrorAdapter(cli.Verbose, g.Logger)
	return adapter.Report(os.Stderr, kctx.Run())
}
