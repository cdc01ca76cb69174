package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Paths    []string `arg:"" help:"Documents or directories to watch" type:"path" default:"."`
	Variants []string `name:"variant" short:"V" help:"Variant to produce; repeatable" default:"student,teacher"`
}

func (c *WatchCmd) Run(ctx context.Context, g *Global) error {
	variants, err := compile.ParseVariants(c.Variants)
	if err != nil {
		return err
	}
	tc, err := g.toolchain()
	if err != nil {
		return err
	}
	runner, err := tc.runner(g.Config, explicitFiles(c.Paths))
	if err != nil {
		return err
	}
	defer tc.close()

	w, err := watch.New(c.Paths, g.Config.Batch.Excludes, g.Config.Watch.Debounce, func(ctx context.Context, changed []string) {
		slog.Info("Sources changed", logfields.Count(len(changed)))
		compileQuietly(ctx, runner, changed, variants)
		tc.flushMetrics(g.Config.Metrics)
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
