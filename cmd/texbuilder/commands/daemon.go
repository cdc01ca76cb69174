package commands

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/gitscope"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/schedule"
	"git.home.luguber.info/inful/texbuilder/internal/server"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Roots    []string      `arg:"" optional:"" help:"Directories to compile; defaults to daemon.roots" type:"path"`
	Interval time.Duration `help:"Time between runs; defaults to daemon.interval"`
	Variants []string      `name:"variant" short:"V" help:"Variant to produce; repeatable" default:"student,teacher"`
	Changed  bool          `help:"Only compile sources modified in the git worktree"`
	Listen   string        `help:"Status server address (host:port); defaults to daemon.listen"`
}

func (d *DaemonCmd) Run(ctx context.Context, g *Global) error {
	variants, err := compile.ParseVariants(d.Variants)
	if err != nil {
		return err
	}
	roots := d.Roots
	if len(roots) == 0 {
		roots = g.Config.Daemon.Roots
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}
	interval := d.Interval
	if interval == 0 {
		interval = g.Config.Daemon.Interval
	}

	tc, err := g.toolchain()
	if err != nil {
		return err
	}
	status := server.NewStatus()
	var explicit []string
	if !d.Changed {
		explicit = explicitFiles(roots)
	}
	runner, err := tc.runner(g.Config, explicit, status)
	if err != nil {
		return err
	}
	defer tc.close()

	listen := d.Listen
	if listen == "" {
		listen = g.Config.Daemon.Listen
	}
	if listen != "" {
		srv := server.New(listen, status, tc.recorder.Registry(), g.Logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Status server shutdown failed", logfields.Error(err))
			}
		}()
	}

	sched, err := schedule.New()
	if err != nil {
		return err
	}
	_, err = sched.Every(ctx, "batch", interval, func(ctx context.Context) error {
		var paths []string
		var err error
		if d.Changed {
			paths, err = gitscope.Changed(roots)
		} else {
			paths, err = expandPaths(roots, g.Config.Batch.Excludes)
		}
		if err != nil {
			return err
		}
		entries := runner.Run(ctx, paths, variants, compile.Normal)
		tc.flushMetrics(g.Config.Metrics)
		return batchError(entries)
	})
	if err != nil {
		return err
	}

	sched.Start()
	slog.Info("Daemon started", logfields.Count(len(roots)), logfields.Duration(interval))
	<-ctx.Done()
	return sched.Stop()
}
