package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/gitscope"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// CompileCmd implements the 'compile' command.
type CompileCmd struct {
	Paths    []string `arg:"" help:"Documents or directories to compile" type:"path" default:"."`
	Variants []string `name:"variant" short:"V" help:"Variant to produce (student, teacher, corrected, accessible); repeatable" default:"student,teacher"`
	Deep     bool     `help:"Discard auxiliary files and rebuild from scratch"`
	JSON     bool     `name:"json" help:"Print machine-readable results"`
	Changed  bool     `help:"Only compile sources modified in the git worktree"`
	Since    string   `help:"Only compile sources changed since this git revision (implies --changed)"`
}

func (c *CompileCmd) Run(ctx context.Context, g *Global) error {
	variants, err := compile.ParseVariants(c.Variants)
	if err != nil {
		return err
	}
	mode := compile.Normal
	if c.Deep {
		mode = compile.Deep
	}
	paths, err := c.selectPaths(g)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		slog.Info("No documents to compile")
		return nil
	}

	tc, err := g.toolchain()
	if err != nil {
		return err
	}
	runner, err := tc.runner(g.Config, c.explicit())
	if err != nil {
		return err
	}
	defer tc.close()

	entries := runner.Run(ctx, paths, variants, mode)
	tc.flushMetrics(g.Config.Metrics)

	if c.JSON {
		if err := printJSON(g.out(), entries); err != nil {
			return err
		}
	} else {
		report(g.out(), entries)
	}
	return batchError(entries)
}

func (c *CompileCmd) selectPaths(g *Global) ([]string, error) {
	switch {
	case c.Since != "":
		return gitscope.ChangedSince(c.Paths, c.Since)
	case c.Changed:
		return gitscope.Changed(c.Paths)
	default:
		return expandPaths(c.Paths, g.Config.Batch.Excludes)
	}
}

// explicit lists the file arguments; git selection names none.
func (c *CompileCmd) explicit() []string {
	if c.Changed || c.Since != "" {
		return nil
	}
	return explicitFiles(c.Paths)
}

// report prints one line per variant and the diagnostics of failures.
func report(w io.Writer, entries []batch.Entry) {
	for _, e := range entries {
		name := relative(e.Path)
		if e.Err != nil {
			_, _ = fmt.Fprintf(w, "FAIL %s: %s\n", name, e.Err)
			continue
		}
		if e.Skipped != "" {
			_, _ = fmt.Fprintf(w, "skip %s: %s\n", name, e.Skipped)
			continue
		}
		for _, r := range e.Results {
			status := "ok  "
			if !r.Success {
				status = "FAIL"
			}
			_, _ = fmt.Fprintf(w, "%s %s [%s] %s\n", status, name, r.Variant, r.Duration.Round(time.Millisecond))
			for _, d := range r.Diagnostics {
				if r.Success && d.Severity == compile.SeverityInfo {
					continue
				}
				if d.Line > 0 {
					_, _ = fmt.Fprintf(w, "     %s l.%d: %s\n", d.Severity, d.Line, d.Message)
				} else {
					_, _ = fmt.Fprintf(w, "     %s: %s\n", d.Severity, d.Message)
				}
			}
		}
	}
	summary := fmt.Sprintf("%d document(s), %d failed", len(entries), batch.Failures(entries))
	if n := batch.Skips(entries); n > 0 {
		summary += fmt.Sprintf(", %d skipped", n)
	}
	_, _ = fmt.Fprintln(w, summary)
}

// batchError is the unclassified error that maps a failed batch to exit status 1.
func batchError(entries []batch.Entry) error {
	if n := batch.Failures(entries); n > 0 {
		return fmt.Errorf("%d of %d documents failed", n, len(entries))
	}
	return nil
}

func relative(p string) string {
	if rel, err := filepath.Rel(".", p); err == nil && !filepath.IsAbs(rel) {
		return rel
	}
	return p
}

// compileQuietly runs a batch and logs outcomes instead of printing them.
func compileQuietly(ctx context.Context, runner *batch.Runner, paths []string, variants []compile.Variant) {
	entries := runner.Run(ctx, paths, variants, compile.Normal)
	for _, e := range entries {
		if e.Skipped != "" {
			continue
		}
		if e.Failed() {
			slog.Warn("Compilation failed", logfields.Path(e.Path), logfields.Error(entryError(e)))
		} else {
			slog.Info("Compiled", logfields.Path(e.Path), logfields.Count(len(e.Results)))
		}
	}
}

func entryError(e batch.Entry) error {
	if e.Err != nil {
		return e.Err
	}
	for _, r := range e.Results {
		if !r.Success {
			msg := "compilation failed"
			if errs := r.Errors(); len(errs) > 0 {
				msg = errs[0].Message
			}
			return errors.CompileError(msg).WithContext("variant", string(r.Variant)).Build()
		}
	}
	return nil
}
