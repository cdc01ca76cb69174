package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/annuaire"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// IndexCmd groups queries against the document index.
type IndexCmd struct {
	List IndexListCmd `cmd:"" help:"List indexed documents"`
	Runs IndexRunsCmd `cmd:"" help:"List recent batch runs"`
}

func openIndex(g *Global) (*annuaire.Store, error) {
	if g.Config.Index.Path == "" {
		return nil, errors.ConfigError("no document index configured (index.path)").Build()
	}
	return annuaire.Open(g.Config.Index.Path)
}

// IndexListCmd implements 'index list'.
type IndexListCmd struct {
	Type string `help:"Only documents of this type_document"`
	JSON bool   `name:"json" help:"Print machine-readable output"`
}

func (c *IndexListCmd) Run(ctx context.Context, g *Global) error {
	store, err := openIndex(g)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	docs, err := store.List(ctx, c.Type)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(g.out(), docs)
	}
	for _, d := range docs {
		status := "ok  "
		if !d.Success {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(g.out(), "%s %-9s %-12s %s  %s\n", status, d.Version, d.DocType, d.CompiledAt.Format(time.DateTime), relative(d.Path))
	}
	return nil
}

// IndexRunsCmd implements 'index runs'.
type IndexRunsCmd struct {
	Limit int  `help:"Maximum number of runs" default:"20"`
	JSON  bool `name:"json" help:"Print machine-readable output"`
}

func (c *IndexRunsCmd) Run(ctx context.Context, g *Global) error {
	store, err := openIndex(g)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Runs(ctx, c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(g.out(), runs)
	}
	for _, r := range runs {
		_, _ = fmt.Fprintf(g.out(), "%s %s %-6s %d/%d failed (%s)\n",
			r.ID, r.Started.Format(time.DateTime), r.Mode, r.Failed, r.Total, r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
	return nil
}
