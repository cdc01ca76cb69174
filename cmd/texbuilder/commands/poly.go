package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/poly"
)

// PolyCmd groups the poly subcommands.
type PolyCmd struct {
	Build PolyBuildCmd `cmd:"" help:"Aggregate and compile a poly manifest"`
	Init  PolyInitCmd  `cmd:"" help:"Write a manifest listing the documents of a directory"`
}

// PolyBuildCmd implements 'poly build'.
type PolyBuildCmd struct {
	Manifest string   `arg:"" help:"Poly manifest (YAML)" type:"existingfile"`
	Variants []string `name:"variant" short:"V" help:"Override the manifest's variants; repeatable"`
	Deep     bool     `help:"Discard auxiliary files and rebuild from scratch"`
	JSON     bool     `name:"json" help:"Print machine-readable results"`
}

func (p *PolyBuildCmd) Run(ctx context.Context, g *Global) error {
	m, err := poly.LoadManifest(p.Manifest)
	if err != nil {
		return err
	}
	mode := compile.Normal
	if p.Deep {
		mode = compile.Deep
	}
	tc, err := g.toolchain()
	if err != nil {
		return err
	}
	agg := poly.NewAggregator(tc.registry, tc.orch, g.Config.Poly)

	var results []compile.Result
	if len(p.Variants) == 0 {
		results, err = agg.AggregateAll(ctx, m, mode)
	} else {
		var variants []compile.Variant
		variants, err = compile.ParseVariants(p.Variants)
		for _, v := range variants {
			var r compile.Result
			if r, err = agg.Aggregate(ctx, m, v, mode); err != nil {
				break
			}
			results = append(results, r)
		}
	}
	tc.flushMetrics(g.Config.Metrics)
	if err != nil {
		return err
	}

	if p.JSON {
		if err := printJSON(g.out(), results); err != nil {
			return err
		}
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
		if !p.JSON {
			status := "ok  "
			if !r.Success {
				status = "FAIL"
			}
			_, _ = fmt.Fprintf(g.out(), "%s %s [%s] %s\n", status, agg.OutputPath(m), r.Variant, r.Artifact)
			for _, d := range r.Errors() {
				_, _ = fmt.Fprintf(g.out(), "     %s\n", d.Message)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d poly variants failed", failed, len(results))
	}
	return nil
}

// PolyInitCmd implements 'poly init'.
type PolyInitCmd struct {
	Dir   string `arg:"" help:"Directory to scan" type:"existingdir" default:"."`
	Title string `help:"Poly title; defaults to the directory name"`
}

func (p *PolyInitCmd) Run(g *Global) error {
	path, err := poly.Init(document.NewRegistry(), p.Dir, p.Title, g.Config.Batch.Excludes)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), path)
	return nil
}
