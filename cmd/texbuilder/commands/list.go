package commands

import (
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/source"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	Paths []string `arg:"" help:"Documents or directories to scan" type:"path" default:"."`
	JSON  bool     `name:"json" help:"Print machine-readable output"`
}

type listEntry struct {
	Path       string             `json:"path"`
	Version    docversion.Version `json:"version"`
	Compilable bool               `json:"compilable"`
	Error      string             `json:"error,omitempty"`
}

func (l *ListCmd) Run(g *Global) error {
	paths, err := expandPaths(l.Paths, g.Config.Batch.Excludes)
	if err != nil {
		return err
	}
	registry := document.NewRegistry()
	entries := make([]listEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, describe(registry, p))
	}
	if l.JSON {
		return printJSON(g.out(), entries)
	}

	for _, e := range entries {
		state := "yes"
		switch {
		case e.Error != "":
			state = "error: " + e.Error
		case !e.Compilable:
			state = "no"
		}
		_, _ = fmt.Fprintf(g.out(), "%s\t%s\t%s\n", relative(e.Path), e.Version, state)
	}
	return nil
}

// describe reads p once; a document that fails to load is reported, not
// returned as an error.
func describe(registry *document.Registry, p string) listEntry {
	e := listEntry{Path: p}
	raw, err := source.Read(p)
	if err != nil {
		e.Error = errors.Describe(err)
		return e
	}
	e.Version = docversion.DetectSource(raw)
	if e.Version == docversion.Unknown {
		return e
	}
	doc, err := registry.FromSource(raw)
	if err != nil {
		e.Error = errors.Describe(err)
		return e
	}
	e.Compilable = !batch.Disabled(doc)
	return e
}
