package commands

import (
	"fmt"
	"os"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metadata"
)

// DetectCmd implements the 'detect' command.
type DetectCmd struct {
	Paths []string `arg:"" help:"Documents to classify" type:"existingfile"`
}

func (d *DetectCmd) Run(g *Global) error {
	for _, p := range d.Paths {
		// #nosec G304 -- path is provided by the operator
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
				WithContext("path", p).
				Build()
		}
		_, _ = fmt.Fprintf(g.out(), "%s\t%s\n", docversion.Detect(data), p)
	}
	return nil
}

// InfoCmd implements the 'info' command.
type InfoCmd struct {
	Path string `arg:"" help:"Document to describe" type:"existingfile"`
	JSON bool   `name:"json" help:"Print machine-readable output"`
}

type infoView struct {
	Path     string             `json:"path"`
	Version  docversion.Version `json:"version"`
	Metadata []infoEntry        `json:"metadata"`
	Zones    []string           `json:"zones"`
	Warnings []metadata.Warning `json:"warnings,omitempty"`
}

type infoEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Line  int    `json:"line,omitempty"`
}

func (i *InfoCmd) Run(g *Global) error {
	doc, err := document.NewRegistry().Load(i.Path)
	if err != nil {
		return err
	}
	zones, err := doc.ZoneNames()
	if err != nil {
		return err
	}
	view := infoView{
		Path:     doc.Path(),
		Version:  doc.Version(),
		Metadata: []infoEntry{},
		Zones:    zones,
		Warnings: doc.Warnings(),
	}
	for _, e := range doc.Metadata().Entries() {
		view.Metadata = append(view.Metadata, infoEntry{Key: e.Key, Value: e.Value.Interface(), Line: e.SourceLine})
	}
	if i.JSON {
		return printJSON(g.out(), view)
	}

	w := g.out()
	_, _ = fmt.Fprintf(w, "path:    %s\nversion: %s\n", view.Path, view.Version)
	_, _ = fmt.Fprintln(w, "metadata:")
	for _, e := range doc.Metadata().Entries() {
		_, _ = fmt.Fprintf(w, "  %s = %s\n", e.Key, e.Value)
	}
	_, _ = fmt.Fprintf(w, "zones:   %s\n", strings.Join(zones, ", "))
	for _, warning := range view.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

// GetCmd implements the 'get' command.
type GetCmd struct {
	Path string `arg:"" help:"Document to read" type:"existingfile"`
	Key  string `arg:"" help:"Metadata key"`
}

func (c *GetCmd) Run(g *Global) error {
	doc, err := document.NewRegistry().Load(c.Path)
	if err != nil {
		return err
	}
	v, err := doc.Value(c.Key)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.out(), v.String())
	return nil
}

// SetCmd implements the 'set' command.
type SetCmd struct {
	Path   string `arg:"" help:"Document to modify" type:"existingfile"`
	Key    string `arg:"" help:"Metadata key"`
	Value  string `arg:"" help:"New value, parsed according to the key's type"`
	Output string `short:"o" help:"Write the result to this file instead of modifying the document"`
}

func (c *SetCmd) Run(g *Global) error {
	doc, err := document.NewRegistry().Load(c.Path)
	if err != nil {
		return err
	}
	if err := doc.Set(c.Key, c.Value); err != nil {
		return err
	}
	if err := doc.Save(c.Output); err != nil {
		return err
	}
	g.Logger.Info("Metadata updated", logfields.Key(c.Key), logfields.Path(doc.Path()))
	return nil
}

// DeleteCmd implements the 'delete' command.
type DeleteCmd struct {
	Path   string `arg:"" help:"Document to modify" type:"existingfile"`
	Key    string `arg:"" help:"Metadata key"`
	Output string `short:"o" help:"Write the result to this file instead of modifying the document"`
}

func (c *DeleteCmd) Run(g *Global) error {
	doc, err := document.NewRegistry().Load(c.Path)
	if err != nil {
		return err
	}
	if err := doc.Delete(c.Key); err != nil {
		return err
	}
	if err := doc.Save(c.Output); err != nil {
		return err
	}
	g.Logger.Info("Metadata deleted", logfields.Key(c.Key), logfields.Path(doc.Path()))
	return nil
}
