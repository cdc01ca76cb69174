// Package poly merges zones of several documents into one combined source
// and compiles it. Aggregation is all-or-nothing: any invalid entry fails
// the whole poly with a ManifestError.
package poly

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/natefinch/atomic"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/zone"
)

// Aggregator builds polys.
type Aggregator struct {
	registry *document.Registry
	orch     *compile.Orchestrator
	cfg      config.PolyConfig
}

// NewAggregator returns an aggregator loading documents through registry
// and compiling with orch.
func NewAggregator(registry *document.Registry, orch *compile.Orchestrator, cfg config.PolyConfig) *Aggregator {
	return &Aggregator{registry: registry, orch: orch, cfg: cfg}
}

// AggregateAll builds every variant of the manifest. It stops at the first
// manifest error; compile failures are reported in the results.
func (a *Aggregator) AggregateAll(ctx context.Context, m *Manifest, mode compile.Mode) ([]compile.Result, error) {
	var out []compile.Result
	for _, v := range m.OutputVariants() {
		r, err := a.Aggregate(ctx, m, v, mode)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Aggregate merges the manifest for variant v and compiles the result.
// Zones are extracted concurrently but always concatenated in manifest order.
func (a *Aggregator) Aggregate(ctx context.Context, m *Manifest, v compile.Variant, mode compile.Mode) (compile.Result, error) {
	if err := m.Validate(); err != nil {
		return compile.Result{}, err
	}
	parts, err := a.collect(m, v)
	if err != nil {
		return compile.Result{}, err
	}

	data := Data{Title: m.Title, Variant: string(v), RectoVerso: a.cfg.RectoVerso, Parts: parts}
	if m.RectoVerso != nil {
		data.RectoVerso = *m.RectoVerso
	}
	tmpl := m.Template
	if tmpl == "" {
		tmpl = a.cfg.Template
	}
	if tmpl != "" {
		text, err := os.ReadFile(m.Resolve(tmpl))
		if err != nil {
			return compile.Result{}, errors.WrapError(err, errors.CategoryManifest, "failed to read poly template").
				WithContext("template", tmpl).
				Build()
		}
		data.Template = string(text)
	}
	merged, err := Render(data)
	if err != nil {
		return compile.Result{}, errors.WrapError(err, errors.CategoryManifest, "failed to render poly").
			WithContext("manifest", m.Path()).
			Build()
	}

	out := a.OutputPath(m)
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return compile.Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to create poly directory").
			WithContext("path", out).
			Build()
	}
	if err := atomic.WriteFile(out, strings.NewReader(merged)); err != nil {
		return compile.Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to write poly source").
			WithContext("path", out).
			Build()
	}
	doc, err := a.registry.Load(out)
	if err != nil {
		return compile.Result{}, errors.WrapError(err, errors.CategoryManifest, "merged poly does not load").
			WithContext("path", out).
			Build()
	}
	slog.Info("Compiling poly", logfields.Manifest(m.Path()), logfields.Variant(string(v)), logfields.Count(len(parts)))
	return a.orch.Compile(ctx, doc, []compile.Variant{v}, mode)[0], nil
}

// OutputPath is where the merged source of m is written.
func (a *Aggregator) OutputPath(m *Manifest) string {
	name := m.Output
	if name == "" {
		name = Slug(m.Title) + a.cfg.Suffix
	}
	if filepath.Ext(name) != ".tex" {
		name += ".tex"
	}
	return m.Resolve(name)
}

type collected struct {
	parts []Part
	err   error
}

// collect loads every entry concurrently and returns the parts in manifest
// order. The reported error is the one of the first failing entry.
func (a *Aggregator) collect(m *Manifest, v compile.Variant) ([]Part, error) {
	results := make([]collected, len(m.Entries))
	var wg sync.WaitGroup
	for i, e := range m.Entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parts, err := a.entryParts(m, i, e, v)
			results[i] = collected{parts: parts, err: err}
		}()
	}
	wg.Wait()

	var parts []Part
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		parts = append(parts, r.parts...)
	}
	return parts, nil
}

func (a *Aggregator) entryParts(m *Manifest, i int, e Entry, v compile.Variant) ([]Part, error) {
	src := m.Resolve(e.Source)
	if _, err := os.Stat(src); err != nil {
		return nil, entryError(i, e, "", "source not found", err)
	}
	if len(e.Zones) == 0 {
		variant := v
		if e.Variant != "" {
			variant = compile.Variant(e.Variant)
		}
		abs, err := filepath.Abs(src)
		if err != nil {
			abs = src
		}
		pdf := a.orch.ArtifactPath(abs, variant)
		if _, err := os.Stat(pdf); err != nil {
			return nil, entryError(i, e, "", "compiled artifact not found: "+pdf, err)
		}
		return []Part{{Source: e.Source, PDF: filepath.ToSlash(pdf)}}, nil
	}

	doc, err := a.registry.Load(src)
	if err != nil {
		return nil, entryError(i, e, "", "document does not load", err)
	}
	parts := make([]Part, 0, len(e.Zones))
	for _, name := range e.Zones {
		content, err := doc.Zone(name)
		if err != nil {
			return nil, entryError(i, e, name, "zone "+name+" not found", err)
		}
		parts = append(parts, Part{Source: e.Source, Zone: name, Content: string(bytes.TrimRight(zone.Disable(content), "\r\n")) + "\n"})
	}
	return parts, nil
}

// Slug turns a title into a file name: accents dropped, lower case, words
// joined by dashes.
func Slug(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, title)
	if err != nil {
		plain = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "poly"
	}
	return s
}
