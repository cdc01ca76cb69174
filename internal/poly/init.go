package poly

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// ManifestName is the file Init writes.
const ManifestName = "poly.yaml"

// Init writes a manifest listing the documents of dir, each with its
// content zones, and returns its path. Documents without zones are included
// as compiled PDFs; unloadable files are skipped. An existing manifest is
// never overwritten.
func Init(registry *document.Registry, dir, title string, excludes []string) (string, error) {
	path := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(path); err == nil {
		return "", errors.ValidationError("manifest already exists").
			WithContext("path", path).
			Build()
	}
	sources, err := batch.Discover(dir, excludes)
	if err != nil {
		return "", err
	}
	if title == "" {
		title = filepath.Base(dir)
	}
	m := Manifest{Title: title, Variants: []string{"student", "teacher"}}
	for _, src := range sources {
		doc, err := registry.Load(src)
		if err != nil {
			continue
		}
		if v, err := doc.Value("type_document"); err == nil && v.String() == "poly" {
			continue
		}
		names, err := doc.ZoneNames()
		if err != nil {
			continue
		}
		names = slices.DeleteFunc(names, func(n string) bool { return n == docversion.MetadataZone })
		rel, err := filepath.Rel(dir, src)
		if err != nil {
			rel = src
		}
		m.Entries = append(m.Entries, Entry{Source: filepath.ToSlash(rel), Zones: names})
	}
	if len(m.Entries) == 0 {
		return "", errors.NotFoundError("no documents to aggregate").
			WithContext("path", dir).
			Build()
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to encode manifest").Build()
	}
	if err := enc.Close(); err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to encode manifest").Build()
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // manifests are meant to be shared
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to write manifest").
			WithContext("path", path).
			Build()
	}
	return path, nil
}
