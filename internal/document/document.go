// Package document loads LaTeX sources into a version-agnostic model that
// reads, mutates and saves metadata through the codec of the detected format.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/natefinch/atomic"

	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/metadata"
	"git.home.luguber.info/inful/texbuilder/internal/source"
	"git.home.luguber.info/inful/texbuilder/internal/zone"
)

// Model is a loaded document. A Model is owned by one goroutine at a time.
type Model interface {
	Path() string
	Version() docversion.Version
	Source() source.Raw
	Codec() metadata.Codec
	// Metadata returns a copy; mutate through Set and Delete.
	Metadata() *metadata.Metadata
	Warnings() []metadata.Warning
	Value(key string) (metadata.Value, error)
	Set(key string, value any) error
	Delete(key string) error
	Dirty() bool
	// Save writes pending changes to target, or to Path when target is empty.
	Save(target string) error
	Zone(name string) ([]byte, error)
	ZoneNames() ([]string, error)
}

// Document is the default Model.
type Document struct {
	raw      source.Raw
	version  docversion.Version
	codec    metadata.Codec
	md       *metadata.Metadata
	warnings []metadata.Warning
	dirty    bool
}

// New parses raw with codec.
func New(raw source.Raw, version docversion.Version, codec metadata.Codec) (*Document, error) {
	md, warnings, err := codec.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Document{raw: raw, version: version, codec: codec, md: md, warnings: warnings}, nil
}

func (d *Document) Path() string                 { return d.raw.Path() }
func (d *Document) Version() docversion.Version  { return d.version }
func (d *Document) Source() source.Raw           { return d.raw }
func (d *Document) Codec() metadata.Codec        { return d.codec }
func (d *Document) Metadata() *metadata.Metadata { return d.md.Clone() }
func (d *Document) Warnings() []metadata.Warning { return slices.Clone(d.warnings) }
func (d *Document) Dirty() bool                  { return d.dirty }

// Value returns the value of key or a not-found error.
func (d *Document) Value(key string) (metadata.Value, error) {
	return d.md.Lookup(key)
}

// Set validates value against the format schema. A rejected value leaves the
// document untouched.
func (d *Document) Set(key string, value any) error {
	v, err := d.codec.Schema().Coerce(key, value)
	if err != nil {
		return err
	}
	d.md.Set(key, v)
	d.dirty = true
	return nil
}

// Delete removes key. Required keys cannot be removed.
func (d *Document) Delete(key string) error {
	if _, err := d.md.Lookup(key); err != nil {
		return err
	}
	if f, ok := d.codec.Schema().Field(key); ok && f.Required {
		return errors.ValidationError(fmt.Sprintf("metadata %q is required", key)).
			WithContext("key", key).
			Build()
	}
	d.md.Delete(key)
	d.dirty = true
	return nil
}

// Save serializes and atomically replaces the target file. The model then
// points at the written file and is clean. Saving a clean model is a no-op.
func (d *Document) Save(target string) error {
	if !d.dirty {
		return nil
	}
	path := target
	if path == "" {
		path = d.raw.Path()
	}
	if path == "" {
		return errors.ValidationError("document has no path to save to").Build()
	}
	out, err := d.codec.Serialize(d.raw, d.md)
	if err != nil {
		return err
	}
	if err := writeFile(path, out.View()); err != nil {
		return err
	}
	saved := out.WithPath(path)
	md, warnings, err := d.codec.Parse(saved)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "saved document does not parse back").
			WithContext("path", path).
			Build()
	}
	d.raw, d.md, d.warnings, d.dirty = saved, md, warnings, false
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory").
			WithContext("path", path).
			Build()
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write document").
			WithContext("path", path).
			Build()
	}
	return nil
}

// Zone returns the content of the named zone.
func (d *Document) Zone(name string) ([]byte, error) {
	zones, err := zone.Scan(d.raw.View())
	if err != nil {
		return nil, err
	}
	z, ok := zone.Find(zones, name)
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("zone %q not found", name)).
			WithContext("zone", name).
			WithContext("path", d.Path()).
			Build()
	}
	return bytes.Clone(z.Content(d.raw.View())), nil
}

// ZoneNames lists the zones of the document in order.
func (d *Document) ZoneNames() ([]string, error) {
	zones, err := zone.Scan(d.raw.View())
	if err != nil {
		return nil, err
	}
	return zone.Names(zones), nil
}
