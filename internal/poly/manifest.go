package poly

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// Manifest describes a poly: which zones of which documents, in order.
type Manifest struct {
	Title      string   `yaml:"title"`
	Variants   []string `yaml:"variants"`
	Output     string   `yaml:"output,omitempty"`
	Template   string   `yaml:"template,omitempty"`
	RectoVerso *bool    `yaml:"recto_verso,omitempty"`
	Entries    []Entry  `yaml:"entries"`

	// path of the manifest file; relative paths resolve against its directory.
	path string
}

// Entry selects zones of one source. An entry without zones includes the
// source's compiled PDF for Variant (default: the variant being built).
type Entry struct {
	Source  string   `yaml:"source"`
	Zones   []string `yaml:"zones,omitempty"`
	Variant string   `yaml:"variant,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryManifest, "failed to read manifest").
			WithContext("manifest", path).
			Build()
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.path = abs
	return m, nil
}

// ParseManifest decodes and validates manifest YAML. Relative paths resolve
// against the working directory until the manifest is bound with WithPath.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.WrapError(err, errors.CategoryManifest, "invalid manifest").Build()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// WithPath binds the manifest to a file location.
func (m *Manifest) WithPath(path string) *Manifest {
	out := *m
	out.path = path
	return &out
}

// Path returns the manifest file location, if any.
func (m *Manifest) Path() string { return m.path }

// Dir is the directory relative paths resolve against.
func (m *Manifest) Dir() string {
	if m.path == "" {
		return "."
	}
	return filepath.Dir(m.path)
}

// Resolve turns a manifest-relative path into a usable one.
func (m *Manifest) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir(), filepath.FromSlash(p))
}

// Validate checks the structure without touching the filesystem.
func (m *Manifest) Validate() error {
	if m.Title == "" {
		return errors.ManifestError("manifest has no title").Build()
	}
	if len(m.Entries) == 0 {
		return errors.ManifestError("manifest has no entries").Build()
	}
	if _, err := compile.ParseVariants(m.Variants); err != nil {
		return errors.WrapError(err, errors.CategoryManifest, "invalid manifest variants").Build()
	}
	for i, e := range m.Entries {
		if e.Source == "" {
			return entryError(i, e, "", "entry has no source", nil)
		}
		if e.Variant != "" {
			if _, err := compile.ParseVariants([]string{e.Variant}); err != nil {
				return entryError(i, e, "", fmt.Sprintf("unknown variant %q", e.Variant), nil)
			}
		}
	}
	return nil
}

// OutputVariants returns the variants to build, student when none is listed.
func (m *Manifest) OutputVariants() []compile.Variant {
	if len(m.Variants) == 0 {
		return []compile.Variant{compile.Student}
	}
	vs, _ := compile.ParseVariants(m.Variants)
	return vs
}

func entryError(index int, e Entry, zone, msg string, cause error) error {
	text := fmt.Sprintf("entry %d (%s): %s", index+1, e.Source, msg)
	var b *errors.ErrorBuilder
	if cause != nil {
		b = errors.WrapError(cause, errors.CategoryManifest, text)
	} else {
		b = errors.ManifestError(text)
	}
	b = b.WithContext("entry", index+1).WithContext("source", e.Source)
	if zone != "" {
		b = b.WithContext("zone", zone)
	}
	return b.Build()
}
