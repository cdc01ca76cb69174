package document

import (
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/metadata"
	"git.home.luguber.info/inful/texbuilder/internal/source"
)

// Factory builds a Model from a source whose format is known.
type Factory func(raw source.Raw, version docversion.Version, codec metadata.Codec) (Model, error)

// DefaultFactory builds a *Document.
func DefaultFactory(raw source.Raw, version docversion.Version, codec metadata.Codec) (Model, error) {
	return New(raw, version, codec)
}

// Registry resolves how documents are built. It holds the default factory
// and an optional override chosen once at startup; every load goes through it.
type Registry struct {
	detector docversion.Detector
	factory  Factory
}

// Option configures a Registry.
type Option func(*Registry)

// WithOverride replaces the default factory. A nil factory is ignored.
func WithOverride(f Factory) Option {
	return func(r *Registry) {
		if f != nil {
			r.factory = f
		}
	}
}

// WithDetector replaces the version detector.
func WithDetector(d docversion.Detector) Option {
	return func(r *Registry) {
		if d != nil {
			r.detector = d
		}
	}
}

// NewRegistry returns a registry using DefaultFactory unless overridden.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{detector: docversion.Default, factory: DefaultFactory}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads path, detects its format and parses its metadata.
func (r *Registry) Load(path string) (Model, error) {
	raw, err := source.Read(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
			WithContext("path", path).
			Build()
	}
	return r.FromSource(raw)
}

// FromSource builds a model from in-memory bytes.
func (r *Registry) FromSource(raw source.Raw) (Model, error) {
	version := r.detector.Detect(raw.View())
	if version == docversion.Unknown {
		return nil, errors.VersionError("unrecognized document format").
			WithContext("path", raw.Path()).
			Build()
	}
	codec, err := metadata.CodecFor(version)
	if err != nil {
		return nil, err
	}
	doc, err := r.factory(raw, version, codec)
	if err != nil {
		if classified, ok := errors.AsClassified(err); ok {
			return nil, errors.WrapError(err, classified.Category(), fmt.Sprintf("failed to load %s document", version)).
				WithContext("path", raw.Path()).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to load document").
			WithContext("path", raw.Path()).
			Build()
	}
	return doc, nil
}
