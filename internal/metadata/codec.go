// Package metadata extracts and rewrites the metadata block of a LaTeX
// source. Each document format has its own Codec; callers select one with
// CodecFor and use it through the Codec interface only.
package metadata

import (
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/source"
	"git.home.luguber.info/inful/texbuilder/internal/textedit"
)

// Codec parses and serializes metadata for one document format.
//
// Serialize must receive the source Parse produced md from: it rewrites the
// recorded spans of changed entries, inserts new entries at the format's
// insertion point and removes deleted declarations. All other bytes are kept.
// Serializing unchanged metadata returns identical bytes.
type Codec interface {
	Version() docversion.Version
	Schema() *Schema
	Parse(src source.Raw) (*Metadata, []Warning, error)
	Serialize(src source.Raw, md *Metadata) (source.Raw, error)
}

// Codecs is the explicit codec table, one entry per known version.
var Codecs = map[docversion.Version]Codec{
	docversion.LegacyV1: NewLegacyCodec(),
	docversion.V2:       NewYAMLCodec(),
}

// CodecFor returns the codec for v, or a version-category error.
func CodecFor(v docversion.Version) (Codec, error) {
	c, ok := Codecs[v]
	if !ok {
		return nil, foundationerrors.VersionError(fmt.Sprintf("no metadata codec for format %s", v)).
			WithContext("version", v.String()).
			Build()
	}
	return c, nil
}

// layout is the format-specific part of serialization.
type layout struct {
	render    func(Entry) (string, error)
	declare   func(Entry) (string, error)
	insertion func(data []byte) (offset int, leadingNewline bool)
}

// serialize computes the minimal edit set and applies it.
func serialize(src source.Raw, md *Metadata, l layout) (source.Raw, error) {
	data := src.View()
	newline := src.Newline()

	var (
		edits   []textedit.Edit
		inserts []byte
	)
	for _, e := range md.deleted {
		edits = append(edits, textedit.Edit{Start: e.Line.Start, End: e.Line.End})
	}
	for _, e := range md.entries {
		if !e.Changed() {
			continue
		}
		if e.Value.Kind() == KindOpaque {
			return src, validationError(e.Key, "opaque values cannot be rewritten")
		}
		if e.Span != nil {
			text, err := l.render(e)
			if err != nil {
				return src, err
			}
			edits = append(edits, textedit.Edit{Start: e.Span.Start, End: e.Span.End, Replacement: []byte(text)})
			continue
		}
		decl, err := l.declare(e)
		if err != nil {
			return src, err
		}
		inserts = append(inserts, decl...)
		inserts = append(inserts, newline...)
	}
	if len(inserts) > 0 {
		at, lead := l.insertion(data)
		if lead {
			inserts = append([]byte(newline), inserts...)
		}
		edits = append(edits, textedit.Edit{Start: at, End: at, Replacement: inserts})
	}
	if len(edits) == 0 {
		return src, nil
	}
	out, err := textedit.Apply(data, edits)
	if err != nil {
		return src, foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "apply metadata edits").Build()
	}
	return src.WithBytes(out), nil
}

// finish validates required keys once parsing is complete.
func finish(md *Metadata, s *Schema, warnings []Warning) (*Metadata, []Warning, error) {
	if missing := md.missing(s); len(missing) > 0 {
		return nil, warnings, missingError(missing)
	}
	return md, warnings, nil
}
