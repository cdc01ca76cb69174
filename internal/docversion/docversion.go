// Package docversion classifies LaTeX sources by metadata format.
package docversion

import (
	"bytes"
	"regexp"

	"git.home.luguber.info/inful/texbuilder/internal/source"
	"git.home.luguber.info/inful/texbuilder/internal/zone"
)

// Version is the closed set of recognized document formats.
type Version int

const (
	Unknown Version = iota
	LegacyV1
	V2
)

func (v Version) String() string {
	switch v {
	case LegacyV1:
		return "LEGACY_V1"
	case V2:
		return "V2"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the version name for JSON and YAML output.
func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// MetadataZone is the zone holding V2 YAML metadata.
const MetadataZone = "metadonnees_yaml"

// V1Signature is the command every legacy document defines.
const V1Signature = `\UPSTIidTypeDocument`

var v1Re = regexp.MustCompile(`\\newcommand\s*\{?\s*\\UPSTIidTypeDocument\s*\}?`)

// Detector classifies raw bytes.
type Detector interface {
	Detect(data []byte) Version
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func([]byte) Version

// Detect implements Detector.
func (f DetectorFunc) Detect(data []byte) Version { return f(data) }

// Default is the structural detector used unless a registry overrides it.
var Default Detector = DetectorFunc(Detect)

// Detect inspects marker lines only: the V2 metadata BEGIN marker wins, then
// the legacy signature on a non-comment line. It never fails.
func Detect(data []byte) Version {
	legacy := false
	for _, line := range source.Lines(data) {
		text := line.Text(data)
		if m, ok := zone.ParseMarker(text); ok && m.Begin && m.Name == MetadataZone {
			return V2
		}
		if !legacy && isLegacyDeclaration(text) {
			legacy = true
		}
	}
	if legacy {
		return LegacyV1
	}
	return Unknown
}

// DetectSource is Detect over a source.Raw.
func DetectSource(raw source.Raw) Version {
	return Detect(raw.View())
}

func isLegacyDeclaration(line []byte) bool {
	code := StripComment(line)
	if !bytes.Contains(code, []byte(V1Signature)) {
		return false
	}
	return v1Re.Match(code)
}

// StripComment drops everything from the first unescaped %.
func StripComment(line []byte) []byte {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '%':
			return line[:i]
		}
	}
	return line
}
