package metadata

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/source"
	"git.home.luguber.info/inful/texbuilder/internal/zone"
)

// DocumentTypes enumerates type_document values of the current format.
var DocumentTypes = []string{"cours", "td", "tp", "ds", "dm", "colle", "activite", "fiche", "poly", "page_de_garde"}

const defaultYAMLPrefix = "% "

func yamlSchema() *Schema {
	return NewSchema(
		Flags{ShowAnswers: "afficher_corrections", Blanks: "document_a_trous", Accessible: "version_accessible"},
		singleLine,
		Field{Key: "id_unique", Kind: KindString},
		Field{Key: "titre", Kind: KindString, Required: true},
		Field{Key: "type_document", Kind: KindEnum, Required: true, Enum: DocumentTypes},
		Field{Key: "variante", Kind: KindString},
		Field{Key: "matiere", Kind: KindString},
		Field{Key: "classe", Kind: KindString},
		Field{Key: "filiere", Kind: KindString},
		Field{Key: "programme", Kind: KindString},
		Field{Key: "auteur", Kind: KindString},
		Field{Key: "version", Kind: KindString},
		Field{Key: "titre_activite", Kind: KindString},
		Field{Key: "numero", Kind: KindInt},
		Field{Key: "compiler", Kind: KindBool},
		Field{Key: "versions_accessibles", Kind: KindString},
		Field{Key: "afficher_corrections", Kind: KindBool, Doc: "show answers"},
		Field{Key: "document_a_trous", Kind: KindBool, Doc: "leave blanks to fill"},
		Field{Key: "version_accessible", Kind: KindBool, Doc: "large-print layout"},
	)
}

func singleLine(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return errors.New("value must fit on one line")
	}
	return nil
}

type yamlCodec struct {
	schema *Schema
}

// NewYAMLCodec returns the codec for V2 sources: YAML commented out with %
// inside the metadonnees_yaml zone.
func NewYAMLCodec() Codec {
	return &yamlCodec{schema: yamlSchema()}
}

func (c *yamlCodec) Version() docversion.Version { return docversion.V2 }
func (c *yamlCodec) Schema() *Schema             { return c.schema }

// yamlLine maps one zone line to the YAML text obtained by stripping its
// comment prefix.
type yamlLine struct {
	number    int
	lineStart int
	textStart int
	end       int
	next      int
}

type yamlBlock struct {
	data  []byte
	lines []yamlLine
}

func (b *yamlBlock) text(i int) []byte {
	l := b.lines[i]
	return b.data[l.textStart:l.end]
}

func (b *yamlBlock) yaml() []byte {
	var buf bytes.Buffer
	for i := range b.lines {
		buf.Write(b.text(i))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// offset converts a YAML (line, column) pair, both 1-based and column counted
// in runes, to a byte offset in the source.
func (b *yamlBlock) offset(line, col int) int {
	l := b.lines[line-1]
	text := b.data[l.textStart:l.end]
	i := 0
	for n := 1; n < col && i < len(text); n++ {
		_, size := utf8.DecodeRune(text[i:])
		i += size
	}
	return l.textStart + i
}

func (b *yamlBlock) prefix() string {
	for _, l := range b.lines {
		if l.end > l.textStart {
			return string(b.data[l.lineStart:l.textStart])
		}
	}
	return defaultYAMLPrefix
}

func (b *yamlBlock) ignorable(i int) bool {
	t := bytes.TrimSpace(b.text(i))
	return len(t) == 0 || t[0] == '#'
}

func readBlock(data []byte, z zone.Zone) (*yamlBlock, []Warning) {
	b := &yamlBlock{data: data}
	var warnings []Warning
	for _, line := range source.Lines(data) {
		if line.Start < z.ContentStart || line.Start >= z.ContentEnd {
			continue
		}
		yl := yamlLine{number: line.Number, lineStart: line.Start, end: line.End, next: line.Next}
		text := line.Text(data)
		trimmed := bytes.TrimLeft(text, " \t")
		pos := line.Start + len(text) - len(trimmed)
		switch {
		case len(trimmed) == 0:
			yl.textStart = line.End
		case bytes.HasPrefix(trimmed, []byte("%%")):
			yl.textStart = line.End
		case trimmed[0] == '%':
			pos++
			if pos < line.End && data[pos] == ' ' {
				pos++
			}
			yl.textStart = pos
		default:
			warnings = append(warnings, Warning{Line: line.Number, Message: "uncommented line inside the metadata zone is ignored"})
			yl.textStart = line.End
		}
		b.lines = append(b.lines, yl)
	}
	return b, warnings
}

func (c *yamlCodec) Parse(src source.Raw) (*Metadata, []Warning, error) {
	data := src.View()
	zones, err := zone.Scan(data)
	if err != nil {
		return nil, nil, err
	}
	z, ok := zone.Find(zones, docversion.MetadataZone)
	if !ok {
		return nil, nil, foundationerrors.ParseError("metadata zone " + docversion.MetadataZone + " not found").Build()
	}
	block, warnings := readBlock(data, z)

	var doc yaml.Node
	if err := yaml.Unmarshal(block.yaml(), &doc); err != nil {
		return nil, warnings, parseError(z.BeginLine, "invalid YAML: "+err.Error())
	}
	md := New()
	if len(doc.Content) == 0 {
		return finish(md, c.schema, warnings)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, warnings, parseError(z.BeginLine, "metadata must be a YAML mapping")
	}
	if root.Style&yaml.FlowStyle != 0 {
		return nil, warnings, parseError(z.BeginLine, "metadata must be a block mapping, one key per line")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		entry, err := c.entry(block, root, i)
		if err != nil {
			return nil, warnings, err
		}
		if err := md.add(entry); err != nil {
			return nil, warnings, err
		}
	}
	return finish(md, c.schema, warnings)
}

// lastLine returns the 1-based YAML line ending pair i, skipping trailing
// blank and comment-only lines.
func lastLine(b *yamlBlock, root *yaml.Node, i int) int {
	first := root.Content[i].Line
	last := len(b.lines)
	if i+2 < len(root.Content) {
		last = root.Content[i+2].Line - 1
	}
	for last > first && b.ignorable(last-1) {
		last--
	}
	return max(last, first)
}

func (c *yamlCodec) entry(b *yamlBlock, root *yaml.Node, i int) (Entry, error) {
	k, v := root.Content[i], root.Content[i+1]
	last := lastLine(b, root, i)
	first := b.lines[k.Line-1]
	end := b.lines[last-1]
	entry := Entry{
		Key:        k.Value,
		Line:       Span{Start: first.lineStart, End: end.next},
		SourceLine: first.number,
	}

	field, known := c.schema.Field(k.Value)
	if !known || v.Kind != yaml.ScalarNode {
		if known {
			return Entry{}, validationError(k.Value, "expected a single value")
		}
		raw, err := yaml.Marshal(v)
		if err != nil {
			return Entry{}, parseError(first.number, err.Error())
		}
		entry.Value = Opaque(strings.TrimSuffix(string(raw), "\n"))
		entry.Span = &Span{Start: b.offset(k.Line, k.Column), End: trimRight(b.data, end.lineStart, end.end)}
		return entry, nil
	}

	text := v.Value
	if v.Tag == "!!null" {
		text = ""
	}
	value, err := c.schema.parseText(field.Key, text, false)
	if err != nil {
		return Entry{}, err
	}
	entry.Value = value
	entry.Span = c.valueSpan(b, k, v, last)
	return entry, nil
}

// valueSpan locates the bytes of a scalar value. Empty values get an
// insertion point right after the colon, flagged by a zero-width span.
func (c *yamlCodec) valueSpan(b *yamlBlock, k, v *yaml.Node, last int) *Span {
	keyLine := b.lines[k.Line-1]
	if v.Value == "" && v.Style == 0 && v.Tag == "!!null" {
		keyStart := b.offset(k.Line, k.Column)
		colon := bytes.IndexByte(b.data[keyStart:keyLine.end], ':')
		if colon >= 0 {
			at := keyStart + colon + 1
			return &Span{Start: at, End: trimRight(b.data, at, keyLine.end)}
		}
	}
	start := b.offset(v.Line, v.Column)
	line := b.lines[v.Line-1]
	multi := v.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 || last > v.Line
	if multi {
		lastLine := b.lines[last-1]
		return &Span{Start: start, End: trimRight(b.data, lastLine.lineStart, lastLine.end)}
	}
	switch {
	case v.Style&yaml.DoubleQuotedStyle != 0:
		return &Span{Start: start, End: closeDouble(b.data, start, line.end)}
	case v.Style&yaml.SingleQuotedStyle != 0:
		return &Span{Start: start, End: closeSingle(b.data, start, line.end)}
	}
	end := line.end
	if i := bytes.Index(b.data[start:end], []byte(" #")); i >= 0 {
		end = start + i
	}
	return &Span{Start: start, End: trimRight(b.data, start, end)}
}

func trimRight(data []byte, start, end int) int {
	for end > start && (data[end-1] == ' ' || data[end-1] == '\t') {
		end--
	}
	return end
}

func closeDouble(data []byte, start, end int) int {
	for i := start + 1; i < end; i++ {
		switch data[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return end
}

func closeSingle(data []byte, start, end int) int {
	for i := start + 1; i < end; i++ {
		if data[i] != '\'' {
			continue
		}
		if i+1 < end && data[i+1] == '\'' {
			i++
			continue
		}
		return i + 1
	}
	return end
}

func (c *yamlCodec) Serialize(src source.Raw, md *Metadata) (source.Raw, error) {
	if !md.Dirty() {
		return src, nil
	}
	data := src.View()
	zones, err := zone.Scan(data)
	if err != nil {
		return src, err
	}
	z, ok := zone.Find(zones, docversion.MetadataZone)
	if !ok {
		return src, foundationerrors.ParseError("metadata zone " + docversion.MetadataZone + " not found").Build()
	}
	block, _ := readBlock(data, z)
	prefix := block.prefix()

	return serialize(src, md, layout{
		render: func(e Entry) (string, error) {
			text, err := renderYAML(e.Key, e.Value)
			if err != nil {
				return "", err
			}
			if e.Span.Start == e.Span.End || data[e.Span.Start-1] == ':' {
				return " " + text, nil
			}
			return text, nil
		},
		declare: func(e Entry) (string, error) {
			text, err := renderYAML(e.Key, e.Value)
			if err != nil {
				return "", err
			}
			return prefix + e.Key + ": " + text, nil
		},
		insertion: func([]byte) (int, bool) {
			return z.ContentEnd, false
		},
	})
}

func renderYAML(key string, v Value) (string, error) {
	switch v.Kind() {
	case KindInt, KindBool:
		return v.String(), nil
	}
	s := v.String()
	if err := singleLine(s); err != nil {
		return "", validationError(key, err.Error())
	}
	return yamlScalar(s), nil
}

// yamlScalar renders s plain when YAML reads it back as the same string,
// double-quoted otherwise.
func yamlScalar(s string) string {
	if s == "" || strings.TrimSpace(s) != s {
		return strconv.Quote(s)
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("k: "+s), &node); err == nil && len(node.Content) == 1 {
		m := node.Content[0]
		if m.Kind == yaml.MappingNode && len(m.Content) == 2 {
			val := m.Content[1]
			if val.Kind == yaml.ScalarNode && val.Style == 0 && val.Tag == "!!str" && val.Value == s {
				return s
			}
		}
	}
	return strconv.Quote(s)
}
