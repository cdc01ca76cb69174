package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/source"
)

var (
	newcommandRe = regexp.MustCompile(`\\newcommand\s*(?:\{\s*\\(UPSTI[A-Za-z@]*)\s*\}|\\(UPSTI[A-Za-z@]*))\s*(?:\[\d\]\s*)?\{`)
	packageRe    = regexp.MustCompile(`\\(?:usepackage|RequirePackage)\s*(?:\[[^\]]*\])?\s*\{[^}]*UPSTI_Document[^}]*\}`)
	beginDocRe   = regexp.MustCompile(`\\begin\s*\{document\}`)
)

func legacySchema() *Schema {
	return NewSchema(
		Flags{ShowAnswers: "afficher_corrections", Blanks: "document_a_trous", Accessible: "version_accessible"},
		legacyText,
		Field{Key: "type_document", Kind: KindInt, Required: true, Command: "UPSTIidTypeDocument"},
		Field{Key: "titre", Kind: KindString, Required: true, Command: "UPSTItitre"},
		Field{Key: "id_unique", Kind: KindString, Command: "UPSTIidUnique"},
		Field{Key: "variante", Kind: KindString, Command: "UPSTIvariante"},
		Field{Key: "matiere", Kind: KindString, Command: "UPSTImatiere"},
		Field{Key: "classe", Kind: KindString, Command: "UPSTIclasse"},
		Field{Key: "auteur", Kind: KindString, Command: "UPSTIauteur"},
		Field{Key: "version", Kind: KindString, Command: "UPSTIversion"},
		Field{Key: "numero", Kind: KindInt, Command: "UPSTInumero"},
		Field{Key: "afficher_corrections", Kind: KindBool, Command: "UPSTIafficherCorrections"},
		Field{Key: "document_a_trous", Kind: KindBool, Command: "UPSTIdocumentATrous"},
		Field{Key: "version_accessible", Kind: KindBool, Command: "UPSTIversionAccessible"},
	)
}

// legacyText accepts single-line text with balanced braces.
func legacyText(text string) error {
	if err := singleLine(text); err != nil {
		return err
	}
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '%':
			return errors.New("unescaped %")
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return errors.New("unbalanced braces")
			}
		}
	}
	if depth != 0 {
		return errors.New("unbalanced braces")
	}
	return nil
}

type legacyCodec struct {
	schema    *Schema
	byCommand map[string]Field
}

// NewLegacyCodec returns the codec for LEGACY_V1 sources, whose metadata is
// a series of \newcommand{\UPSTI...}{value} declarations in the preamble.
func NewLegacyCodec() Codec {
	s := legacySchema()
	c := &legacyCodec{schema: s, byCommand: map[string]Field{}}
	for _, f := range s.Fields() {
		c.byCommand[f.Command] = f
	}
	return c
}

func (c *legacyCodec) Version() docversion.Version { return docversion.LegacyV1 }
func (c *legacyCodec) Schema() *Schema             { return c.schema }

// preambleEnd returns the start of the \begin{document} line.
func preambleEnd(data []byte) int {
	for _, line := range source.Lines(data) {
		if beginDocRe.Match(docversion.StripComment(line.Text(data))) {
			return line.Start
		}
	}
	return len(data)
}

// matchBrace returns the offset of the brace closing the one at open.
func matchBrace(data []byte, open, limit int) int {
	depth := 0
	for i := open; i < limit; i++ {
		switch data[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (c *legacyCodec) Parse(src source.Raw) (*Metadata, []Warning, error) {
	data := src.View()
	limit := preambleEnd(data)
	md := New()
	warnings := []Warning{{Message: "legacy metadata format; consider upgrading to the YAML block"}}

	consumed := 0
	for _, line := range source.Lines(data) {
		if line.Start >= limit {
			break
		}
		if line.Start < consumed {
			continue
		}
		code := docversion.StripComment(line.Text(data))
		for _, m := range newcommandRe.FindAllSubmatchIndex(code, -1) {
			cmdStart := line.Start + m[0]
			if cmdStart < consumed {
				continue
			}
			name := submatch(code, m, 1)
			if name == "" {
				name = submatch(code, m, 2)
			}
			open := line.Start + m[1] - 1
			closing := matchBrace(data, open, limit)
			if closing < 0 {
				return nil, warnings, parseError(line.Number, fmt.Sprintf("unterminated value for \\%s", name))
			}
			consumed = closing + 1

			entry := Entry{
				Key:        name,
				Span:       &Span{Start: open + 1, End: closing},
				Line:       declarationLine(data, line, cmdStart, closing),
				SourceLine: line.Number,
			}
			text := string(data[open+1 : closing])
			if f, ok := c.byCommand[name]; ok {
				v, err := c.schema.parseText(f.Key, text, false)
				if err != nil {
					return nil, warnings, err
				}
				entry.Key = f.Key
				entry.Value = v
			} else {
				entry.Value = Opaque(text)
			}
			if err := md.add(entry); err != nil {
				return nil, warnings, err
			}
		}
	}
	return finish(md, c.schema, warnings)
}

func submatch(code []byte, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return string(code[m[2*group]:m[2*group+1]])
}

// declarationLine widens [cmdStart, closing] to whole lines when nothing
// else shares them.
func declarationLine(data []byte, line source.Line, cmdStart, closing int) Span {
	cmd := Span{Start: cmdStart, End: closing + 1}
	if len(bytes.TrimSpace(data[line.Start:cmdStart])) > 0 {
		return cmd
	}
	end := closing + 1
	next := len(data)
	if i := bytes.IndexByte(data[end:], '\n'); i >= 0 {
		next = end + i + 1
	}
	rest := docversion.StripComment(data[end:next])
	if len(bytes.TrimSpace(rest)) > 0 {
		return cmd
	}
	return Span{Start: line.Start, End: next}
}

func (c *legacyCodec) Serialize(src source.Raw, md *Metadata) (source.Raw, error) {
	if !md.Dirty() {
		return src, nil
	}
	return serialize(src, md, layout{
		render: func(e Entry) (string, error) {
			return renderLegacy(c.schema, e)
		},
		declare: func(e Entry) (string, error) {
			f, ok := c.schema.Field(e.Key)
			if !ok || f.Command == "" {
				return "", validationError(e.Key, "no LaTeX command for this key")
			}
			text, err := renderLegacy(c.schema, e)
			if err != nil {
				return "", err
			}
			return `\newcommand{\` + f.Command + `}{` + text + `}`, nil
		},
		insertion: legacyInsertion,
	})
}

func renderLegacy(s *Schema, e Entry) (string, error) {
	switch e.Value.Kind() {
	case KindInt:
		return e.Value.String(), nil
	case KindBool:
		if b, _ := e.Value.Bool(); b {
			return "1", nil
		}
		return "0", nil
	}
	text := e.Value.String()
	if err := s.checkText(e.Key, text, true); err != nil {
		return "", err
	}
	return text, nil
}

// legacyInsertion places new declarations after the UPSTI_Document package
// line, else before \begin{document}, else at the top of the file.
func legacyInsertion(data []byte) (int, bool) {
	limit := preambleEnd(data)
	for _, line := range source.Lines(data) {
		if line.Start >= limit {
			break
		}
		if packageRe.Match(docversion.StripComment(line.Text(data))) {
			return line.Next, line.Next == line.End
		}
	}
	if limit < len(data) {
		return limit, false
	}
	return 0, false
}
