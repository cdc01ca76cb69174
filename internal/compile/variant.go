package compile

import (
	"fmt"

	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/normalization"
	"git.home.luguber.info/inful/texbuilder/internal/metadata"
	"git.home.luguber.info/inful/texbuilder/internal/source"
)

// Variant is one rendering target of a document.
type Variant string

const (
	Student    Variant = "student"
	Teacher    Variant = "teacher"
	Corrected  Variant = "corrected"
	Accessible Variant = "accessible"
)

// Variants lists the known variants in their canonical order.
var Variants = []Variant{Student, Teacher, Corrected, Accessible}

// Overrides are the conditional flags a variant forces in the derived source.
type Overrides struct {
	ShowAnswers bool
	Blanks      bool
	Accessible  bool
}

var overrides = map[Variant]Overrides{
	Student:    {ShowAnswers: false, Blanks: true},
	Teacher:    {ShowAnswers: true},
	Corrected:  {ShowAnswers: true, Blanks: true},
	Accessible: {Accessible: true},
}

// OverridesFor returns the flag overrides of v.
func OverridesFor(v Variant) (Overrides, bool) {
	o, ok := overrides[v]
	return o, ok
}

var variantNames = normalization.New("variant", map[string]Variant{
	"student":    Student,
	"teacher":    Teacher,
	"corrected":  Corrected,
	"accessible": Accessible,
}, "")

// ParseVariants converts names into variants, rejecting unknown names.
// Names are case-insensitive.
func ParseVariants(names []string) ([]Variant, error) {
	out := make([]Variant, 0, len(names))
	for _, name := range names {
		v, err := variantNames.Parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Derive renders the source of doc as variant v. The document is not
// modified; pending edits are included.
func Derive(doc document.Model, v Variant) (source.Raw, error) {
	o, ok := OverridesFor(v)
	if !ok {
		return source.Raw{}, errors.ValidationError(fmt.Sprintf("unknown variant %q", v)).
			WithContext("variant", string(v)).
			Build()
	}
	codec := doc.Codec()
	schema := codec.Schema()
	md := doc.Metadata()
	flags := schema.Flags()
	for _, flag := range []struct {
		key   string
		value bool
	}{
		{flags.ShowAnswers, o.ShowAnswers},
		{flags.Blanks, o.Blanks},
		{flags.Accessible, o.Accessible},
	} {
		if flag.key == "" {
			continue
		}
		if current, ok := md.Get(flag.key); ok {
			if b, isBool := current.Bool(); isBool && b == flag.value {
				continue
			}
		}
		md.Set(flag.key, metadata.Bool(flag.value))
	}
	return codec.Serialize(doc.Source(), md)
}
