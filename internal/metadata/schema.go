package metadata

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Field describes one recognized metadata key.
type Field struct {
	Key      string
	Kind     Kind
	Required bool
	Enum     []string
	// Command is the LaTeX macro name holding the value in legacy sources.
	Command string
	Doc     string
}

// Flags names the boolean keys that variants toggle.
type Flags struct {
	ShowAnswers string
	Blanks      string
	Accessible  string
}

// Schema is the immutable set of fields a format understands. It is shared
// read-only between goroutines.
type Schema struct {
	fields []Field
	index  map[string]int
	flags  Flags
	check  func(string) error
}

// NewSchema builds a schema. check validates the text of string and enum
// values against the format's syntax; nil accepts anything.
func NewSchema(flags Flags, check func(string) error, fields ...Field) *Schema {
	s := &Schema{fields: fields, index: make(map[string]int, len(fields)), flags: flags, check: check}
	for i, f := range fields {
		s.index[f.Key] = i
	}
	return s
}

// Field looks up a key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field { return slices.Clone(s.fields) }

// Flags returns the variant flag keys.
func (s *Schema) Flags() Flags { return s.flags }

// Required lists required keys in declaration order.
func (s *Schema) Required() []string {
	var keys []string
	for _, f := range s.fields {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Coerce converts a caller-supplied value (string, int, bool or Value) into
// the field's kind. Unknown keys are rejected.
func (s *Schema) Coerce(key string, in any) (Value, error) {
	f, ok := s.Field(key)
	if !ok {
		return Value{}, validationError(key, "unknown key")
	}
	switch v := in.(type) {
	case Value:
		if v.Kind() == KindOpaque {
			return Value{}, validationError(key, "opaque values cannot be assigned")
		}
		return s.Coerce(key, v.Interface())
	case string:
		return s.ParseText(key, v)
	case int:
		switch f.Kind {
		case KindInt:
			return Int(v), nil
		case KindString, KindEnum:
			return s.ParseText(key, strconv.Itoa(v))
		}
	case bool:
		if f.Kind == KindBool {
			return Bool(v), nil
		}
	}
	return Value{}, validationError(key, fmt.Sprintf("expected %s, got %T", f.Kind, in))
}

// ParseText converts command-line text into the field's kind.
func (s *Schema) ParseText(key, text string) (Value, error) {
	return s.parseText(key, text, true)
}

// parseText skips the syntax check for text read back from a source.
func (s *Schema) parseText(key, text string, checked bool) (Value, error) {
	f, ok := s.Field(key)
	if !ok {
		return Value{}, validationError(key, "unknown key")
	}
	if !checked && strings.TrimSpace(text) == "" && (f.Kind == KindInt || f.Kind == KindBool) {
		// Declared but empty: kept as an unset value until assigned.
		return String(""), nil
	}
	switch f.Kind {
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return Value{}, validationError(key, fmt.Sprintf("%q is not an integer", text))
		}
		return Int(n), nil
	case KindBool:
		b, ok := parseBool(text)
		if !ok {
			return Value{}, validationError(key, fmt.Sprintf("%q is not a boolean", text))
		}
		return Bool(b), nil
	case KindEnum:
		if !slices.Contains(f.Enum, text) {
			return Value{}, validationError(key, fmt.Sprintf("%q is not one of %s", text, strings.Join(f.Enum, ", ")))
		}
		return Enum(text), s.checkText(key, text, checked)
	default:
		return String(text), s.checkText(key, text, checked)
	}
}

func (s *Schema) checkText(key, text string, checked bool) error {
	if !checked || s.check == nil {
		return nil
	}
	if err := s.check(text); err != nil {
		return validationError(key, err.Error())
	}
	return nil
}

func parseBool(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "true", "yes", "oui", "vrai":
		return true, true
	case "0", "false", "no", "non", "faux":
		return false, true
	default:
		return false, false
	}
}
