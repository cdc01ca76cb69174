package metadata

import (
	"strconv"
)

// Kind is the type of a metadata value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindEnum
	// KindOpaque holds unrecognized entries verbatim.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindOpaque:
		return "opaque"
	default:
		return "string"
	}
}

// Value is a typed scalar.
type Value struct {
	kind Kind
	text string
	num  int
	flag bool
}

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Int builds an integer value.
func Int(n int) Value { return Value{kind: KindInt, num: n} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Enum builds an enumerated value. Membership is checked by Schema.
func Enum(s string) Value { return Value{kind: KindEnum, text: s} }

// Opaque wraps raw source text that is round-tripped unchanged.
func Opaque(raw string) Value { return Value{kind: KindOpaque, text: raw} }

// Kind returns the value type.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer and whether the value is one.
func (v Value) Int() (int, bool) { return v.num, v.kind == KindInt }

// Bool returns the boolean and whether the value is one.
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == KindBool }

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.Itoa(v.num)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return v.text
	}
}

// Interface returns the Go value: string, int or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.num
	case KindBool:
		return v.flag
	default:
		return v.text
	}
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	return v == o
}
