// Package normalization maps free-form operator input, such as flag values
// and environment variables, onto closed sets of names.
package normalization

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// Normalizer resolves case-insensitive, space-trimmed names to values of T.
type Normalizer[T comparable] struct {
	kind     string
	values   map[string]T
	fallback T
	keys     []string
}

// New builds a normalizer for the named kind ("engine", "variant", ...).
// fallback is what Normalize returns for unknown input.
func New[T comparable](kind string, values map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{
		kind:     kind,
		values:   make(map[string]T, len(values)),
		fallback: fallback,
		keys:     make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup reports the value for raw and whether it is known.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.values[clean(raw)]
	return v, ok
}

// Normalize returns the value for raw, or the fallback.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.Lookup(raw); ok {
		return v
	}
	return n.fallback
}

// Parse returns the value for raw or a validation error naming the valid keys.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	if v, ok := n.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, errors.ValidationError(fmt.Sprintf("unknown %s %q (valid: %s)", n.kind, raw, strings.Join(n.keys, ", "))).
		WithContext(n.kind, raw).
		Build()
}

// Keys lists the accepted names, sorted.
func (n *Normalizer[T]) Keys() []string {
	return slices.Clone(n.keys)
}
