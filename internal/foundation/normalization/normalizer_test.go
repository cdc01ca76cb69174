package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

type engine string

const (
	latexmk  engine = "latexmk"
	lualatex engine = "lualatex"
)

func newEngines() *Normalizer[engine] {
	return New("engine", map[string]engine{
		"latexmk":  latexmk,
		"LuaLaTeX": lualatex,
	}, latexmk)
}

func TestNormalize(t *testing.T) {
	n := newEngines()

	tests := []struct {
		name     string
		input    string
		expected engine
	}{
		{"exact match", "latexmk", latexmk},
		{"case insensitive", "LUALATEX", lualatex},
		{"with spaces", "  lualatex ", lualatex},
		{"unknown falls back", "context", latexmk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestParse(t *testing.T) {
	n := newEngines()

	v, err := n.Parse(" LuaLaTeX")
	require.NoError(t, err)
	assert.Equal(t, lualatex, v)

	_, err = n.Parse("context")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, `unknown engine "context" (valid: latexmk, lualatex)`, classified.Message())
	assert.Equal(t, "context", classified.Context()["engine"])
}

func TestLookupAndKeys(t *testing.T) {
	n := newEngines()

	_, ok := n.Lookup("xelatex")
	assert.False(t, ok)
	assert.Equal(t, []string{"latexmk", "lualatex"}, n.Keys())

	keys := n.Keys()
	keys[0] = "changed"
	assert.Equal(t, "latexmk", n.Keys()[0])
}
