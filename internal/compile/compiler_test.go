package compile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

func TestBinaryCompiler_Args(t *testing.T) {
	inv := Invocation{Dir: "/docs", Source: ".texbuilder/TD1-Eleve.tex", JobName: "TD1-Eleve", OutDir: "/docs/.texbuilder"}

	latexmk := &BinaryCompiler{Engine: config.EngineLatexmk}
	assert.Equal(t, []string{
		"-pdf", "-outdir=/docs/.texbuilder",
		"-interaction=nonstopmode", "-halt-on-error", "-file-line-error", "-jobname=TD1-Eleve",
		".texbuilder/TD1-Eleve.tex",
	}, latexmk.Args(inv))
	assert.Equal(t, 1, latexmk.passes())

	inv.Deep = true
	assert.Contains(t, latexmk.Args(inv), "-g")

	lualatex := &BinaryCompiler{Engine: config.EngineLualatex, Passes: 3}
	args := lualatex.Args(inv)
	assert.NotContains(t, args, "-g")
	assert.Contains(t, args, "-output-directory=/docs/.texbuilder")
	assert.Equal(t, 3, lualatex.passes())
	assert.Equal(t, "lualatex", lualatex.binary())
}

func TestBinaryCompiler_MissingBinary(t *testing.T) {
	c := &BinaryCompiler{Engine: config.EnginePdflatex, Binary: "texbuilder-no-such-binary"}
	_, err := c.Run(context.Background(), Invocation{Dir: t.TempDir(), JobName: "x", OutDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCompile))
}

func TestNewBinaryCompiler(t *testing.T) {
	cfg := config.Defaults().Compile
	c := NewBinaryCompiler(cfg)
	assert.Equal(t, cfg.Timeout, c.Timeout)
	assert.Equal(t, "latexmk", c.binary())
}
