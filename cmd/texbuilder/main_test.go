package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Version(t *testing.T) {
	assert.Equal(t, 0, run(t.Context(), []string{"--env-file", t.TempDir() + "/none.env", "version"}))
}

func TestRun_UsageErrors(t *testing.T) {
	assert.Equal(t, 2, run(t.Context(), []string{"no-such-command"}))
	assert.Equal(t, 2, run(t.Context(), []string{"get", t.TempDir() + "/missing.tex", "titre"}))
}
