package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

func TestMerge_DefaultsOnly(t *testing.T) {
	cfg, err := Merge()
	require.NoError(t, err)

	assert.Equal(t, EngineLatexmk, cfg.Compile.Engine)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.Equal(t, "-Prof", cfg.Compile.Suffix("teacher"))
	assert.Equal(t, RetryBackoffExponential, cfg.Upload.Retry.Backoff)
}

func TestMerge_PrecedenceFileSecretsEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "texbuilder.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
compile:
  engine: lualatex
  passes: 3
  suffixes:
    student: "-Student"
batch:
  workers: 4
index:
  path: from-file.db
`), 0o600))
	secrets := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(secrets, []byte("TEXBUILDER_EVENTS_TOKEN=s3cret\nTEXBUILDER_BATCH_WORKERS=6\n"), 0o600))

	cfg, err := Load(LoadOptions{
		File:    file,
		EnvFile: secrets,
		Environ: []string{"TEXBUILDER_BATCH_WORKERS=8", "HOME=/root", "TEXBUILDER_COMPILE_TIMEOUT=90s"},
	})
	require.NoError(t, err)

	assert.Equal(t, EngineLualatex, cfg.Compile.Engine)
	assert.Equal(t, 3, cfg.Compile.Passes)
	assert.Equal(t, "-Student", cfg.Compile.Suffix("student"))
	assert.Equal(t, "-Prof", cfg.Compile.Suffix("teacher"), "file layer merges into default suffixes")
	assert.Equal(t, "from-file.db", cfg.Index.Path)
	assert.Equal(t, "s3cret", cfg.Events.Token)
	assert.Equal(t, 8, cfg.Batch.Workers, "environment wins over secrets and file")
	assert.Equal(t, 90*time.Second, cfg.Compile.Timeout)
}

func TestMerge_LayersDoNotMutateEarlierResults(t *testing.T) {
	base := Defaults()
	_, err := Merge(YAMLLayer([]byte("compile:\n  suffixes:\n    teacher: -T\n")))
	require.NoError(t, err)

	assert.Equal(t, "-Prof", base.Compile.Suffix("teacher"))
	assert.Equal(t, "-Prof", Defaults().Compile.Suffix("teacher"))
}

func TestSecretsLayer_MissingFileIgnored(t *testing.T) {
	cfg, err := Merge(SecretsLayer(filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, err)
	assert.Empty(t, cfg.Events.Token)
}

func TestFileLayer_UnknownKeyRejected(t *testing.T) {
	_, err := Merge(YAMLLayer([]byte("compile:\n  enjine: lualatex\n")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer yaml")
}

func TestEnvLayer_InvalidValue(t *testing.T) {
	_, err := Merge(EnvLayer([]string{"TEXBUILDER_BATCH_WORKERS=many"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEXBUILDER_BATCH_WORKERS")
}

func TestValidate_ReportsConfigCategory(t *testing.T) {
	_, err := Merge(YAMLLayer([]byte("batch:\n  workers: 0\ncompile:\n  engine: context\n")))
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
	assert.Contains(t, err.Error(), "batch.workers")
	assert.Contains(t, err.Error(), `compile.engine "context" is unknown`)
}

func TestEnvKeys_Sorted(t *testing.T) {
	keys := EnvKeys()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
}
