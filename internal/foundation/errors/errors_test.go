package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	err := ConfigError("invalid configuration").
		WithContext("file", "texbuilder.yaml").
		Build()

	assert.Equal(t, CategoryConfig, err.Category())
	assert.Equal(t, SeverityFatal, err.Severity())
	assert.Equal(t, "invalid configuration", err.Message())
	assert.False(t, err.CanRetry())

	file, ok := err.Context().GetString("file")
	require.True(t, ok)
	assert.Equal(t, "texbuilder.yaml", file)
}

func TestWrapError_KeepsCause(t *testing.T) {
	original := errors.New("permission denied")
	err := WrapError(original, CategoryFileSystem, "write failed").
		Warning().
		Retryable().
		WithContext("path", "/tmp/a.tex").
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Equal(t, RetryBackoff, err.RetryStrategy())
	assert.True(t, err.CanRetry())
	assert.ErrorIs(t, err, original)
	assert.Equal(t, original, err.Cause())
	assert.Equal(t, "[filesystem:warning] write failed: permission denied", err.Error())
}

func TestAsClassified_FindsWrappedError(t *testing.T) {
	inner := ManifestError("zone not found").WithContext("zone", "intro").Build()
	outer := fmt.Errorf("aggregate poly: %w", inner)

	classified, ok := AsClassified(outer)
	require.True(t, ok)
	assert.Equal(t, CategoryManifest, classified.Category())
	assert.True(t, HasCategory(outer, CategoryManifest))
	assert.Equal(t, CategoryManifest, GetCategory(outer))
}

func TestPlainErrors(t *testing.T) {
	plain := errors.New("boom")

	_, ok := AsClassified(plain)
	assert.False(t, ok)
	assert.False(t, HasCategory(plain, CategoryInternal))
	assert.Equal(t, CategoryInternal, GetCategory(plain))
	assert.False(t, Permanent(plain))
	assert.Equal(t, "boom", Describe(plain))
}

func TestWithContext_ReturnsNewError(t *testing.T) {
	base := ParseError("unbalanced zone").Build()
	withLine := base.WithContext("line", 12)

	line, ok := withLine.Context().Get("line")
	require.True(t, ok)
	assert.Equal(t, 12, line)
	_, ok = base.Context().Get("line")
	assert.False(t, ok)
	assert.True(t, errors.Is(withLine, base))
}

func TestPermanent(t *testing.T) {
	assert.True(t, Permanent(ValidationError("bad").Build()))
	assert.True(t, Permanent(fmt.Errorf("wrapped: %w", ManifestError("bad").Build())))
	assert.False(t, Permanent(UploadError("unreachable").Build()))
	assert.False(t, Permanent(NotFoundError("missing").Build()))
}

func TestDescribe_DropsCategoryTags(t *testing.T) {
	cause := ParseError("unterminated zone").Build()
	err := WrapError(cause, CategoryVersion, "cannot load a.tex").Build()

	assert.Equal(t, "cannot load a.tex: unterminated zone", Describe(err))
	assert.Equal(t, "cannot load a.tex: disk full",
		Describe(WrapError(errors.New("disk full"), CategoryVersion, "cannot load a.tex").Build()))
	assert.Equal(t, "load a.tex: unterminated zone",
		Describe(fmt.Errorf("load a.tex: %w", cause)))
}
