package errors

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad value").Build(), expected: 2},
		{name: "missing key", err: NotFoundError("no such key").Build(), expected: 2},
		{name: "unknown version", err: VersionError("unrecognized").Build(), expected: 3},
		{name: "malformed zones", err: ParseError("unbalanced").Build(), expected: 3},
		{name: "manifest", err: ManifestError("missing zone").Build(), expected: 4},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "upload", err: UploadError("unreachable").Build(), expected: 8},
		{name: "filesystem", err: NewError(CategoryFileSystem, "disk full").Build(), expected: 11},
		{name: "index", err: NewError(CategoryIndex, "locked").Build(), expected: 12},
		{name: "events", err: NewError(CategoryEvents, "no server").Build(), expected: 8},
		{name: "timeout", err: TimeoutError("too slow").Build(), expected: 11},
		{name: "internal", err: NewError(CategoryInternal, "bug").Fatal().Build(), expected: 10},
		{name: "wrapped", err: fmt.Errorf("load: %w", ParseError("x").Build()), expected: 3},
		{name: "unclassified", err: fmt.Errorf("plain"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	assert.Empty(t, quiet.FormatError(nil))
	assert.Equal(t, "Error: plain", quiet.FormatError(fmt.Errorf("plain")))
	assert.Equal(t, "Error: bad value", quiet.FormatError(ValidationError("bad value").Build()))
	assert.Equal(t, "Error: [validation:error] bad value", verbose.FormatError(ValidationError("bad value").Build()))
	bug := NewError(CategoryInternal, "bug").Build()
	assert.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(bug))
	assert.Contains(t, verbose.FormatError(bug), "bug")
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.Equal(t, 0, adapter.Report(&out, nil))
	assert.Empty(t, out.String())

	err := ManifestError("zone not found").WithContext("zone", "intro").Build()
	assert.Equal(t, 4, adapter.Report(&out, err))
	assert.Equal(t, "Error: zone not found\n", out.String())
	assert.Empty(t, logs.String(), "non-fatal errors are not logged in quiet mode")

	out.Reset()
	assert.Equal(t, 7, adapter.Report(&out, ConfigError("bad config").WithContext("path", "texbuilder.yaml").Build()))
	assert.Contains(t, logs.String(), "bad config")
	assert.Contains(t, logs.String(), "path=texbuilder.yaml")
}
