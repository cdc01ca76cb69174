package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// exitCodes maps categories to process exit codes. Unlisted categories and
// unclassified errors exit with 1.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryNotFound:   2,
	CategoryVersion:    3,
	CategoryParse:      3,
	CategoryManifest:   4,
	CategoryConfig:     7,
	CategoryUpload:     8,
	CategoryEvents:     8,
	CategoryInternal:   10,
	CategoryCompile:    11,
	CategoryTimeout:    11,
	CategoryFileSystem: 11,
	CategoryRuntime:    12,
	CategoryIndex:      12,
}

// CLIErrorAdapter turns command errors into a stderr line, a log record and
// an exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter returns an adapter logging to logger, or to the default
// logger when nil.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor returns 0 for nil, the category code for classified errors
// and 1 otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	if code, ok := exitCodes[classified.Category()]; ok {
		return code
	}
	return 1
}

// FormatError renders err for the terminal. Category tags only appear in
// verbose mode.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if a.verbose {
		return fmt.Sprintf("Error: %v", err)
	}
	if classified, ok := AsClassified(err); ok && classified.Category() == CategoryInternal {
		return "Internal error occurred (use -v for details)"
	}
	return "Error: " + Describe(err)
}

// Report logs err when warranted, prints it to w and returns the exit code.
// Quiet mode only logs fatal and unclassified errors.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	switch {
	case !ok:
		a.logger.Error("Unclassified error", slog.String("error", err.Error()))
	case a.verbose || classified.Severity() == SeverityFatal:
		a.log(classified)
	}
	_, _ = fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) log(err *ClassifiedError) {
	attrs := []slog.Attr{slog.String("category", string(err.Category()))}
	if err.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	for k, v := range err.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	if err.Cause() != nil {
		attrs = append(attrs, slog.String("cause", err.Cause().Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFor(err.Severity()), err.Message(), attrs...)
}

func levelFor(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
