package config

import (
	"fmt"
	"strings"

	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// Validate checks cross-field invariants of a merged configuration.
func (c Config) Validate() error {
	var problems []string
	if _, err := NormalizeEngine(string(c.Compile.Engine)); err != nil {
		problems = append(problems, fmt.Sprintf("compile.engine %q is unknown", c.Compile.Engine))
	}
	if c.Compile.Passes < 1 {
		problems = append(problems, "compile.passes must be >= 1")
	}
	if c.Compile.Timeout <= 0 {
		problems = append(problems, "compile.timeout must be > 0")
	}
	if c.Compile.AuxDir == "" {
		problems = append(problems, "compile.aux_dir must not be empty")
	}
	if c.Batch.Workers < 1 {
		problems = append(problems, "batch.workers must be >= 1")
	}
	if c.Upload.Retry.MaxRetries < 0 {
		problems = append(problems, "upload.retry.max_retries cannot be negative")
	}
	if c.Upload.Retry.Backoff != "" && NormalizeRetryBackoff(string(c.Upload.Retry.Backoff)) == "" {
		problems = append(problems, fmt.Sprintf("upload.retry.backoff %q is unknown", c.Upload.Retry.Backoff))
	}
	if c.Watch.Debounce < 0 {
		problems = append(problems, "watch.debounce cannot be negative")
	}
	if c.Daemon.Interval <= 0 {
		problems = append(problems, "daemon.interval must be > 0")
	}
	if len(problems) == 0 {
		return nil
	}
	return foundationerrors.ConfigError("invalid configuration: "+strings.Join(problems, "; ")).
		WithContext("problems", problems).
		Build()
}
