package config

import "git.home.luguber.info/inful/texbuilder/internal/foundation/normalization"

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var backoffNormalizer = normalization.New("backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return backoffNormalizer.Normalize(raw)
}

// Valid reports whether m names a known strategy.
func (m RetryBackoffMode) Valid() bool {
	switch m {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
		return true
	}
	return false
}
