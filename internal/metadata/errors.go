package metadata

import (
	"fmt"

	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

func validationError(key, msg string) error {
	return foundationerrors.ValidationError(fmt.Sprintf("metadata %q: %s", key, msg)).
		WithContext("key", key).
		Build()
}

func missingError(keys []string) error {
	return foundationerrors.ValidationError(fmt.Sprintf("missing required metadata: %v", keys)).
		WithContext("keys", keys).
		Build()
}

func parseError(line int, msg string) error {
	return foundationerrors.ParseError(fmt.Sprintf("metadata line %d: %s", line, msg)).
		WithContext("line", line).
		Build()
}

func notFoundError(key string) error {
	return foundationerrors.NotFoundError(fmt.Sprintf("metadata %q not found", key)).
		WithContext("key", key).
		Build()
}

// Warning is a non-fatal parse observation.
type Warning struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}
