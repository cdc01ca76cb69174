package errors

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ClassifiedError carries a category for exit-code mapping, a severity for
// logging and a retry strategy for the upload retry loop.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// Error renders "[category:severity] message: cause".
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

func (e *ClassifiedError) Unwrap() error                { return e.cause }
func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Cause() error                 { return e.cause }

// Context returns the structured fields attached to the error.
func (e *ClassifiedError) Context() ErrorContext {
	return e.context
}

// WithContext returns a copy with key set; the receiver is unchanged.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	out := *e
	out.context = maps.Clone(e.context)
	out.context = out.context.Set(key, value)
	return &out
}

// Is matches another ClassifiedError with the same category and message.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// CanRetry reports whether repeating the operation may succeed.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry != RetryNever && e.retry != RetryUserAction
}

// AsClassified returns the outermost ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory checks if the outermost classified error belongs to category.
func HasCategory(err error, category ErrorCategory) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal.
func GetCategory(err error) ErrorCategory {
	if classified, ok := AsClassified(err); ok {
		return classified.Category()
	}
	return CategoryInternal
}

// Permanent reports whether err was classified as needing user action.
// Unclassified errors are not permanent.
func Permanent(err error) bool {
	classified, ok := AsClassified(err)
	return ok && classified.retry == RetryUserAction
}

// Describe renders err for people: classified messages without their
// category tags, joined with their causes.
func Describe(err error) string {
	classified, ok := AsClassified(err)
	if !ok {
		return err.Error()
	}
	plain := classified.message
	if classified.cause != nil {
		plain += ": " + Describe(classified.cause)
	}
	return strings.Replace(err.Error(), classified.Error(), plain, 1)
}
