// Package errors provides classified error primitives used across texbuilder.
//
// Loaders, codecs and the poly aggregator return ClassifiedError values so the
// CLI can map failures to exit codes without string matching. Compile failures
// are not errors at this level: they are recorded as diagnostics.
//
// Example usage:
//
//	err := errors.ValidationError("value not allowed").
//		WithContext("key", "type_document").
//		WithContext("value", raw).
//		Build()
package errors
