// Package batch compiles many documents concurrently with a bounded worker
// pool. Every path yields exactly one Entry, in input order; a failing path
// never stops the others.
package batch
