// Package errors provides structured error handling for Semantica.
//
// Every failure surfaced by the indexing and search pipelines carries a
// Kind that callers can branch on without string matching. Per-file and
// per-batch failures are recorded and non-fatal; auth and connection
// failures abort the operation.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for dispatch and user presentation.
type Kind string

const (
	// KindConfig indicates malformed user configuration. Fatal for the
	// affected operation.
	KindConfig Kind = "config-error"

	// KindFile indicates a per-file read or parse failure. Recorded,
	// never fatal for the pipeline.
	KindFile Kind = "file-error"

	// KindEmbedding indicates a provider-side embedding failure after
	// retry exhaustion. Fatal for the batch, not for the pipeline.
	KindEmbedding Kind = "embedding-error"

	// KindAuth indicates rejected credentials. Fatal, never retried.
	KindAuth Kind = "auth-error"

	// KindModelUnavailable indicates the requested embedding model does
	// not exist on the provider. Fatal, never retried.
	KindModelUnavailable Kind = "model-unavailable"

	// KindStore indicates a vector store failure.
	KindStore Kind = "store-error"

	// KindCollectionNotFound is a store failure on a missing collection.
	KindCollectionNotFound Kind = "collection-not-found"

	// KindCollectionExists is a store failure creating a collection that
	// already exists.
	KindCollectionExists Kind = "collection-exists"

	// KindBusy indicates lock contention between pipeline runs. The
	// caller may retry with force.
	KindBusy Kind = "busy"

	// KindSearch wraps downstream failures during a query.
	KindSearch Kind = "search-error"

	// KindInternal is the catch-all for unexpected failures.
	KindInternal Kind = "internal-error"
)

// Error is the structured error type for Semantica.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the failed operation may be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by Kind, enabling errors.Is against sentinel kinds.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: retryableKind(kind),
	}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an Error from an existing error. Returns nil if err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:      kind,
		Message:   message,
		Cause:     err,
		Retryable: retryableKind(kind),
	}
}

// KindOf extracts the Kind from an error chain.
// Returns KindInternal if the chain carries no *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsRetryable reports whether the failed operation may be retried.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether the error must abort the whole operation
// rather than being recorded per file or per batch.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindModelUnavailable, KindConfig, KindBusy:
		return true
	}
	return false
}

// retryableKind reports whether errors of the given kind are retryable
// by default. Embedding errors carry the retry policy at the transport
// layer; by the time they surface here the retries are exhausted.
func retryableKind(kind Kind) bool {
	return kind == KindBusy
}
