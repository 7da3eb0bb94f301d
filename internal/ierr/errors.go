// Package ierr provides the structured error type shared across the
// indexing pipeline. Every error kind named here corresponds to one of
// the abstract error kinds of the error handling design: ChunkingFailed,
// EmbeddingFailed, StorageIOFailed, IndexCorrupt, LockUnavailable,
// InvalidQueryParameters, Timeout, and NotFound.
package ierr

import "fmt"

// Kind classifies an IndexError for programmatic handling and logging.
type Kind string

const (
	// ChunkingFailed: input not decodable or too large for a single
	// line/chunk size.
	ChunkingFailed Kind = "CHUNKING_FAILED"
	// EmbeddingFailed: embedding provider returned an error.
	EmbeddingFailed Kind = "EMBEDDING_FAILED"
	// StorageIOFailed: filesystem error during write/rename/read.
	StorageIOFailed Kind = "STORAGE_IO_FAILED"
	// IndexCorrupt: auxiliary index failed checksum/structural
	// validation on load; a rebuild is scheduled.
	IndexCorrupt Kind = "INDEX_CORRUPT"
	// LockUnavailable: an advisory lock could not be acquired within
	// the deadline.
	LockUnavailable Kind = "LOCK_UNAVAILABLE"
	// InvalidQueryParameters: malformed time_range, unknown commit,
	// end-before-start, non-zero-padded date.
	InvalidQueryParameters Kind = "INVALID_QUERY_PARAMETERS"
	// Timeout: deadline exceeded.
	Timeout Kind = "TIMEOUT"
	// NotFound: PointID or collection missing.
	NotFound Kind = "NOT_FOUND"
)

// IndexError is the structured error type used throughout the indexing
// and query pipeline.
type IndexError struct {
	Kind    Kind
	Message string
	Details map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is matches another IndexError by Kind, so errors.Is(err, ierr.New(Kind, ...)) works.
func (e *IndexError) Is(target error) bool {
	t, ok := target.(*IndexError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an IndexError of the given kind.
func New(kind Kind, message string, cause error) *IndexError {
	return &IndexError{Kind: kind, Message: message, Cause: cause}
}

// Wrap creates an IndexError from an existing error, reusing its message.
func Wrap(kind Kind, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// KindOf extracts the Kind of err if it is (or wraps) an *IndexError.
func KindOf(err error) (Kind, bool) {
	var ie *IndexError
	for err != nil {
		if e, ok := err.(*IndexError); ok {
			ie = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ie == nil {
		return "", false
	}
	return ie.Kind, true
}

// Is reports whether err is an IndexError of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
