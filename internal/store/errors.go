package store

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error represents a store operation error with context about the operation
// that failed. It wraps the underlying AWS SDK error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "put", "list")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("store.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("store.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("store.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = errors.Wrap(e.Err, message)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op, bucket string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Err:    err,
	}
}

// Sentinel errors for store operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidCredentials indicates that AWS credentials are missing,
	// expired, or rejected. This failure is never item-scoped: every
	// subsequent request would fail the same way, so callers must abort
	// the whole run.
	ErrInvalidCredentials = errors.New("store: invalid credentials")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("store: object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("store: bucket not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("store: invalid input")
)

// IsInvalidCredentials reports whether err indicates a credential or
// authorization failure anywhere in its chain.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
