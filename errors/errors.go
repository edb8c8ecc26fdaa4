// Package errors provides error types and handling for copy operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a copy-operation error with context about the item that
// failed. It wraps the underlying storage or filesystem error with the
// source and destination being processed for better diagnostics.
type Error struct {
	// Op is the operation that failed (e.g., "copy", "delete", "expand")
	Op string

	// Src is the source URL being processed (if applicable)
	Src string

	// Dst is the destination URL being processed (if applicable)
	Dst string

	// Err is the underlying error from the storage SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Src != "" && e.Dst != "" {
		return fmt.Sprintf("objcp.%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
	}
	if e.Src != "" {
		return fmt.Sprintf("objcp.%s %s: %v", e.Op, e.Src, e.Err)
	}
	if e.Dst != "" {
		return fmt.Sprintf("objcp.%s -> %s: %v", e.Op, e.Dst, e.Err)
	}
	return fmt.Sprintf("objcp.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithSrc adds source context to an existing error.
func (e *Error) WithSrc(src string) *Error {
	e.Src = src
	return e
}

// WithDst adds destination context to an existing error.
func (e *Error) WithDst(dst string) *Error {
	e.Dst = dst
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New creates a new Error with the given operation and underlying error.
func New(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewItemError creates a new Error with source and destination context.
func NewItemError(op, src, dst string, err error) *Error {
	return &Error{
		Op:  op,
		Src: src,
		Dst: dst,
		Err: err,
	}
}

// Sentinel errors for copy-operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrItemExists indicates the destination already exists and the
	// no-clobber policy rejected the transfer
	ErrItemExists = errors.New("objcp: item already exists")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("objcp: object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("objcp: bucket not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("objcp: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("objcp: invalid input")

	// ErrSameObject indicates that source and destination resolve to the
	// same location
	ErrSameObject = errors.New("objcp: source and destination are the same")

	// ErrVersionedDest indicates a version-qualified destination URL,
	// which is never a valid write target
	ErrVersionedDest = errors.New("objcp: version-specific URL cannot be a destination")

	// ErrDirFileConflict indicates the resolved destination collides with
	// an existing filesystem entry of the wrong kind
	ErrDirFileConflict = errors.New("objcp: destination conflicts with existing entry")

	// ErrConfig indicates an invalid run configuration, fatal before any
	// transfer begins
	ErrConfig = errors.New("objcp: invalid configuration")
)

// IsItemExists checks if an error indicates the destination already exists.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsItemExists(err error) bool {
	return errors.Is(err, ErrItemExists)
}

// IsNotFound checks if an error indicates that an object or bucket was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrBucketNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsConfig checks if an error indicates an invalid run configuration.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}
