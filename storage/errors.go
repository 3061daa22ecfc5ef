package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a storage failure.
type Kind string

const (
	// KindLocalInput means a local file or directory could not be read.
	KindLocalInput Kind = "LOCAL_INPUT"

	// KindTransport means the remote call failed for network or service reasons.
	KindTransport Kind = "TRANSPORT"

	// KindPermission means the credentials were rejected or lack rights on the bucket.
	KindPermission Kind = "PERMISSION"

	// KindNotFound means the bucket does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindInvalidInput means the caller passed an invalid argument.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindCanceled means the context was canceled or its deadline passed.
	KindCanceled Kind = "CANCELED"
)

// Sentinel errors for common storage failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrAccessDenied indicates that access to the bucket or object is denied.
	ErrAccessDenied = errors.New("storage: access denied")

	// ErrBucketNotFound indicates that the bucket does not exist.
	ErrBucketNotFound = errors.New("storage: bucket not found")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("storage: invalid input")

	// ErrLocalInput indicates that a local input could not be read.
	ErrLocalInput = errors.New("storage: local input unavailable")
)

// Error is a storage operation failure with context about what failed.
type Error struct {
	// Op is the operation that failed (e.g. "put", "list", "delete").
	Op string

	// Bucket is the bucket name, if known.
	Bucket string

	// Key is the object key or local path, if applicable.
	Key string

	// Kind classifies the failure.
	Kind Kind

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("storage.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	case e.Key != "":
		return fmt.Sprintf("storage.%s %s: %v", e.Op, e.Key, e.Err)
	default:
		return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel that corresponds to the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAccessDenied:
		return e.Kind == KindPermission
	case ErrBucketNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrLocalInput:
		return e.Kind == KindLocalInput
	}
	return false
}

// NewError creates an Error for op classified as kind.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithBucket adds bucket context to the error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds key context to the error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// KindOf reports the classification of err. Errors that carry no storage
// classification are treated as transport failures, except for missing local
// files and context cancellation which are recognized directly.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) && se.Kind != "" {
		return se.Kind
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return KindLocalInput
	}
	return KindTransport
}
