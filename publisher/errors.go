package publisher

import (
	"fmt"

	"github.com/uhthomas/bazel-central-registry/storage"
)

// ErrorCode classifies a publish failure. Codes are informational: every
// failure aborts the run the same way.
type ErrorCode string

const (
	// CodeLocalInputMissing indicates a local file or directory could not be read.
	CodeLocalInputMissing ErrorCode = "LOCAL_INPUT_MISSING"

	// CodeNetwork indicates a remote call failed for transport or service reasons.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeForbidden indicates the credentials lack rights on the bucket.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeNotFound indicates the bucket does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeInvalidInput indicates invalid configuration or arguments.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeCanceled indicates the run was canceled.
	CodeCanceled ErrorCode = "CANCELED"
)

// Error is returned when a publish step fails.
type Error struct {
	// Step is the step that failed.
	Step Step

	// Code classifies the failure.
	Code ErrorCode

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("publish step %s failed [%s]: %v", e.Step, e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newStepError(step Step, err error) *Error {
	return &Error{Step: step, Code: CodeFor(err), Err: err}
}

// CodeFor maps err onto an ErrorCode using its storage classification.
func CodeFor(err error) ErrorCode {
	switch storage.KindOf(err) {
	case storage.KindLocalInput:
		return CodeLocalInputMissing
	case storage.KindPermission:
		return CodeForbidden
	case storage.KindNotFound:
		return CodeNotFound
	case storage.KindInvalidInput:
		return CodeInvalidInput
	case storage.KindCanceled:
		return CodeCanceled
	default:
		return CodeNetwork
	}
}
