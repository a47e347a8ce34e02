// Package apperrors defines the coded error taxonomy shared by all layers.
//
// Every business failure carries a Code that the HTTP layer maps to a status
// and that callers can branch on without string matching. Wrapped causes keep
// their stack context via eris.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Code identifies the kind of failure.
type Code string

const (
	// CodeValidation - missing or malformed input; caller must correct and retry.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound - referenced entity absent; non-retryable without new input.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInvalidState - transition attempted from a terminal or incompatible state.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeSelfApprovalForbidden - requester attempted to clear their own mandatory approval.
	CodeSelfApprovalForbidden Code = "SELF_APPROVAL_FORBIDDEN"
	// CodePreconditionFailed - operation precondition not met (e.g. implement before full approval).
	CodePreconditionFailed Code = "PRECONDITION_FAILED"
	// CodeInternal - unexpected infrastructure failure.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded application error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause is
// eris-wrapped so its origin survives logging.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: eris.Wrap(err, message)}
}

// InvalidInput reports a validation failure for a named field.
func InvalidInput(field, reason string) error {
	return Newf(CodeValidation, "%s: %s", field, reason)
}

// NotFound reports a missing entity by type and id.
func NotFound(entity, id string) error {
	return Newf(CodeNotFound, "%s %q not found", entity, id)
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
