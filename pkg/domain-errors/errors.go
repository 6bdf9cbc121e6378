// Package domainerrors provides coded errors raised at the service boundary.
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into these so transports can map codes to protocol responses without
// inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error by the kind of constraint it violated.
type Code string

const (
	// CodeValidation marks structurally invalid input, independent of
	// existing state (wrong public key length, zero-valued hash).
	CodeValidation Code = "validation"
	// CodeBadRequest marks requests the service cannot act on as phrased.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks operations referencing records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks operations that would violate a uniqueness
	// invariant.
	CodeConflict Code = "conflict"
	// CodeForbidden marks callers lacking the required role or relationship
	// to the target record.
	CodeForbidden Code = "forbidden"
	// CodeUnauthorized marks callers whose identity could not be established.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvariantViolation marks entity-level invariant breaches raised by
	// model constructors and transition guards.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks operations rejected because the system is paused
	// or a backing resource is down.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause.
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

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to the HTTP status transports should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
