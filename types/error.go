package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Graph construction error codes
const (
	ErrInvalidStepName        ErrorCode = "INVALID_STEP_NAME"
	ErrDuplicateStepName      ErrorCode = "DUPLICATE_STEP_NAME"
	ErrInvalidDependencyShape ErrorCode = "INVALID_DEPENDENCY_SHAPE"
	ErrUnresolvedDependency   ErrorCode = "UNRESOLVED_DEPENDENCY"
	ErrCycleDetected          ErrorCode = "CYCLE_DETECTED"
)

// Definition error codes
const (
	ErrInvalidDefinition  ErrorCode = "INVALID_DEFINITION"
	ErrUnknownPayload     ErrorCode = "UNKNOWN_PAYLOAD"
	ErrDefinitionNotFound ErrorCode = "DEFINITION_NOT_FOUND"
)

// Error represents a structured error with code, message, and the step names involved.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Step is the step being registered when the error occurred, if any.
	Step string `json:"step,omitempty"`
	// Names lists every offending name, sorted.
	Names []string `json:"names,omitempty"`
	Cause error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Step != "" {
		fmt.Fprintf(&b, " (step %q)", e.Step)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code, so that
// code-only sentinels can be matched with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStep records the step name the error refers to.
func (e *Error) WithStep(step string) *Error {
	e.Step = step
	return e
}

// WithNames attaches the offending names.
func (e *Error) WithNames(names []string) *Error {
	e.Names = names
	return e
}

// GetErrorCode extracts the error code from an error, looking through wrapping.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether an error is worth retrying. Graph construction
// errors never are; only store failures that are not coded errors qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return GetErrorCode(err) == ""
}
