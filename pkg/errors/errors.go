package errors

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeMissingCapability     = "MISSING_CAPABILITY"
	CodeInvalidParameterValue = "INVALID_PARAMETER_VALUE"
	CodeCycleDetected         = "CYCLE_DETECTED"
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidTemplate       = "INVALID_TEMPLATE"
	CodeInvalidDocument       = "INVALID_DOCUMENT"
)

var (
	// ErrMissingCapability indicates that a node has no process capability
	ErrMissingCapability = errors.New("node has no process capability")

	// ErrInvalidParameterValue indicates that a config parameter value is not a string, number, boolean or nil
	ErrInvalidParameterValue = errors.New("invalid parameter value")

	// ErrCycleDetected indicates that a node depends on itself through its connections
	ErrCycleDetected = errors.New("cycle detected")

	// ErrNotFound indicates that a node, template or socket could not be found
	ErrNotFound = errors.New("not found")

	// ErrInvalidTemplate indicates that a node template cannot be registered
	ErrInvalidTemplate = errors.New("invalid node template")

	// ErrInvalidDocument indicates that a graph document could not be decoded
	ErrInvalidDocument = errors.New("invalid graph document")
)

var codeSentinels = map[string]error{
	CodeMissingCapability:     ErrMissingCapability,
	CodeInvalidParameterValue: ErrInvalidParameterValue,
	CodeCycleDetected:         ErrCycleDetected,
	CodeNotFound:              ErrNotFound,
	CodeInvalidTemplate:       ErrInvalidTemplate,
	CodeInvalidDocument:       ErrInvalidDocument,
}

// Error represents a structured engine error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel registered for this error's code,
// so errors.Is(err, ErrMissingCapability) works without wrapping the sentinel.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// NewError creates a new structured error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MissingCapability builds the error returned when a node without a process
// capability is executed.
func MissingCapability(nodeType string, nodeID int) *Error {
	return NewError(CodeMissingCapability,
		fmt.Sprintf("node %q (id %d) has no process capability", nodeType, nodeID), nil)
}

// InvalidParameterValue builds the error returned when a parameter is set to a
// value that is not a string, number, boolean or nil.
func InvalidParameterValue(name string, value any) *Error {
	return NewError(CodeInvalidParameterValue,
		fmt.Sprintf("parameter %q must be a string, number, boolean or nil, got %T", name, value), nil)
}

// CycleDetected builds the error returned when a node is requested again while
// it is still being resolved.
func CycleDetected(nodeType string, nodeID int) *Error {
	return NewError(CodeCycleDetected,
		fmt.Sprintf("node %q (id %d) depends on its own output", nodeType, nodeID), nil)
}

// NotFound builds a not-found error for the given kind and key.
func NotFound(kind string, key any) *Error {
	return NewError(CodeNotFound, fmt.Sprintf("%s %v not found", kind, key), nil)
}

// IsMissingCapability checks if an error is a missing capability error
func IsMissingCapability(err error) bool {
	return errors.Is(err, ErrMissingCapability)
}

// IsInvalidParameterValue checks if an error is an invalid parameter value error
func IsInvalidParameterValue(err error) bool {
	return errors.Is(err, ErrInvalidParameterValue)
}

// IsCycleDetected checks if an error is a cycle error
func IsCycleDetected(err error) bool {
	return errors.Is(err, ErrCycleDetected)
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
