package javascript

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrorType categorizes script failures.
type ErrorType string

const (
	ErrorTypeSyntax  ErrorType = "syntax_error"
	ErrorTypeRuntime ErrorType = "runtime_error"
	ErrorTypeTimeout ErrorType = "timeout_error"
	ErrorTypeConfig  ErrorType = "config_error"
)

// JSError represents a structured JavaScript execution error
type JSError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *JSError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// parseException converts a goja exception into a JSError.
func parseException(exc *goja.Exception) *JSError {
	jsErr := &JSError{
		Type:    ErrorTypeRuntime,
		Message: exc.Error(),
	}
	if v := exc.Value(); v != nil {
		if obj, ok := v.(*goja.Object); ok {
			if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
				jsErr.Stack = stack.String()
			}
		}
	}
	if strings.Contains(strings.ToLower(jsErr.Message), "syntaxerror") {
		jsErr.Type = ErrorTypeSyntax
	}
	return jsErr
}

// wrapError classifies an error returned by goja.
func wrapError(err error) *JSError {
	switch e := err.(type) {
	case *goja.Exception:
		return parseException(e)
	case *goja.CompilerSyntaxError:
		return &JSError{Type: ErrorTypeSyntax, Message: e.Error()}
	}
	return &JSError{Type: ErrorTypeRuntime, Message: err.Error()}
}

func newTimeoutError(c Config) *JSError {
	return &JSError{
		Type:    ErrorTypeTimeout,
		Message: fmt.Sprintf("execution timeout after %s", c.Timeout),
	}
}
