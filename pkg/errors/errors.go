// Package errors provides structured error handling for Etl-Lib
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal framework errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents build-time configuration errors; these
	// fail fast, before any execution starts
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeExecution represents a fault raised while an operation or
	// node was running; it carries the faulting identity
	ErrorTypeExecution ErrorType = "execution"
	// ErrorTypePoolExhausted represents a borrow request against a pool
	// with no free instance and growth disabled
	ErrorTypePoolExhausted ErrorType = "pool_exhausted"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
)

// Error represents a structured error with context
type Error struct {
	Type      ErrorType
	Message   string
	Operation string
	Cause     error
	Details   map[string]interface{}
	Stack     []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Operation != "" {
		if msg == "" {
			msg = e.Operation
		} else {
			msg = e.Operation + ": " + msg
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithOperation tags the error with the identity of the operation or node
// that raised it
func (e *Error) WithOperation(name string) *Error {
	e.Operation = name
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// NewValidation creates a build-time validation error
func NewValidation(message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Stack:   captureStack(2),
	}
}

// NewExecution creates a runtime fault tagged with the faulting operation
// or node identity
func NewExecution(operation, message string) *Error {
	return &Error{
		Type:      ErrorTypeExecution,
		Message:   message,
		Operation: operation,
		Stack:     captureStack(2),
	}
}

// AsExecution converts an arbitrary error into an execution error carrying
// the given identity. An execution error that already carries an identity is
// returned unchanged, so wrapping at multiple levels never re-tags a fault.
func AsExecution(operation string, err error) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) && existingErr.Type == ErrorTypeExecution {
		if existingErr.Operation == "" {
			existingErr.Operation = operation
		}
		return existingErr
	}

	return &Error{
		Type:      ErrorTypeExecution,
		Operation: operation,
		Cause:     err,
		Stack:     captureStack(2),
	}
}

// NewPoolExhausted creates an error for a borrow against a depleted,
// non-growing pool
func NewPoolExhausted(pool string) *Error {
	e := &Error{
		Type:    ErrorTypePoolExhausted,
		Message: "no free instance available and growth is disabled",
		Stack:   captureStack(2),
	}
	return e.WithDetail("pool", pool)
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the structured type of the error, or ErrorTypeInternal when
// the error does not carry one
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// OperationOf returns the faulting identity carried by the error, if any
func OperationOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Operation
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
