// Package errors provides structured error handling for the connector
// runtime and maps error categories onto process exit codes.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeAuth represents authentication and authorization errors
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeTransient represents transient transport errors (5xx, network)
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeRateLimit represents throttling responses (429, quota exceeded)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeVendor represents terminal vendor-side failures
	ErrorTypeVendor ErrorType = "vendor"
	// ErrorTypePollTimeout represents a report that did not finish within
	// the configured poll budget
	ErrorTypePollTimeout ErrorType = "poll_timeout"
	// ErrorTypeFormat represents unsupported or malformed payload formats
	ErrorTypeFormat ErrorType = "format"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
)

// Exit codes returned by the CLI, one per terminal error category.
const (
	ExitOK          = 0
	ExitOther       = 1
	ExitConfig      = 2
	ExitAuth        = 3
	ExitVendor      = 4
	ExitPollTimeout = 5
	ExitTransient   = 6
	ExitFormat      = 7
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
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

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
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

// As delegates to the standard library so callers need only one
// errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is delegates to the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTransient, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// ExitCode maps an error to a process exit code. Unknown and untyped
// errors map to ExitOther.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitOther
	}
	switch e.Type {
	case ErrorTypeConfig:
		return ExitConfig
	case ErrorTypeAuth:
		return ExitAuth
	case ErrorTypeVendor:
		return ExitVendor
	case ErrorTypePollTimeout:
		return ExitPollTimeout
	case ErrorTypeTransient, ErrorTypeRateLimit:
		return ExitTransient
	case ErrorTypeFormat:
		return ExitFormat
	default:
		return ExitOther
	}
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
