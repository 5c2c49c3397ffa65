// Package errors provides structured error types for deckreel.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across capture, render, and the CLI
//   - Machine-readable error codes for programmatic handling
//   - Frame index and event label context, so failures reproduce from logs
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The capture and render taxonomy:
//   - SERIALIZATION_FAILURE: a resource's state could not be captured
//   - EVENT_CAPTURE_FAILURE: a capture failed (wraps the above with event context)
//   - RENDER_INVOCATION_FAILURE: the renderer failed to start or exited nonzero
//   - RENDER_ARTIFACT_MISSING: the renderer exited zero but wrote no artifact
//
// plus general INVALID_*, FILE_NOT_FOUND, TIMEOUT and INTERNAL_ERROR codes.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "frame delay must be positive, got %d", d)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors and attach capture context
//	err := errors.Wrap(errors.ErrCodeEventCapture, cause, "capture failed").
//	    WithFrame(3).WithEvent("operation_aspirate")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidFrame Code = "INVALID_FRAME"
	ErrCodeInvalidState Code = "INVALID_STATE"
	ErrCodeInvalidName  Code = "INVALID_NAME"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Capture errors
	ErrCodeSerialization Code = "SERIALIZATION_FAILURE"
	ErrCodeEventCapture  Code = "EVENT_CAPTURE_FAILURE"

	// Render errors
	ErrCodeSetup                 Code = "SETUP_FAILURE"
	ErrCodeRenderInvocation      Code = "RENDER_INVOCATION_FAILURE"
	ErrCodeRenderArtifactMissing Code = "RENDER_ARTIFACT_MISSING"
	ErrCodeTimeout               Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// NoFrame marks an error that is not tied to a frame index.
const NoFrame = -1

// Error is a structured error with a code and optional cause.
type Error struct {
	Code        Code   // Machine-readable error code
	Message     string // Human-readable message
	Cause       error  // Underlying error (optional)
	Frame       int    // Frame index, or NoFrame
	Event       string // Event label (optional)
	Diagnostics string // Captured diagnostic text, e.g. a process's stderr (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if ctx := e.context(); ctx != "" {
		b.WriteString(" [")
		b.WriteString(ctx)
		b.WriteString("]")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		b.WriteString("\n")
		b.WriteString(d)
	}
	return b.String()
}

func (e *Error) context() string {
	var parts []string
	if e.Frame >= 0 {
		parts = append(parts, fmt.Sprintf("frame=%d", e.Frame))
	}
	if e.Event != "" {
		parts = append(parts, "event="+e.Event)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithFrame attaches a frame index and returns e.
func (e *Error) WithFrame(index int) *Error {
	e.Frame = index
	return e
}

// WithEvent attaches an event label and returns e.
func (e *Error) WithEvent(label string) *Error {
	e.Event = label
	return e
}

// WithDiagnostics attaches captured diagnostic text and returns e.
func (e *Error) WithDiagnostics(text string) *Error {
	e.Diagnostics = text
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Frame:   NoFrame,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
		Frame:   NoFrame,
	}
}

// Is reports whether err has the given error code.
// It walks the whole error chain, so an EVENT_CAPTURE_FAILURE wrapping a
// SERIALIZATION_FAILURE matches both codes.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FrameOf returns the frame index attached to the outermost *Error, or NoFrame.
func FrameOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Frame
	}
	return NoFrame
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
