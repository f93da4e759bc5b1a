// Package toolerr defines the typed protocol error surfaced to tool-call
// clients. Domain-level failures (unknown PO, consent violation, ...) are
// returned inline by providers; this type is reserved for protocol
// violations, resource misses and injected faults.
package toolerr

import (
	"errors"
	"fmt"
)

// Stable error codes.
const (
	CodeUnknownTool      = "unknown_tool"
	CodeInvalidArgs      = "invalid_args"
	CodePermissionDenied = "permission_denied"
	CodeUnsupportedTool  = "unsupported_tool"
	CodeUnknownChannel   = "unknown_channel"
	CodeUnknownMessage   = "unknown_message"
	CodeInvalidAction    = "invalid_action"
	CodeFaultInjected    = "fault.injected"
)

// Error is a typed tool-protocol error with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// New creates a typed protocol error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a typed protocol error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the stable code from err, or "internal" for untyped errors.
func CodeOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return "internal"
}

// MessageOf extracts the message from err.
func MessageOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

// Is reports whether err is a typed error with the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}
