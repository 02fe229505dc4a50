package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies domain validation failures so callers can map them to
// user-facing behavior without string matching.
type Code string

const (
	CodeInvalidInput   Code = "invalid_input"
	CodeInvalidConsent Code = "invalid_consent"
	CodeMissingConsent Code = "missing_consent"
	CodeNotPermitted   Code = "not_permitted"
	CodeTooLarge       Code = "too_large"
)

// Error carries a machine-readable code alongside a human-readable message.
// The message is safe to log but is never shown verbatim to visitors.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
