// Package domainerrors provides coded errors shared across services.
//
// Stores return infrastructure sentinels (pkg/platform/sentinel); services
// translate those into coded errors from this package so transport layers
// can map codes onto HTTP statuses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	CodeInvalidInput           Code = "invalid_input"
	CodeNotFound               Code = "not_found"
	CodeForbidden              Code = "forbidden"
	CodeUnauthorized           Code = "unauthorized"
	CodeConflict               Code = "conflict"
	CodeInvalidRoleTransition  Code = "invalid_role_transition"
	CodePrivacyPolicyViolation Code = "privacy_policy_violation"
	CodeMigrationFailed        Code = "migration_failed"
	CodeJournalAppendFailed    Code = "journal_append_failed"
	CodeInternal               Code = "internal"
)

// Error carries a machine-readable code and a plain-English message.
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

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasCode is an alias for Is kept for call-site readability.
func HasCode(err error, code Code) bool { return Is(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
