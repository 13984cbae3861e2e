// Package errors defines the stable error code system for remedy.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract: dashboard and pipeline hooks match on
// these strings.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Incident identity and capture codes
	EInvalidIdentifier Code = "E_INVALID_IDENTIFIER" // incident id fails the charset validator
	EAlreadyExists     Code = "E_ALREADY_EXISTS"     // capture collision without --force
	ENotFound          Code = "E_NOT_FOUND"          // incident or plan missing on disk

	// Persistence codes
	EPersistFailed Code = "E_PERSIST_FAILED" // staged write could not be committed
	EStoreCorrupt  Code = "E_STORE_CORRUPT"  // incident.json unreadable or invalid

	// Configuration codes
	EInvalidConfig Code = "E_INVALID_CONFIG" // remedy.yaml or environment invalid

	// Execution loop codes
	ENoVerificationCommands Code = "E_NO_VERIFICATION_COMMANDS" // plan has an empty command list
	ECommandBlocked         Code = "E_COMMAND_BLOCKED"          // command matched the destructive denylist
	EGitOperationFailed     Code = "E_GIT_OPERATION_FAILED"     // stage/commit/push failure in the commit gate

	// Lifecycle codes
	EInvalidStatus Code = "E_INVALID_STATUS" // status value outside the formal vocabulary
	ENotApproved   Code = "E_NOT_APPROVED"   // handoff attempted before operator approval
	EPlanInvalid   Code = "E_PLAN_INVALID"   // plan.json unreadable or missing required fields
	EArchiveFailed Code = "E_ARCHIVE_FAILED" // incident tree could not be relocated
)

// RemedyError is the standard error type for remedy errors.
type RemedyError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *RemedyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RemedyError) Unwrap() error {
	return e.Cause
}

// New creates a new RemedyError with the given code and message.
func New(code Code, msg string) error {
	return &RemedyError{Code: code, Msg: msg}
}

// NewWithDetails creates a new RemedyError with code, message, and details.
// Details map is defensively copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &RemedyError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new RemedyError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &RemedyError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new RemedyError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &RemedyError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a RemedyError.
func GetCode(err error) Code {
	var re *RemedyError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// AsRemedyError extracts a RemedyError from an error chain.
func AsRemedyError(err error) (*RemedyError, bool) {
	var re *RemedyError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ExitCode maps an error to a process exit code.
// nil -> 0, usage errors -> 2, everything else -> 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}
