// Package errors provides structured error types for the addonlift application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the resolution engine and CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly, actionable error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - MANIFEST_*: package manifest problems
//   - REPO_*: version-control discovery problems
//   - PACKAGE_MANAGER: package-manager detection problems
//   - NOTHING_TO_DO: the package is already in the target format
//   - INVALID_*: input validation failures
//   - NETWORK_*: registry/network errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeManifestRead, "no package.json in %s", dir)
//	if errors.Is(err, errors.ErrCodeManifestRead) {
//	    // Handle missing manifest
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", pkg)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Resolution pipeline errors. Each maps to one fact-gathering step;
	// exactly one of these (or ErrCodeNothingToDo) terminates a failed run.
	ErrCodeManifestRead   Code = "MANIFEST_READ"
	ErrCodeRepoDiscovery  Code = "REPO_DISCOVERY"
	ErrCodePackageManager Code = "PACKAGE_MANAGER"

	// NothingToDo signals success-with-no-action: the package already
	// declares the v2 addon format. It is not a failure.
	ErrCodeNothingToDo Code = "NOTHING_TO_DO"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Registry/network errors
	ErrCodeNetwork         Code = "NETWORK_ERROR"
	ErrCodeTimeout         Code = "TIMEOUT"
	ErrCodeRateLimited     Code = "RATE_LIMITED"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"

	// Migration execution errors
	ErrCodeMigration Code = "MIGRATION_FAILED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
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

// IsNothingToDo reports whether err signals that the package is already
// migrated. Callers should treat this as a successful no-op, not a failure.
func IsNothingToDo(err error) bool {
	return Is(err, ErrCodeNothingToDo)
}
