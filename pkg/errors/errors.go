package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrCanceled     ErrorCode = "CANCELED"

	// Privilege errors
	ErrPermission ErrorCode = "PERMISSION"
	ErrIdentity   ErrorCode = "IDENTITY"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Package errors
	ErrPackageManager  ErrorCode = "PACKAGE_MANAGER"
	ErrHelperBootstrap ErrorCode = "HELPER_BOOTSTRAP"
	ErrCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCommandExecute  ErrorCode = "COMMAND_EXECUTE"

	// FileSystem errors
	ErrFileAccess    ErrorCode = "FILE_ACCESS"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"
	ErrSymlinkExists ErrorCode = "SYMLINK_EXISTS"
	ErrDirCreate     ErrorCode = "DIR_CREATE"
)

// SetupError represents a structured error with code and details.
// ExitStatus carries the status of a failed subprocess, zero when the error
// did not come from one.
type SetupError struct {
	Code       ErrorCode
	Message    string
	Details    map[string]interface{}
	Wrapped    error
	ExitStatus int
}

// Error implements the error interface
func (e *SetupError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SetupError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *SetupError) Is(target error) bool {
	var targetErr *SetupError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new SetupError with the given code and message
func New(code ErrorCode, message string) *SetupError {
	return &SetupError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new SetupError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *SetupError {
	return &SetupError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a SetupError.
// The exit status of a wrapped SetupError is carried over.
func Wrap(err error, code ErrorCode, message string) *SetupError {
	if err == nil {
		return nil
	}
	return &SetupError{
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		Wrapped:    err,
		ExitStatus: exitStatusOf(err),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *SetupError {
	if err == nil {
		return nil
	}
	return &SetupError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Details:    make(map[string]interface{}),
		Wrapped:    err,
		ExitStatus: exitStatusOf(err),
	}
}

// WithDetail adds a detail to the error
func (e *SetupError) WithDetail(key string, value interface{}) *SetupError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *SetupError) WithDetails(details map[string]interface{}) *SetupError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithExitStatus records the exit status of the subprocess that caused the error
func (e *SetupError) WithExitStatus(status int) *SetupError {
	e.ExitStatus = status
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a SetupError
func GetErrorCode(err error) ErrorCode {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a SetupError
func GetErrorDetails(err error) map[string]interface{} {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return setupErr.Details
	}
	return nil
}

// ExitCode maps an error to the process exit status: 0 for nil, the
// status of the first failing subprocess when one is recorded anywhere in
// the chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if status := exitStatusOf(err); status > 0 {
		return status
	}
	return 1
}

func exitStatusOf(err error) int {
	for err != nil {
		if setupErr, ok := err.(*SetupError); ok && setupErr.ExitStatus > 0 {
			return setupErr.ExitStatus
		}
		err = errors.Unwrap(err)
	}
	return 0
}
