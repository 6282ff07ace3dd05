package service

import (
	"errors"
	"fmt"
)

// ErrorCode categorises a service failure.  Handlers map codes to HTTP
// statuses; the code string is also returned to clients as "error".
type ErrorCode string

const (
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeTokenInvalid       ErrorCode = "token_invalid"
	CodeTokenExpired       ErrorCode = "token_expired"
	CodePrincipalNotFound  ErrorCode = "principal_not_found"
	CodePrincipalMismatch  ErrorCode = "principal_mismatch"
	CodeForbidden          ErrorCode = "forbidden"
	CodeDuplicateAccount   ErrorCode = "duplicate_account"
	CodeInvalidRole        ErrorCode = "invalid_role"
	CodeValidation         ErrorCode = "validation"
	// CodeMergeIncomplete means the member row was written but linking it
	// failed; the whole unit was rolled back and the call may be retried.
	CodeMergeIncomplete ErrorCode = "merge_incomplete"
	CodeInternal        ErrorCode = "internal"
)

// Error is a coded service error.  Message is safe to show to clients;
// Cause is for logs only.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so the package-level
// sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid email or password"}
	ErrTokenInvalid       = &Error{Code: CodeTokenInvalid, Message: "invalid token"}
	ErrTokenExpired       = &Error{Code: CodeTokenExpired, Message: "token expired"}
	ErrPrincipalNotFound  = &Error{Code: CodePrincipalNotFound, Message: "account not found"}
	ErrPrincipalMismatch  = &Error{Code: CodePrincipalMismatch, Message: "token does not match account"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrDuplicateAccount   = &Error{Code: CodeDuplicateAccount, Message: "account already exists"}
	ErrInvalidRole        = &Error{Code: CodeInvalidRole, Message: "role must be farmer or customer"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrMergeIncomplete    = &Error{Code: CodeMergeIncomplete, Message: "account link incomplete, retry"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

func internal(err error, message string) *Error {
	return wrapError(err, CodeInternal, message)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
