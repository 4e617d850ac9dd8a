// Package apperror classifies failures that are meaningful to API callers.
// Anything that is not an *Error is treated as an internal fault.
package apperror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidBody
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindConflict
	KindRateLimited
	KindUnavailable
)

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidBody      = "INVALID_BODY"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Code    string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindInvalidBody:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithCode overrides the machine-readable code, keeping the kind.
func (e *Error) WithCode(code string) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

func Validation(message string, details any) *Error {
	return &Error{Kind: KindValidation, Message: message, Code: CodeValidation, Details: details}
}

func InvalidBody() *Error {
	return &Error{Kind: KindInvalidBody, Message: "Invalid request body", Code: CodeInvalidBody}
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return &Error{Kind: KindUnauthorized, Message: message, Code: CodeUnauthorized}
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return &Error{Kind: KindForbidden, Message: message, Code: CodeForbidden}
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Kind: KindNotFound, Message: message, Code: CodeNotFound}
}

func MethodNotAllowed() *Error {
	return &Error{Kind: KindMethodNotAllowed, Message: "Method not allowed", Code: CodeMethodNotAllowed}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message, Code: CodeConflict}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "Too many requests", Code: CodeRateLimited}
}

// Unavailable reports a dependency that is not configured or not reachable.
func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Code: CodeUnavailable}
}

// Internal wraps an unexpected failure. The wrapped error is for logs only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Code: CodeInternal, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
