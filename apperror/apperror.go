// Package apperror defines the error taxonomy shared across the platform.
// Handlers never write HTTP responses directly on error; they return an
// *Error (or a wrapped one) and let httpapi's terminal error handler map
// Kind to a status code in one place.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a coarse error classification independent of any transport.
type Kind string

const (
	Validation         Kind = "validation"
	Unauthenticated    Kind = "unauthenticated"
	Forbidden          Kind = "forbidden"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	RateLimited        Kind = "rate_limited"
	UpstreamBadRequest Kind = "upstream_bad_request"
	UpstreamUnavail    Kind = "upstream_unavailable"
	ExtractionMalform  Kind = "extraction_malformed"
	Internal           Kind = "internal"
)

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case UpstreamBadRequest:
		return http.StatusBadGateway
	case UpstreamUnavail:
		return http.StatusServiceUnavailable
	case ExtractionMalform:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete error type carrying a Kind plus an actionable
// message. Fields beyond Kind/Message are for validation-style responses
// that surface a field list.
type Error struct {
	Kind    Kind
	Message string
	Errors  []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind, retaining cause for logging
// and errors.Is/As chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithErrors attaches field-level validation messages.
func (e *Error) WithErrors(errs ...string) *Error {
	e.Errors = errs
	return e
}

// NotFoundf is a convenience constructor mirroring the taxonomy's most
// common case: a row absent under tenant scope.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// As extracts an *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err, or Internal if err does not carry
// an *Error in its chain (an uncaught error, per the taxonomy's catch-all).
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return Internal
}
