// Package apperror defines the tagged-variant error type shared by the room
// engine and its transport. The C++ original used an exception hierarchy
// (see errors.hpp); here every failure is a plain value with a Kind.
package apperror

import (
	"fmt"
	"net/http"
)

// Kind classifies a failure into one of the seven buckets the transport
// maps onto HTTP status codes.
type Kind int

const (
	BadRequest Kind = iota
	Unauthorized
	Forbidden
	NotFound
	TooManyRequests
	Internal
	ServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "BAD_REQUEST"
	case Unauthorized:
		return "UNAUTHORIZED"
	case Forbidden:
		return "FORBIDDEN"
	case NotFound:
		return "NOT_FOUND"
	case TooManyRequests:
		return "TOO_MANY_REQUESTS"
	case Internal:
		return "INTERNAL"
	case ServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// StatusCode maps a Kind to the HTTP status the transport responds with.
func (k Kind) StatusCode() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case TooManyRequests:
		return http.StatusTooManyRequests
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged-variant failure value that flows out of the room
// engine. Every operation in internal/v1/room, roomregistry, and
// sessionregistry that can fail returns one of these instead of a raw error,
// so the transport never has to guess at intent from an error string.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode is a convenience passthrough for transport handlers.
func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BadRequestf(format string, args ...any) *Error  { return New(BadRequest, format, args...) }
func Forbiddenf(format string, args ...any) *Error   { return New(Forbidden, format, args...) }
func NotFoundf(format string, args ...any) *Error    { return New(NotFound, format, args...) }
func Unauthorizedf(format string, args ...any) *Error {
	return New(Unauthorized, format, args...)
}
func TooManyRequestsf(format string, args ...any) *Error {
	return New(TooManyRequests, format, args...)
}
func Internalf(format string, args ...any) *Error { return New(Internal, format, args...) }

// As extracts an *Error from an arbitrary error, returning (nil, false) for
// anything that isn't one of ours — the transport falls back to 500 in that
// case, per spec.md §7's "any other fault becomes a 500" rule.
func As(err error) (*Error, bool) {
	ae, ok := err.(*Error)
	return ae, ok
}
