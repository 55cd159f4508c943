// Package apperr defines the error kinds surfaced by the service layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindInsufficientPoints
	KindInvalidState
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindInsufficientPoints:
		return "insufficient_points"
	case KindInvalidState:
		return "invalid_state"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Fields holds per-field validation messages,
// Details holds extra context the client can show to the end user.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail returns e with key set in its details map.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Field is a shorthand for a validation error on a single field.
func Field(field, message string) *Error {
	return Validation("The given data was invalid.", map[string]string{field: message})
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func InsufficientPoints(message string, required, current int64) *Error {
	return (&Error{Kind: KindInsufficientPoints, Message: message}).
		WithDetail("required_points", required).
		WithDetail("current_points", current)
}

func InvalidState(message, currentStatus string) *Error {
	return (&Error{Kind: KindInvalidState, Message: message}).
		WithDetail("current_status", currentStatus)
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func Unexpected(message string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: message, Err: err}
}

// KindOf reports the kind of err, KindUnexpected for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
