package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeTransport  ErrorType = "TRANSPORT"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// Error is the typed failure shared by the store, the batch runner and the
// API layer. Status and Body carry the remote response when there was one.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Status  int       `json:"status,omitempty"`
	Body    string    `json:"body,omitempty"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d: %s)", e.Message, e.Status, e.Body)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Type so that errors.Is(err, &Error{Type: ErrorTypeConflict})
// works through any amount of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func Conflict(message string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func TransportError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeTransport,
		Message: message,
		Code:    http.StatusBadGateway,
		cause:   cause,
	}
}

func Internal(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
		cause:   cause,
	}
}

// FromResponse classifies a non-2xx response of the contents API.
// 404 is NotFound, 409 is a stale revision marker, 422 on a write means a
// file already exists where no marker was supplied (or the marker is
// missing); everything else is a transport failure.
func FromResponse(op string, status int, body string) *Error {
	var e *Error
	switch status {
	case http.StatusNotFound:
		e = NotFound(op + ": not found")
	case http.StatusConflict, http.StatusUnprocessableEntity:
		e = Conflict(op + ": revision conflict")
	default:
		e = TransportError(op+": unexpected response", nil)
	}
	e.Status = status
	e.Body = body
	return e
}

func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

func IsNotFound(err error) bool   { return TypeOf(err) == ErrorTypeNotFound }
func IsConflict(err error) bool   { return TypeOf(err) == ErrorTypeConflict }
func IsTransport(err error) bool  { return TypeOf(err) == ErrorTypeTransport }
func IsValidation(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// HTTPStatus maps any error to the status the API layer should answer with.
func HTTPStatus(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// As is re-exported so callers importing this package under the name
// "errors" keep access to the standard helper.
func As(err error, target any) bool { return stderrors.As(err, target) }
