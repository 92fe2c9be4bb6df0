package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the error shape surfaced to API callers. Code is a stable
// machine-readable string; Message is safe to show to untrusted callers and
// never carries internal detail.
type APIError struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
	cause   error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// Error codes.
const (
	InputInvalid     = "input_invalid"
	Unauthenticated  = "unauthenticated"
	Unauthorized     = "unauthorized"
	Conflict         = "conflict"
	ValidationFailed = "validation_failed"
	NotFound         = "not_found"
	Internal         = "internal"
)

// HTTPStatus maps an error to its HTTP status. Non-APIError values map to 500.
func HTTPStatus(err error) int {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Code {
	case InputInvalid, ValidationFailed:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AsAPIError converts any error into an *APIError, wrapping unknown errors
// as Internal with a generic message so no raw detail leaks to callers.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Code: Internal, Message: "internal server error", cause: err}
}

func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Common error constructors

func NewInputInvalid(message string) *APIError {
	return &APIError{Code: InputInvalid, Message: message}
}

func NewUnauthenticated(message string) *APIError {
	return &APIError{Code: Unauthenticated, Message: message}
}

func NewUnauthorized(message string) *APIError {
	return &APIError{Code: Unauthorized, Message: message}
}

func NewConflict(message string) *APIError {
	return &APIError{Code: Conflict, Message: message}
}

func NewValidationFailed(message string) *APIError {
	return &APIError{Code: ValidationFailed, Message: message}
}

func NewNotFound(message string) *APIError {
	return &APIError{Code: NotFound, Message: message}
}

func NewInternal(message string, cause error) *APIError {
	return &APIError{Code: Internal, Message: message, cause: cause}
}
