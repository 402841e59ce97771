// Package apperrors defines the error kinds surfaced by the service layers and
// translated to HTTP responses by the central error handler.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	MsgServerError     = "Something went wrong"
	MsgInternalError   = "Internal Server Error"
	MsgBadRequest      = "Unprocessed and Bad Request"
	MsgPageNotFound    = "Page not found"
	MsgBodyTooLarge    = "Input must be less than 20kb"
	MsgTooManyRequests = "Too many requests from this IP, please try again after 24 hours"
	MsgValidation      = "Validation failed"
)

// StatusCoder is implemented by every error kind in this package.
type StatusCoder interface {
	StatusCode() int
}

// InternalError wraps failures of the persistence layer. Its message is never
// shown to API callers.
type InternalError struct {
	Message string
	Err     error
}

func Internal(message string, err error) *InternalError {
	if message == "" {
		message = MsgInternalError
	}
	return &InternalError{Message: message, Err: err}
}

func (e *InternalError) Error() string   { return e.Message }
func (e *InternalError) Unwrap() error   { return e.Err }
func (e *InternalError) StatusCode() int { return http.StatusInternalServerError }

// BadRequestError is returned to the caller with its original message.
type BadRequestError struct {
	Message string
	Status  int
	Err     error
}

// BadRequest builds a BadRequestError. A zero status defaults to 422.
func BadRequest(message string, status int, err error) *BadRequestError {
	if status == 0 {
		status = http.StatusUnprocessableEntity
	}
	if message == "" {
		message = MsgBadRequest
	}
	return &BadRequestError{Message: message, Status: status, Err: err}
}

func (e *BadRequestError) Error() string   { return e.Message }
func (e *BadRequestError) Unwrap() error   { return e.Err }
func (e *BadRequestError) StatusCode() int { return e.Status }

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError collects per-field input errors.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func Validation(fields ...FieldError) *ValidationError {
	return &ValidationError{Message: MsgValidation, Fields: fields}
}

// Field is shorthand for a ValidationError carrying one field.
func Field(field, message string) *ValidationError {
	return Validation(FieldError{Field: field, Message: message})
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s %s", e.Message, e.Fields[0].Field, e.Fields[0].Message)
}
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// FieldMap flattens the collected errors into field -> message.
func (e *ValidationError) FieldMap() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, exists := out[f.Field]; !exists {
			out[f.Field] = f.Message
		}
	}
	return out
}

type NotFoundError struct {
	Resource string
}

func NotFound(resource string) *NotFoundError { return &NotFoundError{Resource: resource} }

func (e *NotFoundError) Error() string   { return e.Resource + " not found" }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

type UnauthorizedError struct {
	Message string
}

func Unauthorized(message string) *UnauthorizedError { return &UnauthorizedError{Message: message} }

func (e *UnauthorizedError) Error() string   { return e.Message }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

type ForbiddenError struct {
	Message string
}

func Forbidden(message string) *ForbiddenError { return &ForbiddenError{Message: message} }

func (e *ForbiddenError) Error() string   { return e.Message }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

// TooManyRequestsError is returned by the brute-force limiters.
type TooManyRequestsError struct {
	Message    string
	RetryAfter time.Duration
}

func TooManyRequests(retryAfter time.Duration) *TooManyRequestsError {
	return &TooManyRequestsError{Message: "Too many requests, please try again later", RetryAfter: retryAfter}
}

func (e *TooManyRequestsError) Error() string   { return e.Message }
func (e *TooManyRequestsError) StatusCode() int { return http.StatusTooManyRequests }

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
