package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. The kind decides the HTTP status; gRPC surfaces every kind
// as an application-level {success:false, error} tuple instead of a
// transport failure.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Common sentinel errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrMangaNotFound      = errors.New("manga not found")
	ErrChapterNotFound    = errors.New("chapter not found")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidInput       = errors.New("invalid input")
)

// AppError carries the error kind across protocol boundaries.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to its REST status code.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrCodeValidation, message, ErrInvalidInput)
}

func NewUnauthorizedError(message string) *AppError {
	return newAppError(ErrCodeUnauthorized, message, ErrInvalidToken)
}

func NewForbiddenError(message string) *AppError {
	return newAppError(ErrCodeForbidden, message, nil)
}

func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return newAppError(ErrCodeNotFound, message, err)
}

func NewConflictError(message string, err error) *AppError {
	return newAppError(ErrCodeConflict, message, err)
}

func NewInternalError(message string, err error) *AppError {
	return newAppError(ErrCodeInternal, message, err)
}

// AsAppError normalizes any error to an AppError; unknown errors become
// internal so store failures never leak driver details to clients.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrMangaNotFound),
		errors.Is(err, ErrChapterNotFound), errors.Is(err, ErrNotFound):
		return newAppError(ErrCodeNotFound, err.Error(), err)
	case errors.Is(err, ErrUsernameExists), errors.Is(err, ErrEmailExists):
		return newAppError(ErrCodeConflict, err.Error(), err)
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return newAppError(ErrCodeUnauthorized, err.Error(), err)
	case errors.Is(err, ErrInvalidInput):
		return newAppError(ErrCodeValidation, err.Error(), err)
	default:
		return newAppError(ErrCodeInternal, "internal error", err)
	}
}
