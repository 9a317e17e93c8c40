// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/logging"
	"github.com/lanbox/backend/internal/storage"
)

// APIError represents a structured API error response. Every error body
// carries success:false so clients can branch on a single field.
type APIError struct {
	Status  int    `json:"-"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status the error is sent with.
func (e *APIError) StatusCode() int {
	return e.Status
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewNoFileError creates a 400 error for an upload without a file part
func NewNoFileError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "NO_FILE",
		Message: "No file selected",
	}
}

// NewInvalidNameError creates a 400 error for a filename that is not a single path segment
func NewInvalidNameError(name string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_NAME",
		Message: fmt.Sprintf("invalid file name: %q", name),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewTooLargeError creates a 413 error for uploads over the size limit
func NewTooLargeError(limit int64) *APIError {
	return &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "TOO_LARGE",
		Message: fmt.Sprintf("File exceeds the %d byte limit", limit),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// storageError maps storage sentinels to API errors. fallback is the
// user-facing message for anything unexpected.
func storageError(err error, name, fallback string) *APIError {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return NewNotFoundError("file", name)
	case errors.Is(err, storage.ErrInvalidName):
		return NewInvalidNameError(name)
	default:
		return NewInternalError(fallback, err)
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logging.For("api").Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"code", apiErr.Code,
			"err", err)
	}

	apiErr.Success = false
	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}
