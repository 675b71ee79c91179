// Package errors defines the API error types used throughout PicStash.
package errors

import "fmt"

// APIError represents a PicStash API error with a machine-readable code,
// human-readable message, and HTTP status code. The message is what ends up
// in the JSON error envelope's "error" field.
type APIError struct {
	// Code is the error code (e.g., "InvalidNamespace", "FileTooLarge").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return (e.g., 400, 404).
	HTTPStatus int
	// Details holds optional per-request context included in the JSON
	// error envelope's "details" field.
	Details string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("APIError %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// WithDetails returns a copy of the APIError with the details field set.
// The package-level error values are shared; this never mutates them.
func (e *APIError) WithDetails(details string) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithMessage returns a copy of the APIError with the message replaced.
// Used for errors whose message carries per-request values (e.g., the
// allowed namespace list).
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Pre-defined API errors for common conditions.
var (
	// ErrAPIKeyRequired is returned when the X-API-Key header is missing.
	ErrAPIKeyRequired = &APIError{
		Code:       "MissingAPIKey",
		Message:    "API key required",
		HTTPStatus: 401,
	}

	// ErrAPIKeyInvalid is returned when the supplied API key does not match.
	ErrAPIKeyInvalid = &APIError{
		Code:       "InvalidAPIKey",
		Message:    "Invalid API key",
		HTTPStatus: 401,
	}

	// ErrRateLimited is returned when a caller exceeds the admission window.
	ErrRateLimited = &APIError{
		Code:       "RateLimited",
		Message:    "Too many requests",
		HTTPStatus: 429,
	}

	// ErrInvalidNamespace is returned when the target namespace is not in
	// the configured set. Handlers fill in the allowed list via WithMessage.
	ErrInvalidNamespace = &APIError{
		Code:       "InvalidNamespace",
		Message:    "Invalid namespace",
		HTTPStatus: 400,
	}

	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = &APIError{
		Code:       "NoFile",
		Message:    "No image file provided",
		HTTPStatus: 400,
	}

	// ErrInvalidFileType is returned when a declared MIME type is not in
	// the allow-list.
	ErrInvalidFileType = &APIError{
		Code:       "InvalidFileType",
		Message:    "Invalid file type",
		HTTPStatus: 400,
	}

	// ErrFileTooLarge is returned when a file exceeds the size cap.
	// Distinct from ErrInvalidFileType and ErrTooManyFiles so callers can
	// tell "too big" from "wrong kind" from "too many".
	ErrFileTooLarge = &APIError{
		Code:       "FileTooLarge",
		Message:    "File too large",
		HTTPStatus: 400,
	}

	// ErrTooManyFiles is returned when a request carries more files than
	// the configured maximum.
	ErrTooManyFiles = &APIError{
		Code:       "TooManyFiles",
		Message:    "Too many files",
		HTTPStatus: 400,
	}

	// ErrUnprocessableImage is returned when image decoding or re-encoding
	// fails.
	ErrUnprocessableImage = &APIError{
		Code:       "UnprocessableImage",
		Message:    "Failed to process image",
		HTTPStatus: 500,
	}

	// ErrInvalidURL is returned when delete-by-url receives a URL that does
	// not match the /uploads/{namespace}/{filename} pattern.
	ErrInvalidURL = &APIError{
		Code:       "InvalidURLFormat",
		Message:    "Invalid URL format",
		HTTPStatus: 400,
	}

	// ErrMissingField is returned when a JSON body lacks a required field.
	ErrMissingField = &APIError{
		Code:       "MissingField",
		Message:    "Missing required field",
		HTTPStatus: 400,
	}

	// ErrFileNotFound is returned when a delete or read target is absent.
	ErrFileNotFound = &APIError{
		Code:       "FileNotFound",
		Message:    "File not found",
		HTTPStatus: 404,
	}

	// ErrNotFound is returned for unmatched routes.
	ErrNotFound = &APIError{
		Code:       "NotFound",
		Message:    "Not found",
		HTTPStatus: 404,
	}

	// ErrInternal is returned for unexpected internal failures.
	ErrInternal = &APIError{
		Code:       "InternalError",
		Message:    "Internal server error",
		HTTPStatus: 500,
	}
)
