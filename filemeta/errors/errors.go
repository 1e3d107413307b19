package errors

import (
	stderrors "errors"
	"fmt"
)

// Error types for metadata extraction
var (
	// ErrFormat is returned when a signature does not match or a header is malformed
	ErrFormat = &MetaError{Code: "FORMAT_ERROR", Message: "format not recognized"}

	// ErrTruncated is returned when a declared length runs past the end of the source
	ErrTruncated = &MetaError{Code: "TRUNCATED_CHUNK", Message: "truncated chunk"}

	// ErrIO is returned when the underlying source fails to read
	ErrIO = &MetaError{Code: "IO_ERROR", Message: "read failed"}

	// ErrUnsupported is returned when no registered extractor accepts the input
	ErrUnsupported = &MetaError{Code: "UNSUPPORTED_FORMAT", Message: "unsupported format"}

	// ErrNotFound is returned when a storage entry does not exist
	ErrNotFound = &MetaError{Code: "NOT_FOUND", Message: "not found"}
)

// MetaError represents a structured error in extraction operations
type MetaError struct {
	Code    string                 // Error code for programmatic handling
	Message string                 // Human-readable error message
	Cause   error                  // Underlying error, if any
	Details map[string]interface{} // Additional context
}

// Error implements the error interface
func (e *MetaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	if len(e.Details) > 0 {
		return fmt.Sprintf("[%s] %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MetaError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code, so derived errors match their sentinel.
func (e *MetaError) Is(target error) bool {
	t, ok := target.(*MetaError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause adds a cause to the error
func (e *MetaError) WithCause(cause error) *MetaError {
	return &MetaError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
		Details: e.Details,
	}
}

// WithDetail adds a detail key-value pair to the error
func (e *MetaError) WithDetail(key string, value interface{}) *MetaError {
	details := make(map[string]interface{})
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &MetaError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// WithMessage overrides the error message
func (e *MetaError) WithMessage(message string) *MetaError {
	return &MetaError{
		Code:    e.Code,
		Message: message,
		Cause:   e.Cause,
		Details: e.Details,
	}
}

// NewFormatError creates a format error for the named format
func NewFormatError(format, reason string) error {
	err := ErrFormat.WithMessage(reason)
	if format != "" {
		err = err.WithDetail("format", format)
	}
	return err
}

// NewTruncatedError creates a truncation error for a read of want bytes at offset
// when only have bytes remain.
func NewTruncatedError(offset, want, have int64) error {
	return ErrTruncated.
		WithDetail("offset", offset).
		WithDetail("want", want).
		WithDetail("have", have)
}

// NewIOError creates a read failure error
func NewIOError(offset int64, cause error) error {
	return ErrIO.
		WithDetail("offset", offset).
		WithCause(cause)
}

// NewUnsupportedError creates an unsupported format error
func NewUnsupportedError(name string) error {
	return ErrUnsupported.WithDetail("name", name)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(name string) error {
	return ErrNotFound.WithDetail("name", name)
}

// IsMetaError checks if an error is a MetaError
func IsMetaError(err error) bool {
	var metaErr *MetaError
	return stderrors.As(err, &metaErr)
}

// GetErrorCode extracts the error code from a MetaError
func GetErrorCode(err error) string {
	var metaErr *MetaError
	if stderrors.As(err, &metaErr) {
		return metaErr.Code
	}
	return ""
}

// IsFormatError reports whether err is a format error
func IsFormatError(err error) bool {
	return stderrors.Is(err, ErrFormat)
}

// IsTruncated reports whether err is a truncation error
func IsTruncated(err error) bool {
	return stderrors.Is(err, ErrTruncated)
}
