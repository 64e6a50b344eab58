package common

import (
	"errors"
	"fmt"
)

// Error codes carried by AppError.
const (
	CodeConfig       = "CONFIG_ERROR"
	CodeExtraction   = "EXTRACTION_FAILURE"
	CodeThumbnail    = "THUMBNAIL_FAILURE"
	CodeRepository   = "REPOSITORY_ERROR"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnknown      = "UNKNOWN"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported file type")
	ErrExtraction   = errors.New("extraction failed")
	ErrDatabase     = errors.New("database error")
	ErrUpstream     = errors.New("upstream error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewExtractionFailure marks a failed call into an OCR/PDF/DICOM capability.
// The cause chain always includes ErrExtraction.
func NewExtractionFailure(stage, path string, cause error) *AppError {
	if cause == nil {
		cause = ErrExtraction
	} else if !errors.Is(cause, ErrExtraction) {
		cause = fmt.Errorf("%w: %w", ErrExtraction, cause)
	}
	return NewAppError(CodeExtraction, fmt.Sprintf("%s extraction failed for %s", stage, path), cause)
}

// IsExtractionFailure reports whether err is (or wraps) an extraction failure.
func IsExtractionFailure(err error) bool {
	return errors.Is(err, ErrExtraction)
}

// CodeOf returns the AppError code found in err's chain, or CodeUnknown.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
