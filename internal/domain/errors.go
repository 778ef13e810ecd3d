package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies domain-specific errors.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeExtraction  ErrorType = "extraction"
	ErrorTypeRecognition ErrorType = "recognition"
	ErrorTypeDimension   ErrorType = "dimension_mismatch"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeProcessing  ErrorType = "processing"
)

// Sentinel errors for errors.Is checks.
var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCancelled         = errors.New("processing cancelled")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Code returns a stable machine-readable code for progress events.
func (e *DomainError) Code() string {
	return string(e.Type)
}

// Recoverable reports whether the caller may retry the whole document.
// Every runtime failure in the pipeline is retryable from the top; only a
// mismatched vector dimension is a caller bug and is not.
func (e *DomainError) Recoverable() bool {
	return e.Type != ErrorTypeDimension
}

// NewError creates a new domain error.
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors.

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func RecognitionError(message string, err error) *DomainError {
	return NewError(ErrorTypeRecognition, message, err)
}

func DimensionError(message string) *DomainError {
	return NewError(ErrorTypeDimension, message, ErrDimensionMismatch)
}

func CancelledError(message string) *DomainError {
	return NewError(ErrorTypeCancelled, message, ErrCancelled)
}

func ProcessingError(message string, err error) *DomainError {
	return NewError(ErrorTypeProcessing, message, err)
}

// AsDomainError unwraps err into a DomainError, wrapping unknown errors as
// processing errors so every failure surfaced to callers carries a code.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return ProcessingError(err.Error(), err)
}
