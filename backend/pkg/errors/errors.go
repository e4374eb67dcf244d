package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeRecord represents genealogical records that cannot be imported
	ErrorTypeRecord ErrorType = "record"
	// ErrorTypeStorage represents graph store failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeSource represents failures reading the input file
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Record Errors

// ErrMalformedRecord is returned when a referenced entity cannot be turned
// into a usable key, e.g. an empty cross-reference.
type ErrMalformedRecord struct {
	*BaseError
	RecordType string
	Xref       string
}

func NewMalformedRecord(recordType, xref, reason string) *ErrMalformedRecord {
	return &ErrMalformedRecord{
		BaseError:  NewBaseError(ErrorTypeRecord, fmt.Sprintf("malformed %s record %q: %s", recordType, xref, reason), nil),
		RecordType: recordType,
		Xref:       xref,
	}
}

// Unwrap exposes the embedded BaseError so errors.As finds it.
func (e *ErrMalformedRecord) Unwrap() error {
	return e.BaseError
}

// Storage Errors

// ErrStorageFailure is returned when the graph store rejects a write or read
type ErrStorageFailure struct {
	*BaseError
	Operation string
}

func NewStorageFailure(operation string, err error) *ErrStorageFailure {
	return &ErrStorageFailure{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("storage operation failed: %s", operation), err),
		Operation: operation,
	}
}

func (e *ErrStorageFailure) Unwrap() error {
	return e.BaseError
}

// Source Errors

// ErrSourceFetchFailed is returned when the input file cannot be opened or downloaded
type ErrSourceFetchFailed struct {
	*BaseError
	URI string
}

func NewSourceFetchFailed(uri string, err error) *ErrSourceFetchFailed {
	return &ErrSourceFetchFailed{
		BaseError: NewBaseError(ErrorTypeSource, fmt.Sprintf("failed to fetch %s", uri), err),
		URI:       uri,
	}
}

func (e *ErrSourceFetchFailed) Unwrap() error {
	return e.BaseError
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

func (e *ErrContextCancelled) Unwrap() error {
	return e.BaseError
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

func (e *ErrConfigValidationFailed) Unwrap() error {
	return e.BaseError
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

func (e *ErrConfigMissingRequired) Unwrap() error {
	return e.BaseError
}

// Helper functions

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var baseErr *BaseError
	for err != nil {
		if !errors.As(err, &baseErr) {
			return false
		}
		if baseErr.Type == errType {
			return true
		}
		err = baseErr.Err
	}
	return false
}
