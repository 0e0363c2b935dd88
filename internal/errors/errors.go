// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrStructural       = errors.New("structural error")
	ErrInputValidation  = errors.New("input validation failed")
	ErrEmptyRuleResults = fmt.Errorf("rule results cannot be empty: %w", ErrInputValidation)
	ErrFetchFailed      = errors.New("option chain fetch failed")
	ErrEmptyChain       = errors.New("no option chain data available")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
)

// StructuralKind classifies a structural violation of the raw chain document.
type StructuralKind string

const (
	KindMissingKey  StructuralKind = "missing_key"
	KindInvalidType StructuralKind = "invalid_type"
	KindEmptyData   StructuralKind = "empty_data"
)

// StructuralError reports a raw document that does not match the option-chain schema.
// It is the only error class that aborts the pipeline before evaluation.
type StructuralError struct {
	Kind     StructuralKind
	Key      string
	Path     string
	Expected string
	Actual   string
}

func (e *StructuralError) Error() string {
	var msg string
	switch e.Kind {
	case KindMissingKey:
		msg = fmt.Sprintf("missing required key: '%s'", e.Key)
	case KindInvalidType:
		msg = fmt.Sprintf("invalid type for key '%s': expected %s, got %s", e.Key, e.Expected, e.Actual)
	case KindEmptyData:
		msg = fmt.Sprintf("empty or missing data for key: '%s'", e.Key)
	default:
		msg = fmt.Sprintf("structural error at key '%s'", e.Key)
	}
	if e.Path != "" {
		msg += " at path: " + e.Path
	}
	return msg
}

// Is lets errors.Is(err, ErrStructural) match any StructuralError.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}

// NewMissingKeyError creates a StructuralError for an absent key.
func NewMissingKeyError(key, path string) *StructuralError {
	return &StructuralError{Kind: KindMissingKey, Key: key, Path: path}
}

// NewInvalidTypeError creates a StructuralError for a value of the wrong shape.
func NewInvalidTypeError(key, expected, actual, path string) *StructuralError {
	return &StructuralError{
		Kind:     KindInvalidType,
		Key:      key,
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}

// NewEmptyDataError creates a StructuralError for an empty required collection.
func NewEmptyDataError(key, path string) *StructuralError {
	return &StructuralError{Kind: KindEmptyData, Key: key, Path: path}
}

// FetchError represents a failure retrieving the raw option chain.
type FetchError struct {
	Stage      string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch error [%s]", e.Stage)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFetchFailed) match any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// NewFetchError creates a new FetchError.
func NewFetchError(stage string, statusCode int, message string, retryable bool, err error) *FetchError {
	return &FetchError{
		Stage:      stage,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
		Err:        err,
	}
}

// IsRetryable reports whether err is a FetchError worth retrying.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// ValidationError represents an invalid value supplied by a caller or config file.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a journal or storage error.
type DataError struct {
	DataType string
	ID       string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.ID, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.ID, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, id, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		ID:       id,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
