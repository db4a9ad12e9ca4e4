package errors

import (
	"fmt"
	"time"
)

// Error types for the seqmap pipeline
type ErrorType string

const (
	// Pipeline errors
	ErrorTypeApply  ErrorType = "apply"
	ErrorTypeRecipe ErrorType = "recipe"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ApplyError represents an error while running a recipe against a text
type ApplyError struct {
	Type        ErrorType
	RecipePath  string
	TextPath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewApplyError creates a new apply error with context
func NewApplyError(op string, err error) *ApplyError {
	return &ApplyError{
		Type:       ErrorTypeApply,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithRecipe adds the recipe path to the error
func (e *ApplyError) WithRecipe(path string) *ApplyError {
	e.RecipePath = path
	return e
}

// WithText adds the input text path to the error
func (e *ApplyError) WithText(path string) *ApplyError {
	e.TextPath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *ApplyError) WithRecoverable(recoverable bool) *ApplyError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *ApplyError) Error() string {
	if e.TextPath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.TextPath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ApplyError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *ApplyError) IsRecoverable() bool {
	return e.Recoverable
}

// RecipeError represents an invalid recipe: a bad operation table,
// out-of-range copy bounds, or copy ranges out of order.
type RecipeError struct {
	Type       ErrorType
	Path       string
	Op         int
	Field      string
	Underlying error
	Timestamp  time.Time
}

// NewRecipeError creates a new recipe error. Op is the zero-based index of
// the offending operation, or -1 when the error is not tied to one.
func NewRecipeError(path string, op int, field string, err error) *RecipeError {
	return &RecipeError{
		Type:       ErrorTypeRecipe,
		Path:       path,
		Op:         op,
		Field:      field,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *RecipeError) Error() string {
	if e.Op >= 0 {
		return fmt.Sprintf("recipe error at %s op %d (field %q): %v",
			e.Path, e.Op, e.Field, e.Underlying)
	}
	return fmt.Sprintf("recipe error at %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *RecipeError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if isPermissionError(err) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewFileTooLargeError creates a file error for inputs over the size limit
func NewFileTooLargeError(path string, size, limit int64) *FileError {
	return &FileError{
		Type:       ErrorTypeFileTooLarge,
		Path:       path,
		Operation:  "load",
		Underlying: fmt.Errorf("size %d exceeds limit %d", size, limit),
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	errStr := err.Error()
	return errStr == "permission denied" || errStr == "access denied"
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
