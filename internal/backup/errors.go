package backup

import (
	"errors"
	"fmt"
)

// ErrNothingToBackup is returned when the source database file does not
// exist. Callers treat it as a benign skip, not a failure.
var ErrNothingToBackup = errors.New("nothing to back up: source file does not exist")

// BackupError represents errors that occur during backup operations
type BackupError struct {
	Type    BackupErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *BackupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// BackupErrorType represents different types of backup errors
type BackupErrorType string

const (
	BackupErrorTypeStorage    BackupErrorType = "STORAGE_ERROR"
	BackupErrorTypeValidation BackupErrorType = "VALIDATION_ERROR"
	BackupErrorTypeIntegrity  BackupErrorType = "INTEGRITY_ERROR"
	BackupErrorTypePermission BackupErrorType = "PERMISSION_ERROR"
	BackupErrorTypeConflict   BackupErrorType = "CONFLICT_ERROR"
)

// NewBackupError creates a new BackupError
func NewBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewStorageError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeStorage, message, cause)
}

func NewValidationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeValidation, message, cause)
}

func NewIntegrityError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeIntegrity, message, cause)
}

func NewPermissionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypePermission, message, cause)
}

func NewConflictError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConflict, message, cause)
}

// ValidationError represents validation-specific errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{Field: field, Message: message, Value: value})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// IsIntegrityFailure reports whether err is a snapshot that failed its post-copy check
func IsIntegrityFailure(err error) bool {
	var backupErr *BackupError
	return errors.As(err, &backupErr) && backupErr.Type == BackupErrorTypeIntegrity
}
