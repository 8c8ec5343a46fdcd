package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSQL represents SQL execution errors
	ErrorTypeSQL ErrorType = "sql"
	// ErrorTypeSchema represents schema-related errors
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeIntegrity represents a post-condition check that did not hold
	ErrorTypeIntegrity ErrorType = "integrity"
	// ErrorTypeTransaction represents a rolled back unit of work
	ErrorTypeTransaction ErrorType = "transaction"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
	UserMessage string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// IsRecoverable returns whether the error is recoverable
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the message shown to the operator
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	err := NewAppError(errorType, message, cause)
	err.Recoverable = true
	return err
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	classifiers := []func(error) *AppError{
		ec.classifyMySQLError,
		ec.classifyPostgresError,
		ec.classifySQLiteError,
		ec.classifyDriverError,
		ec.classifyContextError,
		ec.classifyNetworkError,
		ec.classifyFileSystemError,
	}
	for _, classify := range classifiers {
		if classified := classify(err); classified != nil {
			return classified
		}
	}

	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

func (ec *ErrorClassifier) classifyMySQLError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return nil
	}

	var classified *AppError
	switch mysqlErr.Number {
	case 1045: // Access denied
		classified = NewAppError(ErrorTypePermission, "Database access denied - check username and password", err)
	case 1049: // Unknown database
		classified = NewAppError(ErrorTypeValidation, "Database does not exist", err)
	case 1146: // Table doesn't exist
		classified = NewAppError(ErrorTypeSchema, "Table does not exist", err)
	case 1054: // Unknown column
		classified = NewAppError(ErrorTypeSchema, "Column does not exist", err)
	case 1060: // Duplicate column name
		classified = NewAppError(ErrorTypeSchema, "Column already exists", err)
	case 1062: // Duplicate entry
		classified = NewAppError(ErrorTypeValidation, "Duplicate entry - record already exists", err)
	case 1064: // SQL syntax error
		classified = NewAppError(ErrorTypeSQL, "SQL syntax error", err)
	case 1213: // Deadlock
		classified = NewRecoverableError(ErrorTypeTransaction, "Deadlock detected - transaction rolled back", err)
	case 2003:
		classified = NewRecoverableError(ErrorTypeConnection, "Cannot connect to MySQL server - server may be down or unreachable", err)
	case 2006:
		classified = NewRecoverableError(ErrorTypeConnection, "MySQL server connection lost", err)
	default:
		classified = NewAppError(ErrorTypeSQL, fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err)
	}
	return classified.WithContext("mysql_error_code", mysqlErr.Number)
}

func (ec *ErrorClassifier) classifyPostgresError(err error) *AppError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		var classified *AppError
		switch {
		case pgErr.Code == "42P01":
			classified = NewAppError(ErrorTypeSchema, "Table does not exist", err)
		case pgErr.Code == "42703":
			classified = NewAppError(ErrorTypeSchema, "Column does not exist", err)
		case pgErr.Code == "42701":
			classified = NewAppError(ErrorTypeSchema, "Column already exists", err)
		case pgErr.Code == "40P01" || pgErr.Code == "40001":
			classified = NewRecoverableError(ErrorTypeTransaction, "Serialization failure - transaction rolled back", err)
		case strings.HasPrefix(pgErr.Code, "08"):
			classified = NewRecoverableError(ErrorTypeConnection, "PostgreSQL connection failure", err)
		case strings.HasPrefix(pgErr.Code, "28"):
			classified = NewAppError(ErrorTypePermission, "Database access denied - check username and password", err)
		case strings.HasPrefix(pgErr.Code, "23"):
			classified = NewAppError(ErrorTypeValidation, fmt.Sprintf("Constraint violation: %s", pgErr.Message), err)
		case strings.HasPrefix(pgErr.Code, "42"):
			classified = NewAppError(ErrorTypeSQL, fmt.Sprintf("SQL error: %s", pgErr.Message), err)
		default:
			classified = NewAppError(ErrorTypeSQL, fmt.Sprintf("PostgreSQL error: %s", pgErr.Message), err)
		}
		return classified.WithContext("sqlstate", pgErr.Code)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return NewRecoverableError(ErrorTypeConnection, "Cannot connect to PostgreSQL server", err)
	}

	return nil
}

func (ec *ErrorClassifier) classifySQLiteError(err error) *AppError {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return nil
	}

	var classified *AppError
	switch liteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		classified = NewRecoverableError(ErrorTypeConnection, "Database file is locked by another process", err)
	case sqlite3.ErrConstraint:
		classified = NewAppError(ErrorTypeValidation, "Constraint violation", err)
	case sqlite3.ErrCantOpen:
		classified = NewAppError(ErrorTypeConnection, "Unable to open database file", err)
	case sqlite3.ErrReadonly, sqlite3.ErrPerm:
		classified = NewAppError(ErrorTypePermission, "Database file is read-only", err)
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		classified = NewAppError(ErrorTypeIntegrity, "Database file is corrupt", err)
	default:
		classified = NewAppError(ErrorTypeSQL, fmt.Sprintf("SQLite error: %s", liteErr.Error()), err)
	}
	return classified.WithContext("sqlite_error_code", int(liteErr.Code))
}

func (ec *ErrorClassifier) classifyDriverError(err error) *AppError {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return NewAppError(ErrorTypeValidation, "No rows found", err)
	case errors.Is(err, sql.ErrTxDone):
		return NewAppError(ErrorTypeSQL, "Transaction has already been committed or rolled back", err)
	case errors.Is(err, sql.ErrConnDone):
		return NewRecoverableError(ErrorTypeConnection, "Database connection is closed", err)
	}
	return nil
}

func (ec *ErrorClassifier) classifyNetworkError(err error) *AppError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRecoverableError(ErrorTypeTimeout, "Network operation timed out", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return NewRecoverableError(ErrorTypeConnection, "Failed to establish network connection", err)
		case "read", "write":
			return NewRecoverableError(ErrorTypeConnection, "Network I/O error", err)
		}
	}

	return nil
}

func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverableError(ErrorTypeTimeout, "Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}
	return nil
}

func (ec *ErrorClassifier) classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		return nil
	}

	switch pathErr.Err {
	case syscall.ENOENT:
		return NewAppError(ErrorTypeValidation, fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
	case syscall.EACCES, syscall.EPERM:
		return NewAppError(ErrorTypePermission, fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
	case syscall.ENOSPC:
		return NewAppError(ErrorTypeValidation, "No space left on device", err)
	}
	return nil
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// RetryHandler retries recoverable failures with exponential backoff
type RetryHandler struct {
	config     RetryConfig
	classifier *ErrorClassifier
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryHandler{
		config:     config,
		classifier: NewErrorClassifier(),
	}
}

func (rh *RetryHandler) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if rh.config.BaseDelay > 0 {
		b.InitialInterval = rh.config.BaseDelay
	}
	if rh.config.MaxDelay > 0 {
		b.MaxInterval = rh.config.MaxDelay
	}
	if rh.config.Multiplier > 0 {
		b.Multiplier = rh.config.Multiplier
	}
	b.Reset()
	return b
}

// Retry executes operation until it succeeds, fails with a non-recoverable
// error, or runs out of attempts. Non-recoverable errors are returned as
// classified AppErrors without another attempt.
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	if err := ctx.Err(); err != nil {
		return NewAppError(ErrorTypeInterruption, "Operation canceled", err)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := operation()
		if err == nil {
			return struct{}{}, nil
		}
		appErr := rh.classifier.ClassifyError(err)
		if !appErr.IsRecoverable() {
			return struct{}{}, backoff.Permanent(appErr)
		}
		return struct{}{}, appErr
	},
		backoff.WithBackOff(rh.newBackOff()),
		backoff.WithMaxTries(uint(rh.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		// the context ended while waiting for the next attempt
		return NewAppError(ErrorTypeInterruption, "Operation canceled during retry", err)
	}
	if appErr.IsRecoverable() {
		return appErr.WithContext("attempts", rh.config.MaxAttempts)
	}
	return appErr
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRecoverable()
	}
	return false
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.GetUserMessage()
	}

	return err.Error()
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		wrapped := NewAppError(appErr.Type, message, err)
		wrapped.Recoverable = appErr.Recoverable
		return wrapped
	}

	classified := NewErrorClassifier().ClassifyError(err)
	return &AppError{
		Type:        classified.Type,
		Message:     message,
		Cause:       err,
		Context:     classified.Context,
		Recoverable: classified.Recoverable,
	}
}
