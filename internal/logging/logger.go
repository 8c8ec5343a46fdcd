package logging

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

const maxLoggedSQL = 200

// Logger provides structured logging for the lifecycle jobs
type Logger struct {
	logger *logrus.Logger
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	logger.SetLevel(toLogrusLevel(config.Level))

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	}

	if config.LogFile != "" {
		if dir := filepath.Dir(config.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		logger.SetOutput(io.MultiWriter(out, file))
	}

	return &Logger{logger: logger}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelNormal, Format: "text"})
	return logger
}

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel maps CLI flags onto a LogLevel. Quiet wins over verbose.
func ParseLevel(verbose, quiet, debug bool) LogLevel {
	switch {
	case quiet:
		return LogLevelQuiet
	case debug:
		return LogLevelDebug
	case verbose:
		return LogLevelVerbose
	default:
		return LogLevelNormal
	}
}

// WithFields returns a logger entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogDatabaseConnection logs database connection attempts
func (l *Logger) LogDatabaseConnection(driver, target string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "database_connection",
		"driver":    driver,
		"target":    SanitizeDSN(target),
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Database connection established")
		return
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.logger.WithFields(fields).Error("Database connection failed")
}

// LogSQLExecution logs SQL statement execution
func (l *Logger) LogSQLExecution(sql string, duration time.Duration, rowsAffected int64, err error) {
	fields := logrus.Fields{
		"operation":     "sql_execution",
		"duration":      duration.String(),
		"rows_affected": rowsAffected,
	}

	if len(sql) > maxLoggedSQL {
		fields["sql"] = sql[:maxLoggedSQL] + "..."
		fields["sql_length"] = len(sql)
	} else {
		fields["sql"] = sql
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("SQL execution failed")
		return
	}
	l.logger.WithFields(fields).Debug("SQL executed successfully")
}

// LogSnapshot logs the outcome of a snapshot copy
func (l *Logger) LogSnapshot(source, artifact string, sizeBytes int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  "snapshot",
		"source":     source,
		"artifact":   artifact,
		"size_bytes": sizeBytes,
		"duration":   duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Snapshot failed")
		return
	}
	l.logger.WithFields(fields).Info("Snapshot created")
}

// LogPrune logs a retention run
func (l *Logger) LogPrune(dir string, keep, deleted, failed int, dryRun bool) {
	l.logger.WithFields(logrus.Fields{
		"operation": "prune",
		"dir":       dir,
		"keep":      keep,
		"deleted":   deleted,
		"failed":    failed,
		"dry_run":   dryRun,
	}).Info("Retention applied")
}

// LogMigrationStep logs the decision taken for one managed column
func (l *Logger) LogMigrationStep(table, column, action string, err error) {
	fields := logrus.Fields{
		"operation": "migration_step",
		"table":     table,
		"column":    column,
		"action":    action,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Migration step failed")
		return
	}
	l.logger.WithFields(fields).Info("Migration step " + action)
}

// LogBatchCommit logs a committed or rolled back import batch
func (l *Logger) LogBatchCommit(dataset string, batchIndex, records int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "import_batch",
		"dataset":   dataset,
		"batch":     batchIndex,
		"records":   records,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Batch rolled back")
		return
	}
	l.logger.WithFields(fields).Debug("Batch committed")
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.logger.WithFields(logFields).Error("Operation failed")
			return
		}
		logFields["success"] = true
		l.logger.WithFields(logFields).Info("Operation completed")
	}
}

var keywordPassword = regexp.MustCompile(`(?i)(password=)('[^']*'|"[^"]*"|[^\s&]*)`)

// SanitizeDSN hides credentials in a connection string or URL before it is logged.
// Plain file paths are returned unchanged.
func SanitizeDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "***")
			}
			q := u.Query()
			if q.Has("password") {
				q.Set("password", "***")
				u.RawQuery = q.Encode()
			}
			return u.String()
		}
	}

	dsn = keywordPassword.ReplaceAllString(dsn, "${1}***")

	// mysql form: user:pass@tcp(host)/db
	if at := strings.Index(dsn, "@"); at > 0 && !strings.Contains(dsn, "://") {
		creds := dsn[:at]
		if colon := strings.Index(creds, ":"); colon >= 0 {
			return creds[:colon] + ":***" + dsn[at:]
		}
	}

	return dsn
}
