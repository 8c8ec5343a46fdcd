package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"shop-lifecycle/internal/backup"
	"shop-lifecycle/internal/config"
	"shop-lifecycle/internal/confirmation"
	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/display"
	appErrors "shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/importer"
	"shop-lifecycle/internal/logging"
	"shop-lifecycle/internal/migration"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

// Job is the work of one command. It receives a context that is canceled on
// SIGINT or SIGTERM.
type Job func(ctx context.Context, app *Application) error

// Application owns the logger, display and configuration of one command run
type Application struct {
	config   *config.Config
	logger   *logging.Logger
	display  *display.Service
	errOut   *display.Service
	prompter *confirmation.Prompter
	signals  []os.Signal
}

// Options overrides the streams used by an Application
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// Prompter replaces the stdin-backed confirmation prompt
	Prompter *confirmation.Prompter
}

// New creates an application for cfg
func New(cfg *config.Config, opts Options) (*Application, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Verbose, cfg.Logging.Quiet, cfg.Logging.Debug),
		Output:  opts.Stderr,
		Format:  cfg.Logging.Format,
		LogFile: cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	prompter := opts.Prompter
	if prompter == nil {
		prompter = confirmation.NewPrompter(cfg.AutoApprove)
	}

	return &Application{
		config:   cfg,
		logger:   logger,
		display:  display.NewService(display.Options{Writer: opts.Stdout, NoColor: cfg.Display.NoColor, Quiet: cfg.Logging.Quiet}),
		errOut:   display.NewService(display.Options{Writer: opts.Stderr, NoColor: cfg.Display.NoColor}),
		prompter: prompter,
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
	}, nil
}

func (app *Application) Config() *config.Config {
	return app.config
}

func (app *Application) Logger() *logging.Logger {
	return app.logger
}

func (app *Application) Display() *display.Service {
	return app.display
}

// Confirm asks before a destructive step; see confirmation.Prompter
func (app *Application) Confirm(ctx context.Context, question string) error {
	return app.prompter.Confirm(ctx, question)
}

// Connect opens the configured datastore. The caller closes it.
func (app *Application) Connect(ctx context.Context) (*database.DB, error) {
	return database.Connect(ctx, app.config.Database, app.logger)
}

// Run executes job under signal-aware cancellation and returns the process exit code
func (app *Application) Run(operation string, job Job) int {
	ctx, stop := signal.NotifyContext(context.Background(), app.signals...)
	defer stop()

	finish := app.logger.LogOperationStart(operation, nil)
	err := job(ctx, app)
	finish(err)

	if err == nil {
		return ExitOK
	}
	if ExitCode(err) == ExitOK {
		app.display.Info(FormatError(err))
		return ExitOK
	}
	app.handleExecutionError(err)
	return ExitCode(err)
}

// ExitCode maps a job error to the process exit status. A benign skip is success.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, backup.ErrNothingToBackup) {
		return ExitOK
	}
	return ExitFailure
}

// FormatError returns the operator-facing message for err
func FormatError(err error) string {
	var batchErr *importer.BatchError
	if errors.As(err, &batchErr) {
		reason := batchErr.Cause.Error()
		if classified := appErrors.NewErrorClassifier().ClassifyError(batchErr.Cause); classified.Type != appErrors.ErrorTypeUnknown && classified.Cause != nil {
			reason = fmt.Sprintf("%s: %v", classified.GetUserMessage(), classified.Cause)
		}
		return fmt.Sprintf("%s batch %d was rolled back at record %d: %s",
			batchErr.Dataset, batchErr.BatchIndex+1, batchErr.RecordIndex+1, reason)
	}

	var backupErr *backup.BackupError
	if errors.As(err, &backupErr) {
		if backupErr.Cause != nil {
			return fmt.Sprintf("%s: %v", backupErr.Message, backupErr.Cause)
		}
		return backupErr.Message
	}

	if errors.Is(err, migration.ErrVerificationFailed) {
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) && appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.GetUserMessage(), appErr.Cause)
		}
	}

	if errors.Is(err, confirmation.ErrAborted) {
		return "operation aborted before any change was made"
	}

	return appErrors.FormatUserError(err)
}

// Hints returns troubleshooting suggestions for err
func Hints(err error) []string {
	var batchErr *importer.BatchError
	if errors.As(err, &batchErr) {
		hints := []string{
			fmt.Sprintf("Batches before batch %d are committed and remain in the store", batchErr.BatchIndex+1),
			fmt.Sprintf("Fix record %d in the source file and run the import again", batchErr.RecordIndex+1),
		}
		if batchErr.Dataset == importer.DatasetCatalog {
			hints = append(hints, "A catalog import resets products and flavors first, so a re-run starts from a clean catalog")
		}
		return hints
	}

	if backup.IsIntegrityFailure(err) {
		return []string{
			"The partial snapshot was removed and no old snapshots were pruned",
			"Check free disk space in the backup directory",
			"Make sure nothing was writing to the database file during the copy",
		}
	}

	var backupErr *backup.BackupError
	if errors.As(err, &backupErr) {
		return []string{
			"Check that the backup directory exists or can be created",
			"Verify file permissions on the source database and backup directory",
		}
	}

	if errors.Is(err, migration.ErrVerificationFailed) {
		return []string{
			"The engine accepted the ALTER statement but the column is still missing",
			"Check that the user can alter the table and that no other process dropped the column",
		}
	}

	switch appErrors.GetErrorType(err) {
	case appErrors.ErrorTypeConnection:
		return []string{
			"Check that the database server is running, or that the sqlite file exists",
			"Verify the DSN host and port, or set database.create_if_missing for a new sqlite file",
			"Ensure network connectivity to the database server",
		}
	case appErrors.ErrorTypePermission:
		return []string{
			"Verify the username and password are correct",
			"Check that the user has the required permissions",
		}
	case appErrors.ErrorTypeValidation:
		return []string{
			"Review the configuration file, environment variables and command line arguments",
			"Run 'shop-lifecycle config' to print a sample configuration",
		}
	case appErrors.ErrorTypeSchema:
		return []string{
			"Check that the target tables exist in the connected database",
		}
	case appErrors.ErrorTypeTimeout:
		return []string{
			"The operation took longer than database.query_timeout",
			"Try increasing the timeout value",
		}
	case appErrors.ErrorTypeSQL:
		return []string{
			"Review the SQL statement in the verbose log output",
			"Check for syntax errors or unsupported features in this engine",
		}
	}
	return nil
}

// handleExecutionError prints the failure and its hints and logs the details
func (app *Application) handleExecutionError(err error) {
	app.errOut.Error(FormatError(err))

	fields := map[string]interface{}{"error": err.Error()}
	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		fields["error_type"] = string(appErr.Type)
		fields["recoverable"] = appErrors.IsRecoverableError(err)
		for k, v := range appErr.Context {
			fields[k] = v
		}
	}
	app.logger.WithFields(fields).Debug("Execution failed")

	hints := Hints(err)
	if len(hints) == 0 {
		return
	}
	w := app.errOut.Writer()
	fmt.Fprintf(w, "\nTroubleshooting hints:\n")
	for _, hint := range hints {
		fmt.Fprintf(w, "- %s\n", hint)
	}
}
