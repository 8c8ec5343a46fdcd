package migration

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"
	"shop-lifecycle/internal/schema"

	"github.com/google/uuid"
)

// ErrVerificationFailed reports that a managed column is still absent after
// the run tried to add it. It is distinct from a column that already existed.
var ErrVerificationFailed = stderrors.New("migration verification failed")

// Service applies missing additive columns against a live datastore
type Service struct {
	db        *database.DB
	inspector *schema.Inspector
	logger    *logging.Logger
}

// NewService creates a migration service on an already connected datastore
func NewService(db *database.DB, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Service{
		db:        db,
		inspector: schema.NewInspector(db),
		logger:    logger,
	}
}

// Run brings every step to the applied state. Present columns are skipped;
// absent ones get one ALTER TABLE ... ADD COLUMN each. The live schema is
// re-read at the end and any column still missing fails the run.
func (s *Service) Run(ctx context.Context, steps []Step) (report *Report, err error) {
	start := time.Now()
	report = &Report{RunID: uuid.NewString()}

	done := s.logger.LogOperationStart("migrate", map[string]interface{}{
		"run_id": report.RunID,
		"steps":  len(steps),
		"driver": s.db.Dialect().Name(),
	})
	defer func() {
		report.Duration = time.Since(start)
		done(err)
	}()

	plans, err := Plan(steps)
	if err != nil {
		return report, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}

	for _, plan := range plans {
		live, err := s.inspector.Columns(ctx, plan.Table)
		if err != nil {
			return report, err
		}

		for _, step := range plan.Steps {
			if live.Has(step.Column) {
				s.logger.LogMigrationStep(step.Table, step.Column, "skipped", nil)
				s.logger.Infof("Column %s already exists", step)
				report.Skipped = append(report.Skipped, step)
				continue
			}

			added, err := s.apply(ctx, step)
			if err != nil {
				return report, err
			}
			if added {
				report.Added = append(report.Added, step)
			} else {
				report.Skipped = append(report.Skipped, step)
			}
		}
	}

	if err := s.verify(ctx, plans); err != nil {
		return report, err
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":  report.RunID,
		"added":   len(report.Added),
		"skipped": len(report.Skipped),
	}).Info("Schema verified")

	return report, nil
}

// apply adds one column. If the ALTER fails because a concurrent run already
// added the column, the step counts as skipped rather than failed.
func (s *Service) apply(ctx context.Context, step Step) (bool, error) {
	stmt := s.db.Dialect().AddColumnSQL(step.Table, step.Column, step.Definition)

	if _, execErr := s.db.Exec(ctx, stmt); execErr != nil {
		exists, checkErr := s.inspector.ColumnExists(ctx, step.Table, step.Column)
		if checkErr == nil && exists {
			s.logger.LogMigrationStep(step.Table, step.Column, "skipped", nil)
			s.logger.Warnf("Column %s appeared while it was being added", step)
			return false, nil
		}

		s.logger.LogMigrationStep(step.Table, step.Column, "failed", execErr)
		return false, errors.WrapError(execErr, fmt.Sprintf("failed to add column %s", step)).(*errors.AppError).
			WithContext("statement", stmt)
	}

	s.logger.LogMigrationStep(step.Table, step.Column, "added", nil)
	s.logger.Infof("Added column %s", step)
	return true, nil
}

func (s *Service) verify(ctx context.Context, plans []TablePlan) error {
	var missing []string

	for _, plan := range plans {
		live, err := s.inspector.Columns(ctx, plan.Table)
		if err != nil {
			return errors.WrapError(err, "failed to re-read schema for verification")
		}
		for _, step := range plan.Steps {
			if !live.Has(step.Column) {
				missing = append(missing, step.String())
			}
		}
	}

	if len(missing) > 0 {
		cause := fmt.Errorf("%w: missing %s", ErrVerificationFailed, strings.Join(missing, ", "))
		return errors.NewAppError(errors.ErrorTypeIntegrity, "schema verification failed after applying migrations", cause).
			WithContext("missing", missing).
			WithUserMessage(fmt.Sprintf("Columns still missing after migration: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Status reports each step's live state without changing the schema
func (s *Service) Status(ctx context.Context, steps []Step) ([]StepStatus, error) {
	plans, err := Plan(steps)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}

	var statuses []StepStatus
	for _, plan := range plans {
		live, err := s.inspector.Columns(ctx, plan.Table)
		if err != nil {
			return nil, err
		}
		for _, step := range plan.Steps {
			state := StatePending
			if live.Has(step.Column) {
				state = StateApplied
			}
			statuses = append(statuses, StepStatus{Step: step, State: state})
		}
	}
	return statuses, nil
}
