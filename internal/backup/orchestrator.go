package backup

import (
	"context"
	"errors"
	"time"

	"shop-lifecycle/internal/logging"

	"github.com/google/uuid"
)

// RunStatus is the outcome of an orchestrated backup
type RunStatus string

const (
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusCompleted RunStatus = "completed"
)

// RunReport describes one orchestrated backup run
type RunReport struct {
	RunID    string          `json:"run_id"`
	Status   RunStatus       `json:"status"`
	Snapshot *SnapshotRecord `json:"snapshot,omitempty"`
	Prune    *PruneResult    `json:"prune,omitempty"`
	Notified bool            `json:"notified"`
	Duration time.Duration   `json:"duration"`
}

// Orchestrator runs snapshot, retention and notification in that order
type Orchestrator struct {
	store     *SnapshotStore
	retention *RetentionPolicy
	notifier  Notifier
	config    Config
	timeout   time.Duration
	logger    *logging.Logger
}

// NewOrchestrator wires the backup steps. notifier may be nil.
func NewOrchestrator(config Config, store *SnapshotStore, retention *RetentionPolicy, notifier Notifier, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	timeout := config.Notifications.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Orchestrator{
		store:     store,
		retention: retention,
		notifier:  notifier,
		config:    config,
		timeout:   timeout,
		logger:    logger,
	}
}

// NewDefaultOrchestrator builds an orchestrator and its collaborators from config
func NewDefaultOrchestrator(config Config, logger *logging.Logger) *Orchestrator {
	naming := Naming{Prefix: config.Prefix}
	return NewOrchestrator(
		config,
		NewSnapshotStore(naming, config.Dir, logger),
		NewRetentionPolicy(naming, logger),
		NewNotificationManager(logger, config.Notifications),
		logger,
	)
}

// Run takes a snapshot, prunes old ones and sends a summary. A missing source
// is a skip. Any other snapshot failure stops the run before pruning. Prune
// and notification failures are logged and do not fail the run.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{RunID: uuid.NewString()}

	done := o.logger.LogOperationStart("backup", map[string]interface{}{
		"run_id": report.RunID,
		"source": o.config.SourcePath,
	})

	record, err := o.store.CreateSnapshot(ctx, o.config.SourcePath)
	if errors.Is(err, ErrNothingToBackup) {
		report.Status = RunStatusSkipped
		report.Duration = time.Since(start)
		done(nil)
		return report, nil
	}
	if err != nil {
		done(err)
		return nil, err
	}
	report.Snapshot = record

	dir := o.store.Dir(o.config.SourcePath)
	prune, err := o.retention.Prune(ctx, dir, o.config.Keep)
	if err != nil {
		o.logger.WithFields(map[string]interface{}{
			"run_id": report.RunID,
			"dir":    dir,
			"error":  err.Error(),
		}).Warn("Retention failed, snapshot kept")
	}
	report.Prune = prune

	if o.notifier != nil && o.notifier.Enabled() {
		summary := Summary{
			RunID:        report.RunID,
			Timestamp:    record.CreatedAt,
			SizeBytes:    record.SizeBytes,
			ArtifactName: record.Name(),
		}
		if prune != nil {
			summary.DeletedCount = prune.DeletedCount
		}
		report.Notified = o.notify(ctx, summary)
	}

	report.Status = RunStatusCompleted
	report.Duration = time.Since(start)
	done(nil)
	return report, nil
}

func (o *Orchestrator) notify(ctx context.Context, summary Summary) bool {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.notifier.Notify(ctx, summary); err != nil {
		o.logger.WithFields(map[string]interface{}{
			"run_id": summary.RunID,
			"error":  err.Error(),
		}).Warn("Backup notification failed")
		return false
	}
	return true
}
