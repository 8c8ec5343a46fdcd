// Package backup snapshots the shop database file and keeps a bounded
// history of snapshots.
//
// A run has three steps, always in this order:
//
//  1. SnapshotStore copies the live database file into a timestamped file
//     and checks the copy has the source's size.
//  2. RetentionPolicy deletes all but the newest N snapshots.
//  3. A Notifier is told about the new snapshot. Notification failures are
//     logged and never fail the run.
//
// A missing source file is not an error: the run is reported as skipped and
// nothing is written or deleted.
//
// Example usage:
//
//	orch := backup.NewDefaultOrchestrator(cfg, logger)
//	report, err := orch.Run(ctx)
//	if err != nil {
//		return fmt.Errorf("backup failed: %w", err)
//	}
//	if report.Status == backup.RunStatusSkipped {
//		logger.Info("nothing to back up")
//	}
package backup
