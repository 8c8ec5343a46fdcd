package display

import (
	"testing"
	"time"

	"shop-lifecycle/internal/backup"
	"shop-lifecycle/internal/importer"
	"shop-lifecycle/internal/migration"

	"github.com/sebdah/goldie/v2"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
}

func TestImportSummaryText(t *testing.T) {
	g := newGoldie(t)

	g.Assert(t, "import_catalog", []byte(ImportSummaryText(&importer.ImportSummary{
		Dataset:       importer.DatasetCatalog,
		RunID:         "run-1",
		Expected:      3,
		InsertedCount: 3,
		ChildCount:    5,
		BatchCount:    2,
		ActualCount:   3,
		Duration:      1500 * time.Millisecond,
	})))

	g.Assert(t, "import_locations_mismatch", []byte(ImportSummaryText(&importer.ImportSummary{
		Dataset:       importer.DatasetLocations,
		RunID:         "run-2",
		Expected:      3,
		InsertedCount: 3,
		BatchCount:    1,
		ActualCount:   2,
		CountMismatch: true,
		Duration:      250 * time.Millisecond,
	})))
}

func TestBackupReportText(t *testing.T) {
	g := newGoldie(t)

	g.Assert(t, "backup_completed", []byte(BackupReportText(&backup.RunReport{
		RunID:  "run-3",
		Status: backup.RunStatusCompleted,
		Snapshot: &backup.SnapshotRecord{
			ArtifactPath: "/var/backups/shop-backup-2024-07-01T09-00-00Z.db",
			SizeBytes:    4096,
			CreatedAt:    time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		},
		Prune: &backup.PruneResult{
			DeletedCount: 2,
			DeletedNames: []string{"a", "b"},
			Kept:         []string{"c", "d", "e"},
		},
		Notified: true,
		Duration: 2 * time.Second,
	})))

	g.Assert(t, "backup_skipped", []byte(BackupReportText(&backup.RunReport{
		RunID:  "run-4",
		Status: backup.RunStatusSkipped,
	})))
}

func TestPruneResultText(t *testing.T) {
	g := newGoldie(t)

	g.Assert(t, "prune_dry_run", []byte(PruneResultText(&backup.PruneResult{
		DeletedCount: 2,
		DeletedNames: []string{
			"shop-backup-2024-06-01T09-00-00Z.db",
			"shop-backup-2024-05-31T09-00-00Z.db",
		},
		Kept:   []string{"shop-backup-2024-06-02T09-00-00Z.db"},
		DryRun: true,
	})))
}

func TestSnapshotListTable(t *testing.T) {
	g := newGoldie(t)

	g.Assert(t, "snapshot_list", []byte(SnapshotListTable([]backup.SnapshotInfo{
		{
			Name:    "shop-backup-2024-07-02T09-00-00Z.db",
			Size:    12345,
			ModTime: time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			Name:    "shop-backup-2024-07-01T09-00-00Z.db",
			Size:    100,
			ModTime: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		},
	})))

	g.Assert(t, "snapshot_list_empty", []byte(SnapshotListTable(nil)))
}

func TestMigrationReportText(t *testing.T) {
	g := newGoldie(t)
	steps := migration.DefaultSteps()

	g.Assert(t, "migration_report", []byte(MigrationReportText(&migration.Report{
		RunID:    "run-5",
		Added:    steps[:2],
		Skipped:  steps[2:],
		Duration: 40 * time.Millisecond,
	})))
}

func TestMigrationStatusTable(t *testing.T) {
	g := newGoldie(t)
	steps := migration.DefaultSteps()

	g.Assert(t, "migration_status", []byte(MigrationStatusTable([]migration.StepStatus{
		{Step: steps[0], State: migration.StateApplied},
		{Step: steps[1], State: migration.StatePending},
		{Step: steps[2], State: migration.StatePending},
	})))
}
