package display

import (
	"fmt"
	"strings"
	"time"

	"shop-lifecycle/internal/backup"
	"shop-lifecycle/internal/importer"
	"shop-lifecycle/internal/migration"

	"github.com/dustin/go-humanize"
)

// ImportSummaryText renders the final summary of an import run
func ImportSummaryText(s *importer.ImportSummary) string {
	rows := append(s.Rows(),
		[2]string{"Run ID", s.RunID},
		[2]string{"Duration", formatDuration(s.Duration)},
	)
	return KeyValueTable(rows)
}

// BackupReportText renders the outcome of an orchestrated backup run
func BackupReportText(r *backup.RunReport) string {
	rows := [][2]string{{"Status", string(r.Status)}}

	if r.Status == backup.RunStatusSkipped {
		rows = append(rows, [2]string{"Reason", "source database not found, nothing to back up"})
	}
	if r.Snapshot != nil {
		rows = append(rows,
			[2]string{"Snapshot", r.Snapshot.Name()},
			[2]string{"Size", formatSize(r.Snapshot.SizeBytes)},
		)
	}
	if r.Prune != nil {
		rows = append(rows,
			[2]string{"Snapshots removed", fmt.Sprintf("%d", r.Prune.DeletedCount)},
			[2]string{"Snapshots kept", fmt.Sprintf("%d", len(r.Prune.Kept))},
		)
		if len(r.Prune.Errors) > 0 {
			rows = append(rows, [2]string{"Removal errors", fmt.Sprintf("%d", len(r.Prune.Errors))})
		}
	}
	if r.Status == backup.RunStatusCompleted {
		rows = append(rows, [2]string{"Notified", yesNo(r.Notified)})
	}
	rows = append(rows,
		[2]string{"Run ID", r.RunID},
		[2]string{"Duration", formatDuration(r.Duration)},
	)
	return KeyValueTable(rows)
}

// PruneResultText renders a standalone retention run
func PruneResultText(r *backup.PruneResult) string {
	label := "Removed"
	if r.DryRun {
		label = "Would remove"
	}

	var b strings.Builder
	b.WriteString(KeyValueTable([][2]string{
		{label, fmt.Sprintf("%d", r.DeletedCount)},
		{"Kept", fmt.Sprintf("%d", len(r.Kept))},
		{"Errors", fmt.Sprintf("%d", len(r.Errors))},
	}))
	for _, name := range r.DeletedNames {
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(&b, "  ! %s\n", msg)
	}
	return b.String()
}

// SnapshotListTable renders snapshots newest first as a table
func SnapshotListTable(snapshots []backup.SnapshotInfo) string {
	if len(snapshots) == 0 {
		return "  no snapshots found\n"
	}

	tf := NewTableFormatter(nil, ColorTheme{})
	tf.SetHeaders([]string{"#", "Snapshot", "Size", "Modified (UTC)"})
	tf.SetColumnAlignment(0, AlignRight)
	tf.SetColumnAlignment(2, AlignRight)
	for i, s := range snapshots {
		tf.AddRow([]string{
			fmt.Sprintf("%d", i+1),
			s.Name,
			formatSize(s.Size),
			s.ModTime.UTC().Format(time.RFC3339),
		})
	}
	return tf.Render()
}

// MigrationReportText renders the added and skipped steps of a migration run
func MigrationReportText(r *migration.Report) string {
	var b strings.Builder
	b.WriteString(KeyValueTable([][2]string{
		{"Columns added", fmt.Sprintf("%d", len(r.Added))},
		{"Already present", fmt.Sprintf("%d", len(r.Skipped))},
		{"Run ID", r.RunID},
		{"Duration", formatDuration(r.Duration)},
	}))
	for _, step := range r.Added {
		fmt.Fprintf(&b, "  + %s %s\n", step, step.Definition)
	}
	for _, step := range r.Skipped {
		fmt.Fprintf(&b, "  = %s (already exists)\n", step)
	}
	return b.String()
}

// MigrationStatusTable renders the live state of every managed column
func MigrationStatusTable(statuses []migration.StepStatus) string {
	tf := NewTableFormatter(nil, ColorTheme{})
	tf.SetHeaders([]string{"Table", "Column", "Definition", "State"})
	for _, s := range statuses {
		tf.AddRow([]string{s.Step.Table, s.Step.Column, s.Step.Definition, string(s.State)})
	}
	return tf.Render()
}

func formatSize(n int64) string {
	return fmt.Sprintf("%s (%d bytes)", humanize.Bytes(uint64(n)), n)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
