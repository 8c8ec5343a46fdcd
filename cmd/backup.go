package cmd

import (
	"context"
	"fmt"

	"shop-lifecycle/internal/application"
	"shop-lifecycle/internal/backup"
	"shop-lifecycle/internal/display"
	apperrors "shop-lifecycle/internal/errors"

	"github.com/spf13/cobra"
)

func (c *cli) newBackupCommand() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database file and rotate old snapshots",
		Long: `Copy the live database file to a timestamped snapshot, keep the newest
snapshots and delete the rest, then send a summary to the configured
notification channels.

A missing source file is not an error: the run is reported as skipped.

Examples:
  # Back up the configured sqlite database
  shop-lifecycle backup

  # Keep only the last 3 snapshots in a custom directory
  shop-lifecycle backup --db-path ./shop.db --dir /var/backups/shop --keep 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "backup", runBackup)
		},
	}

	flags := backupCmd.PersistentFlags()
	flags.Int("keep", backup.DefaultKeep, "number of snapshots to keep")
	flags.String("dir", "", "snapshot directory (default: backups/ next to the source)")
	flags.String("source", "", "database file to back up (default: the sqlite database path)")
	c.bindFlags(backupCmd, map[string]string{
		"backup.keep":        "keep",
		"backup.dir":         "dir",
		"backup.source_path": "source",
	}, true)

	backupCmd.AddCommand(c.newBackupListCommand(), c.newBackupPruneCommand())
	return backupCmd
}

func (c *cli) newBackupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "backup list", func(ctx context.Context, app *application.Application) error {
				cfg := app.Config().Backup
				if err := requireBackupLocation(cfg); err != nil {
					return err
				}

				dir := cfg.BackupDir()
				snapshots, err := backup.NewRetentionPolicy(backup.Naming{Prefix: cfg.Prefix}, app.Logger()).List(dir)
				if err != nil {
					return err
				}

				app.Display().PrintHeader("Snapshots in " + dir)
				app.Display().PrintBlock(display.SnapshotListTable(snapshots))
				return nil
			})
		},
	}
}

func (c *cli) newBackupPruneCommand() *cobra.Command {
	var dryRun bool

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots beyond the retention window",
		Long: `Delete every snapshot older than the newest --keep snapshots.

Examples:
  # Show what would be removed
  shop-lifecycle backup prune --keep 5 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "backup prune", func(ctx context.Context, app *application.Application) error {
				cfg := app.Config().Backup
				if err := requireBackupLocation(cfg); err != nil {
					return err
				}
				if cfg.Keep < 1 {
					return apperrors.NewAppError(apperrors.ErrorTypeValidation,
						fmt.Sprintf("backup.keep must be at least 1, got %d", cfg.Keep), nil)
				}

				policy := backup.NewRetentionPolicy(backup.Naming{Prefix: cfg.Prefix}, app.Logger()).WithDryRun(dryRun)
				result, err := policy.Prune(ctx, cfg.BackupDir(), cfg.Keep)
				if err != nil {
					return err
				}

				app.Display().PrintHeader("Retention")
				app.Display().PrintBlock(display.PruneResultText(result))
				if len(result.Errors) > 0 {
					app.Display().Warning(fmt.Sprintf("%d snapshot(s) could not be removed", len(result.Errors)))
				}
				return nil
			})
		},
	}

	pruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the snapshots that would be removed without deleting them")
	return pruneCmd
}

func runBackup(ctx context.Context, app *application.Application) error {
	cfg := app.Config()
	if cfg.Backup.SourcePath == "" {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("backup.source_path is required for the %s driver", cfg.Database.Driver), nil).
			WithUserMessage(fmt.Sprintf("Nothing to snapshot: set backup.source_path (or --source) when using the %s driver", cfg.Database.Driver))
	}

	report, err := backup.NewDefaultOrchestrator(cfg.Backup, app.Logger()).Run(ctx)
	if err != nil {
		return err
	}

	app.Display().PrintHeader("Backup")
	app.Display().PrintBlock(display.BackupReportText(report))

	if report.Status == backup.RunStatusSkipped {
		app.Display().Info(fmt.Sprintf("Skipped: %s does not exist", cfg.Backup.SourcePath))
		return nil
	}
	if report.Prune != nil && len(report.Prune.Errors) > 0 {
		app.Display().Warning(fmt.Sprintf("%d old snapshot(s) could not be removed", len(report.Prune.Errors)))
	}
	app.Display().Success("Snapshot " + report.Snapshot.Name() + " created")
	return nil
}

// requireBackupLocation rejects a configuration with no way to find the snapshot directory
func requireBackupLocation(cfg backup.Config) error {
	if cfg.SourcePath == "" && cfg.Dir == "" {
		return apperrors.NewAppError(apperrors.ErrorTypeValidation,
			"backup.dir or backup.source_path is required to locate snapshots", nil)
	}
	return nil
}
