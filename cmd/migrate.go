package cmd

import (
	"context"
	"fmt"

	"shop-lifecycle/internal/application"
	"shop-lifecycle/internal/display"
	"shop-lifecycle/internal/migration"

	"github.com/spf13/cobra"
)

func (c *cli) newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Add missing managed columns to existing tables",
		Long: `Compare the managed columns with the live schema and add the ones that
are missing, one ALTER TABLE statement per column. Columns that already
exist are left untouched, so running migrate twice is safe.

The managed columns come from migration.steps in the config file and
default to the coupon and discount columns of the orders table.

Examples:
  # Migrate the configured database
  shop-lifecycle migrate

  # Show which columns are still pending
  shop-lifecycle migrate status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "migrate", runMigrate)
		},
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the live state of every managed column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "migrate status", runMigrateStatus)
		},
	})

	return migrateCmd
}

func runMigrate(ctx context.Context, app *application.Application) error {
	db, err := app.Connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := migration.NewService(db, app.Logger()).Run(ctx, app.Config().Migration.Steps)
	if report != nil && (err == nil || len(report.Added) > 0) {
		app.Display().PrintHeader("Migration")
		app.Display().PrintBlock(display.MigrationReportText(report))
	}
	if err != nil {
		return err
	}

	if report.AddedCount() == 0 {
		app.Display().Info("Schema is up to date")
		return nil
	}
	app.Display().Success(fmt.Sprintf("Added %d column(s)", report.AddedCount()))
	return nil
}

func runMigrateStatus(ctx context.Context, app *application.Application) error {
	db, err := app.Connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := migration.NewService(db, app.Logger()).Status(ctx, app.Config().Migration.Steps)
	if err != nil {
		return err
	}

	pending := 0
	for _, s := range statuses {
		if s.State == migration.StatePending {
			pending++
		}
	}

	app.Display().PrintHeader("Migration status")
	app.Display().PrintBlock(display.MigrationStatusTable(statuses))
	if pending > 0 {
		app.Display().Warning(fmt.Sprintf("%d column(s) pending, run 'shop-lifecycle migrate' to add them", pending))
	}
	return nil
}
