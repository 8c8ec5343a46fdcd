package cmd

import (
	"context"
	"fmt"

	"shop-lifecycle/internal/application"
	"shop-lifecycle/internal/display"
	"shop-lifecycle/internal/importer"

	"github.com/spf13/cobra"
)

func (c *cli) newImportCommand() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load a dataset from a JSON or YAML file",
		Long: `Load a dataset into the store in fixed-size batches. Each batch is one
transaction: a failing record rolls back its batch and stops the import,
while earlier batches stay committed.`,
	}

	importCmd.AddCommand(c.newImportCatalogCommand(), c.newImportLocationsCommand())
	return importCmd
}

func (c *cli) newImportCatalogCommand() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog FILE",
		Short: "Replace the product catalog",
		Long: `Delete every product and flavor, then insert the products of FILE with
their flavor variants. FILE holds a top-level "products" list or a bare list.

Examples:
  shop-lifecycle import catalog products.json
  shop-lifecycle import catalog products.yaml --batch-size 20 --auto-approve`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			return c.run(cmd, "import catalog", func(ctx context.Context, app *application.Application) error {
				if err := app.Confirm(ctx, "This deletes every product and flavor before loading "+file+". Continue?"); err != nil {
					return err
				}

				db, err := app.Connect(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				imp := importer.NewCatalogImporter(db, app.Config().Import.CatalogBatchSize, app.Logger()).
					WithProgress(app.Display().Progress("catalog"))
				summary, err := imp.Import(ctx, file)
				return reportImport(app, summary, err)
			})
		},
	}

	catalogCmd.Flags().Int("batch-size", importer.DefaultCatalogBatchSize, "products per transaction")
	c.bindFlags(catalogCmd, map[string]string{"import.catalog_batch_size": "batch-size"}, false)
	return catalogCmd
}

func (c *cli) newImportLocationsCommand() *cobra.Command {
	locationsCmd := &cobra.Command{
		Use:   "locations FILE",
		Short: "Insert or update store locations",
		Long: `Upsert the store locations of FILE by id. Existing rows are refreshed
and rows missing from FILE are left in place.

Examples:
  shop-lifecycle import locations stores.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			return c.run(cmd, "import locations", func(ctx context.Context, app *application.Application) error {
				db, err := app.Connect(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				imp := importer.NewLocationImporter(db, app.Config().Import.LocationBatchSize, app.Logger()).
					WithProgress(app.Display().Progress("locations"))
				summary, err := imp.Import(ctx, file)
				return reportImport(app, summary, err)
			})
		},
	}

	locationsCmd.Flags().Int("batch-size", importer.DefaultLocationBatchSize, "locations per transaction")
	c.bindFlags(locationsCmd, map[string]string{"import.location_batch_size": "batch-size"}, false)
	return locationsCmd
}

// reportImport prints the summary, including the committed part of a failed import
func reportImport(app *application.Application, summary *importer.ImportSummary, err error) error {
	if summary != nil {
		app.Display().PrintHeader("Import " + summary.Dataset)
		app.Display().PrintBlock(display.ImportSummaryText(summary))
	}
	if err != nil {
		return err
	}

	if summary.CountMismatch {
		app.Display().Warning(fmt.Sprintf("expected %d rows but the store holds %d", summary.Expected, summary.ActualCount))
		return nil
	}
	app.Display().Success(fmt.Sprintf("Imported %d %s record(s) in %d batch(es)", summary.InsertedCount, summary.Dataset, summary.BatchCount))
	return nil
}
