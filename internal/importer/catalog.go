package importer

import (
	"context"
	"time"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"

	"github.com/google/uuid"
)

const (
	DefaultCatalogBatchSize = 5

	insertProductSQL = "INSERT INTO products (name, description, price, category) VALUES (?, ?, ?, ?)"
	insertFlavorSQL  = "INSERT INTO flavors (product_id, name, stock, price) VALUES (?, ?, ?, ?)"
)

// CatalogImporter replaces the product catalog with the contents of a dataset
type CatalogImporter struct {
	db        *database.DB
	batchSize int
	logger    *logging.Logger
	progress  ProgressFunc
}

// NewCatalogImporter creates a catalog importer. A batchSize below 1 uses the default.
func NewCatalogImporter(db *database.DB, batchSize int, logger *logging.Logger) *CatalogImporter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if batchSize < 1 {
		batchSize = DefaultCatalogBatchSize
	}
	return &CatalogImporter{db: db, batchSize: batchSize, logger: logger}
}

// WithProgress registers a callback run after each committed batch
func (ci *CatalogImporter) WithProgress(fn ProgressFunc) *CatalogImporter {
	ci.progress = fn
	return ci
}

// Import parses sourceFile, deletes every product and flavor, then inserts
// the dataset one transaction per batch. The reset is not part of any batch
// transaction. On a batch failure the returned summary describes the
// batches committed before it.
func (ci *CatalogImporter) Import(ctx context.Context, sourceFile string) (*ImportSummary, error) {
	start := time.Now()
	summary := &ImportSummary{Dataset: DatasetCatalog, RunID: uuid.NewString()}

	done := ci.logger.LogOperationStart("import catalog", map[string]interface{}{
		"run_id":     summary.RunID,
		"file":       sourceFile,
		"batch_size": ci.batchSize,
	})

	products, err := ParseCatalog(sourceFile)
	if err != nil {
		done(err)
		return nil, err
	}
	summary.Expected = len(products)

	batches, err := Partition(products, ci.batchSize)
	if err != nil {
		done(err)
		return nil, err
	}

	if err := ci.reset(ctx); err != nil {
		done(err)
		return nil, err
	}

	committed, err := runBatches(ctx, ci.db, ci.logger, DatasetCatalog, batches, ci.progress,
		func(ctx context.Context, tx *database.Tx, p ProductRecord) error {
			id, err := tx.InsertReturningID(ctx, insertProductSQL,
				p.Name, p.Description, p.Price.StringFixed(2), p.Category)
			if err != nil {
				return err
			}
			for _, v := range p.Variants() {
				if _, err := tx.Exec(ctx, insertFlavorSQL, id, v.Name, v.Stock, v.Price.StringFixed(2)); err != nil {
					return err
				}
			}
			return nil
		})
	summary.BatchCount = committed
	summary.InsertedCount, summary.ChildCount = committedCounts(batches[:committed])
	if err != nil {
		summary.Duration = time.Since(start)
		done(err)
		return summary, err
	}

	if err := ci.verify(ctx, summary); err != nil {
		done(err)
		return summary, err
	}

	summary.Duration = time.Since(start)
	done(nil)
	return summary, nil
}

// reset clears both tables, children first, and restarts their identifiers
func (ci *CatalogImporter) reset(ctx context.Context) error {
	for _, table := range []string{"flavors", "products"} {
		if _, err := ci.db.Exec(ctx, "DELETE FROM "+table); err != nil {
			return errors.WrapError(err, "failed to clear "+table)
		}
	}
	if err := ci.db.ResetSequences(ctx, "flavors", "products"); err != nil {
		return err
	}
	ci.logger.Info("Catalog tables cleared")
	return nil
}

func (ci *CatalogImporter) verify(ctx context.Context, summary *ImportSummary) error {
	actual, err := ci.db.Count(ctx, "SELECT COUNT(*) FROM products")
	if err != nil {
		return err
	}
	summary.ActualCount = actual

	if actual != summary.Expected {
		summary.CountMismatch = true
		ci.logger.WithFields(map[string]interface{}{
			"run_id":   summary.RunID,
			"expected": summary.Expected,
			"actual":   actual,
		}).Warn("Product count does not match dataset")
	}
	return nil
}

func committedCounts(batches []Batch[ProductRecord]) (products, flavors int) {
	for _, b := range batches {
		products += len(b.Records)
		for _, p := range b.Records {
			flavors += len(p.Variants())
		}
	}
	return products, flavors
}
