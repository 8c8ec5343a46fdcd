package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	apperrors "shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedProducts(n int) []ProductRecord {
	products := make([]ProductRecord, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, ProductRecord{
			Name:     fmt.Sprintf("Product %03d", i),
			Category: "liquids",
			Price:    decimal.NewFromInt(int64(10 + i)),
			Stock:    i,
		})
	}
	return products
}

func TestCatalogImporter_Import(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()

	var progress []int
	summary, err := NewCatalogImporter(db, 2, logging.NewNopLogger()).
		WithProgress(func(committed, total int) { progress = append(progress, committed) }).
		Import(ctx, filepath.Join("testdata", "catalog.json"))
	require.NoError(t, err)

	assert.Equal(t, DatasetCatalog, summary.Dataset)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Expected)
	assert.Equal(t, 3, summary.InsertedCount)
	assert.Equal(t, 5, summary.ChildCount)
	assert.Equal(t, 2, summary.BatchCount)
	assert.Equal(t, 3, summary.ActualCount)
	assert.False(t, summary.CountMismatch)
	assert.Equal(t, []int{1, 2}, progress)

	// identifiers start at 1 in source order
	var name string
	require.NoError(t, db.QueryRow(ctx, "SELECT name FROM products WHERE id = ?", 1).Scan(&name))
	assert.Equal(t, "Classic Vape Juice", name)

	rows, err := db.Query(ctx, "SELECT f.name, f.price FROM flavors f WHERE f.product_id = ? ORDER BY f.id", 1)
	require.NoError(t, err)
	defer rows.Close()
	var names, prices []string
	for rows.Next() {
		var n, p string
		require.NoError(t, rows.Scan(&n, &p))
		names = append(names, n)
		prices = append(prices, p)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"3mg", "6mg", "0mg"}, names)
	assert.Equal(t, []string{"100.00", "105.00", "95.00"}, prices)
}

func TestCatalogImporter_DefaultFlavor(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()

	_, err := NewCatalogImporter(db, 5, logging.NewNopLogger()).
		Import(ctx, filepath.Join("testdata", "catalog.json"))
	require.NoError(t, err)

	var (
		flavorName, flavorPrice, productPrice string
		flavorStock                           int
	)
	err = db.QueryRow(ctx, `SELECT f.name, f.stock, f.price, p.price
		FROM flavors f JOIN products p ON p.id = f.product_id
		WHERE p.name = ?`, "Starter Pod Kit").Scan(&flavorName, &flavorStock, &flavorPrice, &productPrice)
	require.NoError(t, err)

	assert.Equal(t, DefaultFlavorName, flavorName)
	assert.Equal(t, 7, flavorStock)
	assert.Equal(t, "249.90", flavorPrice)
	assert.Equal(t, productPrice, flavorPrice)

	// every product has at least one flavor
	assert.Equal(t, 0, countRows(t, db,
		"SELECT COUNT(*) FROM products p WHERE NOT EXISTS (SELECT 1 FROM flavors f WHERE f.product_id = p.id)"))
}

func TestCatalogImporter_ResetReplacesCatalog(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()
	imp := NewCatalogImporter(db, 5, logging.NewNopLogger())

	first := writeDataset(t, "first.json", numberedProducts(8))
	_, err := imp.Import(ctx, first)
	require.NoError(t, err)

	second := writeDataset(t, "second.json", numberedProducts(3))
	summary, err := imp.Import(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ActualCount)
	assert.Equal(t, 3, countRows(t, db, "SELECT COUNT(*) FROM flavors"))
	// sequences restart, so ids are 1..3 again
	assert.Equal(t, 3, countRows(t, db, "SELECT MAX(id) FROM products"))
	assert.Equal(t, 3, countRows(t, db, "SELECT MAX(id) FROM flavors"))
}

func TestCatalogImporter_BatchAtomicity(t *testing.T) {
	tests := []struct {
		name          string
		failingRecord int // 1-based
		wantBatches   int
	}{
		{"first record of batch 11", 51, 10},
		{"middle of batch 11", 53, 10},
		{"first batch", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openShopDB(t)
			ctx := context.Background()

			products := numberedProducts(100)
			products[tt.failingRecord-1].Category = "forbidden"
			path := writeDataset(t, "catalog.json", products)

			summary, err := NewCatalogImporter(db, 5, logging.NewNopLogger()).Import(ctx, path)
			require.Error(t, err)

			var batchErr *BatchError
			require.ErrorAs(t, err, &batchErr)
			assert.Equal(t, tt.wantBatches, batchErr.BatchIndex)
			assert.Equal(t, tt.failingRecord-1, batchErr.RecordIndex)
			assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.NewErrorClassifier().ClassifyError(batchErr.Cause).Type)

			require.NotNil(t, summary)
			assert.Equal(t, tt.wantBatches, summary.BatchCount)

			committed := tt.wantBatches * 5
			assert.Equal(t, committed, countRows(t, db, "SELECT COUNT(*) FROM products"))
			assert.Equal(t, committed, countRows(t, db, "SELECT COUNT(*) FROM flavors"))

			// nothing from the failed batch or after it is visible
			firstOfFailed := fmt.Sprintf("Product %03d", committed+1)
			assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM products WHERE name >= ?", firstOfFailed))
		})
	}
}

func TestCatalogImporter_ParseFailureLeavesStoreUntouched(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()
	imp := NewCatalogImporter(db, 5, logging.NewNopLogger())

	_, err := imp.Import(ctx, writeDataset(t, "good.json", numberedProducts(4)))
	require.NoError(t, err)

	_, err = imp.Import(ctx, filepath.Join("testdata", "malformed.json"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.GetErrorType(err))

	assert.Equal(t, 4, countRows(t, db, "SELECT COUNT(*) FROM products"))
	assert.Equal(t, 4, countRows(t, db, "SELECT COUNT(*) FROM flavors"))
}

func TestCatalogImporter_EmptyDataset(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()
	imp := NewCatalogImporter(db, 5, logging.NewNopLogger())

	_, err := imp.Import(ctx, writeDataset(t, "seed.json", numberedProducts(2)))
	require.NoError(t, err)

	summary, err := imp.Import(ctx, writeDataset(t, "empty.json", []ProductRecord{}))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.BatchCount)
	assert.Equal(t, 0, summary.ActualCount)
	assert.False(t, summary.CountMismatch)
}

func TestCatalogImporter_CanceledContext(t *testing.T) {
	db := openShopDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	imp := NewCatalogImporter(db, 1, logging.NewNopLogger())
	imp.WithProgress(func(committed, total int) {
		if committed == 2 {
			cancel()
		}
	})

	summary, err := imp.Import(ctx, writeDataset(t, "catalog.json", numberedProducts(5)))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInterruption, apperrors.GetErrorType(err))
	assert.Equal(t, 2, summary.BatchCount)
	assert.Equal(t, 2, countRows(t, db, "SELECT COUNT(*) FROM products"))
}
