package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/logging"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	price TEXT NOT NULL,
	category TEXT NOT NULL CHECK (category <> 'forbidden')
);
CREATE TABLE flavors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id),
	name TEXT NOT NULL,
	stock INTEGER NOT NULL,
	price TEXT NOT NULL
);
CREATE TABLE store_locations (
	id TEXT PRIMARY KEY,
	name TEXT,
	phone TEXT,
	address TEXT,
	lat REAL,
	lng REAL,
	city TEXT,
	area TEXT,
	service_tags TEXT,
	updated_at TIMESTAMP
);`

func openShopDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "shop.db")
	cfg.CreateIfMissing = true
	cfg.ConnectRetries = 1

	db, err := database.Connect(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(context.Background(), testSchema)
	require.NoError(t, err)
	return db
}

func writeDataset(t *testing.T, name string, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func countRows(t *testing.T, db *database.DB, query string, args ...any) int {
	t.Helper()
	n, err := db.Count(context.Background(), query, args...)
	require.NoError(t, err)
	return n
}
