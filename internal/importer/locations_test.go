package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"shop-lifecycle/internal/database"
	apperrors "shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickingClock struct {
	t time.Time
}

func (c *tickingClock) now() time.Time { return c.t }

func (c *tickingClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLocationImporter_Import(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()
	clock := &tickingClock{t: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}

	summary, err := NewLocationImporter(db, 100, logging.NewNopLogger()).
		WithClock(clock.now).
		Import(ctx, filepath.Join("testdata", "locations.json"))
	require.NoError(t, err)

	assert.Equal(t, DatasetLocations, summary.Dataset)
	assert.Equal(t, 2, summary.Expected)
	assert.Equal(t, 2, summary.InsertedCount)
	assert.Equal(t, 1, summary.BatchCount)
	assert.Equal(t, 2, summary.ActualCount)
	assert.False(t, summary.CountMismatch)

	var tags string
	var lat float64
	require.NoError(t, db.QueryRow(ctx, "SELECT service_tags, lat FROM store_locations WHERE id = ?", "loc-001").Scan(&tags, &lat))
	assert.JSONEq(t, `["pickup","returns"]`, tags)
	assert.InDelta(t, 41.0369, lat, 1e-9)

	require.NoError(t, db.QueryRow(ctx, "SELECT service_tags FROM store_locations WHERE id = ?", "loc-002").Scan(&tags))
	assert.Equal(t, "[]", tags)
}

func TestLocationImporter_UpsertRefreshesRow(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()
	clock := &tickingClock{t: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
	imp := NewLocationImporter(db, 100, logging.NewNopLogger()).WithClock(clock.now)

	loc := LocationRecord{ID: "loc-9", Name: "Old Name", Address: "1 First St", City: "Ankara"}
	_, err := imp.Import(ctx, writeDataset(t, "v1.json", []LocationRecord{loc}))
	require.NoError(t, err)

	var firstUpdated time.Time
	require.NoError(t, db.QueryRow(ctx, "SELECT updated_at FROM store_locations WHERE id = ?", "loc-9").Scan(&firstUpdated))

	clock.advance(time.Hour)
	loc.Address = "2 Second St"
	loc.Name = "New Name"
	_, err = imp.Import(ctx, writeDataset(t, "v2.json", []LocationRecord{loc}))
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM store_locations WHERE id = ?", "loc-9"))

	var name, address string
	var updated time.Time
	require.NoError(t, db.QueryRow(ctx,
		"SELECT name, address, updated_at FROM store_locations WHERE id = ?", "loc-9").Scan(&name, &address, &updated))
	assert.Equal(t, "New Name", name)
	assert.Equal(t, "2 Second St", address)
	assert.True(t, updated.After(firstUpdated), "updated_at %v should be after %v", updated, firstUpdated)
	assert.True(t, updated.Equal(clock.now()))
}

func TestLocationImporter_DuplicateIdsCollapse(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()

	records := []LocationRecord{
		{ID: "a", Address: "first"},
		{ID: "b", Address: "only"},
		{ID: "a", Address: "second"},
	}
	summary, err := NewLocationImporter(db, 2, logging.NewNopLogger()).
		Import(ctx, writeDataset(t, "dups.json", records))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Expected)
	assert.Equal(t, 2, summary.ActualCount)
	assert.True(t, summary.CountMismatch)

	var address string
	require.NoError(t, db.QueryRow(ctx, "SELECT address FROM store_locations WHERE id = ?", "a").Scan(&address))
	assert.Equal(t, "second", address)
}

func TestLocationImporter_NumericIDsStoredAsText(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "numeric.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1001, "name": "Central"}, {"id": 1002, "name": "Harbour"}]`), 0o644))

	summary, err := NewLocationImporter(db, 100, logging.NewNopLogger()).Import(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActualCount)
	assert.False(t, summary.CountMismatch)

	var name string
	require.NoError(t, db.QueryRow(ctx, "SELECT name FROM store_locations WHERE id = ?", "1001").Scan(&name))
	assert.Equal(t, "Central", name)
}

func TestLocationImporter_EmptyIDRejectedBeforeWrite(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()

	records := []LocationRecord{{ID: "ok-1"}, {ID: ""}}
	_, err := NewLocationImporter(db, 100, logging.NewNopLogger()).
		Import(ctx, writeDataset(t, "bad.json", records))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.GetErrorType(err))
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM store_locations"))
}

func TestLocationImporter_VerifiesInChunks(t *testing.T) {
	db := openShopDB(t)
	ctx := context.Background()

	records := make([]LocationRecord, 0, verifyChunkSize+20)
	for i := 0; i < verifyChunkSize+20; i++ {
		records = append(records, LocationRecord{ID: LocationID(fmt.Sprintf("loc-%04d", i))})
	}

	summary, err := NewLocationImporter(db, 250, logging.NewNopLogger()).
		Import(ctx, writeDataset(t, "many.json", records))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.BatchCount)
	assert.Equal(t, len(records), summary.ActualCount)
	assert.False(t, summary.CountMismatch)
}

func TestLocationImporter_PostgresUpsert(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	dialect, err := database.DialectFor(database.DriverPostgres)
	require.NoError(t, err)
	db := database.New(sqlDB, dialect, logging.NewNopLogger(), time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "store_locations" ("id", "name", "phone", "address", "lat", "lng", "city", "area", "service_tags", "updated_at") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name"`)).
		WithArgs("loc-001", "Central Pickup", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"Istanbul", "Beyoglu", `["pickup","returns"]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "store_locations"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM store_locations WHERE id IN ($1, $2)`)).
		WithArgs("loc-001", "loc-002").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	summary, err := NewLocationImporter(db, 100, logging.NewNopLogger()).
		Import(context.Background(), filepath.Join("testdata", "locations.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActualCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
