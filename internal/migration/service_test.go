package migration

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"shop-lifecycle/internal/database"
	apperrors "shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"
	"shop-lifecycle/internal/schema"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T, ddl ...string) *database.DB {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "shop.db")
	cfg.CreateIfMissing = true

	db, err := database.Connect(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range ddl {
		_, err := db.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}
	return db
}

func TestRun_AddsMissingColumnsOnce(t *testing.T) {
	db := setupSQLite(t,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, total NUMERIC(10,2) NOT NULL)`,
		`INSERT INTO orders (total) VALUES (19.90), (5.00)`,
	)
	service := NewService(db, logging.NewNopLogger())
	ctx := context.Background()

	first, err := service.Run(ctx, DefaultSteps())
	require.NoError(t, err)
	assert.Equal(t, 3, first.AddedCount())
	assert.Empty(t, first.Skipped)
	assert.NotEmpty(t, first.RunID)

	columnsAfterFirst, err := schema.NewInspector(db).ListColumns(ctx, "orders")
	require.NoError(t, err)

	second, err := service.Run(ctx, DefaultSteps())
	require.NoError(t, err)
	assert.Equal(t, 0, second.AddedCount())
	assert.Len(t, second.Skipped, 3)

	columnsAfterSecond, err := schema.NewInspector(db).ListColumns(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, columnsAfterFirst, columnsAfterSecond)
	assert.Equal(t, []string{"id", "total", "coupon_code", "discount_amount", "final_amount"}, columnsAfterSecond)

	// existing rows keep their data and pick up the declared default
	count, err := db.Count(ctx, "SELECT COUNT(*) FROM orders WHERE final_amount = 0 AND coupon_code IS NULL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRun_PartiallyAppliedSchema(t *testing.T) {
	db := setupSQLite(t,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, coupon_code VARCHAR(64))`,
	)

	report, err := NewService(db, logging.NewNopLogger()).Run(context.Background(), DefaultSteps())
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "coupon_code", report.Skipped[0].Column)
	assert.Equal(t, 2, report.AddedCount())
}

func TestRun_MissingTable(t *testing.T) {
	db := setupSQLite(t, `CREATE TABLE products (id INTEGER PRIMARY KEY)`)

	_, err := NewService(db, logging.NewNopLogger()).Run(context.Background(), DefaultSteps())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeSchema, apperrors.GetErrorType(err))
}

func TestRun_InvalidSteps(t *testing.T) {
	db := setupSQLite(t)

	_, err := NewService(db, logging.NewNopLogger()).Run(context.Background(), []Step{
		{Table: "orders", Column: "x; DROP TABLE orders", Definition: "INT"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.GetErrorType(err))
}

func newMySQLService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	dialect, err := database.DialectFor(database.DriverMySQL)
	require.NoError(t, err)

	db := database.New(sqlDB, dialect, logging.NewNopLogger(), time.Second)
	return NewService(db, logging.NewNopLogger()), mock
}

func columnRows(names ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"COLUMN_NAME"})
	for _, n := range names {
		rows.AddRow(n)
	}
	return rows
}

func TestRun_MySQLStatements(t *testing.T) {
	service, mock := newMySQLService(t)

	steps := []Step{{Table: "orders", Column: "coupon_code", Definition: "VARCHAR(64) DEFAULT NULL"}}

	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id", "total"))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `orders` ADD COLUMN `coupon_code` VARCHAR(64) DEFAULT NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id", "total", "coupon_code"))

	report, err := service.Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AddedCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_VerificationFailure(t *testing.T) {
	service, mock := newMySQLService(t)

	steps := []Step{{Table: "orders", Column: "final_amount", Definition: "NUMERIC(10,2) DEFAULT 0"}}

	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id"))
	mock.ExpectExec("ALTER TABLE `orders` ADD COLUMN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id"))

	_, err := service.Run(context.Background(), steps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))
	assert.Equal(t, apperrors.ErrorTypeIntegrity, apperrors.GetErrorType(err))
	assert.Contains(t, apperrors.FormatUserError(err), "orders.final_amount")
}

func TestRun_ConcurrentAddCountsAsSkipped(t *testing.T) {
	service, mock := newMySQLService(t)

	steps := []Step{{Table: "orders", Column: "coupon_code", Definition: "VARCHAR(64)"}}

	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id"))
	mock.ExpectExec("ALTER TABLE").WillReturnError(errors.New("Duplicate column name 'coupon_code'"))
	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id", "coupon_code"))
	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id", "coupon_code"))

	report, err := service.Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, 0, report.AddedCount())
	assert.Len(t, report.Skipped, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_AlterFailure(t *testing.T) {
	service, mock := newMySQLService(t)

	steps := []Step{{Table: "orders", Column: "coupon_code", Definition: "VARCHAR(64)"}}

	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id"))
	mock.ExpectExec("ALTER TABLE").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders").WillReturnRows(columnRows("id"))

	report, err := service.Run(context.Background(), steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add column orders.coupon_code")
	assert.Equal(t, 0, report.AddedCount())
}

func TestStatus(t *testing.T) {
	db := setupSQLite(t, `CREATE TABLE orders (id INTEGER PRIMARY KEY, discount_amount NUMERIC(10,2))`)

	statuses, err := NewService(db, logging.NewNopLogger()).Status(context.Background(), DefaultSteps())
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, StatePending, statuses[0].State)
	assert.Equal(t, StateApplied, statuses[1].State)
	assert.Equal(t, StatePending, statuses[2].State)

	columns, err := schema.NewInspector(db).ListColumns(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, columns, 2, "status must not change the schema")
}
