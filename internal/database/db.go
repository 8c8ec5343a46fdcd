package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"
)

// DB is the connection handle owned by a single command run. All statements
// are written with '?' placeholders and rebound for the active dialect.
type DB struct {
	sqlDB        *sql.DB
	dialect      Dialect
	logger       *logging.Logger
	queryTimeout time.Duration
}

// New wraps an open *sql.DB
func New(sqlDB *sql.DB, dialect Dialect, logger *logging.Logger, queryTimeout time.Duration) *DB {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &DB{
		sqlDB:        sqlDB,
		dialect:      dialect,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// Dialect returns the engine dialect selected at connect time
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// QueryTimeout returns the per-statement timeout, zero meaning none
func (d *DB) QueryTimeout() time.Duration {
	return d.queryTimeout
}

// Close releases the underlying pool
func (d *DB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	d.logger.Debug("Closing database connection")
	if err := d.sqlDB.Close(); err != nil {
		return errors.WrapError(err, "failed to close database connection")
	}
	return nil
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// Exec runs a statement outside any transaction
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return execLogged(ctx, d.sqlDB, d.dialect, d.logger, query, args...)
}

// Query runs a query. The caller owns the returned rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.sqlDB.QueryContext(ctx, d.dialect.Rebind(query), args...)
	if err != nil {
		d.logger.LogSQLExecution(query, time.Since(start), 0, err)
	}
	return rows, err
}

// QueryRow runs a query expected to return at most one row
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sqlDB.QueryRowContext(ctx, d.dialect.Rebind(query), args...)
}

// Count runs a single-value integer query such as SELECT COUNT(*)
func (d *DB) Count(ctx context.Context, query string, args ...any) (int, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var n int
	if err := d.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.WrapError(err, "failed to count rows")
	}
	return n, nil
}

// ResetSequences restarts identifier sequences of the given tables at 1
func (d *DB) ResetSequences(ctx context.Context, tables ...string) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := d.dialect.ResetSequences(ctx, d.sqlDB, tables...)
	d.logger.LogSQLExecution(fmt.Sprintf("reset sequences %v", tables), time.Since(start), 0, err)
	if err != nil {
		return errors.WrapError(err, "failed to reset identifier sequences")
	}
	return nil
}

// Transaction runs fn inside one transaction. It commits when fn returns nil
// and rolls back on error or panic.
func (d *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, "failed to begin transaction")
	}

	tx := &Tx{tx: sqlTx, db: d}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rollbackErr := sqlTx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
				d.logger.WithField("error", rollbackErr.Error()).Error("Failed to rollback transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return errors.WrapError(err, "failed to commit transaction")
	}
	return nil
}

// Tx is a transaction scoped to one Transaction callback
type Tx struct {
	tx *sql.Tx
	db *DB
}

// Exec runs a statement inside the transaction
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := t.db.withTimeout(ctx)
	defer cancel()
	return execLogged(ctx, t.tx, t.db.dialect, t.db.logger, query, args...)
}

// QueryRow runs a single-row query inside the transaction
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.db.dialect.Rebind(query), args...)
}

// InsertReturningID runs an INSERT and returns the identifier the store assigned
func (t *Tx) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := t.db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	id, err := t.db.dialect.InsertReturningID(ctx, t.tx, t.db.dialect.Rebind(query), args...)
	t.db.logger.LogSQLExecution(query, time.Since(start), 1, err)
	return id, err
}

func execLogged(ctx context.Context, q Queryer, dialect Dialect, logger *logging.Logger, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := q.ExecContext(ctx, dialect.Rebind(query), args...)

	var rowsAffected int64
	if result != nil && err == nil {
		rowsAffected, _ = result.RowsAffected()
	}
	logger.LogSQLExecution(query, time.Since(start), rowsAffected, err)

	return result, err
}
