package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect holds the engine-specific SQL. Statements handed to a Dialect and
// produced by it use '?' placeholders; Rebind converts them for the engine.
type Dialect interface {
	Name() Driver
	Rebind(query string) string
	QuoteIdent(name string) string

	// ColumnsQuery returns a query yielding one column name per row, in
	// declaration order. A missing table yields no rows.
	ColumnsQuery(table string) (string, []any)
	AddColumnSQL(table, column, definition string) string

	// UpsertSQL builds an insert that overwrites every non-key column on a key collision.
	UpsertSQL(table, key string, columns []string) string

	InsertReturningID(ctx context.Context, q Queryer, query string, args ...any) (int64, error)
	ResetSequences(ctx context.Context, q Queryer, tables ...string) error
}

// DialectFor returns the dialect for a driver
func DialectFor(driver Driver) (Dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func insertColumns(d Dialect, table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), placeholders)
}

func execInsertID(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type sqliteDialect struct{}

func (sqliteDialect) Name() Driver { return DriverSQLite }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) ColumnsQuery(table string) (string, []any) {
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []any{table}
}

func (d sqliteDialect) AddColumnSQL(table, column, definition string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), definition)
}

func (d sqliteDialect) UpsertSQL(table, key string, columns []string) string {
	return insertColumns(d, table, columns) + onConflictUpdate(d, key, columns)
}

func (sqliteDialect) InsertReturningID(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	return execInsertID(ctx, q, query, args...)
}

// ResetSequences clears AUTOINCREMENT counters. sqlite_sequence only exists
// once some table declares AUTOINCREMENT.
func (sqliteDialect) ResetSequences(ctx context.Context, q Queryer, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}

	var exists int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'").Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return nil
	}

	args := make([]any, len(tables))
	for i, t := range tables {
		args[i] = t
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tables)), ", ")
	_, err = q.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name IN ("+placeholders+")", args...)
	return err
}

type postgresDialect struct{}

func (postgresDialect) Name() Driver { return DriverPostgres }

// Rebind rewrites '?' placeholders into $1, $2, ...
func (postgresDialect) Rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) ColumnsQuery(table string) (string, []any) {
	return "SELECT column_name FROM information_schema.columns " +
		"WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position", []any{table}
}

func (d postgresDialect) AddColumnSQL(table, column, definition string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), definition)
}

func (d postgresDialect) UpsertSQL(table, key string, columns []string) string {
	return insertColumns(d, table, columns) + onConflictUpdate(d, key, columns)
}

func (d postgresDialect) InsertReturningID(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id)
	return id, err
}

func (d postgresDialect) ResetSequences(ctx context.Context, q Queryer, tables ...string) error {
	for _, t := range tables {
		if _, err := q.ExecContext(ctx, d.Rebind("SELECT setval(pg_get_serial_sequence(?, 'id'), 1, false)"), t); err != nil {
			return fmt.Errorf("reset sequence for %s: %w", t, err)
		}
	}
	return nil
}

type mysqlDialect struct{}

func (mysqlDialect) Name() Driver { return DriverMySQL }

func (mysqlDialect) Rebind(query string) string { return query }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) ColumnsQuery(table string) (string, []any) {
	return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{table}
}

func (d mysqlDialect) AddColumnSQL(table, column, definition string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.QuoteIdent(table), d.QuoteIdent(column), definition)
}

func (d mysqlDialect) UpsertSQL(table, key string, columns []string) string {
	var sets []string
	for _, c := range columns {
		if c == key {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", d.QuoteIdent(c), d.QuoteIdent(c)))
	}
	return insertColumns(d, table, columns) + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func (mysqlDialect) InsertReturningID(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	return execInsertID(ctx, q, query, args...)
}

func (d mysqlDialect) ResetSequences(ctx context.Context, q Queryer, tables ...string) error {
	for _, t := range tables {
		if _, err := q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = 1", d.QuoteIdent(t))); err != nil {
			return fmt.Errorf("reset auto increment for %s: %w", t, err)
		}
	}
	return nil
}

func onConflictUpdate(d Dialect, key string, columns []string) string {
	var sets []string
	for _, c := range columns {
		if c == key {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", d.QuoteIdent(c), d.QuoteIdent(c)))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", d.QuoteIdent(key), strings.Join(sets, ", "))
}
