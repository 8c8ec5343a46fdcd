package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/errors"
)

// Inspector reads live column metadata. The catalog query is the only part
// that differs between engines and comes from the connection's dialect.
type Inspector struct {
	db           *database.DB
	queryTimeout time.Duration
}

// NewInspector creates an inspector bound to an open connection
func NewInspector(db *database.DB) *Inspector {
	timeout := db.QueryTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Inspector{db: db, queryTimeout: timeout}
}

// ColumnSet is a case-insensitive set of column names
type ColumnSet map[string]string

// NewColumnSet builds a set from column names
func NewColumnSet(names []string) ColumnSet {
	set := make(ColumnSet, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = n
	}
	return set
}

// Has reports whether the column is present
func (s ColumnSet) Has(column string) bool {
	_, ok := s[strings.ToLower(column)]
	return ok
}

// ListColumns returns the table's column names in declaration order.
// A table that does not exist is reported as a schema error.
func (i *Inspector) ListColumns(ctx context.Context, table string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.queryTimeout)
	defer cancel()

	query, args := i.db.Dialect().ColumnsQuery(table)
	rows, err := i.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("failed to query columns for table %s", table))
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapError(err, fmt.Sprintf("failed to scan column for table %s", table))
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("error iterating columns for table %s", table))
	}

	if len(columns) == 0 {
		return nil, errors.NewAppError(errors.ErrorTypeSchema, fmt.Sprintf("table %s does not exist", table), nil).
			WithContext("table", table)
	}

	return columns, nil
}

// Columns returns the live column set of a table
func (i *Inspector) Columns(ctx context.Context, table string) (ColumnSet, error) {
	names, err := i.ListColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	return NewColumnSet(names), nil
}

// ColumnExists reports whether table.column is present in the live schema
func (i *Inspector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	set, err := i.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	return set.Has(column), nil
}
