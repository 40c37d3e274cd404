package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/lib/pq"
)

//go:embed schema_postgres.sql
var postgresSchema string

// NewPostgres wraps a database opened with the lib/pq driver.
func NewPostgres(db *sql.DB) *SQL {
	return &SQL{db: db, read: db, dialect: dialect{
		name:       "postgres",
		schema:     postgresSchema,
		insertMany: copyIn,
	}}
}

// copyIn streams rows with COPY FROM STDIN, which lib/pq only allows inside
// a transaction.
func copyIn(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}
	return nil
}
