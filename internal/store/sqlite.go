package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// NewSQLite wraps databases opened with the modernc.org/sqlite driver. db is
// the single writer; read serves queries outside transactions and may be db.
func NewSQLite(db, read *sql.DB) *SQL {
	if read == nil {
		read = db
	}
	return &SQL{db: db, read: read, dialect: dialect{
		name:       "sqlite",
		schema:     sqliteSchema,
		insertMany: insertRows,
	}}
}

func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return nil
}
