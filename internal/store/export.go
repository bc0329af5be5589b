package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// CatalogWriter writes catalog rows into a sqlite table, batchSize rows per
// transaction.
type CatalogWriter struct {
	db        *sql.DB
	table     string
	columns   []string
	batchSize int

	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
	written int
}

// NewCatalogWriter (re)creates table in the sqlite file at path with one
// column per catalog column.
func NewCatalogWriter(ctx context.Context, path, table string, columns []string, batchSize int) (*CatalogWriter, error) {
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	for _, c := range columns {
		if !ValidIdentifier(c) {
			return nil, fmt.Errorf("invalid column name %q", c)
		}
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
	}
	ddl := []string{
		`DROP TABLE IF EXISTS "` + table + `"`,
		`CREATE TABLE "` + table + `" (` + strings.Join(quoted, ", ") + `)`,
	}
	for _, q := range ddl {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			conn.Close()
			return nil, fmt.Errorf("preparing export table %s: %w", table, err)
		}
	}
	return &CatalogWriter{db: conn, table: table, columns: quoted, batchSize: batchSize}, nil
}

// Write appends one row
func (w *CatalogWriter) Write(ctx context.Context, row []interface{}) error {
	if w.tx == nil {
		if err := w.begin(ctx); err != nil {
			return err
		}
	}
	if _, err := w.stmt.ExecContext(ctx, row...); err != nil {
		return fmt.Errorf("inserting into %s: %w", w.table, err)
	}
	w.pending++
	if w.pending >= w.batchSize {
		return w.commit()
	}
	return nil
}

func (w *CatalogWriter) begin(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(w.columns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO "`+w.table+`" (`+strings.Join(w.columns, ", ")+`) VALUES (`+marks+`)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	w.tx, w.stmt = tx, stmt
	return nil
}

func (w *CatalogWriter) commit() error {
	if w.tx == nil {
		return nil
	}
	w.stmt.Close()
	err := w.tx.Commit()
	w.tx, w.stmt = nil, nil
	if err != nil {
		return fmt.Errorf("committing rows to %s: %w", w.table, err)
	}
	w.written += w.pending
	w.pending = 0
	return nil
}

// Close commits outstanding rows and closes the database. It returns the
// number of rows committed.
func (w *CatalogWriter) Close() (int, error) {
	err := w.commit()
	if cerr := w.db.Close(); err == nil {
		err = cerr
	}
	return w.written, err
}
