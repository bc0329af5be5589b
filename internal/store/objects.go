package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"go-instance-catalog/pkg/utils"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name can be used as a table or column name
func ValidIdentifier(name string) bool { return identifier.MatchString(name) }

// driverName maps source types to database/sql driver names
func driverName(sourceType string) (string, error) {
	switch strings.ToLower(sourceType) {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql":
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database source type: %s", sourceType)
}

// ObjectSource reads object rows from a database table.
type ObjectSource struct {
	db    *sql.DB
	table string
}

// OpenObjectSource connects to a sqlite file or a postgres DSN.
func OpenObjectSource(ctx context.Context, sourceType, dsn, table string) (*ObjectSource, error) {
	driver, err := driverName(sourceType)
	if err != nil {
		return nil, err
	}
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s source: %w", driver, err)
	}
	return &ObjectSource{db: conn, table: table}, nil
}

// Close releases the connection
func (s *ObjectSource) Close() error { return s.db.Close() }

// Stream hands every row of the table to emit as a field map. It stops when
// emit returns false or ctx is cancelled.
func (s *ObjectSource) Stream(ctx context.Context, emit func(map[string]interface{}) bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.table)
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	count := 0
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return count, fmt.Errorf("scanning %s: %w", s.table, err)
		}
		rec := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			v := vals[i]
			// drivers hand back text columns as bytes
			if b, ok := v.([]byte); ok {
				v = utils.ParseValue(string(b))
			}
			rec[c] = v
		}
		if !emit(rec) {
			return count, ctx.Err()
		}
		count++
	}
	return count, rows.Err()
}
