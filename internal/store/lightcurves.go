package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"go-instance-catalog/internal/variability"
)

// LightCurveDB serves light curves from a sqlite table
//
//	light_curves(key TEXT PRIMARY KEY, data TEXT)
//
// where data holds the text form read by variability.ParseTable.
type LightCurveDB struct {
	db *sql.DB
}

// OpenLightCurveDB opens (and if needed creates) a light curve database
func OpenLightCurveDB(path string) (*LightCurveDB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS light_curves (key TEXT PRIMARY KEY, data TEXT)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("preparing light_curves table: %w", err)
	}
	return &LightCurveDB{db: conn}, nil
}

// Close releases the database
func (l *LightCurveDB) Close() error { return l.db.Close() }

// Put stores the text form of a light curve under key
func (l *LightCurveDB) Put(ctx context.Context, key, data string) error {
	_, err := l.db.ExecContext(ctx, `INSERT OR REPLACE INTO light_curves (key, data) VALUES (?, ?)`, key, data)
	return err
}

// Load implements variability.Loader
func (l *LightCurveDB) Load(ctx context.Context, key string) (*variability.Table, error) {
	var data string
	err := l.db.QueryRowContext(ctx, `SELECT data FROM light_curves WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key %s: %w", key, variability.ErrNoData)
	}
	if err != nil {
		return nil, err
	}
	return variability.ParseTable(key, strings.NewReader(data))
}
