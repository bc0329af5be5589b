package model

import "time"

// ColumnStats summarises one numeric output column of a catalog
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int64   `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// CatalogSummary is stored once a catalog job finishes
type CatalogSummary struct {
	JobID       string        `json:"job_id"`
	RowsEmitted int64         `json:"rows_emitted"`
	RowsSkipped int64         `json:"rows_skipped"`
	Columns     []ColumnStats `json:"columns"`
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "database", "text", "json"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
