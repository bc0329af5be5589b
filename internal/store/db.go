package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"go-instance-catalog/internal/model"
)

var db *sql.DB

// ErrJobNotFound is returned for unknown job IDs
var ErrJobNotFound = errors.New("job not found")

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	// sqlite serialises writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	// Create tables if not exists
	tables := []string{`
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		output_path TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS job_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT,
		stage TEXT,
		row_id TEXT,
		column_name TEXT,
		error_type TEXT,
		error_message TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS job_summaries (
		job_id TEXT PRIMARY KEY,
		summary TEXT,
		created_at DATETIME
	);`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return err
		}
	}
	return nil
}

// Ready reports whether InitDB has opened the job database
func Ready() bool { return db != nil }

// CloseDB closes the job database
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveJob stores a new catalog job
func SaveJob(jobID string, spec model.CatalogJobSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO jobs (id, spec, status, output_path, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?)`,
		jobID, string(specJSON), "pending", now, now)
	return err
}

// SaveJobError records a job-level error
func SaveJobError(jobID string, err error) error {
	if err == nil {
		return nil
	}
	return SaveErrorDetail(jobID, model.ErrorDetail{
		Timestamp: time.Now().UTC(),
		Stage:     "job",
		ErrorType: "job_error",
		Message:   err.Error(),
	})
}

// SaveErrorDetail records a per-row error
func SaveErrorDetail(jobID string, d model.ErrorDetail) error {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	_, err := db.Exec(`INSERT INTO job_errors (job_id, stage, row_id, column_name, error_type, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID, d.Stage, d.RowID, d.Column, d.ErrorType, d.Message, d.Timestamp)
	return err
}

// GetJobErrors returns the errors recorded for a job, oldest first
func GetJobErrors(jobID string) ([]model.ErrorDetail, error) {
	rows, err := db.Query(`SELECT stage, row_id, column_name, error_type, error_message, created_at
		FROM job_errors WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.Stage, &d.RowID, &d.Column, &d.ErrorType, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		errs = append(errs, d)
	}
	return errs, rows.Err()
}

// ListJobs returns all jobs with basic info
func ListJobs() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []map[string]interface{}{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return jobs, rows.Err()
}

// GetJob fetches full job spec and status
func GetJob(jobID string) (map[string]interface{}, error) {
	var specJSON, status, outputPath string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, output_path, created_at, updated_at FROM jobs WHERE id = ?`, jobID).
		Scan(&specJSON, &status, &outputPath, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	var spec model.CatalogJobSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, fmt.Errorf("decoding spec of job %s: %w", jobID, err)
	}

	return map[string]interface{}{
		"id":         jobID,
		"spec":       spec,
		"status":     status,
		"outputPath": outputPath,
		"createdAt":  createdAt,
		"updatedAt":  updatedAt,
	}, nil
}

// GetJobSpec returns the stored spec of a job
func GetJobSpec(jobID string) (model.CatalogJobSpec, error) {
	var spec model.CatalogJobSpec
	var specJSON string
	err := db.QueryRow(`SELECT spec FROM jobs WHERE id = ?`, jobID).Scan(&specJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return spec, ErrJobNotFound
	}
	if err != nil {
		return spec, err
	}
	err = json.Unmarshal([]byte(specJSON), &spec)
	return spec, err
}

// UpdateJobStatus updates job status
func UpdateJobStatus(jobID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, status, now, jobID)
	return err
}

// SetJobOutput records where a job's catalog file was written
func SetJobOutput(jobID, path string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE jobs SET output_path = ?, updated_at = ? WHERE id = ?`, path, now, jobID)
	return err
}

// GetJobOutput returns the catalog file of a job, or "" if it has none
func GetJobOutput(jobID string) (string, error) {
	var path string
	err := db.QueryRow(`SELECT output_path FROM jobs WHERE id = ?`, jobID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrJobNotFound
	}
	return path, err
}

// SaveSummary stores (or replaces) the summary of a finished job
func SaveSummary(s model.CatalogSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT OR REPLACE INTO job_summaries (job_id, summary, created_at) VALUES (?, ?, ?)`,
		s.JobID, string(data), time.Now().UTC())
	return err
}

// GetSummary returns the stored summary of a job
func GetSummary(jobID string) (model.CatalogSummary, error) {
	var s model.CatalogSummary
	var data string
	err := db.QueryRow(`SELECT summary FROM job_summaries WHERE job_id = ?`, jobID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrJobNotFound
	}
	if err != nil {
		return s, err
	}
	err = json.Unmarshal([]byte(data), &s)
	return s, err
}

// DeleteJob removes a job with its errors and summary
func DeleteJob(jobID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	for _, q := range []string{
		`DELETE FROM job_errors WHERE job_id = ?`,
		`DELETE FROM job_summaries WHERE job_id = ?`,
	} {
		if _, err := tx.Exec(q, jobID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
