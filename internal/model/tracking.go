package model

import "time"

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName        string        `json:"stage_name"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	WorkerCount      int           `json:"worker_count"`
	ErrorCount       int64         `json:"error_count"`
	ThroughputRPS    float64       `json:"throughput_rps"`
	Status           string        `json:"status"` // "running", "completed", "failed"
}

// ErrorDetail represents a per-row error with context
type ErrorDetail struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	RowID     string    `json:"row_id,omitempty"`
	Column    string    `json:"column,omitempty"`
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
}

// PipelineMetrics represents overall catalog job metrics
type PipelineMetrics struct {
	JobID          string                  `json:"job_id"`
	Status         string                  `json:"status"`
	StartTime      time.Time               `json:"start_time"`
	EndTime        *time.Time              `json:"end_time,omitempty"`
	Duration       time.Duration           `json:"duration"`
	RowsIngested   int64                   `json:"rows_ingested"`
	RowsInView     int64                   `json:"rows_in_view"`
	RowsEmitted    int64                   `json:"rows_emitted"`
	RowsSkipped    int64                   `json:"rows_skipped"`
	BatchesAborted int64                   `json:"batches_aborted"`
	ErrorCount     int64                   `json:"error_count"`
	ThroughputRPS  float64                 `json:"throughput_rps"`
	Stages         map[string]StageMetrics `json:"stages"`
	Errors         []ErrorDetail           `json:"errors"`
}
