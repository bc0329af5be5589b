package pipeline

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/internal/variability"
)

// maxTrackedErrors bounds the error details kept in memory; every error is
// still persisted and counted.
const maxTrackedErrors = 100

// PipelineTracker collects counters, stage timings and errors for one job.
// It is safe for concurrent use by stage workers.
type PipelineTracker struct {
	JobID   string
	persist bool

	mu      sync.RWMutex
	metrics model.PipelineMetrics
}

// NewPipelineTracker creates a tracker. When persist is set, errors and
// status changes are written to the job store.
func NewPipelineTracker(jobID string, persist bool) *PipelineTracker {
	return &PipelineTracker{
		JobID:   jobID,
		persist: persist,
		metrics: model.PipelineMetrics{
			JobID:     jobID,
			Status:    "initializing",
			StartTime: time.Now(),
			Stages:    make(map[string]model.StageMetrics),
			Errors:    make([]model.ErrorDetail, 0),
		},
	}
}

// SetStatus records a job status change
func (pt *PipelineTracker) SetStatus(status string) {
	pt.mu.Lock()
	pt.metrics.Status = status
	pt.mu.Unlock()
	if pt.persist {
		if err := store.UpdateJobStatus(pt.JobID, status); err != nil {
			log.Printf("⚠️ Failed to update status of job %s: %v", pt.JobID, err)
		}
	}
}

// StartStage marks the beginning of a stage
func (pt *PipelineTracker) StartStage(stage string, workerCount int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.metrics.Stages[stage] = model.StageMetrics{
		StageName:   stage,
		StartTime:   time.Now(),
		WorkerCount: workerCount,
		Status:      "running",
	}
}

// EndStage marks the end of a stage with the number of items it processed
func (pt *PipelineTracker) EndStage(stage string, processed int64, failed bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	sm := pt.metrics.Stages[stage]
	end := time.Now()
	sm.StageName = stage
	sm.EndTime = &end
	sm.Duration = end.Sub(sm.StartTime)
	sm.RecordsProcessed = processed
	if secs := sm.Duration.Seconds(); secs > 0 {
		sm.ThroughputRPS = float64(processed) / secs
	}
	sm.Status = "completed"
	if failed {
		sm.Status = "failed"
	}
	pt.metrics.Stages[stage] = sm
}

// AddIngested, AddInView, AddEmitted, AddSkipped and AddAborted bump counters.
func (pt *PipelineTracker) AddIngested(n int64) { pt.add(&pt.metrics.RowsIngested, n) }
func (pt *PipelineTracker) AddInView(n int64)   { pt.add(&pt.metrics.RowsInView, n) }
func (pt *PipelineTracker) AddEmitted(n int64)  { pt.add(&pt.metrics.RowsEmitted, n) }
func (pt *PipelineTracker) AddSkipped(n int64)  { pt.add(&pt.metrics.RowsSkipped, n) }
func (pt *PipelineTracker) AddAborted(n int64)  { pt.add(&pt.metrics.BatchesAborted, n) }

func (pt *PipelineTracker) add(counter *int64, n int64) {
	pt.mu.Lock()
	*counter += n
	pt.mu.Unlock()
}

// RecordError counts, logs and persists an error raised in stage.
func (pt *PipelineTracker) RecordError(stage, rowID string, err error) {
	if err == nil {
		return
	}
	detail := model.ErrorDetail{
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		RowID:     rowID,
		Column:    column.ColumnOf(err),
		ErrorType: ErrorType(err),
		Message:   err.Error(),
	}

	pt.mu.Lock()
	pt.metrics.ErrorCount++
	n := pt.metrics.ErrorCount
	if len(pt.metrics.Errors) < maxTrackedErrors {
		pt.metrics.Errors = append(pt.metrics.Errors, detail)
	}
	pt.mu.Unlock()

	if n <= 10 || n%1000 == 0 {
		log.Printf("❌ Error %d in job %s [%s]: %v", n, pt.JobID, stage, err)
	}
	if pt.persist {
		if perr := store.SaveErrorDetail(pt.JobID, detail); perr != nil {
			log.Printf("⚠️ Failed to persist error for job %s: %v", pt.JobID, perr)
		}
	}
}

// ErrorType names the kind of a pipeline error for the error log.
func ErrorType(err error) string {
	var (
		missing  *column.MissingFieldError
		cyclic   *column.CyclicDependencyError
		unknown  *column.UnknownColumnError
		method   *variability.UnknownVariabilityMethodError
		notFound *variability.LightCurveNotFoundError
		compute  *column.ColumnComputationError
	)
	switch {
	case errors.As(err, &missing):
		return "missing_field"
	case errors.As(err, &cyclic):
		return "cyclic_dependency"
	case errors.As(err, &unknown):
		return "unknown_column"
	case errors.As(err, &method):
		return "unknown_variability_method"
	case errors.As(err, &notFound):
		return "light_curve_not_found"
	case errors.As(err, &compute):
		return "column_computation"
	case errors.As(err, new(*PositionError)):
		return "position"
	}
	return "error"
}

// Complete marks the job finished
func (pt *PipelineTracker) Complete() { pt.finish("completed") }

// Fail marks the job failed
func (pt *PipelineTracker) Fail() { pt.finish("failed") }

func (pt *PipelineTracker) finish(status string) {
	pt.mu.Lock()
	end := time.Now()
	pt.metrics.EndTime = &end
	pt.metrics.Duration = end.Sub(pt.metrics.StartTime)
	if secs := pt.metrics.Duration.Seconds(); secs > 0 {
		pt.metrics.ThroughputRPS = float64(pt.metrics.RowsEmitted) / secs
	}
	pt.mu.Unlock()
	pt.SetStatus(status)
}

// GetMetrics returns a snapshot of the metrics
func (pt *PipelineTracker) GetMetrics() model.PipelineMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	m := pt.metrics
	m.Stages = make(map[string]model.StageMetrics, len(pt.metrics.Stages))
	for k, v := range pt.metrics.Stages {
		m.Stages[k] = v
	}
	m.Errors = append([]model.ErrorDetail(nil), pt.metrics.Errors...)
	return m
}

// String renders a one-line summary for logs
func (pt *PipelineTracker) String() string {
	m := pt.GetMetrics()
	return fmt.Sprintf("job %s: %d ingested, %d in view, %d emitted, %d skipped, %d batches aborted, %d errors",
		m.JobID, m.RowsIngested, m.RowsInView, m.RowsEmitted, m.RowsSkipped, m.BatchesAborted, m.ErrorCount)
}
