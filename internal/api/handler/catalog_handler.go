package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"go-instance-catalog/internal/catalog"
	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/pipeline"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/internal/variability"
	"go-instance-catalog/pkg/router"
)

// running holds the cancel functions of jobs started by this process
var (
	runningMu sync.Mutex
	running   = make(map[string]context.CancelFunc)
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}

// jobIDFrom extracts the job ID from /api/v1/catalogs/{id}[/...]
func jobIDFrom(r *http.Request) string { return router.Segment(r, 3) }

// startJob runs a job in the background and tracks its cancel function
func startJob(jobID string, run func(ctx context.Context) (*model.PipelineMetrics, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	runningMu.Lock()
	running[jobID] = cancel
	runningMu.Unlock()

	go func() {
		defer func() {
			runningMu.Lock()
			delete(running, jobID)
			runningMu.Unlock()
			cancel()
		}()
		if _, err := run(ctx); err != nil {
			fmt.Printf("❌ Catalog job %s failed: %v\n", jobID, err)
		}
	}()
}

// CreateCatalog creates a new catalog job
// @Summary Create a catalog job
// @Description Validate the job and start generating the catalog in the background
// @Tags catalogs
// @Accept json
// @Produce json
// @Param job body model.CatalogJobSpec true "Catalog job"
// @Success 202 {object} map[string]interface{} "Job accepted"
// @Failure 400 {object} map[string]interface{} "Invalid job"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /catalogs [post]
func CreateCatalog(w http.ResponseWriter, r *http.Request) {
	var job model.CatalogJobSpec
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	// Reject schema errors before anything is stored
	if _, err := pipeline.Prepare(job); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := uuid.New().String()
	if err := store.SaveJob(jobID, job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save job")
		return
	}

	startJob(jobID, func(ctx context.Context) (*model.PipelineMetrics, error) {
		return pipeline.Run(ctx, jobID, job)
	})

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Catalog job created",
		"jobID":     jobID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	})
}

// ListCatalogs lists all catalog jobs
// @Summary List catalog jobs
// @Tags catalogs
// @Produce json
// @Success 200 {array} map[string]interface{} "Jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /catalogs [get]
func ListCatalogs(w http.ResponseWriter, r *http.Request) {
	jobs, err := store.ListJobs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetCatalog returns one job
// @Summary Get a catalog job
// @Tags catalogs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Job"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /catalogs/{id} [get]
func GetCatalog(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFrom(r)
	job, err := store.GetJob(jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch job")
		return
	}
	if path, _ := job["outputPath"].(string); path != "" {
		job["downloadURL"] = pipeline.Outputs.GetDownloadURL(jobID)
		if size, err := pipeline.Outputs.GetFileSize(path); err == nil {
			job["outputSize"] = size
		}
	}
	writeJSON(w, http.StatusOK, job)
}

// GetCatalogErrors returns the per-row errors of a job
// @Summary Get catalog job errors
// @Tags catalogs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Errors"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /catalogs/{id}/errors [get]
func GetCatalogErrors(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFrom(r)
	if _, err := store.GetJobOutput(jobID); errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	errs, err := store.GetJobErrors(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve errors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetCatalogSummary returns the column statistics of a finished job
// @Summary Get catalog summary
// @Tags catalogs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.CatalogSummary "Summary"
// @Failure 404 {object} map[string]interface{} "No summary"
// @Router /catalogs/{id}/summary [get]
func GetCatalogSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := store.GetSummary(jobIDFrom(r))
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "No summary for this job yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DownloadCatalog serves the catalog file of a job
// @Summary Download catalog
// @Tags catalogs
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Success 200 {file} file "Catalog"
// @Failure 404 {object} map[string]interface{} "Not found"
// @Router /catalogs/{id}/download [get]
func DownloadCatalog(w http.ResponseWriter, r *http.Request) {
	path, err := store.GetJobOutput(jobIDFrom(r))
	if err != nil || path == "" {
		writeError(w, http.StatusNotFound, "No catalog file for this job")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "Catalog file is gone")
		return
	}
	fileName := filepath.Base(path)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	w.Header().Set("Content-Type", pipeline.Outputs.ContentType(fileName))
	http.ServeFile(w, r, path)
}

// RetryCatalog reruns a job with its stored spec
// @Summary Retry a catalog job
// @Tags catalogs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} map[string]interface{} "Retry started"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Failure 409 {object} map[string]interface{} "Job is running"
// @Router /catalogs/{id}/retry [post]
func RetryCatalog(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFrom(r)
	if _, err := store.GetJobSpec(jobID); err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	runningMu.Lock()
	_, busy := running[jobID]
	runningMu.Unlock()
	if busy {
		writeError(w, http.StatusConflict, "Job is still running")
		return
	}

	startJob(jobID, func(ctx context.Context) (*model.PipelineMetrics, error) {
		return pipeline.RetryJob(ctx, jobID)
	})
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Retry initiated",
		"job_id":  jobID,
		"status":  "retrying",
	})
}

// CancelCatalog stops a running job
// @Summary Cancel a catalog job
// @Tags catalogs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Cancelled"
// @Failure 409 {object} map[string]interface{} "Job is not running"
// @Router /catalogs/{id}/cancel [post]
func CancelCatalog(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFrom(r)
	runningMu.Lock()
	cancel, ok := running[jobID]
	runningMu.Unlock()
	if !ok {
		writeError(w, http.StatusConflict, "Job is not running")
		return
	}
	cancel()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cancellation requested",
		"job_id":  jobID,
	})
}

// DeleteCatalog removes a job and its output directory
// @Summary Delete a catalog job
// @Tags catalogs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Deleted"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Failure 409 {object} map[string]interface{} "Job is running"
// @Router /catalogs/{id} [delete]
func DeleteCatalog(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFrom(r)
	if _, err := uuid.Parse(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}
	runningMu.Lock()
	_, busy := running[jobID]
	runningMu.Unlock()
	if busy {
		writeError(w, http.StatusConflict, "Job is still running")
		return
	}

	if err := store.DeleteJob(jobID); errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}
	if err := os.RemoveAll(filepath.Join(pipeline.Outputs.BaseOutputDir, jobID)); err != nil {
		fmt.Printf("⚠️ Failed to delete outputs of job %s: %v\n", jobID, err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Job deleted",
		"job_id":  jobID,
	})
}

// GetCapabilities lists catalogs, their columns, transforms and variability methods
// @Summary List catalog capabilities
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{} "Capabilities"
// @Router /capabilities [get]
func GetCapabilities(w http.ResponseWriter, r *http.Request) {
	catalogs := map[string]interface{}{}
	for _, name := range catalog.Names() {
		def, err := catalog.Build(name, defaultSource(), nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		catalogs[name] = map[string]interface{}{
			"columns":        def.Registry.Columns(),
			"defaultColumns": def.DefaultColumns,
			"rawFields":      def.Registry.RawFields(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"catalogs":           catalogs,
		"transformations":    column.TransformNames(),
		"variabilityMethods": variability.NewStandardDispatcher(nil).Methods(),
	})
}

func defaultSource() model.Source {
	job := model.CatalogJobSpec{}
	job.ApplyDefaults()
	return job.Source
}
