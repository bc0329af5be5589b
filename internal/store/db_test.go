package store

import (
	"errors"
	"path/filepath"
	"testing"

	"go-instance-catalog/internal/model"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := InitDB(filepath.Join(t.TempDir(), "jobs.db")); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { CloseDB() })
}

func sampleJob() model.CatalogJobSpec {
	return model.CatalogJobSpec{
		Catalog: "stars",
		Source:  model.Source{Type: "csv", URL: "stars.csv"},
		Observation: model.ObservationContext{
			PointingRA: 10, PointingDec: -20, BoundType: "circle", BoundLength: 1.75, MJD: 60000,
		},
		Columns: []string{"uniqueId", "raJ2000"},
	}
}

func TestJobLifecycle(t *testing.T) {
	initTestDB(t)
	if !Ready() {
		t.Fatal("Ready = false after InitDB")
	}

	if err := SaveJob("job-1", sampleJob()); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	if err := UpdateJobStatus("job-1", "running"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if err := SetJobOutput("job-1", "/tmp/out.txt"); err != nil {
		t.Fatalf("SetJobOutput: %v", err)
	}

	job, err := GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job["status"] != "running" || job["outputPath"] != "/tmp/out.txt" {
		t.Errorf("job = %v", job)
	}
	spec, ok := job["spec"].(model.CatalogJobSpec)
	if !ok || spec.Observation.MJD != 60000 || len(spec.Columns) != 2 {
		t.Errorf("spec = %+v", job["spec"])
	}

	stored, err := GetJobSpec("job-1")
	if err != nil || stored.Source.URL != "stars.csv" {
		t.Errorf("GetJobSpec = %+v, %v", stored, err)
	}

	jobs, err := ListJobs()
	if err != nil || len(jobs) != 1 || jobs[0]["id"] != "job-1" {
		t.Errorf("ListJobs = %v, %v", jobs, err)
	}
}

func TestUnknownJob(t *testing.T) {
	initTestDB(t)
	if _, err := GetJob("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJob err = %v", err)
	}
	if _, err := GetJobSpec("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJobSpec err = %v", err)
	}
	if _, err := GetJobOutput("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJobOutput err = %v", err)
	}
	if _, err := GetSummary("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetSummary err = %v", err)
	}
	if err := DeleteJob("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("DeleteJob err = %v", err)
	}
}

func TestErrorsAndSummary(t *testing.T) {
	initTestDB(t)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(SaveJob("job-2", sampleJob()))
	must(SaveErrorDetail("job-2", model.ErrorDetail{
		Stage: "resolve", RowID: "17", Column: "delta_lsst_u",
		ErrorType: "unknown_variability_method", Message: "boom",
	}))
	must(SaveJobError("job-2", errors.New("source went away")))
	must(SaveJobError("job-2", nil))

	errs, err := GetJobErrors("job-2")
	must(err)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if errs[0].Column != "delta_lsst_u" || errs[1].Stage != "job" {
		t.Errorf("errors = %+v", errs)
	}

	summary := model.CatalogSummary{
		JobID: "job-2", RowsEmitted: 10, RowsSkipped: 1,
		Columns: []model.ColumnStats{{Column: "lsst_u", Count: 10, Min: 18, Max: 22, Mean: 20}},
	}
	must(SaveSummary(summary))
	summary.RowsEmitted = 11
	must(SaveSummary(summary))
	got, err := GetSummary("job-2")
	must(err)
	if got.RowsEmitted != 11 || len(got.Columns) != 1 || got.Columns[0].Mean != 20 {
		t.Errorf("summary = %+v", got)
	}

	must(DeleteJob("job-2"))
	if errs, _ := GetJobErrors("job-2"); len(errs) != 0 {
		t.Errorf("errors survive DeleteJob: %v", errs)
	}
	if _, err := GetSummary("job-2"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("summary survives DeleteJob: %v", err)
	}
}
