package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go-instance-catalog/internal/catalog"
	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/internal/variability"
	"go-instance-catalog/pkg/utils"
)

// GenericRecord is a schema-agnostic map for any data source
type GenericRecord map[string]interface{}

// Prepared is a job whose catalog definition, columns and transforms have
// been checked. Building it fails on schema errors before any row is read.
type Prepared struct {
	Job        model.CatalogJobSpec
	Definition *catalog.Definition
	Columns    []string
	Transforms column.TransformMap
	Dispatcher *variability.Dispatcher
}

// Prepare applies defaults to job and builds everything that does not
// depend on the rows.
func Prepare(job model.CatalogJobSpec) (*Prepared, error) {
	job.ApplyDefaults()
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	lcStore, err := LightCurveStore(job.LightCurves)
	if err != nil {
		return nil, fmt.Errorf("opening light curves: %w", err)
	}
	disp := variability.NewStandardDispatcher(lcStore)

	def, err := catalog.Build(job.Catalog, job.Source, disp)
	if err != nil {
		return nil, err
	}
	columns := job.Columns
	if len(columns) == 0 {
		columns = def.DefaultColumns
	}
	if err := def.CheckColumns(columns); err != nil {
		return nil, err
	}
	transforms, err := column.BuildTransforms(job.Transformations)
	if err != nil {
		return nil, err
	}
	return &Prepared{
		Job:        job,
		Definition: def,
		Columns:    columns,
		Transforms: transforms,
		Dispatcher: disp,
	}, nil
}

// ------------------- Pipeline Runner -------------------

// Run generates the catalog described by job. Progress, errors and the
// summary go to the job store when it has been initialised.
func Run(ctx context.Context, jobID string, job model.CatalogJobSpec) (metrics *model.PipelineMetrics, err error) {
	start := time.Now()
	fmt.Printf("🚀 Starting catalog job: %s\n", jobID)

	tracker := NewPipelineTracker(jobID, store.Ready())
	tracker.SetStatus("running")

	// Defer function to handle status updates on completion/error
	defer func() {
		if err != nil {
			tracker.RecordError("job", "", err)
			tracker.Fail()
		} else {
			tracker.Complete()
		}
		m := tracker.GetMetrics()
		metrics = &m
	}()

	p, err := Prepare(job)
	if err != nil {
		return nil, err
	}
	job = p.Job

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(job.Concurrency.JobTimeout))
	defer cancel()

	exporter, err := NewExportManager(ctx, jobID, job.Export, p.Columns)
	if err != nil {
		return nil, fmt.Errorf("opening export targets: %w", err)
	}

	buf := job.Concurrency.ChannelBufferSize
	recordsCh := make(chan GenericRecord, buf)
	inViewCh := make(chan RowBatch, job.Concurrency.Workers.Resolve)
	resolvedCh := make(chan ResolvedBatch, job.Concurrency.Workers.Resolve)

	var (
		wg                               sync.WaitGroup
		ingestErr, resolveErr, exportErr error
	)

	// --- INGESTION STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(recordsCh) // safe: only this goroutine closes recordsCh
		tracker.StartStage("ingestion", 1)
		n, err := IngestSource(ctx, job.Source, job.SourceRetryConfig(), recordsCh)
		if err != nil {
			ingestErr = fmt.Errorf("ingesting %s: %w", job.Source.URL, err)
			cancel()
		}
		tracker.EndStage("ingestion", int64(n), err != nil)
	}()

	// --- VALIDATION STAGE ---
	batches := BatchRecords(ctx, recordsCh, job.Concurrency.BatchSize, tracker)
	tracker.StartStage("validation", job.Concurrency.Workers.Validation)
	FilterFieldOfView(ctx, job.Source, job.Observation, batches, inViewCh, tracker, job.Concurrency.Workers.Validation)

	// --- RESOLUTION STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Println("🧮 Starting resolution stage...")
		tracker.StartStage("resolve", job.Concurrency.Workers.Resolve)
		cfg := ResolveConfig{
			Registry:    p.Definition.Registry,
			Observation: job.Observation,
			Columns:     p.Columns,
			Transforms:  p.Transforms,
			Policy:      job.OnError,
			IDKey:       job.Source.IDColumn,
		}
		resolveErr = ResolveBatches(ctx, cfg, inViewCh, resolvedCh, tracker, job.Concurrency.Workers.Resolve)
		m := tracker.GetMetrics()
		tracker.EndStage("validation", m.RowsIngested, false)
		tracker.EndStage("resolve", m.RowsEmitted, resolveErr != nil)
	}()

	// --- EXPORT STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Println("💾 Starting export stage...")
		tracker.StartStage("export", 1)
		exportErr = exporter.Consume(ctx, resolvedCh)
		if exportErr != nil {
			cancel()
			// keep draining so upstream workers can finish
			for range resolvedCh {
			}
		}
		tracker.EndStage("export", exporter.Summary.Rows(), exportErr != nil)
	}()

	// Wait for all stages to finish
	wg.Wait()

	results := exporter.Finish()
	for _, r := range results {
		if !r.Success && exportErr == nil {
			exportErr = fmt.Errorf("export to %s failed: %s", r.Path, r.Error)
		}
	}

	switch {
	case ingestErr != nil:
		return nil, ingestErr
	case exportErr != nil:
		return nil, fmt.Errorf("exporting catalog: %w", exportErr)
	case resolveErr != nil:
		return nil, fmt.Errorf("resolving catalog: %w", resolveErr)
	}

	m := tracker.GetMetrics()
	summary := exporter.Summary.Summary(jobID, m.RowsSkipped)
	if store.Ready() {
		if path := exporter.FilePath(); path != "" {
			if err := store.SetJobOutput(jobID, path); err != nil {
				log.Printf("⚠️ Failed to record output of job %s: %v", jobID, err)
			}
		}
		if err := store.SaveSummary(summary); err != nil {
			log.Printf("⚠️ Failed to save summary of job %s: %v", jobID, err)
		}
	}
	if n := p.Dispatcher.ParseFailures(); n > 0 {
		fmt.Printf("⚠️ %d objects had unreadable variability parameters and were treated as non-variable\n", n)
	}

	fmt.Printf("🏁 Catalog job %s completed in %v: %s\n", jobID, time.Since(start), tracker)
	return nil, nil
}
