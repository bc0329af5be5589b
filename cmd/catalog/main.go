package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/pipeline"
	"go-instance-catalog/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	specPath := flag.String("spec", "job.json", "path to the catalog job JSON")
	dbPath := flag.String("db", envOr("CATALOG_DB", "catalog.db"), "job store database")
	lcDir := flag.String("lightcurves", envOr("LIGHTCURVE_DIR", pipeline.DefaultLightCurveDir), "default light curve directory")
	flag.Parse()

	raw, err := os.ReadFile(*specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ reading job: %v\n", err)
		os.Exit(1)
	}
	var job model.CatalogJobSpec
	if err := json.Unmarshal(raw, &job); err != nil {
		fmt.Fprintf(os.Stderr, "❌ parsing job: %v\n", err)
		os.Exit(1)
	}

	// Init DB
	if err := store.InitDB(*dbPath); err != nil {
		panic(err)
	}
	defer store.CloseDB()
	pipeline.DefaultLightCurveDir = *lcDir

	jobID := uuid.New().String()
	if err := store.SaveJob(jobID, job); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	metrics, err := pipeline.Run(ctx, jobID, job)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ catalog job %s failed: %v\n", jobID, err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d rows written (%d skipped)\n", metrics.RowsEmitted, metrics.RowsSkipped)
}
