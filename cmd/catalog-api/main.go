package main

import (
	"os"
	"strings"

	"go-instance-catalog/internal/api"
	"go-instance-catalog/internal/pipeline"
	"go-instance-catalog/internal/store"
)

func main() {
	// Init DB
	dbPath := os.Getenv("CATALOG_DB")
	if dbPath == "" {
		dbPath = "catalog.db"
	}
	if err := store.InitDB(dbPath); err != nil {
		panic(err)
	}
	if dir := os.Getenv("LIGHTCURVE_DIR"); dir != "" {
		pipeline.DefaultLightCurveDir = dir
	}

	origins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}
	r := api.NewRouter(origins)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Start(":" + port); err != nil {
		panic(err)
	}
}
