package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/pkg/utils"
)

// ------------------- Ingestion -------------------

// IngestSource streams the raw records of a source into out and returns how
// many were sent. Opening the source is retried with backoff.
func IngestSource(ctx context.Context, source model.Source, retry model.RetryConfig, out chan<- GenericRecord) (int, error) {
	fmt.Printf("➡️ Starting ingestion for source: %s (%s)\n", source.URL, source.Type)
	defer fmt.Printf("✅ Finished ingestion for source: %s (%s)\n", source.URL, source.Type)

	switch strings.ToLower(source.Type) {
	case "csv":
		return ingestCSV(ctx, source.URL, retry, out)
	case "json", "api":
		return ingestJSON(ctx, source.URL, retry, out)
	case "sqlite", "sqlite3", "postgres", "postgresql":
		return ingestTable(ctx, source, retry, out)
	default:
		return 0, fmt.Errorf("unknown source type: %s", source.Type)
	}
}

// openInput opens a local file or GETs an http(s) URL
func openInput(ctx context.Context, pathOrURL string, retry model.RetryConfig) (io.ReadCloser, error) {
	if !strings.HasPrefix(pathOrURL, "http://") && !strings.HasPrefix(pathOrURL, "https://") {
		f, err := os.Open(pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", pathOrURL, err)
		}
		return f, nil
	}

	var body io.ReadCloser
	err := WithRetry(ctx, retry, "GET "+pathOrURL, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return fmt.Errorf("GET %s: %s", pathOrURL, resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return Permanent(fmt.Errorf("GET %s: %s", pathOrURL, resp.Status))
		}
		body = resp.Body
		return nil
	})
	return body, err
}

// send forwards one record unless the context is done
func send(ctx context.Context, out chan<- GenericRecord, rec GenericRecord) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- rec:
		return true
	}
}

// ------------------- CSV Ingestion -------------------
func ingestCSV(ctx context.Context, pathOrURL string, retry model.RetryConfig, out chan<- GenericRecord) (int, error) {
	reader, err := openInput(ctx, pathOrURL, retry)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.Comment = '#'
	headers, err := csvReader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range headers {
		// Clean header names: trim whitespace and remove quotes
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	recordCount := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			fmt.Printf("📄 CSV ingestion done: %d records read from %s\n", recordCount, pathOrURL)
			return recordCount, nil
		}
		if err != nil {
			return recordCount, fmt.Errorf("CSV read error after %d records: %w", recordCount, err)
		}

		recMap := make(GenericRecord, len(headers))
		for i, h := range headers {
			if i < len(record) {
				recMap[h] = utils.ParseValue(record[i])
			}
		}
		if !send(ctx, out, recMap) {
			return recordCount, ctx.Err()
		}
		recordCount++
		if recordCount%1000 == 0 {
			fmt.Printf("📄 CSV: Processed %d records from %s\n", recordCount, pathOrURL)
		}
	}
}

// ------------------- JSON / API Ingestion -------------------
func ingestJSON(ctx context.Context, pathOrURL string, retry model.RetryConfig, out chan<- GenericRecord) (int, error) {
	fmt.Printf("🌐 Reading JSON: %s\n", pathOrURL)

	reader, err := openInput(ctx, pathOrURL, retry)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		return 0, fmt.Errorf("failed to read JSON body: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(bodyBytes))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	var items []interface{}
	switch data := raw.(type) {
	case []interface{}:
		items = data
	case map[string]interface{}:
		items = []interface{}{data}
	default:
		return 0, fmt.Errorf("unexpected JSON structure %T", raw)
	}

	recordCount := 0
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return recordCount, fmt.Errorf("JSON item %d is %T, not an object", i, item)
		}
		rec := make(GenericRecord, len(m))
		for k, v := range m {
			if n, isNum := v.(json.Number); isNum {
				v = utils.ParseValue(n.String())
			}
			rec[k] = v
		}
		if !send(ctx, out, rec) {
			return recordCount, ctx.Err()
		}
		recordCount++
	}

	fmt.Printf("🌐 JSON ingestion done: %d records read from %s\n", recordCount, pathOrURL)
	return recordCount, nil
}

// ------------------- Database Ingestion -------------------
func ingestTable(ctx context.Context, source model.Source, retry model.RetryConfig, out chan<- GenericRecord) (int, error) {
	table := source.Table
	if table == "" {
		table = "objects"
	}
	if !store.ValidIdentifier(table) {
		return 0, fmt.Errorf("invalid source table name %q", table)
	}

	var src *store.ObjectSource
	err := WithRetry(ctx, retry, "connect "+source.Type, func() error {
		var err error
		src, err = store.OpenObjectSource(ctx, source.Type, source.URL, table)
		return err
	})
	if err != nil {
		return 0, err
	}
	defer src.Close()

	recordCount, err := src.Stream(ctx, func(rec map[string]interface{}) bool {
		return send(ctx, out, GenericRecord(rec))
	})
	if err != nil {
		return recordCount, err
	}
	fmt.Printf("🗄️ Table ingestion done: %d records read from %s\n", recordCount, table)
	return recordCount, ctx.Err()
}
