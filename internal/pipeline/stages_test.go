package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/internal/variability"
)

var fastRetry = model.RetryConfig{
	MaxRetries:    3,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2,
}

func collect(ch <-chan GenericRecord) []GenericRecord {
	var out []GenericRecord
	for r := range ch {
		out = append(out, r)
	}
	return out
}

// ingest runs IngestSource to completion and returns what it produced
func ingest(t *testing.T, src model.Source) ([]GenericRecord, int, error) {
	t.Helper()
	ch := make(chan GenericRecord, 100)
	var (
		n   int
		err error
	)
	go func() {
		defer close(ch)
		n, err = IngestSource(context.Background(), src, fastRetry, ch)
	}()
	recs := collect(ch)
	return recs, n, err
}

// --- Ingestion ---

func TestIngestCSVFromHTTPWithRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "# objects\nid, ra, decl\n1, 10.5, -20\n2, 11, NULL\n")
	}))
	defer srv.Close()

	recs, n, err := ingest(t, model.Source{Type: "csv", URL: srv.URL})
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}
	if n != 2 || len(recs) != 2 || hits.Load() != 3 {
		t.Fatalf("n=%d records=%d hits=%d", n, len(recs), hits.Load())
	}
	if recs[0]["id"] != int64(1) || recs[0]["ra"] != 10.5 || recs[1]["decl"] != nil {
		t.Errorf("records = %v", recs)
	}
}

func TestIngestHTTPClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, _, err := ingest(t, model.Source{Type: "json", URL: srv.URL}); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestIngestJSONFile(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "objects.json"),
		`[{"id": 1, "ra": 10.25, "varParamStr": "None"}, {"id": 2, "ra": 11, "varParamStr": null}]`)

	recs, n, err := ingest(t, model.Source{Type: "json", URL: path})
	if err != nil || n != 2 {
		t.Fatalf("IngestSource = %d, %v", n, err)
	}
	if recs[0]["id"] != int64(1) || recs[0]["ra"] != 10.25 || recs[1]["ra"] != int64(11) {
		t.Errorf("records = %v", recs)
	}
}

func TestIngestSQLiteTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{
		`CREATE TABLE stars (id INTEGER, ra REAL, decl REAL)`,
		`INSERT INTO stars VALUES (1, 10.0, -20.0), (2, 10.1, -20.1)`,
	} {
		if _, err := conn.Exec(q); err != nil {
			t.Fatal(err)
		}
	}
	conn.Close()

	recs, n, err := ingest(t, model.Source{Type: "sqlite", URL: path, Table: "stars"})
	if err != nil || n != 2 || len(recs) != 2 {
		t.Fatalf("IngestSource = %d, %v", n, err)
	}
	if _, _, err := ingest(t, model.Source{Type: "sqlite", URL: path, Table: "stars;"}); err == nil {
		t.Error("bad table name: expected error")
	}
}

func TestIngestUnknownType(t *testing.T) {
	if _, _, err := ingest(t, model.Source{Type: "fits", URL: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

// --- Retry ---

func TestWithRetry(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		failures  int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "recovers", failures: 2, wantCalls: 3},
		{name: "exhausted", failures: 10, wantCalls: 4, wantErr: true},
		{name: "permanent", failures: 10, permanent: true, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), fastRetry, "op", func() error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(boom)
					}
					return boom
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if err != nil && !errors.Is(err, boom) {
				t.Errorf("err = %v, want wrapped boom", err)
			}
		})
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := model.RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, BackoffFactor: 1}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := WithRetry(ctx, slow, "op", func() error { return errors.New("down") })
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := model.RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	for attempt, want := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
	} {
		if got := backoffDelay(cfg, attempt); got != want {
			t.Errorf("backoffDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

// --- Batching and field of view ---

func TestBatchRecords(t *testing.T) {
	in := make(chan GenericRecord, 5)
	for i := 0; i < 5; i++ {
		in <- GenericRecord{"id": i}
	}
	close(in)
	tracker := NewPipelineTracker("batch", false)

	var batches []RowBatch
	for b := range BatchRecords(context.Background(), in, 2, tracker) {
		batches = append(batches, b)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	for i, b := range batches {
		if b.Seq != i || b.Offset != 2*i {
			t.Errorf("batch %d: seq=%d offset=%d", i, b.Seq, b.Offset)
		}
	}
	if len(batches[2].Rows) != 1 {
		t.Errorf("last batch has %d rows", len(batches[2].Rows))
	}
	if tracker.GetMetrics().RowsIngested != 5 {
		t.Errorf("RowsIngested = %d", tracker.GetMetrics().RowsIngested)
	}
}

func TestInView(t *testing.T) {
	src := model.Source{IDColumn: "id", RAColumn: "ra", DecColumn: "decl"}
	circle := model.ObservationContext{PointingRA: 359.5, PointingDec: 0, BoundType: "circle", BoundLength: 1}
	box := model.ObservationContext{PointingRA: 0, PointingDec: 0, BoundType: "box", BoundLength: 1}

	tests := []struct {
		name string
		obs  model.ObservationContext
		rec  GenericRecord
		want bool
	}{
		{"circle across ra zero", circle, GenericRecord{"ra": 0.2, "decl": 0.0}, true},
		{"circle outside", circle, GenericRecord{"ra": 1.0, "decl": 0.0}, false},
		{"box corner", box, GenericRecord{"ra": 0.9, "decl": 0.9}, true},
		{"box beyond dec", box, GenericRecord{"ra": 0.0, "decl": 1.5}, false},
		{"string position", box, GenericRecord{"ra": "0.5", "decl": "-0.5"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InView(tt.rec, src, tt.obs, 0)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("InView = %v, want %v", got, tt.want)
			}
		})
	}

	_, err := InView(GenericRecord{"id": 9, "ra": 1.0}, src, box, 3)
	var pe *PositionError
	if !errors.As(err, &pe) || pe.RowID != "9" || pe.Field != "decl" {
		t.Errorf("err = %v, want PositionError for decl of 9", err)
	}
}

func TestFilterFieldOfViewKeepsBatchIdentity(t *testing.T) {
	src := model.Source{IDColumn: "id", RAColumn: "ra", DecColumn: "decl"}
	obs := model.ObservationContext{BoundType: "circle", BoundLength: 1}
	in := make(chan RowBatch, 2)
	in <- RowBatch{Seq: 0, Offset: 0, Rows: []GenericRecord{{"id": 1, "ra": 0.0, "decl": 0.0}, {"id": 2, "ra": 90.0, "decl": 0.0}}}
	in <- RowBatch{Seq: 1, Offset: 2, Rows: []GenericRecord{{"id": 3, "ra": 45.0, "decl": 0.0}}}
	close(in)

	out := make(chan RowBatch, 2)
	tracker := NewPipelineTracker("fov", false)
	FilterFieldOfView(context.Background(), src, obs, in, out, tracker, 2)

	got := map[int]int{}
	for b := range out {
		got[b.Seq] = len(b.Rows)
	}
	if got[0] != 1 || got[1] != 0 || len(got) != 2 {
		t.Errorf("rows per batch = %v, want map[0:1 1:0]", got)
	}
	if tracker.GetMetrics().RowsInView != 1 {
		t.Errorf("RowsInView = %d", tracker.GetMetrics().RowsInView)
	}
}

func TestRowIDsWithoutIDFollowSourcePosition(t *testing.T) {
	src := model.Source{IDColumn: "id", RAColumn: "ra", DecColumn: "decl"}
	obs := model.ObservationContext{BoundType: "circle", BoundLength: 1}
	in := make(chan RowBatch, 1)
	in <- RowBatch{Seq: 1, Offset: 2, Rows: []GenericRecord{
		{"ra": 90.0, "decl": 0.0},
		{"ra": "?", "decl": 0.0},
		{"ra": 0.0, "decl": 0.0},
	}}
	close(in)
	out := make(chan RowBatch, 1)
	tracker := NewPipelineTracker("ids", false)
	FilterFieldOfView(context.Background(), src, obs, in, out, tracker, 1)
	filtered := <-out

	if len(filtered.Rows) != 1 || filtered.SourceIndex(0) != 4 {
		t.Fatalf("filtered batch = %+v", filtered)
	}

	reg := column.NewRegistry()
	if err := reg.RegisterRaw("mag", ""); err != nil {
		t.Fatal(err)
	}
	cfg := ResolveConfig{Registry: reg.Seal(), Columns: []string{"mag"}, Policy: model.PolicySkip, IDKey: "id"}
	rb := ResolveBatch(context.Background(), cfg, filtered, tracker)
	if rb.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", rb.Skipped)
	}

	got := map[string]string{}
	for _, e := range tracker.GetMetrics().Errors {
		got[e.Stage] = e.RowID
	}
	if got["validation"] != "#3" || got["resolve"] != "#4" {
		t.Errorf("row ids by stage = %v, want validation #3 and resolve #4", got)
	}
}

// --- Export ---

func TestExportManagerReordersBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	em, err := NewExportManager(context.Background(), "reorder", &model.Export{File: path, Delimiter: ","}, []string{"id", "mag"})
	if err != nil {
		t.Fatal(err)
	}
	in := make(chan ResolvedBatch, 3)
	in <- ResolvedBatch{Seq: 2, Rows: [][]interface{}{{int64(3), nil}}}
	in <- ResolvedBatch{Seq: 0, Rows: [][]interface{}{{int64(1), 20.5}}}
	in <- ResolvedBatch{Seq: 1, Rows: [][]interface{}{}}
	close(in)

	if err := em.Consume(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	results := em.Finish()
	if len(results) != 1 || !results[0].Success || results[0].RecordCount != 2 {
		t.Errorf("results = %+v", results)
	}
	equalLines(t, readLines(t, path), []string{"# id,mag", "1,20.5", "3,None"})

	summary := em.Summary.Summary("reorder", 0)
	if summary.RowsEmitted != 2 || len(summary.Columns) != 2 || summary.Columns[1].Count != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestFormatValue(t *testing.T) {
	for v, want := range map[interface{}]string{
		nil:         "None",
		1.5:         "1.5",
		int64(1028): "1028",
		"G2V":       "G2V",
		1e-7:        "1e-07",
		true:        "true",
	} {
		if got := FormatValue(v); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestSummaryCollector(t *testing.T) {
	s := NewSummaryCollector([]string{"id", "name", "mag"})
	s.Observe([]interface{}{int64(1), "a", 20.0})
	s.Observe([]interface{}{int64(2), "b", math.NaN()})
	s.Observe([]interface{}{int64(3), "c", 22.0})

	sum := s.Summary("job", 4)
	if sum.RowsEmitted != 3 || sum.RowsSkipped != 4 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Columns) != 2 {
		t.Fatalf("columns = %+v, want id and mag", sum.Columns)
	}
	mag := sum.Columns[1]
	if mag.Column != "mag" || mag.Count != 2 || mag.Min != 20 || mag.Max != 22 || mag.Mean != 21 {
		t.Errorf("mag stats = %+v", mag)
	}
}

// --- Tracking ---

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&column.MissingFieldError{Column: "ra"}, "missing_field"},
		{&column.CyclicDependencyError{Path: []string{"a", "a"}}, "cyclic_dependency"},
		{&column.UnknownColumnError{Name: "x"}, "unknown_column"},
		{&column.ColumnComputationError{Column: "d", Err: &variability.UnknownVariabilityMethodError{Method: "m"}}, "unknown_variability_method"},
		{&column.ColumnComputationError{Column: "d", Err: &variability.LightCurveNotFoundError{Key: "k"}}, "light_curve_not_found"},
		{&column.ColumnComputationError{Column: "d", Err: errors.New("x")}, "column_computation"},
		{fmt.Errorf("wrapped: %w", &PositionError{Field: "ra"}), "position"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestTrackerCapsKeptErrors(t *testing.T) {
	tracker := NewPipelineTracker("cap", false)
	for i := 0; i < maxTrackedErrors+5; i++ {
		tracker.RecordError("resolve", fmt.Sprint(i), errors.New("bad row"))
	}
	tracker.RecordError("resolve", "nil", nil)
	m := tracker.GetMetrics()
	if m.ErrorCount != maxTrackedErrors+5 || len(m.Errors) != maxTrackedErrors {
		t.Errorf("ErrorCount=%d kept=%d", m.ErrorCount, len(m.Errors))
	}
}

// --- Light curves ---

func TestLightCurveStoreIsSharedAndFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "curves", "dir_only.txt"), "0 1\n1 2\n")
	dbPath := filepath.Join(dir, "lc.db")
	lcdb, err := store.OpenLightCurveDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := lcdb.Put(context.Background(), "db_only.txt", "0 3\n1 4\n"); err != nil {
		t.Fatal(err)
	}
	lcdb.Close()

	cfg := model.LightCurveConfig{Dir: filepath.Join(dir, "curves"), DB: dbPath}
	s1, err := LightCurveStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := LightCurveStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("same configuration gave two stores")
	}

	ctx := context.Background()
	for key, first := range map[string]float64{"db_only.txt": 3, "dir_only.txt": 1} {
		tbl, err := s1.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if v, _ := tbl.InterpolateAt(0, "value"); v != first {
			t.Errorf("%s at 0 = %v, want %v", key, v, first)
		}
	}
	var nf *variability.LightCurveNotFoundError
	if _, err := s1.Get(ctx, "nowhere.txt"); !errors.As(err, &nf) {
		t.Errorf("err = %v, want LightCurveNotFoundError", err)
	}
}
