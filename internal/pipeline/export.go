package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/pkg/utils"
)

// Outputs decides where catalogs without an explicit export file are written.
var Outputs = utils.NewOutputManager("outputs")

// catalogSink receives catalog rows in source order
type catalogSink interface {
	WriteRow(ctx context.Context, row []interface{}) error
	Close() (int, error)
	Describe() (typ, path string)
}

// ExportManager writes resolved batches to every configured target and
// feeds the summary collector.
type ExportManager struct {
	JobID   string
	Columns []string
	Summary *SummaryCollector

	sinks []catalogSink
}

// NewExportManager opens the export targets of a job. Without an export
// section the catalog goes to a text file in the job's output directory.
func NewExportManager(ctx context.Context, jobID string, spec *model.Export, columns []string) (*ExportManager, error) {
	em := &ExportManager{
		JobID:   jobID,
		Columns: columns,
		Summary: NewSummaryCollector(columns),
	}

	if spec == nil {
		path, err := Outputs.GetOutputFilePath(jobID, "catalog.txt")
		if err != nil {
			return nil, err
		}
		spec = &model.Export{File: path, Delimiter: ", "}
	}

	if spec.File != "" {
		sink, err := newFileSink(spec.File, jobID, columns, spec.Delimiter)
		if err != nil {
			return nil, err
		}
		em.sinks = append(em.sinks, sink)
	}
	if spec.DB != "" {
		w, err := store.NewCatalogWriter(ctx, spec.DB, spec.Table, columns, spec.BatchSize)
		if err != nil {
			em.closeAll()
			return nil, err
		}
		em.sinks = append(em.sinks, &dbSink{w: w, path: spec.DB, table: spec.Table})
	}
	return em, nil
}

// FilePath returns the file target, if any
func (em *ExportManager) FilePath() string {
	for _, s := range em.sinks {
		if typ, path := s.Describe(); typ != "database" {
			return path
		}
	}
	return ""
}

// Consume writes batches from in in sequence order until in is closed.
func (em *ExportManager) Consume(ctx context.Context, in <-chan ResolvedBatch) error {
	pending := make(map[int]ResolvedBatch)
	next := 0
	for rb := range in {
		pending[rb.Seq] = rb
		for {
			b, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := em.writeBatch(ctx, b); err != nil {
				return err
			}
		}
	}

	// only reachable with gaps after cancellation
	if len(pending) > 0 {
		seqs := make([]int, 0, len(pending))
		for s := range pending {
			seqs = append(seqs, s)
		}
		sort.Ints(seqs)
		for _, s := range seqs {
			if err := em.writeBatch(ctx, pending[s]); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

func (em *ExportManager) writeBatch(ctx context.Context, b ResolvedBatch) error {
	for _, row := range b.Rows {
		for _, s := range em.sinks {
			if err := s.WriteRow(ctx, row); err != nil {
				return err
			}
		}
		em.Summary.Observe(row)
		if n := em.Summary.Rows(); n%10000 == 0 {
			fmt.Printf("💾 Export: %d rows written\n", n)
		}
	}
	return nil
}

// Finish closes every target and reports one result per target.
func (em *ExportManager) Finish() []model.ExportResult {
	return em.closeAll()
}

func (em *ExportManager) closeAll() []model.ExportResult {
	results := make([]model.ExportResult, 0, len(em.sinks))
	for _, s := range em.sinks {
		n, err := s.Close()
		typ, path := s.Describe()
		result := model.ExportResult{
			Type:        typ,
			Path:        path,
			RecordCount: n,
			Success:     err == nil,
			Timestamp:   time.Now(),
		}
		if err != nil {
			result.Error = err.Error()
			fmt.Printf("❌ Export to %s failed: %v\n", path, err)
		} else {
			fmt.Printf("✅ Export successful: %d rows written to %s (%s)\n", n, path, typ)
		}
		results = append(results, result)
	}
	em.sinks = nil
	return results
}

// FormatValue renders a catalog value for text catalogs
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// ------------------- File targets -------------------

func newFileSink(path, jobID string, columns []string, delimiter string) (catalogSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if Outputs.GetFileType(path) == "json" {
		return newJSONSink(file, path, jobID, columns)
	}
	if delimiter == "" {
		delimiter = ", "
	}
	s := &textSink{file: file, w: bufio.NewWriter(file), path: path, delimiter: delimiter}
	if _, err := s.w.WriteString("# " + strings.Join(columns, delimiter) + "\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return s, nil
}

// textSink writes a delimited instance catalog with a '#' header line
type textSink struct {
	file      *os.File
	w         *bufio.Writer
	path      string
	delimiter string
	rows      int
	fields    []string
}

func (s *textSink) WriteRow(_ context.Context, row []interface{}) error {
	s.fields = s.fields[:0]
	for _, v := range row {
		s.fields = append(s.fields, FormatValue(v))
	}
	if _, err := s.w.WriteString(strings.Join(s.fields, s.delimiter) + "\n"); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	s.rows++
	return nil
}

func (s *textSink) Close() (int, error) {
	err := s.w.Flush()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return s.rows, err
}

func (s *textSink) Describe() (string, string) { return "text", s.path }

// jsonSink streams {"export_info": ..., "columns": [...], "data": [[...], ...]}
type jsonSink struct {
	file *os.File
	w    *bufio.Writer
	path string
	rows int
}

func newJSONSink(file *os.File, path, jobID string, columns []string) (*jsonSink, error) {
	info, err := json.Marshal(map[string]interface{}{
		"job_id":      jobID,
		"exported_at": time.Now().UTC(),
		"export_type": "instance_catalog",
	})
	if err != nil {
		file.Close()
		return nil, err
	}
	cols, err := json.Marshal(columns)
	if err != nil {
		file.Close()
		return nil, err
	}
	s := &jsonSink{file: file, w: bufio.NewWriter(file), path: path}
	fmt.Fprintf(s.w, "{\"export_info\":%s,\"columns\":%s,\"data\":[", info, cols)
	return s, nil
}

func (s *jsonSink) WriteRow(_ context.Context, row []interface{}) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode JSON row: %w", err)
	}
	if s.rows > 0 {
		s.w.WriteByte(',')
	}
	s.w.WriteString("\n")
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	s.rows++
	return nil
}

func (s *jsonSink) Close() (int, error) {
	s.w.WriteString("\n]}\n")
	err := s.w.Flush()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return s.rows, err
}

func (s *jsonSink) Describe() (string, string) { return "json", s.path }

// ------------------- Database target -------------------

type dbSink struct {
	w     *store.CatalogWriter
	path  string
	table string
}

func (s *dbSink) WriteRow(ctx context.Context, row []interface{}) error { return s.w.Write(ctx, row) }
func (s *dbSink) Close() (int, error)                                   { return s.w.Close() }
func (s *dbSink) Describe() (string, string)                            { return "database", s.path + ":" + s.table }
