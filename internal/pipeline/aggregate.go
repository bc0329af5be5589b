package pipeline

import (
	"math"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/pkg/utils"
)

// columnAccumulator keeps running statistics for one output column
type columnAccumulator struct {
	count    int64
	sum      float64
	min, max float64
}

func (a *columnAccumulator) add(x float64) {
	if a.count == 0 || x < a.min {
		a.min = x
	}
	if a.count == 0 || x > a.max {
		a.max = x
	}
	a.count++
	a.sum += x
}

// SummaryCollector aggregates per-column statistics over emitted catalog
// rows. Non-numeric and non-finite values are not counted. It is used by the
// single export goroutine and is not safe for concurrent use.
type SummaryCollector struct {
	columns []string
	acc     []columnAccumulator
	rows    int64
}

// NewSummaryCollector creates a collector for the given output columns
func NewSummaryCollector(columns []string) *SummaryCollector {
	return &SummaryCollector{
		columns: append([]string(nil), columns...),
		acc:     make([]columnAccumulator, len(columns)),
	}
}

// Observe adds one catalog row
func (s *SummaryCollector) Observe(row []interface{}) {
	s.rows++
	for i, v := range row {
		if i >= len(s.acc) {
			break
		}
		if _, isString := v.(string); isString {
			continue
		}
		x, ok := utils.AsFloat(v)
		if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		s.acc[i].add(x)
	}
}

// Rows returns the number of rows observed
func (s *SummaryCollector) Rows() int64 { return s.rows }

// Summary builds the job summary. Columns without numeric values are left out.
func (s *SummaryCollector) Summary(jobID string, skipped int64) model.CatalogSummary {
	sum := model.CatalogSummary{
		JobID:       jobID,
		RowsEmitted: s.rows,
		RowsSkipped: skipped,
		Columns:     make([]model.ColumnStats, 0, len(s.columns)),
	}
	for i, name := range s.columns {
		a := s.acc[i]
		if a.count == 0 {
			continue
		}
		sum.Columns = append(sum.Columns, model.ColumnStats{
			Column: name,
			Count:  a.count,
			Min:    a.min,
			Max:    a.max,
			Mean:   a.sum / float64(a.count),
		})
	}
	return sum
}
