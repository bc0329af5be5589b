package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/pkg/utils"
)

// PositionError is reported for rows whose position cannot be read
type PositionError struct {
	RowID string
	Field string
	Value interface{}
}

func (e *PositionError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("row %s: position field %q is missing", e.RowID, e.Field)
	}
	return fmt.Sprintf("row %s: position field %q is not numeric: %v", e.RowID, e.Field, e.Value)
}

// rowID identifies a raw record in errors
func rowID(rec GenericRecord, idKey string, fallback int) string {
	if v, ok := rec[idKey]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("#%d", fallback)
}

// InView decides whether a record lies in the field of view. Records without
// a readable position yield a PositionError.
func InView(rec GenericRecord, src model.Source, obs model.ObservationContext, index int) (bool, error) {
	ra, ok := utils.AsFloat(rec[src.RAColumn])
	if !ok {
		return false, &PositionError{RowID: rowID(rec, src.IDColumn, index), Field: src.RAColumn, Value: rec[src.RAColumn]}
	}
	dec, ok := utils.AsFloat(rec[src.DecColumn])
	if !ok {
		return false, &PositionError{RowID: rowID(rec, src.IDColumn, index), Field: src.DecColumn, Value: rec[src.DecColumn]}
	}
	return obs.Contains(ra, dec), nil
}

// FilterFieldOfView drops rows outside the field of view from each batch.
// Batches keep their sequence number and their row order; batches that end up
// empty are still forwarded so the export stage can keep source order.
func FilterFieldOfView(
	ctx context.Context,
	src model.Source,
	obs model.ObservationContext,
	in <-chan RowBatch,
	out chan<- RowBatch,
	tracker *PipelineTracker,
	workerCount int,
) {
	var wg sync.WaitGroup
	wg.Add(workerCount)

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			var kept, dropped int64

			for b := range in {
				filtered := RowBatch{
					Seq:    b.Seq,
					Offset: b.Offset,
					Rows:   make([]GenericRecord, 0, len(b.Rows)),
					Index:  make([]int, 0, len(b.Rows)),
				}
				for j, rec := range b.Rows {
					idx := b.SourceIndex(j)
					ok, err := InView(rec, src, obs, idx)
					if err != nil {
						tracker.RecordError("validation", rowID(rec, src.IDColumn, idx), err)
					}
					if !ok {
						dropped++
						continue
					}
					filtered.Rows = append(filtered.Rows, rec)
					filtered.Index = append(filtered.Index, idx)
				}
				kept += int64(len(filtered.Rows))
				tracker.AddInView(int64(len(filtered.Rows)))

				select {
				case <-ctx.Done():
					return
				case out <- filtered:
				}
			}

			fmt.Printf("🔍 Validation Worker %d completed: %d in view, %d outside or invalid\n", workerID, kept, dropped)
		}(i)
	}

	// Close the output channel only AFTER all workers finish
	go func() {
		wg.Wait()
		close(out)
	}()
}
