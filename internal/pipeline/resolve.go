package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
)

// RowBatch is a run of consecutive source records. Seq numbers batches in
// source order and Offset is the index of the first record in the source.
type RowBatch struct {
	Seq    int
	Offset int
	Rows   []GenericRecord
	Index  []int // source position of each row once filtered; nil means Offset+i
}

// SourceIndex returns the position of row i in the record source
func (b RowBatch) SourceIndex(i int) int {
	if b.Index != nil {
		return b.Index[i]
	}
	return b.Offset + i
}

// ResolvedBatch holds the catalog rows produced from one RowBatch.
type ResolvedBatch struct {
	Seq     int
	Rows    [][]interface{}
	Skipped int
	Aborted bool
}

// BatchRecords groups records into batches of size rows.
func BatchRecords(ctx context.Context, in <-chan GenericRecord, size int, tracker *PipelineTracker) <-chan RowBatch {
	out := make(chan RowBatch)
	go func() {
		defer close(out)
		seq, offset := 0, 0
		cur := make([]GenericRecord, 0, size)
		flush := func() bool {
			b := RowBatch{Seq: seq, Offset: offset, Rows: cur}
			select {
			case <-ctx.Done():
				return false
			case out <- b:
			}
			seq++
			offset += len(cur)
			cur = make([]GenericRecord, 0, size)
			return true
		}

		for rec := range in {
			tracker.AddIngested(1)
			cur = append(cur, rec)
			if len(cur) == size && !flush() {
				return
			}
		}
		if len(cur) > 0 {
			flush()
		}
	}()
	return out
}

// ResolveConfig is everything a resolver worker needs. All of it is
// read-only while workers run.
type ResolveConfig struct {
	Registry    *column.Registry
	Observation model.ObservationContext
	Columns     []string
	Transforms  column.TransformMap
	Policy      model.ErrorPolicy
	IDKey       string
}

// ResolveBatch resolves the requested columns for every row of b with a
// fresh per-batch cache. Failing rows are reported to the tracker; under
// PolicyAbort the rest of the batch is dropped.
func ResolveBatch(ctx context.Context, cfg ResolveConfig, b RowBatch, tracker *PipelineTracker) ResolvedBatch {
	rows := make([]column.Row, len(b.Rows))
	indices := make([]int, len(b.Rows))
	for i, rec := range b.Rows {
		rows[i] = column.Row(rec)
		indices[i] = b.SourceIndex(i)
	}
	batch := column.NewBatch(ctx, cfg.Registry, cfg.Observation, cfg.IDKey, rows).WithRowIndices(indices)
	defer batch.Release()

	out := ResolvedBatch{Seq: b.Seq, Rows: make([][]interface{}, 0, batch.Len())}
	for i := 0; i < batch.Len(); i++ {
		r := batch.Row(i)
		vals, err := column.Emit(r, cfg.Columns, cfg.Transforms)
		if err == nil {
			out.Rows = append(out.Rows, vals)
			continue
		}
		tracker.RecordError("resolve", r.RowID(), err)
		if cfg.Policy == model.PolicyAbort {
			out.Skipped += batch.Len() - i
			out.Aborted = true
			break
		}
		out.Skipped++
	}
	return out
}

// ResolveBatches runs workerCount resolver workers over in. Each batch is
// resolved by exactly one worker; out is closed when all workers are done.
// Only cancellation stops the pool: row errors are handled per batch.
func ResolveBatches(
	ctx context.Context,
	cfg ResolveConfig,
	in <-chan RowBatch,
	out chan<- ResolvedBatch,
	tracker *PipelineTracker,
	workerCount int,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workerCount; w++ {
		workerID := w
		g.Go(func() error {
			batches, rowsOut := 0, 0
			for b := range in {
				rb := ResolveBatch(gctx, cfg, b, tracker)
				tracker.AddEmitted(int64(len(rb.Rows)))
				tracker.AddSkipped(int64(rb.Skipped))
				if rb.Aborted {
					tracker.AddAborted(1)
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				case out <- rb:
				}
				batches++
				rowsOut += len(rb.Rows)
			}
			fmt.Printf("🧮 Resolve Worker %d completed: %d batches, %d rows\n", workerID, batches, rowsOut)
			return nil
		})
	}
	err := g.Wait()
	close(out)
	return err
}
