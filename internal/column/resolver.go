package column

import (
	"context"
	"errors"
	"fmt"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/pkg/utils"
)

// Row is one raw record as produced by a record source.
type Row = map[string]interface{}

// Batch resolves columns for a fixed set of rows. Every row gets its own
// cache; all caches die with the batch. A Batch must not be shared between
// goroutines.
type Batch struct {
	ctx     context.Context
	reg     *Registry
	obs     model.ObservationContext
	idKey   string
	indices []int
	rows    []Row
	res     []*Resolver
}

// NewBatch creates a resolution batch. idKey names the raw field used to
// identify rows in errors; it may be empty.
func NewBatch(ctx context.Context, reg *Registry, obs model.ObservationContext, idKey string, rows []Row) *Batch {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Batch{
		ctx:   ctx,
		reg:   reg,
		obs:   obs,
		idKey: idKey,
		rows:  rows,
		res:   make([]*Resolver, len(rows)),
	}
}

// WithRowIndices gives each row its position in the whole source, so rows
// without an id are named the same way in every stage.
func (b *Batch) WithRowIndices(indices []int) *Batch {
	if len(indices) == len(b.rows) {
		b.indices = indices
	}
	return b
}

// Len returns the number of rows in the batch
func (b *Batch) Len() int { return len(b.rows) }

// Row returns the resolver for row i, creating its cache on first use.
func (b *Batch) Row(i int) *Resolver {
	if r := b.res[i]; r != nil {
		return r
	}
	r := &Resolver{
		batch:  b,
		index:  i,
		row:    b.rows[i],
		cache:  make(map[string]interface{}),
		active: make(map[string]bool),
	}
	b.res[i] = r
	return r
}

// Release drops every cached value. The batch cannot be used afterwards.
func (b *Batch) Release() {
	b.res = nil
	b.rows = nil
}

// Resolver resolves columns for a single row of a batch.
type Resolver struct {
	batch  *Batch
	index  int
	row    Row
	cache  map[string]interface{}
	active map[string]bool
	stack  []string
}

// Context returns the context of the batch, for getters that block.
func (r *Resolver) Context() context.Context { return r.batch.ctx }

// Observation returns the observation context of the catalog run.
func (r *Resolver) Observation() model.ObservationContext { return r.batch.obs }

// Index returns the row's position in its batch
func (r *Resolver) Index() int { return r.index }

// RowID identifies the row in error messages.
func (r *Resolver) RowID() string {
	if r.batch.idKey != "" {
		if v, ok := r.row[r.batch.idKey]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	if r.batch.indices != nil {
		return fmt.Sprintf("#%d", r.batch.indices[r.index])
	}
	return fmt.Sprintf("#%d", r.index)
}

// Resolve returns the value of column name for this row, computing and
// caching it and everything it depends on.
func (r *Resolver) Resolve(name string) (interface{}, error) {
	if v, ok := r.cache[name]; ok {
		return v, nil
	}
	spec, err := r.batch.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	if r.active[name] {
		path := append(append([]string(nil), r.stack...), name)
		return nil, &CyclicDependencyError{Path: path, RowID: r.RowID()}
	}

	switch spec.Kind {
	case KindRaw:
		v, ok := r.row[spec.Field]
		if !ok {
			return nil, &MissingFieldError{Column: name, Field: spec.Field, RowID: r.RowID()}
		}
		r.cache[name] = v
		return v, nil

	case KindSingle:
		r.enter(name, name)
		v, err := callSingle(spec, r)
		r.leave(name)
		if err != nil {
			return nil, r.wrap(name, err)
		}
		r.cache[name] = v
		return v, nil

	case KindCompound:
		r.enter(name, spec.Outputs...)
		vals, err := callCompound(spec, r)
		r.leave(spec.Outputs...)
		if err != nil {
			return nil, r.wrap(name, err)
		}
		if len(vals) != len(spec.Outputs) {
			return nil, r.wrap(name, fmt.Errorf("compound getter %q returned %d values for %d outputs",
				spec.Name, len(vals), len(spec.Outputs)))
		}
		for i, out := range spec.Outputs {
			r.cache[out] = vals[i]
		}
		return r.cache[name], nil
	}
	return nil, fmt.Errorf("column %q has unsupported kind %s", name, spec.Kind)
}

// Float resolves name and converts the value to float64.
func (r *Resolver) Float(name string) (float64, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return 0, err
	}
	f, ok := utils.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("column %q: value %v (%T) is not numeric", name, v, v)
	}
	return f, nil
}

// String resolves name and formats the value as a string. nil becomes "".
func (r *Resolver) String(name string) (string, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return fmt.Sprint(v), nil
}

// callSingle and callCompound turn a getter panic into an error for that row.
func callSingle(spec *Spec, r *Resolver) (v interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("getter panicked: %v", p)
		}
	}()
	return spec.single(r)
}

func callCompound(spec *Spec, r *Resolver) (vals []interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("getter panicked: %v", p)
		}
	}()
	return spec.compound(r)
}

func (r *Resolver) enter(requested string, names ...string) {
	r.stack = append(r.stack, requested)
	for _, n := range names {
		r.active[n] = true
	}
}

func (r *Resolver) leave(names ...string) {
	r.stack = r.stack[:len(r.stack)-1]
	for _, n := range names {
		delete(r.active, n)
	}
}

// wrap turns a getter failure into a ColumnComputationError unless it is
// already a resolution error from a nested column.
func (r *Resolver) wrap(column string, err error) error {
	var re resolutionError
	if errors.As(err, &re) {
		return err
	}
	return &ColumnComputationError{Column: column, RowID: r.RowID(), Err: err}
}
