package variability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// Model computes per-band magnitude offsets for one object at an epoch (MJD).
type Model interface {
	Offsets(ctx context.Context, p Params, mjd float64) (Offsets, error)
}

// ModelFunc adapts a function to the Model interface
type ModelFunc func(ctx context.Context, p Params, mjd float64) (Offsets, error)

func (f ModelFunc) Offsets(ctx context.Context, p Params, mjd float64) (Offsets, error) {
	return f(ctx, p, mjd)
}

// Dispatcher maps method names found in parameter strings to models.
// Models are registered up front; ComputeOffsets is safe for concurrent use.
type Dispatcher struct {
	models        map[string]Model
	parseFailures atomic.Int64
}

// NewDispatcher creates a dispatcher with no models
func NewDispatcher() *Dispatcher {
	return &Dispatcher{models: make(map[string]Model)}
}

// Register adds a model under a method name
func (d *Dispatcher) Register(method string, m Model) error {
	if m == nil {
		return fmt.Errorf("variability method %q: nil model", method)
	}
	if _, dup := d.models[method]; dup {
		return fmt.Errorf("variability method %q is already registered", method)
	}
	d.models[method] = m
	return nil
}

// Methods lists registered method names, sorted
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.models))
	for n := range d.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseFailures counts parameter strings that could not be decoded.
func (d *Dispatcher) ParseFailures() int64 { return d.parseFailures.Load() }

// ComputeOffsets decodes raw and evaluates the object's model at mjd.
// Objects without variability, including ones whose parameters cannot be
// parsed, get an empty Offsets (zero in every band) and no error.
func (d *Dispatcher) ComputeOffsets(ctx context.Context, objectID, raw string, mjd float64) (Offsets, error) {
	p, ok, err := ParseParams(raw)
	if err != nil {
		var pe *VariabilityParseError
		if errors.As(err, &pe) {
			d.parseFailures.Add(1)
			return Offsets{}, nil
		}
		return nil, err
	}
	if !ok {
		return Offsets{}, nil
	}

	m, found := d.models[p.Method]
	if !found {
		return nil, &UnknownVariabilityMethodError{Method: p.Method, ObjectID: objectID}
	}
	off, err := m.Offsets(ctx, p, mjd)
	if err != nil {
		return nil, fmt.Errorf("object %s: %s: %w", objectID, p.Method, err)
	}
	return off, nil
}

// NewStandardDispatcher registers the stellar and extragalactic models,
// reading tabulated light curves from store.
func NewStandardDispatcher(store *Store) *Dispatcher {
	d := NewDispatcher()
	rrly := PeriodicModel{Store: store, FileKey: "filename", T0Key: "tStartMjd"}
	cepheid := PeriodicModel{Store: store, FileKey: "lcfile", T0Key: "t0", PhaseUnits: true}
	eb := PeriodicModel{Store: store, FileKey: "lcfile", T0Key: "t0", PhaseUnits: true, FluxRatio: true}
	bh := BHMicrolensModel{Store: store}

	models := map[string]Model{
		"applyRRly":         rrly,
		"applyCepheid":      cepheid,
		"applyEb":           eb,
		"applyMicrolens":    ModelFunc(Microlens),
		"applyMicrolensing": ModelFunc(Microlens),
		"applyAmcvn":        ModelFunc(Amcvn),
		"applyBHMicrolens":  bh,
		"applyAgn":          ModelFunc(AGN),
	}
	for name, m := range models {
		// names are distinct literals; Register cannot fail here
		_ = d.Register(name, m)
	}
	return d
}
