package column

import (
	"fmt"
	"sort"
)

// Kind says how a column is produced.
type Kind int

const (
	KindRaw Kind = iota
	KindSingle
	KindCompound
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindSingle:
		return "single"
	case KindCompound:
		return "compound"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Getter computes one derived column for the row behind r.
// It may call r.Resolve for any other column it needs.
type Getter func(r *Resolver) (interface{}, error)

// CompoundGetter computes several columns in one call. The returned slice is
// aligned with the outputs declared at registration.
type CompoundGetter func(r *Resolver) ([]interface{}, error)

// Spec describes how one column (or one group of compound columns) is produced.
// Specs for the outputs of a compound getter are shared.
type Spec struct {
	Name    string // column name, or getter name for compound specs
	Kind    Kind
	Field   string   // raw source field
	Outputs []string // compound outputs, in getter order

	single   Getter
	compound CompoundGetter
}

// Registry maps column names to specs. It is built once per catalog definition
// and must be sealed before being shared between resolver workers.
type Registry struct {
	specs     map[string]*Spec
	compounds map[string]*Spec
	order     []string
	sealed    bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		specs:     make(map[string]*Spec),
		compounds: make(map[string]*Spec),
	}
}

// RegisterRaw registers a column read directly from a source field.
// An empty field means the field has the column's name.
func (r *Registry) RegisterRaw(name, field string) error {
	if field == "" {
		field = name
	}
	return r.add(&Spec{Name: name, Kind: KindRaw, Field: field})
}

// Register registers a single-output getter.
func (r *Registry) Register(name string, g Getter) error {
	if g == nil {
		return fmt.Errorf("column %q: nil getter", name)
	}
	return r.add(&Spec{Name: name, Kind: KindSingle, single: g})
}

// RegisterCompound registers a getter producing all of outputs in one call.
// name identifies the getter; it fails if the getter name or any output is taken.
func (r *Registry) RegisterCompound(name string, outputs []string, g CompoundGetter) error {
	if g == nil {
		return fmt.Errorf("compound getter %q: nil getter", name)
	}
	if len(outputs) == 0 {
		return fmt.Errorf("compound getter %q declares no outputs", name)
	}
	seen := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		if seen[out] {
			return &DuplicateColumnError{Name: out}
		}
		seen[out] = true
	}
	spec := &Spec{
		Name:     name,
		Kind:     KindCompound,
		Outputs:  append([]string(nil), outputs...),
		compound: g,
	}
	return r.add(spec)
}

func (r *Registry) add(spec *Spec) error {
	if r.sealed {
		return ErrSealed
	}
	if spec.Kind == KindCompound {
		if _, dup := r.compounds[spec.Name]; dup {
			return &DuplicateColumnError{Name: spec.Name}
		}
		for _, out := range spec.Outputs {
			if _, dup := r.specs[out]; dup {
				return &DuplicateColumnError{Name: out}
			}
		}
		r.compounds[spec.Name] = spec
		for _, out := range spec.Outputs {
			r.specs[out] = spec
			r.order = append(r.order, out)
		}
		return nil
	}
	if _, dup := r.specs[spec.Name]; dup {
		return &DuplicateColumnError{Name: spec.Name}
	}
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Lookup returns the spec producing name.
func (r *Registry) Lookup(name string) (*Spec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, &UnknownColumnError{Name: name}
	}
	return spec, nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// Columns returns every registered column name in registration order.
func (r *Registry) Columns() []string {
	return append([]string(nil), r.order...)
}

// RawFields returns the distinct source fields read by raw columns, sorted.
func (r *Registry) RawFields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, spec := range r.specs {
		if spec.Kind == KindRaw && !seen[spec.Field] {
			seen[spec.Field] = true
			fields = append(fields, spec.Field)
		}
	}
	sort.Strings(fields)
	return fields
}

// Seal freezes the registry. Sealed registries are safe for concurrent reads.
func (r *Registry) Seal() *Registry {
	r.sealed = true
	return r
}

// Sealed reports whether Seal has been called
func (r *Registry) Sealed() bool { return r.sealed }

// Union merges registries into a new sealed registry. The result does not
// depend on argument order: any name registered by more than one input fails
// with DuplicateColumnError.
func Union(regs ...*Registry) (*Registry, error) {
	out := NewRegistry()
	for _, reg := range regs {
		if reg == nil {
			continue
		}
		added := make(map[*Spec]bool)
		for _, name := range reg.order {
			spec := reg.specs[name]
			if added[spec] {
				continue
			}
			added[spec] = true
			if err := out.add(spec); err != nil {
				return nil, err
			}
		}
	}
	return out.Seal(), nil
}
