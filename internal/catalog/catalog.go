package catalog

import (
	"fmt"
	"sort"

	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/variability"
)

// Object type codes packed into uniqueId
const (
	StarTypeID   int64 = 4
	GalaxyTypeID int64 = 24
)

// Definition is a composed, sealed column registry for one kind of catalog.
type Definition struct {
	Name           string
	Registry       *column.Registry
	DefaultColumns []string
}

type builder func(src model.Source, d *variability.Dispatcher) (*column.Registry, error)

var builders = map[string]builder{
	"stars":    buildStars,
	"galaxies": buildGalaxies,
}

var defaultColumns = map[string][]string{
	"stars": {"uniqueId", "raJ2000", "decJ2000", "lsst_u", "lsst_g", "lsst_r", "lsst_i", "lsst_z", "lsst_y"},
	"galaxies": {"uniqueId", "raJ2000", "decJ2000",
		"delta_uAgn", "delta_gAgn", "delta_rAgn", "delta_iAgn", "delta_zAgn", "delta_yAgn"},
}

// Names lists the known catalog kinds
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build composes the named catalog. Raw columns read the fields named by src;
// variability columns evaluate models through d.
func Build(name string, src model.Source, d *variability.Dispatcher) (*Definition, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown catalog %q (known: %v)", name, Names())
	}
	reg, err := build(src, d)
	if err != nil {
		return nil, fmt.Errorf("building catalog %s: %w", name, err)
	}
	return &Definition{
		Name:           name,
		Registry:       reg,
		DefaultColumns: append([]string(nil), defaultColumns[name]...),
	}, nil
}

// CheckColumns reports the first requested column the catalog cannot produce.
func (d *Definition) CheckColumns(cols []string) error {
	for _, c := range cols {
		if !d.Registry.Has(c) {
			return &column.UnknownColumnError{Name: c}
		}
	}
	return nil
}

func buildStars(src model.Source, d *variability.Dispatcher) (*column.Registry, error) {
	base, err := astrometry(src, StarTypeID)
	if err != nil {
		return nil, err
	}
	phot, err := photometry("lsst_magnitudes", "quiescent_lsst_%s", "lsst_%s", "delta_lsst_%s")
	if err != nil {
		return nil, err
	}
	vary, err := variabilityColumns("stellar_variability", "delta_lsst_%s", d)
	if err != nil {
		return nil, err
	}
	return column.Union(base, phot, vary)
}

func buildGalaxies(src model.Source, d *variability.Dispatcher) (*column.Registry, error) {
	base, err := astrometry(src, GalaxyTypeID)
	if err != nil {
		return nil, err
	}
	phot, err := photometry("agn_magnitudes", "quiescent_%sAgn", "%sAgn", "delta_%sAgn")
	if err != nil {
		return nil, err
	}
	vary, err := variabilityColumns("galaxy_variability_total", "delta_%sAgn", d)
	if err != nil {
		return nil, err
	}
	return column.Union(base, phot, vary)
}
