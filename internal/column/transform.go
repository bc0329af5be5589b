package column

import (
	"fmt"
	"math"
	"sort"

	"go-instance-catalog/pkg/utils"
)

// Transform converts a resolved value into its output representation.
type Transform func(v interface{}) interface{}

// TransformMap maps output column names to the transform applied on emission.
type TransformMap map[string]Transform

// Emit resolves columns for one row and applies transforms to the results.
// Transformed values are never written back to the cache, and entries for
// columns that were not requested are ignored.
func Emit(r *Resolver, columns []string, transforms TransformMap) ([]interface{}, error) {
	out := make([]interface{}, len(columns))
	for i, name := range columns {
		v, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		if t, ok := transforms[name]; ok && t != nil {
			v = t(v)
		}
		out[i] = v
	}
	return out, nil
}

// numeric lifts a float function into a Transform; non-numeric values pass through.
func numeric(f func(float64) float64) Transform {
	return func(v interface{}) interface{} {
		x, ok := utils.AsFloat(v)
		if !ok {
			return v
		}
		return f(x)
	}
}

var namedTransforms = map[string]Transform{
	"degrees": numeric(func(x float64) float64 { return x * 180.0 / math.Pi }),
	"radians": numeric(func(x float64) float64 { return x * math.Pi / 180.0 }),
	"arcsec":  numeric(func(x float64) float64 { return x * 3600.0 * 180.0 / math.Pi }),
	"mas":     numeric(func(x float64) float64 { return x * 3600.0e3 * 180.0 / math.Pi }),
	"round6":  numeric(func(x float64) float64 { return math.Round(x*1e6) / 1e6 }),
	"abs":     numeric(math.Abs),
	"negate":  numeric(func(x float64) float64 { return -x }),
}

// LookupTransform returns the named transform
func LookupTransform(name string) (Transform, error) {
	t, ok := namedTransforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transformation: %s", name)
	}
	return t, nil
}

// TransformNames lists the transforms usable from job specs.
func TransformNames() []string {
	names := make([]string, 0, len(namedTransforms))
	for n := range namedTransforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuildTransforms converts a column -> transform-name configuration into a
// TransformMap, rejecting unknown transform names.
func BuildTransforms(config map[string]string) (TransformMap, error) {
	tm := make(TransformMap, len(config))
	for col, name := range config {
		t, err := LookupTransform(name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		tm[col] = t
	}
	return tm, nil
}
