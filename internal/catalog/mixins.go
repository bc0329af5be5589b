package catalog

import (
	"errors"
	"fmt"
	"math"

	"go-instance-catalog/internal/column"
	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/variability"
	"go-instance-catalog/pkg/utils"
)

// astrometry registers identity and position columns. Source positions are
// in degrees; raJ2000 and decJ2000 are radians.
func astrometry(src model.Source, objectTypeID int64) (*column.Registry, error) {
	reg := column.NewRegistry()
	steps := []func() error{
		func() error { return reg.RegisterRaw("id", src.IDColumn) },
		func() error { return reg.RegisterRaw("ra", src.RAColumn) },
		func() error { return reg.RegisterRaw("decl", src.DecColumn) },
		func() error {
			return reg.Register("objectTypeId", func(*column.Resolver) (interface{}, error) {
				return objectTypeID, nil
			})
		},
		func() error { return reg.Register("uniqueId", uniqueID) },
		func() error { return reg.Register("raJ2000", radiansOf("ra")) },
		func() error { return reg.Register("decJ2000", radiansOf("decl")) },
		func() error {
			return reg.RegisterCompound("pointing_offset", []string{"angSep", "posAngle"}, pointingOffset)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// uniqueId packs the object type into the low ten bits of the id.
func uniqueID(r *column.Resolver) (interface{}, error) {
	v, err := r.Resolve("id")
	if err != nil {
		return nil, err
	}
	var id int64
	switch x := v.(type) {
	case int64:
		id = x
	case int:
		id = int64(x)
	default:
		f, ok := utils.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("id %v is not numeric", v)
		}
		id = int64(f)
	}
	typ, err := r.Float("objectTypeId")
	if err != nil {
		return nil, err
	}
	return (id << 10) + int64(typ), nil
}

func radiansOf(degCol string) column.Getter {
	return func(r *column.Resolver) (interface{}, error) {
		deg, err := r.Float(degCol)
		if err != nil {
			return nil, err
		}
		return deg * math.Pi / 180.0, nil
	}
}

// pointingOffset gives the separation from the pointing and the position
// angle (east of north), both in degrees.
func pointingOffset(r *column.Resolver) ([]interface{}, error) {
	ra, err := r.Float("ra")
	if err != nil {
		return nil, err
	}
	dec, err := r.Float("decl")
	if err != nil {
		return nil, err
	}
	obs := r.Observation()
	sep := utils.AngularSeparation(obs.PointingRA, obs.PointingDec, ra, dec)

	ra0, dec0 := obs.PointingRA*math.Pi/180, obs.PointingDec*math.Pi/180
	ra1, dec1 := ra*math.Pi/180, dec*math.Pi/180
	y := math.Sin(ra1-ra0) * math.Cos(dec1)
	x := math.Cos(dec0)*math.Sin(dec1) - math.Sin(dec0)*math.Cos(dec1)*math.Cos(ra1-ra0)
	pa := math.Atan2(y, x) * 180 / math.Pi
	if pa < 0 {
		pa += 360
	}
	return []interface{}{sep, pa}, nil
}

// bandColumns expands a name pattern over the bandpasses.
func bandColumns(pattern string) []string {
	cols := make([]string, len(variability.Bandpasses))
	for i, b := range variability.Bandpasses {
		cols[i] = fmt.Sprintf(pattern, b)
	}
	return cols
}

// variabilityColumns registers a compound getter evaluating the row's
// variability model at the observation epoch. Outputs follow the
// bandpass order of outPattern.
func variabilityColumns(name, outPattern string, d *variability.Dispatcher) (*column.Registry, error) {
	reg := column.NewRegistry()
	if err := reg.RegisterRaw("varParamStr", ""); err != nil {
		return nil, err
	}
	err := reg.RegisterCompound(name, bandColumns(outPattern), func(r *column.Resolver) ([]interface{}, error) {
		// a source without variability data describes non-variable objects
		raw, err := r.String("varParamStr")
		var mfe *column.MissingFieldError
		if errors.As(err, &mfe) && mfe.Column == "varParamStr" {
			raw, err = "", nil
		}
		if err != nil {
			return nil, err
		}
		off, err := d.ComputeOffsets(r.Context(), r.RowID(), raw, r.Observation().MJD)
		if err != nil {
			return nil, err
		}
		vals := make([]interface{}, len(variability.Bandpasses))
		for i, b := range variability.Bandpasses {
			vals[i] = off[b]
		}
		return vals, nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// photometry registers quiescent magnitudes read from the source and the
// observed magnitudes, which add the matching delta column.
func photometry(name, quiescentPattern, observedPattern, deltaPattern string) (*column.Registry, error) {
	reg := column.NewRegistry()
	quiescent := bandColumns(quiescentPattern)
	deltas := bandColumns(deltaPattern)
	for _, q := range quiescent {
		if err := reg.RegisterRaw(q, ""); err != nil {
			return nil, err
		}
	}
	err := reg.RegisterCompound(name, bandColumns(observedPattern), func(r *column.Resolver) ([]interface{}, error) {
		vals := make([]interface{}, len(quiescent))
		for i := range quiescent {
			base, err := r.Float(quiescent[i])
			if err != nil {
				return nil, err
			}
			delta, err := r.Float(deltas[i])
			if err != nil {
				return nil, err
			}
			vals[i] = base + delta
		}
		return vals, nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}
