package variability

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// uniform fills every bandpass with the same offset
func uniform(dm float64) Offsets {
	out := make(Offsets, len(Bandpasses))
	for _, b := range Bandpasses {
		out[b] = dm
	}
	return out
}

// fluxToMag converts a flux ratio into a magnitude offset.
func fluxToMag(f float64) float64 {
	dm := -2.5 * math.Log10(f)
	if math.IsNaN(dm) || math.IsInf(dm, 0) {
		return 0
	}
	return dm
}

// PeriodicModel evaluates a tabulated single-cycle light curve at the phase
// of the epoch. The period is the "period" parameter when present, otherwise
// the table's natural period.
type PeriodicModel struct {
	Store   *Store
	FileKey string // parameter naming the light curve
	T0Key   string // parameter holding the reference MJD

	// PhaseUnits: the table's time grid is phase in [0,1) rather than days.
	PhaseUnits bool
	// FluxRatio: the table holds flux ratios, converted with -2.5 log10.
	FluxRatio bool
}

func (m PeriodicModel) Offsets(ctx context.Context, p Params, mjd float64) (Offsets, error) {
	file, err := p.String(m.FileKey)
	if err != nil {
		return nil, err
	}
	t0, err := p.Float(m.T0Key)
	if err != nil {
		return nil, err
	}
	table, err := m.Store.Get(ctx, file)
	if err != nil {
		return nil, err
	}

	period := table.NaturalPeriod()
	if p.Has("period") {
		if period, err = p.Float("period"); err != nil {
			return nil, err
		}
	}
	if period <= 0 {
		return nil, fmt.Errorf("light curve %s: non-positive period %v", file, period)
	}

	epoch := mjd - t0
	phase := epoch/period - math.Floor(epoch/period)
	at := phase
	if !m.PhaseUnits {
		at = phase * period
	}

	out := table.OffsetsAt(at)
	if m.FluxRatio {
		for b, f := range out {
			if f < 0 {
				return nil, fmt.Errorf("light curve %s: negative flux ratio %v in band %s", file, f, b)
			}
			out[b] = fluxToMag(f)
		}
	}
	return out, nil
}

// Microlens is the point-lens magnification model, identical in every band.
// Parameters: t0 (MJD of peak), umin (impact parameter), that (event time scale).
func Microlens(_ context.Context, p Params, mjd float64) (Offsets, error) {
	t0, err := p.Float("t0")
	if err != nil {
		return nil, err
	}
	umin, err := p.Float("umin")
	if err != nil {
		return nil, err
	}
	that, err := p.Float("that")
	if err != nil {
		return nil, err
	}
	if that == 0 {
		return nil, fmt.Errorf("microlensing time scale is zero")
	}

	epoch := mjd - t0
	u := math.Sqrt(umin*umin + math.Pow(2.0*epoch/that, 2))
	if u == 0 {
		return nil, fmt.Errorf("microlensing magnification diverges at u=0")
	}
	magnification := (u*u + 2.0) / (u * math.Sqrt(u*u+4.0))
	return uniform(-2.5 * math.Log10(magnification)), nil
}

// amcvnMaxYears bounds the window over which AM CVn bursts are generated.
const amcvnMaxYears = 10.0

// Amcvn is a sinusoidal AM CVn model with optional periodic outbursts that
// are bluer than the quiescent variation.
func Amcvn(_ context.Context, p Params, mjd float64) (Offsets, error) {
	var v struct{ amplitude, t0, period, doesBurst float64 }
	for key, dst := range map[string]*float64{
		"amplitude":  &v.amplitude,
		"t0":         &v.t0,
		"period":     &v.period,
		"does_burst": &v.doesBurst,
	} {
		f, err := p.Float(key)
		if err != nil {
			return nil, err
		}
		*dst = f
	}
	if v.period == 0 {
		return nil, fmt.Errorf("amcvn period is zero")
	}

	base := v.amplitude * math.Cos((mjd-v.t0)/v.period)
	out := uniform(base)
	if v.doesBurst != 1 {
		return out, nil
	}

	var b struct{ freq, scale, amp, excess float64 }
	for key, dst := range map[string]*float64{
		"burst_freq":                &b.freq,
		"burst_scale":               &b.scale,
		"amp_burst":                 &b.amp,
		"color_excess_during_burst": &b.excess,
	} {
		f, err := p.Float(key)
		if err != nil {
			return nil, err
		}
		*dst = f
	}
	if b.freq <= 0 || b.scale == 0 {
		return nil, fmt.Errorf("amcvn burst frequency and scale must be positive")
	}

	// bursts evenly spaced from t0+freq to t0+maxyears
	start := v.t0 + b.freq
	end := v.t0 + amcvnMaxYears*365.25
	n := int(math.Ceil(amcvnMaxYears * 365.25 / b.freq))
	adds := 0.0
	for k := 0; k < n; k++ {
		o := start
		if n > 1 {
			o = start + float64(k)*(end-start)/float64(n-1)
		}
		tmp := math.Exp(-(mjd-o)/b.scale) / math.Exp(-1)
		if tmp < 1.0 {
			adds -= b.amp * tmp
		}
	}

	out["u"] += adds + 2.0*b.excess
	out["g"] += adds + b.excess
	out["r"] += adds + 0.5*b.excess
	out["i"] += adds
	out["z"] += adds
	out["y"] += adds
	return out, nil
}

// BHMicrolensModel evaluates a tabulated black hole lensing magnification
// curve whose time grid is in years. Outside the tabulated range the
// magnification is 1.
type BHMicrolensModel struct {
	Store *Store
}

func (m BHMicrolensModel) Offsets(ctx context.Context, p Params, mjd float64) (Offsets, error) {
	file, err := p.String("filename")
	if err != nil {
		return nil, err
	}
	t0, err := p.Float("t0")
	if err != nil {
		return nil, err
	}
	table, err := m.Store.Get(ctx, file)
	if err != nil {
		return nil, err
	}

	years := (mjd - t0) / 365.0
	magnification := 1.0
	if years >= table.First() && years <= table.Last() {
		magnification, err = table.InterpolateAt(years, table.Bands[0])
		if err != nil {
			return nil, err
		}
	}
	if magnification <= 0 {
		return nil, fmt.Errorf("light curve %s: non-positive magnification %v", file, magnification)
	}
	return uniform(-2.5 * math.Log10(magnification)), nil
}

// maxAGNBins caps the random walk length; a row needs 8 bytes per step.
const maxAGNBins = 2e6

// AGN is a damped random walk in every band, driven by one noise sequence
// seeded from the object's "seed" so that repeated evaluation is reproducible.
func AGN(_ context.Context, p Params, mjd float64) (Offsets, error) {
	t0, err := p.Float("t0_mjd")
	if err != nil {
		return nil, err
	}
	seed, err := p.Float("seed")
	if err != nil {
		return nil, err
	}
	tau, err := p.Float("agn_tau")
	if err != nil {
		return nil, err
	}
	if tau <= 0 {
		return nil, fmt.Errorf("agn_tau must be positive, got %v", tau)
	}
	sf := make(map[string]float64, len(Bandpasses))
	for _, b := range Bandpasses {
		if sf[b], err = p.Float("agn_sf" + b); err != nil {
			return nil, err
		}
	}

	endEpoch := mjd - t0
	if endEpoch < 0 {
		return nil, fmt.Errorf("epoch %v precedes t0_mjd %v", mjd, t0)
	}
	dt := tau / 100.0
	n := math.Ceil(endEpoch / dt)
	if math.IsNaN(n) || math.IsInf(n, 0) || n > maxAGNBins {
		return nil, fmt.Errorf("agn_tau %v needs too many time steps to reach epoch %v", tau, mjd)
	}
	nbins := int(n)
	if nbins == 0 {
		return uniform(0), nil
	}
	x1 := float64(nbins-1) * dt
	x2 := float64(nbins) * dt
	dtScaled := dt / tau

	rng := rand.New(rand.NewSource(int64(seed)))
	es := make([]float64, nbins)
	for i := range es {
		es[i] = rng.NormFloat64() * math.Sqrt(dtScaled)
	}

	out := make(Offsets, len(Bandpasses))
	for _, b := range Bandpasses {
		var dx1, dx2 float64
		for i := 0; i < nbins; i++ {
			dx1 = dx2
			dx2 = -dx1*dtScaled + sf[b]*es[i] + dx1
		}
		out[b] = (endEpoch*(dx1-dx2) + dx2*x1 - dx1*x2) / (x1 - x2)
	}
	return out, nil
}
