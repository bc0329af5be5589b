package variability

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
)

// tableStore serves fixed tables by key
func tableStore(tables ...*Table) *Store {
	byKey := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byKey[t.Key] = t
	}
	return NewStore(LoaderFunc(func(_ context.Context, key string) (*Table, error) {
		if t, ok := byKey[key]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("%s: %w", key, ErrNoData)
	}))
}

func mustParams(t *testing.T, raw string) Params {
	t.Helper()
	p, ok, err := ParseParams(raw)
	if err != nil || !ok {
		t.Fatalf("ParseParams(%s) = %v, %v", raw, ok, err)
	}
	return p
}

func allBands(vals ...float64) [][]float64 {
	out := make([][]float64, len(Bandpasses))
	for i := range out {
		out[i] = vals
	}
	return out
}

func TestMicrolens(t *testing.T) {
	p := mustParams(t, `{"m": "applyMicrolens", "p": {"t0": 60000, "umin": 1, "that": 20}}`)

	peak, err := Microlens(context.Background(), p, 60000)
	if err != nil {
		t.Fatal(err)
	}
	want := -2.5 * math.Log10(3/math.Sqrt(5))
	for _, b := range Bandpasses {
		if !approx(peak[b], want) {
			t.Errorf("peak %s = %v, want %v", b, peak[b], want)
		}
	}

	far, err := Microlens(context.Background(), p, 70000)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(far["r"]) > 1e-4 || far["r"] > 0 {
		t.Errorf("offset far from peak = %v, want ~0 and brightening", far["r"])
	}
}

func TestMicrolensRejectsZeroTimescale(t *testing.T) {
	p := mustParams(t, `{"m": "applyMicrolens", "p": {"t0": 0, "umin": 1, "that": 0}}`)
	if _, err := Microlens(context.Background(), p, 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestPeriodicModelDays(t *testing.T) {
	tbl, err := NewTable("rr.txt", []float64{0, 1, 2}, []string{"u"}, [][]float64{{0, 1, 0}}, false)
	if err != nil {
		t.Fatal(err)
	}
	m := PeriodicModel{Store: tableStore(tbl), FileKey: "filename", T0Key: "tStartMjd"}
	p := mustParams(t, `{"m": "applyRRly", "p": {"filename": "rr.txt", "tStartMjd": 100}}`)

	// natural period 3: 104 is one day into the second cycle
	off, err := m.Offsets(context.Background(), p, 104)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(off["u"]-1) > 1e-9 {
		t.Errorf("u = %v, want 1", off["u"])
	}
}

func TestPeriodicModelFluxRatio(t *testing.T) {
	tbl, err := NewTable("eb.txt", []float64{0, 0.5}, Bandpasses, allBands(1.0, 0.5), false)
	if err != nil {
		t.Fatal(err)
	}
	m := PeriodicModel{Store: tableStore(tbl), FileKey: "lcfile", T0Key: "t0", PhaseUnits: true, FluxRatio: true}
	p := mustParams(t, `{"m": "applyEb", "p": {"lcfile": "eb.txt", "t0": 0, "period": 2}}`)

	tests := []struct {
		mjd  float64
		want float64
	}{
		{0, 0},
		{1, -2.5 * math.Log10(0.5)},
		{0.5, -2.5 * math.Log10(0.75)},
	}
	for _, tt := range tests {
		off, err := m.Offsets(context.Background(), p, tt.mjd)
		if err != nil {
			t.Fatal(err)
		}
		if !approx(off["g"], tt.want) {
			t.Errorf("mjd %v: g = %v, want %v", tt.mjd, off["g"], tt.want)
		}
	}
}

func TestPeriodicModelNegativeFlux(t *testing.T) {
	tbl, _ := NewTable("neg.txt", []float64{0, 1}, []string{"u"}, [][]float64{{-1, -1}}, false)
	m := PeriodicModel{Store: tableStore(tbl), FileKey: "lcfile", T0Key: "t0", FluxRatio: true}
	p := mustParams(t, `{"m": "applyEb", "p": {"lcfile": "neg.txt", "t0": 0}}`)
	if _, err := m.Offsets(context.Background(), p, 0.5); err == nil {
		t.Fatal("expected error for negative flux")
	}
}

func TestPeriodicModelMissingCurve(t *testing.T) {
	m := PeriodicModel{Store: tableStore(), FileKey: "filename", T0Key: "tStartMjd"}
	p := mustParams(t, `{"m": "applyRRly", "p": {"filename": "nope.txt", "tStartMjd": 0}}`)
	if _, err := m.Offsets(context.Background(), p, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestBHMicrolens(t *testing.T) {
	tbl, _ := NewTable("bh.txt", []float64{0, 1}, []string{"value"}, [][]float64{{2, 2}}, false)
	m := BHMicrolensModel{Store: tableStore(tbl)}
	p := mustParams(t, `{"m": "applyBHMicrolens", "p": {"filename": "bh.txt", "t0": 0}}`)

	inside, err := m.Offsets(context.Background(), p, 182.5)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(inside["i"], -2.5*math.Log10(2)) {
		t.Errorf("inside range: i = %v", inside["i"])
	}

	outside, err := m.Offsets(context.Background(), p, 3650)
	if err != nil {
		t.Fatal(err)
	}
	if outside["i"] != 0 {
		t.Errorf("outside range: i = %v, want 0", outside["i"])
	}
}

func TestAmcvnQuiescent(t *testing.T) {
	p := mustParams(t, `{"m": "applyAmcvn", "p": {"amplitude": 0.5, "t0": 0, "period": 1, "does_burst": false}}`)
	off, err := Amcvn(context.Background(), p, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range Bandpasses {
		if off[b] != 0.5 {
			t.Errorf("%s = %v, want 0.5", b, off[b])
		}
	}
}

func TestAmcvnBurstIsBluer(t *testing.T) {
	p := mustParams(t, `{"m": "applyAmcvn", "p": {"amplitude": 0, "t0": 0, "period": 1, "does_burst": true,
		"burst_freq": 100, "burst_scale": 10, "amp_burst": 2, "color_excess_during_burst": -0.5}}`)
	off, err := Amcvn(context.Background(), p, 120)
	if err != nil {
		t.Fatal(err)
	}
	if off["u"] >= off["r"] || off["r"] >= off["z"] {
		t.Errorf("burst offsets not bluer in u: %v", off)
	}
	if off["z"] >= 0 {
		t.Errorf("z = %v, want brightening during burst", off["z"])
	}
}

const agnParams = `{"m": "applyAgn", "p": {"t0_mjd": 59000, "seed": %d, "agn_tau": 100,
	"agn_sfu": 0.3, "agn_sfg": 0.25, "agn_sfr": 0.2, "agn_sfi": 0.15, "agn_sfz": 0.1, "agn_sfy": 0.05}}`

func TestAGNIsDeterministic(t *testing.T) {
	p := mustParams(t, fmt.Sprintf(agnParams, 7))
	first, err := AGN(context.Background(), p, 59500)
	if err != nil {
		t.Fatal(err)
	}
	second, err := AGN(context.Background(), p, 59500)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range Bandpasses {
		if first[b] != second[b] {
			t.Errorf("%s: %v then %v", b, first[b], second[b])
		}
	}

	other, err := AGN(context.Background(), mustParams(t, fmt.Sprintf(agnParams, 8)), 59500)
	if err != nil {
		t.Fatal(err)
	}
	if other["u"] == first["u"] {
		t.Error("different seeds gave the same walk")
	}
}

func TestAGNEpochEdges(t *testing.T) {
	p := mustParams(t, fmt.Sprintf(agnParams, 1))
	if _, err := AGN(context.Background(), p, 58999); err == nil {
		t.Error("epoch before t0: expected error")
	}
	off, err := AGN(context.Background(), p, 59000)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range Bandpasses {
		if off[b] != 0 {
			t.Errorf("at t0: %s = %v, want 0", b, off[b])
		}
	}
}

func TestAGNRejectsTinyTimescales(t *testing.T) {
	for _, tau := range []string{"1e-300", "1e-3"} {
		raw := strings.Replace(fmt.Sprintf(agnParams, 1), `"agn_tau": 100`, `"agn_tau": `+tau, 1)
		if _, err := AGN(context.Background(), mustParams(t, raw), 62650); err == nil {
			t.Errorf("agn_tau %s: expected error", tau)
		}
	}
}

func TestStandardDispatcherEndToEnd(t *testing.T) {
	tbl, _ := NewTable("rrly_lc/RRab/1_per.txt", []float64{0, 0.5}, Bandpasses, allBands(0.2, 0.2), false)
	d := NewStandardDispatcher(tableStore(tbl))

	off, err := d.ComputeOffsets(context.Background(), "1",
		`{"m": "applyRRly", "p": {"filename": "rrly_lc/RRab/1_per.txt", "tStartMjd": 48000.0}}`, 59580)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(off["y"], 0.2) {
		t.Errorf("y = %v, want 0.2", off["y"])
	}
}
