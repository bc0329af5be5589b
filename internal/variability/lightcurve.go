package variability

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Table is a tabulated light curve: magnitude offsets (or flux ratios, for
// some models) per band, sampled at strictly increasing times. Tables are
// immutable once built and are shared between goroutines.
type Table struct {
	Key      string
	Times    []float64
	Bands    []string
	Periodic bool

	channels map[string][]float64
}

// NewTable builds a table. values[i] holds the samples of bands[i].
func NewTable(key string, times []float64, bands []string, values [][]float64, periodic bool) (*Table, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("light curve %s: no samples", key)
	}
	if len(bands) != len(values) {
		return nil, fmt.Errorf("light curve %s: %d bands but %d channels", key, len(bands), len(values))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("light curve %s: time %v at sample %d is not after %v", key, times[i], i, times[i-1])
		}
	}
	t := &Table{
		Key:      key,
		Times:    times,
		Bands:    append([]string(nil), bands...),
		Periodic: periodic,
		channels: make(map[string][]float64, len(bands)),
	}
	for i, b := range bands {
		if len(values[i]) != len(times) {
			return nil, fmt.Errorf("light curve %s: band %s has %d samples, want %d", key, b, len(values[i]), len(times))
		}
		if _, dup := t.channels[b]; dup {
			return nil, fmt.Errorf("light curve %s: duplicate band %s", key, b)
		}
		t.channels[b] = values[i]
	}
	return t, nil
}

func (t *Table) First() float64 { return t.Times[0] }
func (t *Table) Last() float64  { return t.Times[len(t.Times)-1] }
func (t *Table) Span() float64  { return t.Last() - t.First() }

// NaturalPeriod is the period implied by an evenly sampled single cycle:
// the last time plus one sample spacing.
func (t *Table) NaturalPeriod() float64 {
	if len(t.Times) < 2 {
		return t.Last()
	}
	return t.Last() + (t.Times[1] - t.Times[0])
}

// Channel returns the samples of one band
func (t *Table) Channel(band string) ([]float64, bool) {
	c, ok := t.channels[band]
	return c, ok
}

// InterpolateAt returns the band's value at time tm. Periodic tables first
// reduce tm modulo their span; outside the sampled range the nearest edge
// sample is returned. Between samples interpolation is linear.
func (t *Table) InterpolateAt(tm float64, band string) (float64, error) {
	vals, ok := t.channels[band]
	if !ok {
		return 0, fmt.Errorf("light curve %s has no band %q", t.Key, band)
	}
	if t.Periodic && t.Span() > 0 {
		tm = t.First() + floorMod(tm-t.First(), t.Span())
	}

	n := len(t.Times)
	if tm <= t.Times[0] {
		return vals[0], nil
	}
	if tm >= t.Times[n-1] {
		return vals[n-1], nil
	}

	hi := sort.SearchFloat64s(t.Times, tm)
	if t.Times[hi] == tm {
		return vals[hi], nil
	}
	lo := hi - 1
	frac := (tm - t.Times[lo]) / (t.Times[hi] - t.Times[lo])
	return vals[lo]*(1-frac) + vals[hi]*frac, nil
}

// OffsetsAt interpolates every band at tm.
func (t *Table) OffsetsAt(tm float64) Offsets {
	out := make(Offsets, len(t.Bands))
	for _, b := range t.Bands {
		v, _ := t.InterpolateAt(tm, b)
		out[b] = v
	}
	return out
}

func floorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// ParseTable reads a whitespace separated light curve: the first column is
// time, every other column is one channel. Lines starting with '#' are
// comments, except for two directives:
//
//	# time u g r i z y   names the columns
//	# periodic           marks the table as periodic
//
// Without a header six channels are named u g r i z y, a single channel is
// named "value", and any other count gets c1..cN.
func ParseTable(key string, r io.Reader) (*Table, error) {
	var (
		header   []string
		periodic bool
		times    []float64
		values   [][]float64
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			fields := strings.Fields(strings.TrimPrefix(text, "#"))
			switch {
			case len(fields) == 1 && strings.EqualFold(fields[0], "periodic"):
				periodic = true
			case len(fields) > 1 && strings.EqualFold(fields[0], "time") && header == nil && times == nil:
				header = fields[1:]
			}
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("light curve %s line %d: want time and at least one channel", key, line)
		}
		if values == nil {
			values = make([][]float64, len(fields)-1)
		}
		if len(fields)-1 != len(values) {
			return nil, fmt.Errorf("light curve %s line %d: %d channels, want %d", key, line, len(fields)-1, len(values))
		}
		tm, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("light curve %s line %d: %w", key, line, err)
		}
		times = append(times, tm)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("light curve %s line %d: %w", key, line, err)
			}
			values[i] = append(values[i], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("light curve %s: %w", key, err)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("light curve %s: %w", key, ErrNoData)
	}

	bands := header
	if bands == nil {
		bands = defaultBandNames(len(values))
	}
	if len(bands) != len(values) {
		return nil, fmt.Errorf("light curve %s: header names %d channels, data has %d", key, len(bands), len(values))
	}
	return NewTable(key, times, bands, values, periodic)
}

func defaultBandNames(n int) []string {
	switch n {
	case len(Bandpasses):
		return append([]string(nil), Bandpasses...)
	case 1:
		return []string{"value"}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = "c" + strconv.Itoa(i+1)
	}
	return names
}
