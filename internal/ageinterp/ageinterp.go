// Package ageinterp implements piecewise-constant and piecewise-linear
// lookup over age-banded scenario parameters (spec.md section 4.2).
package ageinterp

import "sort"

// Band is one age-banded value: the value applies starting at LowerAge
// (in the same age unit the caller passes to At) up to (but not
// including) the next band's LowerAge.
type Band struct {
	LowerAge float64
	Value    float64
}

// Table is an age-ascending, non-empty list of Band looked up in O(log n).
type Table interface {
	// At returns the interpolated value for age a.
	At(a float64) float64
	// Scale multiplies every band value by m and returns a new Table of
	// the same kind.
	Scale(m float64) Table
}

type constantTable struct {
	bands []Band
}

// NewConstant builds a piecewise-constant Table: At(a) returns the value
// of the band containing a, extrapolating the first/last band to +-inf.
// bands must be sorted ascending by LowerAge and non-empty.
func NewConstant(bands []Band) Table {
	return &constantTable{bands: append([]Band(nil), bands...)}
}

func (t *constantTable) At(a float64) float64 {
	i := bandIndex(t.bands, a)
	return t.bands[i].Value
}

func (t *constantTable) Scale(m float64) Table {
	scaled := make([]Band, len(t.bands))
	for i, b := range t.bands {
		scaled[i] = Band{LowerAge: b.LowerAge, Value: b.Value * m}
	}
	return &constantTable{bands: scaled}
}

type linearTable struct {
	bands []Band
}

// NewLinear builds a piecewise-linear Table: At(a) linearly interpolates
// between band midpoints; the first and last bands extend as constants
// beyond their own midpoint.
func NewLinear(bands []Band) Table {
	return &linearTable{bands: append([]Band(nil), bands...)}
}

func (t *linearTable) At(a float64) float64 {
	bands := t.bands
	if len(bands) == 1 {
		return bands[0].Value
	}
	mids := midpoints(bands)
	if a <= mids[0] {
		return bands[0].Value
	}
	if a >= mids[len(mids)-1] {
		return bands[len(bands)-1].Value
	}
	j := sort.Search(len(mids), func(i int) bool { return mids[i] > a }) - 1
	x0, x1 := mids[j], mids[j+1]
	y0, y1 := bands[j].Value, bands[j+1].Value
	frac := (a - x0) / (x1 - x0)
	return y0 + frac*(y1-y0)
}

func (t *linearTable) Scale(m float64) Table {
	scaled := make([]Band, len(t.bands))
	for i, b := range t.bands {
		scaled[i] = Band{LowerAge: b.LowerAge, Value: b.Value * m}
	}
	return &linearTable{bands: scaled}
}

// midpoints returns the upper-bound midpoint of each band for linear
// interpolation: band i spans [LowerAge_i, LowerAge_{i+1}), with the last
// band treated as having the same width as the second-to-last.
func midpoints(bands []Band) []float64 {
	n := len(bands)
	mids := make([]float64, n)
	for i := 0; i < n; i++ {
		var upper float64
		if i+1 < n {
			upper = bands[i+1].LowerAge
		} else if n >= 2 {
			upper = bands[i].LowerAge + (bands[i].LowerAge - bands[i-1].LowerAge)
		} else {
			upper = bands[i].LowerAge + 1
		}
		mids[i] = (bands[i].LowerAge + upper) / 2
	}
	return mids
}

// bandIndex finds the band whose [LowerAge, nextLowerAge) contains a,
// extrapolating to the first/last band outside the table's range.
func bandIndex(bands []Band, a float64) int {
	i := sort.Search(len(bands), func(i int) bool { return bands[i].LowerAge > a })
	if i == 0 {
		return 0
	}
	return i - 1
}
