package ageinterp

import "testing"

func TestConstantExtrapolates(t *testing.T) {
	tbl := NewConstant([]Band{{0, 1}, {10, 2}, {20, 3}})
	cases := map[float64]float64{-5: 1, 0: 1, 5: 1, 10: 2, 15: 2, 20: 3, 100: 3}
	for age, want := range cases {
		if got := tbl.At(age); got != want {
			t.Errorf("At(%v) = %v, want %v", age, got, want)
		}
	}
}

func TestLinearInterpolatesBetweenMidpoints(t *testing.T) {
	tbl := NewLinear([]Band{{0, 0}, {10, 10}})
	// band midpoints are 5 and 15; halfway between them is age 10.
	if got := tbl.At(10); got != 5 {
		t.Errorf("At(10) = %v, want 5", got)
	}
}

func TestScaleMultipliesValues(t *testing.T) {
	tbl := NewConstant([]Band{{0, 2}, {10, 4}})
	scaled := tbl.Scale(2)
	if got := scaled.At(0); got != 4 {
		t.Errorf("scaled At(0) = %v, want 4", got)
	}
	if got := tbl.At(0); got != 2 {
		t.Errorf("original table mutated: At(0) = %v, want 2", got)
	}
}
