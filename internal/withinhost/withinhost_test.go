package withinhost

import (
	"testing"

	"github.com/kentwait/malariasim/internal/infection"
	"github.com/kentwait/malariasim/internal/rng"
)

func testParams() *Params {
	return &Params{
		Infection: &infection.Params{
			DurationMeanLog:         5.13,
			DurationSDLog:           0.80,
			Sigma0:                  0.1,
			SigmaT:                  0.001,
			MeanInflation:           1.0,
			SigmaInflation:          0.1,
			MaxAmplification:        10,
			ExtinctionLevel:         10,
			SubPatentLimit:          10,
			GlobalDensityMultiplier: 1,
			ARCoeffMeanByDay:        func(day int) [3]float64 { return [3]float64{0.2, 0.1, 0.05} },
			ARCoeffVarByDay:         func(day int) [3]float64 { return [3]float64{0.01, 0.01, 0.01} },
			SubPatentAlpha:          [3]float64{2, 2, 2},
			SubPatentMu:             [3]float64{0.3, 0.3, 0.3},
		},
		SImm:                     0.2,
		HStar:                    10,
		Gamma:                    2,
		DetectionLimit:           10,
		InfectiousnessSaturation: func(m float64) float64 { return m / (m + 1) },
	}
}

func TestAddInfectionRespectsCap(t *testing.T) {
	w := New()
	p := testParams()
	r := rng.New(1)
	for i := 0; i < MaxInfections; i++ {
		if !w.AddInfection(0, 0, p, r) {
			t.Fatalf("AddInfection refused before cap reached, at i=%d", i)
		}
	}
	if w.AddInfection(0, 0, p, r) {
		t.Errorf("AddInfection succeeded past cap of %d", MaxInfections)
	}
	if w.NumInfections() != MaxInfections {
		t.Errorf("NumInfections() = %d, want %d", w.NumInfections(), MaxInfections)
	}
}

func TestSusceptibilityAtZeroInoculations(t *testing.T) {
	w := New()
	p := testParams()
	if got := w.Susceptibility(p); got != 1.0 {
		t.Errorf("Susceptibility() with h=0 = %v, want 1.0", got)
	}
}

func TestPatentThreshold(t *testing.T) {
	w := New()
	p := testParams()
	if w.Patent(p) {
		t.Errorf("empty within-host state reported patent")
	}
}
