package infection

import (
	"testing"

	"github.com/kentwait/malariasim/internal/rng"
)

func testParams() *Params {
	return &Params{
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
		ARCoeffMeanByDay: func(day int) [3]float64 {
			return [3]float64{0.2, 0.1, 0.05}
		},
		ARCoeffVarByDay: func(day int) [3]float64 {
			return [3]float64{0.01, 0.01, 0.01}
		},
		SubPatentAlpha: [3]float64{2, 2, 2},
		SubPatentMu:    [3]float64{0.3, 0.3, 0.3},
	}
}

func TestNewSeedsLagFromSubPatent(t *testing.T) {
	p := testParams()
	r := rng.New(1)
	inf := New(0, 3, p, r)
	if inf.GenotypeID() != 3 {
		t.Errorf("GenotypeID() = %d, want 3", inf.GenotypeID())
	}
	if inf.Extinct() {
		t.Errorf("new infection reported extinct")
	}
}

func TestUpdateExtinguishesAfterDuration(t *testing.T) {
	p := testParams()
	r := rng.New(2)
	inf := New(0, 1, p, r)
	inf.duration = 2
	inf.Update(0, 1.0, p, r)
	d := inf.Update(5, 1.0, p, r) // dayDelta beyond duration
	if !inf.Extinct() || d != 0 {
		t.Errorf("expected extinction after duration elapsed, density=%v extinct=%v", d, inf.Extinct())
	}
}

func TestUpdateZeroSurvivalExtinguishes(t *testing.T) {
	p := testParams()
	r := rng.New(3)
	inf := New(0, 1, p, r)
	inf.Update(1, 0, p, r)
	if !inf.Extinct() {
		t.Errorf("zero survival factor should extinguish the infection")
	}
}
