package incidence

import (
	"testing"

	"github.com/kentwait/malariasim/internal/rng"
)

func TestZeroEIRGivesZeroInfections(t *testing.T) {
	p := &Params{SInf: 0.05, EStar: 1}
	r := rng.New(1)
	res := NewInfections(0, 1, 0, p, r)
	if res.N != 0 {
		t.Errorf("NewInfections(E=0) = %d, want 0", res.N)
	}
}

func TestNonFiniteEIRPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for non-finite EIR")
		}
	}()
	p := &Params{SInf: 0.05, EStar: 1}
	r := rng.New(1)
	var nan float64
	nan = nan / nan
	NewInfections(nan, 1, 0, p, r)
}

func TestVaccineGenotypeModeDiscardsProbabilistically(t *testing.T) {
	p := &Params{SInf: 0.0, EStar: 1, VaccineGenotypeMode: true}
	r := rng.New(1)
	res := NewInfections(1000, 1, 1.0, p, r) // efficacy 1.0: all discarded
	if res.N != 0 {
		t.Errorf("100%% efficacy vaccine-genotype mode kept %d infections, want 0", res.N)
	}
}

func TestS2Bounds(t *testing.T) {
	p := &Params{SInf: 0.05, EStar: 1}
	if v := S2(0, p); v != 1.0 {
		t.Errorf("S2(0) = %v, want 1.0", v)
	}
}
