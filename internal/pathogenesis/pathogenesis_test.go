package pathogenesis

import (
	"testing"

	"github.com/kentwait/malariasim/internal/rng"
)

func testParams() *Params {
	return &Params{
		Alpha:           1e9,
		Y1:              200,
		Y2:              1e6,
		MuY:             0.01,
		ThresholdSevere: 1e5,
		IndirectMortalityRisk: func(age float64, coinfected bool) float64 {
			return 0
		},
		IndirectDeathDelaySteps: 5,
	}
}

func TestUpdateThresholdStaysPositive(t *testing.T) {
	s := New(1e5)
	p := testParams()
	s.UpdateThreshold(50000, 1, p)
	if s.PyrogenicThreshold() <= 0 {
		t.Errorf("PyrogenicThreshold() = %v, want > 0", s.PyrogenicThreshold())
	}
}

func TestZeroDensityNoEpisode(t *testing.T) {
	s := New(1e5)
	p := testParams()
	r := rng.New(1)
	out := s.Evaluate(0, 0, 1, 20, false, p, r)
	if out.Episode {
		t.Errorf("episode reported at zero density")
	}
}

func TestDueToDieAfterDelay(t *testing.T) {
	s := New(1e5)
	s.doomed = true
	s.deathAtStep = 10
	if s.DueToDie(9) {
		t.Errorf("DueToDie(9) = true before deathAtStep")
	}
	if !s.DueToDie(10) {
		t.Errorf("DueToDie(10) = false at deathAtStep")
	}
}
