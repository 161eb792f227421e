package human

import (
	"testing"

	"github.com/kentwait/malariasim/internal/infection"
	"github.com/kentwait/malariasim/internal/pathogenesis"
	"github.com/kentwait/malariasim/internal/perhost"
	"github.com/kentwait/malariasim/internal/rng"
	"github.com/kentwait/malariasim/internal/withinhost"
)

func testWHParams() *withinhost.Params {
	return &withinhost.Params{
		Infection: &infection.Params{
			DurationMeanLog: 5.13, DurationSDLog: 0.80,
			Sigma0: 0.1, SigmaT: 0.001, MeanInflation: 1.0, SigmaInflation: 0.1,
			MaxAmplification: 10, ExtinctionLevel: 10, SubPatentLimit: 10,
			GlobalDensityMultiplier: 1,
			ARCoeffMeanByDay:        func(d int) [3]float64 { return [3]float64{0.2, 0.1, 0.05} },
			ARCoeffVarByDay:         func(d int) [3]float64 { return [3]float64{0.01, 0.01, 0.01} },
			SubPatentAlpha:          [3]float64{2, 2, 2},
			SubPatentMu:             [3]float64{0.3, 0.3, 0.3},
		},
		SImm: 0.2, HStar: 10, Gamma: 2, DetectionLimit: 10,
		InfectiousnessSaturation: func(m float64) float64 { return m / (m + 1) },
	}
}

func testPathParams() *pathogenesis.Params {
	return &pathogenesis.Params{
		Alpha: 1e9, Y1: 200, Y2: 1e6, MuY: 0.01, ThresholdSevere: 1e5,
		IndirectMortalityRisk:   func(age float64, coinfected bool) float64 { return 0 },
		IndirectDeathDelaySteps: 5,
	}
}

func TestNewHumanIsAlive(t *testing.T) {
	h := New(1, 0, 1.0, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
	if h.Dead() {
		t.Errorf("new human reported dead")
	}
	if h.AgeSteps(10) != 10 {
		t.Errorf("AgeSteps(10) = %d, want 10", h.AgeSteps(10))
	}
}

func TestStepUpdateRunsWithoutPanicking(t *testing.T) {
	h := New(1, 0, 1.0, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
	r := rng.New(1)
	wh := testWHParams()
	pp := testPathParams()
	h.WithinHost().AddInfection(0, 0, wh, r)
	_ = h.StepUpdate(1, 1, 1.0, 1.0, 0, 20, wh, pp, r)
}

func TestRecordAndLookupDeployment(t *testing.T) {
	h := New(1, 0, 1.0, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
	if _, ok := h.LastDeploymentStep(5); ok {
		t.Errorf("expected no deployment recorded yet")
	}
	h.RecordDeployment(5, 42)
	step, ok := h.LastDeploymentStep(5)
	if !ok || step != 42 {
		t.Errorf("LastDeploymentStep(5) = (%d, %v), want (42, true)", step, ok)
	}
}
