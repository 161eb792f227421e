package nonvector

import "testing"

func TestFoldsDailyIntoStepResolution(t *testing.T) {
	daily := make([]float64, 365)
	for i := range daily {
		daily[i] = 1.0
	}
	m := New(daily, 365, 5, 10, 0.01)
	if got := m.StepEIR(0); got != 1.0 {
		t.Errorf("StepEIR(0) = %v, want 1.0 for flat input", got)
	}
}

func TestZeroForcedEIRStaysZeroAllYear(t *testing.T) {
	// spec.md section 8 scenario 1: zero EIR, one year.
	daily := make([]float64, 365)
	m := New(daily, 365, 1, 10, 0.01)
	for s := 0; s < 365; s++ {
		if got := m.StepEIR(s); got != 0 {
			t.Fatalf("StepEIR(%d) = %v, want 0 for zero forced EIR", s, got)
		}
	}
}

func TestEnterMainFailsOnZeroInitialKappa(t *testing.T) {
	daily := make([]float64, 365)
	for i := range daily {
		daily[i] = 1.0
	}
	m := New(daily, 365, 1, 10, 0.01)
	// kappa never recorded -> all zero -> EnterMain must fail.
	if err := m.EnterMain(); err == nil {
		t.Errorf("EnterMain() succeeded with all-zero kappa, want error")
	}
}

func TestEnterMainSucceedsWithRecordedKappa(t *testing.T) {
	daily := make([]float64, 365)
	for i := range daily {
		daily[i] = 1.0
	}
	m := New(daily, 365, 1, 10, 0.01)
	for s := 0; s < 365; s++ {
		m.RecordKappa(s, 0.1)
	}
	if err := m.EnterMain(); err != nil {
		t.Errorf("EnterMain() = %v, want nil", err)
	}
}
