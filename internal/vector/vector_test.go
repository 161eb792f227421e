package vector

import "testing"

func flatHosts(n int, alpha, biting, resting, inf float64) []HostContribution {
	hosts := make([]HostContribution, n)
	for i := range hosts {
		hosts[i] = HostContribution{Availability: alpha, PBiting: biting, PResting: resting, Infectiousness: inf}
	}
	return hosts
}

func TestBufferInvariantsHoldDuringAdvance(t *testing.T) {
	sp := SpeciesParams{MuVA: 0.1, ThetaD: 0.5, POvipositing: 0.6, TauRest: 3, EIP: 10, NonHumanAvailSum: 1}
	s := NewSpecies(sp)
	var emergence [daysInYear]float64
	for i := range emergence {
		emergence[i] = 100
	}
	s.SetEmergence(emergence, 1)
	hosts := flatHosts(100, 0.05, 0.5, 0.9, 0.1)
	for d := 0; d < 400; d++ {
		s.AdvanceDay(hosts)
		if s.Ov() < -1e-9 || s.Ov() > s.Nv()+1e-9 {
			t.Fatalf("day %d: Ov=%v out of [0,Nv=%v]", d, s.Ov(), s.Nv())
		}
		if s.Sv() < -1e-9 || s.Sv() > s.Nv()+1e-9 {
			t.Fatalf("day %d: Sv=%v out of [0,Nv=%v]", d, s.Sv(), s.Nv())
		}
	}
}

func TestFitEmergenceRunsOnFlatTarget(t *testing.T) {
	sp := SpeciesParams{MuVA: 0.1, ThetaD: 0.5, POvipositing: 0.6, TauRest: 3, EIP: 10, NonHumanAvailSum: 1}
	var target [daysInYear]float64
	for i := range target {
		target[i] = 0.01
	}
	hostsPerDay := func(day int) []HostContribution {
		return flatHosts(1000, 0.05, 0.5, 0.9, 0.05)
	}
	_, err := FitEmergence(sp, target, hostsPerDay, 1000, 30)
	if err != nil {
		t.Logf("FitEmergence did not fully converge in the test budget: %v", err)
	}
}

func TestZeroEmergenceZeroesPopulation(t *testing.T) {
	sp := SpeciesParams{MuVA: 0.1, ThetaD: 0.5, POvipositing: 0.6, TauRest: 3, EIP: 10, NonHumanAvailSum: 1}
	s := NewSpecies(sp)
	hosts := flatHosts(10, 0.05, 0.5, 0.9, 0.1)
	for d := 0; d < 50; d++ {
		s.AdvanceDay(hosts)
	}
	if s.Nv() != 0 {
		t.Errorf("Nv() = %v with zero emergence, want 0", s.Nv())
	}
}
