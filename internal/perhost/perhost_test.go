package perhost

import "testing"

func TestITNWeibullDecayAtLambdaYears(t *testing.T) {
	// ITN deployed at step 100, 100% coverage, Weibull(lambda=3, k=1.8),
	// per spec.md section 8 scenario 4.
	sp := &Species{BaseAvailability: 1, PBiting: 0.5, PResting: 0.9, HeteroMultiplier: 1, AgeFactor: 1}
	sp.AddEffect(&Effect{
		ComponentID: 1, DeploymentStep: 100, Kind: DecayWeibull,
		Initial: 1.0, Lambda: 3, K: 1.8, Target: "biting",
	})

	at100 := sp.Compose(100)
	wantInitial := 0.5 * (1 - 1.0*1.0) // decay(0) = exp(-(0)^1.8) = 1
	if diff := at100.PBiting - wantInitial; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("pBiting_eff at deployment = %v, want %v", at100.PBiting, wantInitial)
	}

	atDecay := sp.Compose(100 + int(3*365))
	// decay(lambda*365) = exp(-1) ~ 0.3679, so residual initial reduction
	// should be ~ 1/e of its value at deployment.
	reductionAt100 := 0.5 - at100.PBiting
	reductionAtDecay := 0.5 - atDecay.PBiting
	ratio := reductionAtDecay / reductionAt100
	if ratio < 0.35 || ratio > 0.40 {
		t.Errorf("residual reduction ratio at lambda years = %v, want ~1/e (~0.368)", ratio)
	}
}

func TestComposeStaysWithinBounds(t *testing.T) {
	sp := &Species{BaseAvailability: 2, PBiting: 0.9, PResting: 0.9, HeteroMultiplier: 1, AgeFactor: 1}
	sp.AddEffect(&Effect{ComponentID: 1, DeploymentStep: 0, Kind: DecayExponential, Initial: 2, Rate: 0.01, Target: "biting"})
	c := sp.Compose(0)
	if c.PBiting < 0 || c.PBiting > 1 {
		t.Errorf("PBiting out of bounds: %v", c.PBiting)
	}
	if c.Availability < 0 {
		t.Errorf("Availability negative: %v", c.Availability)
	}
}

func TestAddEffectReplacesSameComponent(t *testing.T) {
	sp := &Species{BaseAvailability: 1, PBiting: 1, PResting: 1, HeteroMultiplier: 1, AgeFactor: 1}
	sp.AddEffect(&Effect{ComponentID: 1, DeploymentStep: 0, Initial: 0.5, Target: "biting"})
	sp.AddEffect(&Effect{ComponentID: 1, DeploymentStep: 10, Initial: 0.9, Target: "biting"})
	if len(sp.Effects) != 1 {
		t.Fatalf("redeployment should replace, got %d effects", len(sp.Effects))
	}
	if sp.Effects[0].DeploymentStep != 10 {
		t.Errorf("expected the later deployment to win")
	}
}
