package intervention

import (
	"testing"

	"github.com/kentwait/malariasim/internal/human"
	"github.com/kentwait/malariasim/internal/pathogenesis"
	"github.com/kentwait/malariasim/internal/perhost"
	"github.com/kentwait/malariasim/internal/withinhost"
)

func newTestHuman(hid int) *human.Human {
	return human.New(hid, 0, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
}

func TestDeploymentsSortedByComponentTypeThenID(t *testing.T) {
	a := &Deployment{ComponentType: ITN, ComponentID: 2, Timing: Timed, FireStep: 0}
	b := &Deployment{ComponentType: ITN, ComponentID: 1, Timing: Timed, FireStep: 0}
	c := &Deployment{ComponentType: CaseManagementChange, ComponentID: 5, Timing: Timed, FireStep: 0}
	m := NewManager([]*Deployment{a, b, c}, nil)
	if m.deployments[0] != c || m.deployments[1] != b || m.deployments[2] != a {
		t.Fatalf("deployments not stably sorted by (type, id)")
	}
}

func TestOrderingIndependentOfInputOrder(t *testing.T) {
	// spec.md section 8 scenario 6: ordering must not depend on input
	// (XML element) order.
	a := &Deployment{ComponentType: ITN, ComponentID: 2, Timing: Timed, FireStep: 0}
	b := &Deployment{ComponentType: ITN, ComponentID: 1, Timing: Timed, FireStep: 0}
	m1 := NewManager([]*Deployment{a, b}, nil)
	m2 := NewManager([]*Deployment{b, a}, nil)
	if m1.deployments[0].ComponentID != m2.deployments[0].ComponentID {
		t.Fatalf("deployment order depends on input order")
	}
}

func TestContinuousDeploymentFiresOnceAtTargetAge(t *testing.T) {
	fired := 0
	d := &Deployment{
		ComponentType: VaccinePEV, ComponentID: 1, Timing: Continuous,
		TargetAgeSteps: 10,
		Apply: func(h *human.Human, step int) { fired++ },
	}
	m := NewManager([]*Deployment{d}, nil)
	h := newTestHuman(1)
	for step := 0; step < 20; step++ {
		m.DispatchContinuous(h, step)
	}
	if fired != 1 {
		t.Errorf("continuous deployment fired %d times, want 1", fired)
	}
}

func TestRemovalRuleRevokesOnFirstBout(t *testing.T) {
	revoked := false
	rule := &RemovalRule{Kind: RemoveOnFirstBout, ComponentID: 1, Revoke: func(h *human.Human) { revoked = true }}
	m := NewManager(nil, []*RemovalRule{rule})
	h := newTestHuman(1)
	m.ApplyRemovalRules(h, 0, 100, true, false, false)
	if !revoked {
		t.Errorf("removal rule did not fire on first bout")
	}
}
