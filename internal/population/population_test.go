package population

import (
	"testing"

	"github.com/kentwait/malariasim/internal/human"
	"github.com/kentwait/malariasim/internal/pathogenesis"
	"github.com/kentwait/malariasim/internal/perhost"
	"github.com/kentwait/malariasim/internal/withinhost"
)

func TestSurvivorshipParamsValidateRejectsGrowthRate(t *testing.T) {
	p := &SurvivorshipParams{GrowthRate: 0.01, M1: zero, M2: zero, MaxAgeYears: 90}
	if err := p.Validate(); err == nil {
		t.Errorf("Validate() = nil, want error for nonzero growth rate")
	}
}

func zero(a float64) float64 { return 0 }

func TestInsertKeepsAgeSortedOrder(t *testing.T) {
	pop := New()
	pop.Insert(human.New(1, 50, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil)))
	pop.Insert(human.New(2, 10, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil)))
	pop.Insert(human.New(3, 30, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil)))
	hs := pop.Humans()
	for i := 1; i < len(hs); i++ {
		if hs[i-1].BirthStep() > hs[i].BirthStep() {
			t.Fatalf("population not age-sorted: %v", hs)
		}
	}
}

func TestRemoveDeadKeepsSizeAccounting(t *testing.T) {
	pop := New()
	h1 := human.New(1, 0, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
	h2 := human.New(2, 0, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
	pop.Insert(h1)
	pop.Insert(h2)
	h1.MarkDead(human.DeathMaxAge)
	removed := pop.RemoveDead()
	if len(removed) != 1 || pop.Size() != 1 {
		t.Fatalf("RemoveDead: got %d removed, %d remaining, want 1 and 1", len(removed), pop.Size())
	}
}
