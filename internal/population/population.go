// Package population maintains the age-sorted list of human.Human and the
// demographic target cumulative age-proportion table (spec.md section
// 4.11).
package population

import (
	"bytes"
	"encoding/gob"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/human"
	"github.com/kentwait/malariasim/internal/simerrors"
)

// SurvivorshipParams parameterize S(a) = exp(-rho*a - M1(a) - M2(a)), the
// two-component hazard survivorship curve of spec.md section 4.11.
type SurvivorshipParams struct {
	GrowthRate float64 // rho; must be 0, see Validate.
	M1         func(ageYears float64) float64
	M2         func(ageYears float64) float64
	MaxAgeYears float64
}

// Validate enforces the spec.md section 4.11 restriction that a nonzero
// growth rate is fatal, not silently ignored.
func (p *SurvivorshipParams) Validate() error {
	if p.GrowthRate != 0 {
		return simerrors.NewScenario(growthRateErr{})
	}
	return nil
}

type growthRateErr struct{}

func (growthRateErr) Error() string {
	return "population: growth rate rho != 0 is not supported"
}

// Survivorship returns S(ageYears).
func (p *SurvivorshipParams) Survivorship(ageYears float64) float64 {
	return math.Exp(-p.GrowthRate*ageYears - p.M1(ageYears) - p.M2(ageYears))
}

// CumAgeProp builds the target cumulative age-proportion table
// cumAgeProp[k] = fraction of the population aged >= k steps, sampled at
// nBands evenly spaced ages from 0 to MaxAgeYears.
func CumAgeProp(p *SurvivorshipParams, nBands int) []float64 {
	table := make([]float64, nBands)
	s0 := p.Survivorship(0)
	for k := 0; k < nBands; k++ {
		age := p.MaxAgeYears * float64(k) / float64(nBands)
		if s0 <= 0 {
			table[k] = 0
			continue
		}
		table[k] = p.Survivorship(age) / s0
	}
	return table
}

// Population is the age-sorted list of Human plus the counter that hands
// out new human ids.
type Population struct {
	humans []*human.Human
	nextHID int
}

// New creates an empty Population.
func New() *Population {
	return &Population{}
}

// Size returns the current population size.
func (pop *Population) Size() int { return len(pop.humans) }

// Humans returns the population-traversal order required by spec.md
// section 5 (age-sorted), used by the survey layer's accumulation order.
func (pop *Population) Humans() []*human.Human {
	return pop.humans
}

// Insert adds h to the population, keeping the slice sorted by birth step
// ascending (oldest first), matching spec.md section 3's "age-sorted
// insertion/removal".
func (pop *Population) Insert(h *human.Human) {
	i := sort.Search(len(pop.humans), func(i int) bool {
		return pop.humans[i].BirthStep() > h.BirthStep()
	})
	pop.humans = append(pop.humans, nil)
	copy(pop.humans[i+1:], pop.humans[i:])
	pop.humans[i] = h
}

// NextHID returns a fresh stable small-integer human id and advances the
// counter.
func (pop *Population) NextHID() int {
	id := pop.nextHID
	pop.nextHID++
	return id
}

// RemoveDead removes every human marked dead and returns the removed
// slice (population-traversal order), so the caller can insert one
// replacement birth per removed slot, keeping population size constant
// per spec.md section 4.11.
func (pop *Population) RemoveDead() []*human.Human {
	var removed, alive []*human.Human
	for _, h := range pop.humans {
		if h.Dead() {
			removed = append(removed, h)
		} else {
			alive = append(alive, h)
		}
	}
	pop.humans = alive
	return removed
}

// TargetCountAtLeast returns the target number of individuals aged at
// least k steps out of populationSize, given the cumulative age-proportion
// table indexed by band (spec.md section 4.11: |pop aged >= k| ~=
// cumAgeProp[k] * N, since cumAgeProp[k] is already indexed by
// age-band-since-birth ascending, not by distance from the oldest band).
// maxAgeBand only bounds the clamp.
func TargetCountAtLeast(cumAgeProp []float64, maxAgeBand, k, populationSize int) int {
	idx := k
	if idx < 0 {
		idx = 0
	}
	if idx > maxAgeBand {
		idx = maxAgeBand
	}
	if idx >= len(cumAgeProp) {
		idx = len(cumAgeProp) - 1
	}
	return int(cumAgeProp[idx]*float64(populationSize) + 0.5)
}

// populationSnapshot mirrors Population's unexported fields for
// checkpointing; gob invokes each *human.Human's own MarshalBinary
// automatically when encoding the slice.
type populationSnapshot struct {
	Humans  []*human.Human
	NextHID int
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (pop *Population) MarshalBinary() ([]byte, error) {
	st := populationSnapshot{pop.humans, pop.nextHID}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "population: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (pop *Population) UnmarshalBinary(data []byte) error {
	var st populationSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "population: decode state")
	}
	pop.humans, pop.nextHID = st.Humans, st.NextHID
	return nil
}
