// Package pathogenesis implements the pyrogenic threshold ODE and
// clinical-episode/severe/indirect-mortality determination of spec.md
// section 4.5.
package pathogenesis

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/rng"
)

// subSteps is the number of sub-intervals the Y* ODE is integrated over
// per step, for numerical stability (spec.md section 4.5).
const subSteps = 11

// Params are the scenario-level pyrogenic/severity parameters.
type Params struct {
	Alpha float64 // pyrogenic threshold growth coefficient
	Y1    float64
	Y2    float64
	MuY   float64 // pyrogenic threshold decay rate

	ThresholdSevere float64

	// IndirectMortalityRisk returns the per-step probability of a deferred
	// indirect death, adjusted for coinfection and age.
	IndirectMortalityRisk func(ageYears float64, coinfected bool) float64
	IndirectDeathDelaySteps int
}

// Outcome is the result of one step's pathogenesis evaluation.
type Outcome struct {
	Episode  bool
	Severe   bool
	Doomed   bool // indirect mortality triggered this step
}

// State is the per-host mutable pathogenesis state.
type State struct {
	yStar float64

	doomed     bool
	deathAtStep int
}

// New creates pathogenesis state with the given initial pyrogenic
// threshold.
func New(initialYStar float64) *State {
	return &State{yStar: initialYStar}
}

// PyrogenicThreshold returns the current Y*.
func (s *State) PyrogenicThreshold() float64 { return s.yStar }

// Doomed reports whether the host has a pending indirect death.
func (s *State) Doomed() bool { return s.doomed }

// DueToDie reports whether the doomed host's deferred death step has
// arrived.
func (s *State) DueToDie(step int) bool {
	return s.doomed && step >= s.deathAtStep
}

// UpdateThreshold integrates the pyrogenic threshold ODE over one step of
// length stepDays, using subSteps sub-intervals:
//
//	Y* <- Y* + alpha*dt*D / ((Y1+D)(Y2+Y*)) - muY*dt*Y*
//
// where D is held constant at totalDensity across the sub-intervals.
func (s *State) UpdateThreshold(totalDensity float64, stepDays int, p *Params) {
	dt := float64(stepDays) / float64(subSteps)
	y := s.yStar
	for i := 0; i < subSteps; i++ {
		growth := p.Alpha * dt * totalDensity / ((p.Y1 + totalDensity) * (p.Y2 + y))
		decay := p.MuY * dt * y
		y += growth - decay
		if y <= 0 {
			y = 1e-9
		}
	}
	s.yStar = y
}

// Evaluate decides episode/severe/indirect outcomes for this step given
// the step's maximum single-infection density, comorbidity factor,
// host age in years, step index, and whether the host carries another
// concurrent infection (for indirect-mortality risk adjustment).
func (s *State) Evaluate(step int, stepMaxDensity, comorbidityFactor, ageYears float64, coinfected bool, p *Params, r *rng.Stream) Outcome {
	var out Outcome

	pEpisode := 1 - 1/(1+stepMaxDensity/s.yStar)
	if pEpisode < 0 {
		pEpisode = 0
	}
	if r.Bernoulli(pEpisode) {
		out.Episode = true
		if stepMaxDensity > p.ThresholdSevere*comorbidityFactor {
			out.Severe = true
		}
	}

	if !s.doomed && p.IndirectMortalityRisk != nil {
		risk := p.IndirectMortalityRisk(ageYears, coinfected)
		if r.Bernoulli(risk) {
			s.doomed = true
			s.deathAtStep = step + p.IndirectDeathDelaySteps
			out.Doomed = true
		}
	}
	return out
}

// stateSnapshot mirrors State's unexported fields for checkpointing.
type stateSnapshot struct {
	YStar       float64
	Doomed      bool
	DeathAtStep int
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (s *State) MarshalBinary() ([]byte, error) {
	st := stateSnapshot{s.yStar, s.doomed, s.deathAtStep}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "pathogenesis: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (s *State) UnmarshalBinary(data []byte) error {
	var st stateSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "pathogenesis: decode state")
	}
	s.yStar, s.doomed, s.deathAtStep = st.YStar, st.Doomed, st.DeathAtStep
	return nil
}
