// Package perhost implements the per-host, per-species availability,
// biting, and resting probability composition with active intervention
// effects (spec.md section 4.6).
package perhost

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/pkg/errors"
)

// DecayKind selects the functional form used to decay an intervention
// effect's contribution over time, per spec.md section 4.6.
type DecayKind int

const (
	// DecayWeibull is used by nets (ITN).
	DecayWeibull DecayKind = iota
	// DecayExponential is used by IRS.
	DecayExponential
	// DecayArbitrary is an arbitrary decay curve given by Effect.Arbitrary.
	// No deployment built by cmd/malariasim uses it (GVI is built with
	// DecayExponential), and such an effect cannot be checkpointed.
	DecayArbitrary
)

// Effect is one active intervention effect contributing a multiplicative
// term to availability (deterrency), pre-prandial survival (biting), or
// post-prandial survival (resting).
type Effect struct {
	ComponentID    int
	DeploymentStep int
	Kind           DecayKind

	// Initial is the effect's value at deployment (e.g. initial
	// deterrency), in [0, 1].
	Initial float64

	// Weibull parameters.
	Lambda float64
	K      float64

	// Exponential parameter: decay rate.
	Rate float64

	// Arbitrary is a user-supplied decay curve, taking steps-since-deploy.
	Arbitrary func(stepsSinceDeploy float64) float64

	// Target selects which composed quantity this effect multiplies into:
	// "availability", "biting", or "resting".
	Target string
}

// Value returns the effect's surviving multiplicative contribution at
// currentStep: 1 - Initial*decay(t), where decay is the configured
// functional form evaluated at t = currentStep - DeploymentStep.
func (e *Effect) Value(currentStep int) float64 {
	t := float64(currentStep - e.DeploymentStep)
	if t < 0 {
		return 1
	}
	var decay float64
	switch e.Kind {
	case DecayWeibull:
		decay = math.Exp(-math.Pow(t/(e.Lambda*365), e.K))
	case DecayExponential:
		decay = math.Exp(-e.Rate * t)
	case DecayArbitrary:
		if e.Arbitrary != nil {
			decay = e.Arbitrary(t)
		} else {
			decay = 1
		}
	}
	v := 1 - e.Initial*decay
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// Species holds the baseline per-species probabilities and the active
// effects for one mosquito species on one host.
type Species struct {
	BaseAvailability float64 // alpha
	PBiting          float64 // P_B
	PResting         float64 // P_C * P_D
	HeteroMultiplier float64 // sampled once at birth
	AgeFactor        float64

	Effects []*Effect
}

// Composed is the effective per-step availability/biting/resting triple
// for one species after composing all active effects, per spec.md
// section 4.6:
//
//	availability_eff = alpha_base * hetero * age_factor * prod(deterrency_k)
//	pBiting_eff      = P_B * prod(preprandial_survival_k)
//	pResting_eff     = P_C*P_D * prod(postprandial_survival_k)
type Composed struct {
	Availability float64
	PBiting      float64
	PResting     float64
}

// Compose evaluates all active effects at currentStep and composes them
// into the effective triple. The invariant from spec.md section 8 holds:
// Availability >= 0; 0 <= PBiting, PResting <= 1.
func (s *Species) Compose(currentStep int) Composed {
	availMult, bitingMult, restingMult := 1.0, 1.0, 1.0
	for _, e := range s.Effects {
		v := e.Value(currentStep)
		switch e.Target {
		case "availability":
			availMult *= v
		case "biting":
			bitingMult *= v
		case "resting":
			restingMult *= v
		}
	}
	avail := s.BaseAvailability * s.HeteroMultiplier * s.AgeFactor * availMult
	if avail < 0 {
		avail = 0
	}
	biting := clamp01(s.PBiting * bitingMult)
	resting := clamp01(s.PResting * restingMult)
	return Composed{Availability: avail, PBiting: biting, PResting: resting}
}

// AddEffect appends a new active intervention effect, replacing any
// existing effect for the same ComponentID (a redeployment supersedes the
// prior effect instead of stacking).
func (s *Species) AddEffect(e *Effect) {
	for i, existing := range s.Effects {
		if existing.ComponentID == e.ComponentID {
			s.Effects[i] = e
			return
		}
	}
	s.Effects = append(s.Effects, e)
}

// RemoveEffect drops the active effect for componentID, if any, for an
// intervention removal rule's Revoke closure.
func (s *Species) RemoveEffect(componentID int) {
	for i, existing := range s.Effects {
		if existing.ComponentID == componentID {
			s.Effects = append(s.Effects[:i], s.Effects[i+1:]...)
			return
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// State is the full per-host transmission record: one Species entry per
// mosquito species, keyed by species index.
type State struct {
	Species []*Species
}

// NewState creates a per-host transmission record for nSpecies mosquito
// species with the given baseline parameters.
func NewState(baseline []Species) *State {
	st := &State{Species: make([]*Species, len(baseline))}
	for i := range baseline {
		sp := baseline[i]
		st.Species[i] = &sp
	}
	return st
}

// Compose returns the effective triple for species index sp at
// currentStep.
func (st *State) Compose(sp, currentStep int) Composed {
	return st.Species[sp].Compose(currentStep)
}

// effectState mirrors Effect's gob-encodable fields for checkpointing.
// Arbitrary is deliberately omitted: a func value cannot be gob-encoded,
// which is why deployments built by this module use DecayExponential
// rather than DecayArbitrary for any effect that must survive a
// checkpoint round-trip.
type effectState struct {
	ComponentID    int
	DeploymentStep int
	Kind           DecayKind
	Initial        float64
	Lambda         float64
	K              float64
	Rate           float64
	Target         string
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing. It
// returns an error if the Effect uses DecayArbitrary, since its Arbitrary
// func field cannot be gob-encoded.
func (e *Effect) MarshalBinary() ([]byte, error) {
	if e.Kind == DecayArbitrary {
		return nil, errors.New("perhost: DecayArbitrary effects cannot be checkpointed")
	}
	st := effectState{e.ComponentID, e.DeploymentStep, e.Kind, e.Initial, e.Lambda, e.K, e.Rate, e.Target}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "perhost: encode effect")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (e *Effect) UnmarshalBinary(data []byte) error {
	var st effectState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "perhost: decode effect")
	}
	e.ComponentID, e.DeploymentStep, e.Kind, e.Initial, e.Lambda, e.K, e.Rate, e.Target =
		st.ComponentID, st.DeploymentStep, st.Kind, st.Initial, st.Lambda, st.K, st.Rate, st.Target
	return nil
}

// speciesHostState mirrors Species's gob-encodable fields for
// checkpointing.
type speciesHostState struct {
	BaseAvailability float64
	PBiting          float64
	PResting         float64
	HeteroMultiplier float64
	AgeFactor        float64
	Effects          []*Effect
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (s *Species) MarshalBinary() ([]byte, error) {
	st := speciesHostState{s.BaseAvailability, s.PBiting, s.PResting, s.HeteroMultiplier, s.AgeFactor, s.Effects}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "perhost: encode species")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (s *Species) UnmarshalBinary(data []byte) error {
	var st speciesHostState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "perhost: decode species")
	}
	s.BaseAvailability, s.PBiting, s.PResting, s.HeteroMultiplier, s.AgeFactor, s.Effects =
		st.BaseAvailability, st.PBiting, st.PResting, st.HeteroMultiplier, st.AgeFactor, st.Effects
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing;
// gob invokes each *Species element's own MarshalBinary automatically.
func (st *State) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st.Species); err != nil {
		return nil, errors.Wrap(err, "perhost: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (st *State) UnmarshalBinary(data []byte) error {
	var species []*Species
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&species); err != nil {
		return errors.Wrap(err, "perhost: decode state")
	}
	st.Species = species
	return nil
}
