// Package human aggregates the per-host engines (within-host infection
// dynamics, pathogenesis, per-host transmission state) for one individual
// and defines the fixed per-step update order of spec.md section 4.10.
package human

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/pathogenesis"
	"github.com/kentwait/malariasim/internal/perhost"
	"github.com/kentwait/malariasim/internal/rng"
	"github.com/kentwait/malariasim/internal/withinhost"
	"github.com/segmentio/ksuid"
)

// DeathReason classifies why a human died this step.
type DeathReason int

const (
	DeathNone DeathReason = iota
	DeathMaxAge
	DeathAllCauseMortality
	DeathIndirect
)

// Human is one individual: identity, age, within-host state, pathogenesis
// state, per-host transmission state, and bookkeeping for the intervention
// manager and survey layer.
type Human struct {
	id   ksuid.KSUID
	hid  int // stable small integer id for logging/survey stratification

	birthStep int
	comorbidityFactor float64

	withinHost   *withinhost.WithinHost
	pathogenesis *pathogenesis.State
	transmission *perhost.State

	// lastDeployment tracks, per component id, the last step a
	// continuous or timed deployment touched this human, so the
	// intervention manager can tell a continuous deployment it has
	// already fired for this individual.
	lastDeployment map[int]int

	doomedDeathReason DeathReason
	dead              bool
	deathReason       DeathReason

	mostRecentMaxDensity float64

	// pevEffect/bsvEffect/tbvEffect/caseManagementEffect are human-level
	// decaying intervention effects, reusing perhost.Effect's decay math
	// (Effect.Value depends only on DeploymentStep/Kind/numeric params,
	// not on mosquito-specific state, so the same struct serves both
	// per-species and per-human decaying effects).
	pevEffect             *perhost.Effect
	bsvEffect             *perhost.Effect
	tbvEffect             *perhost.Effect
	caseManagementEffect  *perhost.Effect

	hadBout      bool
	hadInfection bool
}

// New creates a Human born at birthStep.
func New(hid, birthStep int, comorbidityFactor float64, w *withinhost.WithinHost, path *pathogenesis.State, trans *perhost.State) *Human {
	return &Human{
		id:                ksuid.New(),
		hid:               hid,
		birthStep:         birthStep,
		comorbidityFactor: comorbidityFactor,
		withinHost:        w,
		pathogenesis:      path,
		transmission:      trans,
		lastDeployment:    make(map[int]int),
	}
}

// ID returns the human's stable sortable identifier.
func (h *Human) ID() ksuid.KSUID { return h.id }

// HID returns the human's stable small-integer id.
func (h *Human) HID() int { return h.hid }

// BirthStep returns the step the human was born.
func (h *Human) BirthStep() int { return h.birthStep }

// AgeSteps returns the human's age in steps at the given absolute step.
func (h *Human) AgeSteps(step int) int { return step - h.birthStep }

// WithinHost exposes the human's within-host state.
func (h *Human) WithinHost() *withinhost.WithinHost { return h.withinHost }

// Pathogenesis exposes the human's pathogenesis state.
func (h *Human) Pathogenesis() *pathogenesis.State { return h.pathogenesis }

// Transmission exposes the human's per-host transmission state.
func (h *Human) Transmission() *perhost.State { return h.transmission }

// Dead reports whether the human has died.
func (h *Human) Dead() bool { return h.dead }

// Death returns why the human died, or DeathNone if alive.
func (h *Human) Death() DeathReason { return h.deathReason }

// LastDeploymentStep returns the last step component id cid touched this
// human, and whether it has ever done so.
func (h *Human) LastDeploymentStep(cid int) (int, bool) {
	s, ok := h.lastDeployment[cid]
	return s, ok
}

// RecordDeployment marks component id cid as having touched this human at
// step s.
func (h *Human) RecordDeployment(cid, s int) {
	h.lastDeployment[cid] = s
}

// MarkDead records the human's death for the given reason.
func (h *Human) MarkDead(reason DeathReason) {
	h.dead = true
	h.deathReason = reason
}

// MostRecentMaxDensity returns the most recent step's maximum
// single-infection density.
func (h *Human) MostRecentMaxDensity() float64 { return h.mostRecentMaxDensity }

// SetPEVEffect installs (or replaces) the pre-erythrocytic vaccine's
// decaying effect.
func (h *Human) SetPEVEffect(e *perhost.Effect) { h.pevEffect = e }

// SetBSVEffect installs (or replaces) the blood-stage vaccine's decaying
// effect.
func (h *Human) SetBSVEffect(e *perhost.Effect) { h.bsvEffect = e }

// SetTBVEffect installs (or replaces) the transmission-blocking vaccine's
// decaying effect.
func (h *Human) SetTBVEffect(e *perhost.Effect) { h.tbvEffect = e }

// SetCaseManagementEffect installs (or replaces) the case-management
// drug-survival effect.
func (h *Human) SetCaseManagementEffect(e *perhost.Effect) { h.caseManagementEffect = e }

// PEVEfficacy returns the pre-erythrocytic vaccine's current blocking
// probability at step (the fraction of new inoculations it prevents), or
// 0 if no PEV is active.
func (h *Human) PEVEfficacy(step int) float64 {
	if h.pevEffect == nil {
		return 0
	}
	return 1 - h.pevEffect.Value(step)
}

// BSVSurvival returns the blood-stage vaccine's current parasite survival
// multiplier at step (1 = no effect, 0 = fully blocked).
func (h *Human) BSVSurvival(step int) float64 {
	if h.bsvEffect == nil {
		return 1
	}
	return h.bsvEffect.Value(step)
}

// TBVEfficacy returns the transmission-blocking vaccine's current
// blocking probability at step, or 0 if no TBV is active. No code in this
// module applies it to ProbTransmissionToMosquito.
func (h *Human) TBVEfficacy(step int) float64 {
	if h.tbvEffect == nil {
		return 0
	}
	return 1 - h.tbvEffect.Value(step)
}

// CaseManagementSurvival returns the drug-treatment survival multiplier
// at step (1 = no treatment effect).
func (h *Human) CaseManagementSurvival(step int) float64 {
	if h.caseManagementEffect == nil {
		return 1
	}
	return h.caseManagementEffect.Value(step)
}

// HadBout reports whether this human has ever had a clinical episode.
func (h *Human) HadBout() bool { return h.hadBout }

// RecordBout marks that this human has had a clinical episode, for
// RemoveOnFirstBout intervention removal rules.
func (h *Human) RecordBout() { h.hadBout = true }

// HadInfection reports whether this human has ever acquired an infection.
func (h *Human) HadInfection() bool { return h.hadInfection }

// RecordInfectionEvent marks that this human has acquired an infection,
// for RemoveOnFirstInfection intervention removal rules.
func (h *Human) RecordInfectionEvent() { h.hadInfection = true }

// humanState mirrors Human's unexported fields for checkpointing. The
// engine substructures are plain pointer fields here too: each one
// (WithinHost, Pathogenesis, Transmission) implements BinaryMarshaler
// itself, so gob encodes/decodes them (and, transitively, their own
// nested Infections/Effects) automatically when this struct is encoded.
type humanState struct {
	ID                ksuid.KSUID
	HID               int
	BirthStep         int
	ComorbidityFactor float64
	WithinHost        *withinhost.WithinHost
	Pathogenesis      *pathogenesis.State
	Transmission      *perhost.State
	LastDeployment    map[int]int
	Dead              bool
	DeathReason       DeathReason
	MostRecentMaxDensity float64
	PEVEffect         *perhost.Effect
	BSVEffect         *perhost.Effect
	TBVEffect         *perhost.Effect
	CaseManagementEffect *perhost.Effect
	HadBout           bool
	HadInfection      bool
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (h *Human) MarshalBinary() ([]byte, error) {
	st := humanState{
		h.id, h.hid, h.birthStep, h.comorbidityFactor,
		h.withinHost, h.pathogenesis, h.transmission,
		h.lastDeployment, h.dead, h.deathReason, h.mostRecentMaxDensity,
		h.pevEffect, h.bsvEffect, h.tbvEffect, h.caseManagementEffect,
		h.hadBout, h.hadInfection,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "human: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (h *Human) UnmarshalBinary(data []byte) error {
	var st humanState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "human: decode state")
	}
	h.id, h.hid, h.birthStep, h.comorbidityFactor = st.ID, st.HID, st.BirthStep, st.ComorbidityFactor
	h.withinHost, h.pathogenesis, h.transmission = st.WithinHost, st.Pathogenesis, st.Transmission
	h.lastDeployment = st.LastDeployment
	h.dead, h.deathReason, h.mostRecentMaxDensity = st.Dead, st.DeathReason, st.MostRecentMaxDensity
	h.pevEffect, h.bsvEffect, h.tbvEffect, h.caseManagementEffect =
		st.PEVEffect, st.BSVEffect, st.TBVEffect, st.CaseManagementEffect
	h.hadBout, h.hadInfection = st.HadBout, st.HadInfection
	return nil
}

// StepUpdate advances this human by one step in the fixed order required
// by spec.md section 4.10: within-host update happens before pathogenesis,
// which happens before reporting; per-host transmission decay composition
// is read on demand by the vector/non-vector engines and needs no
// explicit advance call here since it is purely a function of the active
// Effects and the current step.
//
// Age advance, continuous-intervention dispatch, and infectiousness
// feedback reporting are orchestrated by the caller (internal/simulator),
// which owns the cross-human ordering guarantees of spec.md section 5.
func (h *Human) StepUpdate(
	step, stepLengthDays int,
	bsvEfficacy, drugFactor float64,
	nInoculations int,
	ageYears float64,
	whParams *withinhost.Params,
	pathParams *pathogenesis.Params,
	r *rng.Stream,
) pathogenesis.Outcome {
	h.withinHost.Update(step, stepLengthDays, bsvEfficacy, drugFactor, nInoculations, whParams, r)
	h.mostRecentMaxDensity = h.withinHost.StepMaxDensity()

	h.pathogenesis.UpdateThreshold(h.withinHost.TotalDensity(), stepLengthDays, pathParams)
	coinfected := h.withinHost.NumInfections() > 1
	outcome := h.pathogenesis.Evaluate(step, h.mostRecentMaxDensity, h.comorbidityFactor, ageYears, coinfected, pathParams, r)
	if outcome.Episode {
		h.withinHost.PenalizeForEpisode(whParams)
	}
	return outcome
}
