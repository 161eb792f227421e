// Package nonvector implements the forced, seasonal entomological
// inoculation rate and its main-phase kappa-feedback rescaling (spec.md
// section 4.8).
package nonvector

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/simerrors"
)

// Model is the non-vector transmission engine.
type Model struct {
	stepsPerYear int
	eip          int // extrinsic incubation period, in steps

	seasonalStepEIR []float64 // length stepsPerYear

	kappa        []float64 // per-step kappa, circular over the run
	initialKappa []float64 // captured equilibrium kappa, length stepsPerYear

	dynamic bool // false during warm-up/forced mode
}

// New folds a daily-resolution EIR array (length daysPerYear, or its
// Fourier reconstruction) into a step-resolution vector by averaging, and
// clamps each value to at least minEIRMult*mean(EIR), per spec.md
// section 4.8.
func New(dailyEIR []float64, daysPerYear, stepLengthDays, eipSteps int, minEIRMult float64) *Model {
	stepsPerYear := daysPerYear / stepLengthDays
	stepEIR := make([]float64, stepsPerYear)
	for s := 0; s < stepsPerYear; s++ {
		var sum float64
		for d := 0; d < stepLengthDays; d++ {
			idx := (s*stepLengthDays + d) % daysPerYear
			sum += dailyEIR[idx]
		}
		stepEIR[s] = sum / float64(stepLengthDays)
	}
	mean := meanOf(stepEIR)
	floor := minEIRMult * mean
	for i, v := range stepEIR {
		if v < floor {
			stepEIR[i] = floor
		}
	}
	return &Model{
		stepsPerYear:    stepsPerYear,
		eip:             eipSteps,
		seasonalStepEIR: stepEIR,
		kappa:           make([]float64, stepsPerYear),
	}
}

func meanOf(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if len(v) == 0 {
		return 0
	}
	return sum / float64(len(v))
}

// EnterMain captures the equilibrium kappa at the end of warm-up and
// switches the model into dynamic (kappa-rescaled) mode.
func (m *Model) EnterMain() error {
	m.initialKappa = append([]float64(nil), m.kappa...)
	for k, v := range m.initialKappa {
		if v < 4*math.SmallestNonzeroFloat64 {
			return simerrors.NewNumeric(
				&kappaError{k})
		}
	}
	m.dynamic = true
	return nil
}

type kappaError struct{ idx int }

func (e *kappaError) Error() string {
	return "nonvector: initialKappa at index below 4*SmallestNonzeroFloat64 at main-phase switchover"
}

// RecordKappa stores the population's contribution to infected mosquitoes
// for step (mod stepsPerYear); this feeds next year's rescaling once in
// dynamic mode.
func (m *Model) RecordKappa(step int, kappa float64) {
	if math.IsNaN(kappa) || math.IsInf(kappa, 0) {
		panic("nonvector: kappa is non-finite")
	}
	m.kappa[((step%m.stepsPerYear)+m.stepsPerYear)%m.stepsPerYear] = kappa
}

// StepEIR returns the EIR for the given absolute step. In forced mode
// (warm-up, or dynamic disabled) it returns the stored seasonal value
// directly. In dynamic mode it rescales the seasonal value by
// kappa[step-EIP]/initialKappa[step-EIP].
func (m *Model) StepEIR(step int) float64 {
	idx := ((step % m.stepsPerYear) + m.stepsPerYear) % m.stepsPerYear
	seasonal := m.seasonalStepEIR[idx]
	if !m.dynamic {
		return seasonal
	}
	lag := ((step - m.eip) % m.stepsPerYear + m.stepsPerYear) % m.stepsPerYear
	init := m.initialKappa[lag]
	cur := m.kappa[lag]
	return seasonal * cur / init
}

// modelState mirrors Model's unexported fields for checkpointing.
type modelState struct {
	StepsPerYear    int
	EIP             int
	SeasonalStepEIR []float64
	Kappa           []float64
	InitialKappa    []float64
	Dynamic         bool
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (m *Model) MarshalBinary() ([]byte, error) {
	st := modelState{m.stepsPerYear, m.eip, m.seasonalStepEIR, m.kappa, m.initialKappa, m.dynamic}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "nonvector: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (m *Model) UnmarshalBinary(data []byte) error {
	var st modelState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "nonvector: decode state")
	}
	m.stepsPerYear, m.eip, m.seasonalStepEIR, m.kappa, m.initialKappa, m.dynamic =
		st.StepsPerYear, st.EIP, st.SeasonalStepEIR, st.Kappa, st.InitialKappa, st.Dynamic
	return nil
}
