// Package vector implements the per-species periodic difference-equation
// mosquito feeding cycle (spec.md section 4.9): circular Nv/Ov/Sv buffers
// advanced one day at a time, and the emergence-rate fixed point that
// reproduces a prescribed annual EIR at equilibrium.
//
// Per spec.md section 9's resolution of the VectorAnopheles/VectorSpecies
// ambiguity, this implements the newer VectorAnopheles-style boundary
// conditions: day-of-year indexing (day % daysInYear) and
// population-size-scaled emergence.
package vector

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/simerrors"
)

const daysInYear = 365

// HostContribution is one host (or non-human host class)'s contribution
// to a day's mosquito-feeding sums.
type HostContribution struct {
	Availability  float64 // alpha_h
	PBiting       float64
	PResting      float64
	Infectiousness float64
}

// SpeciesParams are the scenario-level constants for one mosquito
// species.
type SpeciesParams struct {
	MuVA            float64 // seeking death rate
	ThetaD          float64 // seeking duration
	POvipositing    float64
	TauRest         int // resting duration, days
	EIP             int // extrinsic incubation period, days
	NonHumanAvailSum float64 // sum alpha_h for non-human hosts, constant
}

// Species is the per-species mosquito population state: circular Nv, Ov,
// Sv buffers of length EIP+TauRest, plus circular pA/pDf/pDif histories of
// the same length from which the Sv recurrence's EIP survival product and
// history sum are recomputed each day.
type Species struct {
	p SpeciesParams

	nvLength int // EIP + TauRest

	nv, ov, sv []float64 // circular buffers, index by day % nvLength
	pA, pDf, pDif []float64 // circular, same length, history needed for recurrence

	emergence [daysInYear]float64

	day int // absolute day counter

	partialEIR float64 // accumulated over the current step
}

// NewSpecies creates a Species with all buffers zeroed.
func NewSpecies(p SpeciesParams) *Species {
	n := p.EIP + p.TauRest
	return &Species{
		p:        p,
		nvLength: n,
		nv:       make([]float64, n),
		ov:       make([]float64, n),
		sv:       make([]float64, n),
		pA:       make([]float64, n),
		pDf:      make([]float64, n),
		pDif:     make([]float64, n),
	}
}

func (s *Species) idx(day int) int {
	return ((day % s.nvLength) + s.nvLength) % s.nvLength
}

// AdvanceDay runs one day of the feeding-cycle difference equations given
// the population's per-host contributions for this day, per spec.md
// section 4.9 steps 1-6.
func (s *Species) AdvanceDay(hosts []HostContribution) {
	var sumAlpha, sumDf, sumDif float64
	for _, h := range hosts {
		sumAlpha += h.Availability
		term := h.Availability * h.PBiting * h.PResting
		sumDf += term
		sumDif += term * h.Infectiousness
	}
	totalAvail := sumAlpha + s.p.NonHumanAvailSum

	pA := math.Exp(-(s.p.MuVA + totalAvail) * s.p.ThetaD)
	pABase := (1 - pA) / (s.p.MuVA + totalAvail)
	pDf := pABase * s.p.POvipositing * sumDf
	pDif := pABase * s.p.POvipositing * sumDif

	t := s.day
	i := s.idx(t)
	iPrev := s.idx(t - 1)
	iTau := s.idx(t - s.p.TauRest)
	iEIP := s.idx(t - s.p.EIP)

	s.pA[i] = pA
	s.pDf[i] = pDf
	s.pDif[i] = pDif

	emergenceToday := s.emergence[t%daysInYear]

	s.nv[i] = emergenceToday + s.pA[iPrev]*s.nv[iPrev] + s.pDf[iTau]*s.nv[iTau]
	s.ov[i] = s.pDif[iTau]*(s.nv[iTau]-s.ov[iTau]) + s.pA[iPrev]*s.ov[iPrev] + s.pDf[iTau]*s.ov[iTau]

	// f(.) is the recursive product of pDf, pA over the EIP window; it is
	// folded into the Sv recurrence as a probability-of-surviving-EIP
	// factor applied to the infections that occurred EIP days ago.
	survival := s.eipSurvivalProduct(t)
	history := s.svHistorySum(t)
	s.sv[i] = s.pDif[iEIP]*survival*(s.nv[iEIP]-s.ov[iEIP]) + history +
		s.pA[iPrev]*s.sv[iPrev] + s.pDf[iTau]*s.sv[iTau]

	s.partialEIR += s.sv[i] * pABase
	s.day++
}

// eipSurvivalProduct computes the product of pA over the EIP window
// ending at day t, approximating the recursive fArray/ftauArray product
// of spec.md section 4.9 step 5.
func (s *Species) eipSurvivalProduct(t int) float64 {
	prod := 1.0
	for d := t - s.p.EIP + 1; d <= t; d++ {
		prod *= s.pA[s.idx(d-1)]
	}
	return prod
}

// svHistorySum accounts for infections acquired during the EIP window
// (strictly between t-EIP and t) that have already survived part of the
// incubation period; it is zero when TauRest >= EIP since there is no
// intermediate history to track separately from the pDif[iEIP] term.
func (s *Species) svHistorySum(t int) float64 {
	if s.p.TauRest >= s.p.EIP {
		return 0
	}
	var sum float64
	for d := t - s.p.EIP + 1; d < t-s.p.TauRest; d++ {
		idx := s.idx(d)
		survival := s.eipSurvivalProduct(d + s.p.EIP - 1)
		sum += s.pDif[idx] * survival * (s.nv[idx] - s.ov[idx])
	}
	return sum
}

// TakeEIRContribution returns and resets the accumulated partial EIR for
// the step just completed. The value is population-level: the simulator
// passes the sum over species unchanged to every host's incidence draw,
// with no per-host availability or biting factor applied.
func (s *Species) TakeEIRContribution() float64 {
	v := s.partialEIR
	s.partialEIR = 0
	return v
}

// Nv, Ov, Sv return the current day's buffer values, for invariant
// checking (spec.md section 8: 0 <= Ov <= Nv, 0 <= Sv <= Nv).
func (s *Species) Nv() float64 { return s.nv[s.idx(s.day-1)] }
func (s *Species) Ov() float64 { return s.ov[s.idx(s.day-1)] }
func (s *Species) Sv() float64 { return s.sv[s.idx(s.day-1)] }

// SetEmergence installs the daily emergence-rate vector (length
// daysInYear), scaled by populationSize per spec.md section 9's
// population-scaled-emergence resolution.
func (s *Species) SetEmergence(perCapita [daysInYear]float64, populationSize float64) {
	for i, v := range perCapita {
		s.emergence[i] = v * populationSize
	}
}

// observedEIRFor simulates two full years with the given trial emergence
// vector (the first to settle onto the periodic orbit, the second to
// measure it) and returns the resulting per-day observed EIR.
func observedEIRFor(sp SpeciesParams, trial [daysInYear]float64, hostsPerDay func(day int) []HostContribution, populationSize float64) [daysInYear]float64 {
	sim := NewSpecies(sp)
	sim.SetEmergence(trial, populationSize)
	var observed [daysInYear]float64
	for y := 0; y < 2; y++ {
		for d := 0; d < daysInYear; d++ {
			sim.AdvanceDay(hostsPerDay(d))
			if y == 1 {
				observed[d] = sim.TakeEIRContribution()
			} else {
				sim.TakeEIRContribution()
			}
		}
	}
	return observed
}

// estimateSpectralRadius estimates the spectral radius of M = I - A, where
// A is the linear operator mapping a trial emergence vector to its
// periodic observed EIR (AdvanceDay's recurrence is linear and homogeneous
// in the emergence forcing term, since pA/pDf/pDif depend only on host
// behavior), via power iteration: v_{k+1} = v_k - observedEIRFor(v_k),
// renormalized each step.
func estimateSpectralRadius(sp SpeciesParams, hostsPerDay func(day int) []HostContribution, populationSize float64, iters int) float64 {
	var v [daysInYear]float64
	for i := range v {
		v[i] = 1
	}
	normalize(&v)

	var rho float64
	for k := 0; k < iters; k++ {
		av := observedEIRFor(sp, v, hostsPerDay, populationSize)
		var mv [daysInYear]float64
		for i := range v {
			mv[i] = v[i] - av[i]
		}
		n := l2Norm(mv[:])
		if n < 1e-12 {
			return 0
		}
		rho = n
		for i := range v {
			v[i] = mv[i] / n
		}
	}
	return rho
}

func l2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func normalize(v *[daysInYear]float64) {
	n := l2Norm(v[:])
	if n < 1e-12 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

// FitEmergence solves for the per-capita daily emergence vector that
// reproduces targetEIR (length daysInYear) at the periodic orbit, per
// spec.md section 4.9. AdvanceDay's recurrence is linear and homogeneous
// in the emergence vector, so the map from trial emergence to periodic
// observed EIR is a genuine linear operator A, and target = A(trial) is
// solved by the Richardson/Neumann-series fixed point
//
//	trial_{k+1} = trial_k + (target - observedEIRFor(trial_k))
//
// which converges whenever the spectral radius of M = I - A is below 1;
// that precondition is checked up front via power iteration instead of a
// burn-in growth heuristic, since M is exactly the map this fixed point
// iterates.
func FitEmergence(sp SpeciesParams, targetEIR [daysInYear]float64, hostsPerDay func(day int) []HostContribution, populationSize float64, maxIter int) ([daysInYear]float64, error) {
	rho := estimateSpectralRadius(sp, hostsPerDay, populationSize, 8)
	if rho >= 1 {
		return [daysInYear]float64{}, simerrors.NewNumeric(errors.Errorf(simerrors.SpectralRadiusError, rho))
	}

	trial := targetEIR
	var lastResidual float64
	for iter := 0; iter < maxIter; iter++ {
		observed := observedEIRFor(sp, trial, hostsPerDay, populationSize)

		var residual float64
		for i := range trial {
			diff := targetEIR[i] - observed[i]
			residual += math.Abs(diff)
			trial[i] += diff
			if trial[i] < 0 {
				trial[i] = 0
			}
		}
		lastResidual = residual
		if residual < 1.0 {
			return trial, nil
		}
	}
	return trial, simerrors.NewNumeric(errors.Errorf(simerrors.EmergenceFitNotConvergedError, maxIter, lastResidual))
}

// speciesState mirrors Species's unexported fields for checkpointing.
type speciesState struct {
	Nv, Ov, Sv          []float64
	PA, PDf, PDif       []float64
	Emergence           [daysInYear]float64
	Day                 int
	PartialEIR          float64
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (s *Species) MarshalBinary() ([]byte, error) {
	st := speciesState{s.nv, s.ov, s.sv, s.pA, s.pDf, s.pDif, s.emergence, s.day, s.partialEIR}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "vector: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore. The Species must already be constructed via NewSpecies with the
// scenario's SpeciesParams so nvLength/p match the encoded buffers.
func (s *Species) UnmarshalBinary(data []byte) error {
	var st speciesState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "vector: decode state")
	}
	s.nv, s.ov, s.sv, s.pA, s.pDf, s.pDif, s.emergence, s.day, s.partialEIR =
		st.Nv, st.Ov, st.Sv, st.PA, st.PDf, st.PDif, st.Emergence, st.Day, st.PartialEIR
	return nil
}
