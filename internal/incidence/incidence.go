// Package incidence implements the per-step determination of new
// infections from EIR and host susceptibility (spec.md section 4.7).
package incidence

import (
	"math"

	"github.com/kentwait/malariasim/internal/rng"
)

// Mode selects the variant of the incidence model.
type Mode int

const (
	// ModeDefault uses expectedInfections = S2(E) * susceptibility * E,
	// then a direct Poisson draw.
	ModeDefault Mode = iota
	// ModeNegBinomial draws the expected value from a gamma before the
	// Poisson draw.
	ModeNegBinomial
	// ModeLogNormal draws the expected value from a lognormal before the
	// Poisson draw.
	ModeLogNormal
)

// Params are the scenario-level incidence model parameters.
type Params struct {
	Mode Mode

	SInf   float64 // S2(E) floor
	EStar  float64 // S2(E) scale

	// NegBinomial/LogNormal overdispersion parameters: the drawn expected
	// value has the same mean as the deterministic expectedInfections but
	// variance inflated per these shape parameters.
	NegBinomialShape float64
	LogNormalSD      float64

	// VaccineGenotypeMode: if true, PEV factor is applied per-created
	// infection as a discard probability instead of scaling
	// expectedInfections up front.
	VaccineGenotypeMode bool
}

// S2 returns S_inf + (1 - S_inf) / (1 + E/E*).
func S2(e float64, p *Params) float64 {
	if p.EStar <= 0 {
		return 1
	}
	return p.SInf + (1-p.SInf)/(1+e/p.EStar)
}

// NewInfectionsResult is the outcome of one step's incidence draw.
type NewInfectionsResult struct {
	N int
	// Discarded is the number of created-then-discarded infections when
	// VaccineGenotypeMode is enabled (each created infection is retained
	// with probability 1-pevEfficacy).
	Discarded int
}

// NewInfections draws the number of new infections for a host this step
// given the expected EIR e, the host's susceptibility (from
// internal/withinhost), and the PEV vaccine efficacy in [0,1]. It panics
// if e is non-finite, per spec.md section 4.7.
func NewInfections(e, susceptibility, pevEfficacy float64, p *Params, r *rng.Stream) NewInfectionsResult {
	if math.IsNaN(e) || math.IsInf(e, 0) {
		panic("incidence: EIR is non-finite")
	}
	expected := S2(e, p) * susceptibility * e
	if !p.VaccineGenotypeMode {
		expected *= (1 - pevEfficacy)
	}

	var drawn float64
	switch p.Mode {
	case ModeNegBinomial:
		if p.NegBinomialShape > 0 && expected > 0 {
			drawn = r.Gamma(p.NegBinomialShape, expected/p.NegBinomialShape)
		} else {
			drawn = expected
		}
	case ModeLogNormal:
		if expected > 0 {
			meanLog := math.Log(expected) - 0.5*p.LogNormalSD*p.LogNormalSD
			drawn = r.LogNormal(meanLog, p.LogNormalSD)
		}
	default:
		drawn = expected
	}

	n := r.Poisson(drawn)

	result := NewInfectionsResult{N: n}
	if p.VaccineGenotypeMode {
		kept := 0
		for i := 0; i < n; i++ {
			if !r.Bernoulli(pevEfficacy) {
				kept++
			}
		}
		result.Discarded = n - kept
		result.N = kept
	}
	return result
}
