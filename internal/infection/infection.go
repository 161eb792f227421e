// Package infection implements the empirical per-infection density
// trajectory model of spec.md section 4.3: duration sampling, an
// autoregressive log-density recurrence, an inflation sampler, sub-patent
// seeding, and extinction/clamping.
package infection

import (
	"bytes"
	"encoding/gob"
	"log"
	"math"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/rng"
)

// MaxDens is the density clamp ceiling, spec.md section 4.3.
const MaxDens = 2e6

// Params are the scenario-level parameters of the empirical model.
type Params struct {
	DurationMeanLog float64 // default 5.13
	DurationSDLog   float64 // default 0.80
	Sigma0          float64 // base AR noise sd
	SigmaT          float64 // per-day-age AR noise sd slope
	MeanInflation   float64
	SigmaInflation  float64
	MaxAmplification float64 // per-cycle cap
	ExtinctionLevel  float64
	SubPatentLimit   float64 // upper bound for sub-patent log-density
	GlobalDensityMultiplier float64

	// ARCoeffMeanByDay/ARCoeffVarByDay return the (mean, var) of b1,b2,b3
	// tabulated by day-since-start. Index 0, 1, 2 correspond to b1, b2, b3.
	ARCoeffMeanByDay func(day int) [3]float64
	ARCoeffVarByDay  func(day int) [3]float64

	// SubPatentAlpha/SubPatentMu give the beta-distribution shape for the
	// j-th (0,1,2) sub-patent prepatent sample.
	SubPatentAlpha [3]float64
	SubPatentMu    [3]float64
}

// Infection is one concurrent blood-stage infection within a host.
type Infection struct {
	startStep int
	duration  int
	genotype  int
	extinct   bool

	// lagged log-densities L[0], L[1], L[2], most recent last.
	lag [3]float64

	density float64
}

// New creates an Infection starting at startStep with the given genotype
// id, sampling its lifetime duration and seeding its lagged log-densities
// from three sub-patent samples (spec.md section 4.3).
func New(startStep, genotype int, p *Params, r *rng.Stream) *Infection {
	dur := int(r.LogNormal(p.DurationMeanLog, p.DurationSDLog)) + 1
	inf := &Infection{startStep: startStep, duration: dur, genotype: genotype}
	upperLog := math.Log(p.SubPatentLimit)
	for j := 0; j < 3; j++ {
		inf.lag[j] = sampleSubPatent(p.SubPatentAlpha[j], p.SubPatentMu[j], upperLog, p, r)
	}
	return inf
}

// sampleSubPatent draws a single prepatent log-density: a beta(alpha,
// alpha*(1-mu)/mu) sample shifted by the upper bound, then passed through
// the inflation sampler; retried up to 10 times if the inflated value
// exceeds the upper bound, else clamped (spec.md section 4.3).
func sampleSubPatent(alpha, mu, upperLog float64, p *Params, r *rng.Stream) float64 {
	betaB := alpha * (1 - mu) / mu
	for attempt := 0; attempt < 10; attempt++ {
		x := r.Beta(alpha, betaB)
		y := upperLog + x
		v := inflate(y, p, r)
		if v <= upperLog {
			return v
		}
	}
	return upperLog
}

// inflate applies the inflation sampler: mean_inflation * exp(y + eps),
// eps ~ N(0, sigma_inflation^2), then takes the log again to keep state on
// the log scale (the lag slots store log-density).
func inflate(y float64, p *Params, r *rng.Stream) float64 {
	eps := r.GaussianMeanSD(0, p.SigmaInflation)
	return math.Log(p.MeanInflation) + y + eps
}

// GenotypeID returns the infection's genotype id.
func (inf *Infection) GenotypeID() int { return inf.genotype }

// StartStep returns the step the infection began.
func (inf *Infection) StartStep() int { return inf.startStep }

// Density returns the infection's current density (parasites/uL).
func (inf *Infection) Density() float64 { return inf.density }

// Extinct reports whether the infection has gone extinct.
func (inf *Infection) Extinct() bool { return inf.extinct }

// AgeDays returns the infection's age in days given the current step and
// step length in days.
func (inf *Infection) AgeDays(step, stepLengthDays int) int {
	return (step - inf.startStep) * stepLengthDays
}

// Update advances the infection by one step given the day-since-start,
// a survival factor (drug + vaccine blood-stage killing, in [0,1]), and
// scenario parameters. It returns the new density (0 if the infection
// went extinct this step).
func (inf *Infection) Update(dayDelta int, survivalFactor float64, p *Params, r *rng.Stream) float64 {
	if inf.extinct {
		return 0
	}
	if dayDelta >= inf.duration {
		inf.extinct = true
		inf.density = 0
		return 0
	}

	mean := p.ARCoeffMeanByDay(dayDelta)
	varc := p.ARCoeffVarByDay(dayDelta)
	b1 := r.GaussianMeanSD(mean[0], math.Sqrt(varc[0]))
	b2 := r.GaussianMeanSD(mean[1], math.Sqrt(varc[1]))
	b3 := r.GaussianMeanSD(mean[2], math.Sqrt(varc[2]))

	l0, l1, l2 := inf.lag[0], inf.lag[1], inf.lag[2]
	yhat := b1*(l0+l1+l2)/3 + b2*(l2-l0)/2 + b3*(l2+l0-2*l1)/4

	sigma := p.Sigma0 + p.SigmaT*float64(dayDelta)
	yhat += r.GaussianMeanSD(0, sigma)

	// survival factor: drug+vaccine blood-stage killing, applied
	// multiplicatively to density, i.e. additively on the log scale.
	if survivalFactor > 0 {
		yhat += math.Log(survivalFactor)
	} else {
		inf.extinct = true
		inf.density = 0
		return 0
	}

	// cap amplification per cycle, retrying the noise draw up to 10 times.
	maxLog := l2 + math.Log(p.MaxAmplification)
	if p.MaxAmplification > 0 && yhat > maxLog {
		capped := false
		for attempt := 0; attempt < 10; attempt++ {
			noise := r.GaussianMeanSD(0, sigma)
			candidate := b1*(l0+l1+l2)/3 + b2*(l2-l0)/2 + b3*(l2+l0-2*l1)/4 + noise
			if survivalFactor > 0 {
				candidate += math.Log(survivalFactor)
			}
			if candidate <= maxLog {
				yhat = candidate
				capped = true
				break
			}
		}
		if !capped {
			yhat = maxLog
		}
	}

	logDensity := inflate(yhat, p, r)
	density := math.Exp(logDensity)

	if density > MaxDens {
		log.Printf("infection: density %.3g exceeds maxDens, clamping", density)
		density = MaxDens
	}

	inf.lag[0], inf.lag[1], inf.lag[2] = l1, l2, math.Log(math.Max(density, 1e-300))

	if density*p.GlobalDensityMultiplier < p.ExtinctionLevel {
		inf.extinct = true
		inf.density = 0
		return 0
	}
	inf.density = density
	return density
}

// infectionState mirrors Infection's unexported fields for checkpointing.
type infectionState struct {
	StartStep int
	Duration  int
	Genotype  int
	Extinct   bool
	Lag       [3]float64
	Density   float64
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (inf *Infection) MarshalBinary() ([]byte, error) {
	st := infectionState{inf.startStep, inf.duration, inf.genotype, inf.extinct, inf.lag, inf.density}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "infection: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (inf *Infection) UnmarshalBinary(data []byte) error {
	var st infectionState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "infection: decode state")
	}
	inf.startStep, inf.duration, inf.genotype, inf.extinct, inf.lag, inf.density =
		st.StartStep, st.Duration, st.Genotype, st.Extinct, st.Lag, st.Density
	return nil
}
