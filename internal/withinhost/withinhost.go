// Package withinhost implements the per-host aggregation of concurrent
// Infections (spec.md section 4.4): immune accumulators, detection, and
// density bookkeeping.
package withinhost

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/infection"
	"github.com/kentwait/malariasim/internal/rng"
)

// MaxInfections is the bounded multiset cap from spec.md section 3.
const MaxInfections = 21

// Params are the scenario-level immunity parameters.
type Params struct {
	Infection *infection.Params

	ImmuneDecayEnabled bool
	Lambda             float64 // immune decay rate
	ClinicalEpisodeYDeduction float64

	SImm  float64 // asymptotic pre-erythrocytic immunity floor
	HStar float64 // scale parameter
	Gamma float64 // shape parameter

	DetectionLimit float64

	// InfectiousnessSaturation maps the mean of the four most recent
	// per-step densities to a [0,1] probability of transmission to a
	// mosquito, via a logistic saturation curve.
	InfectiousnessSaturation func(meanDensity float64) float64
}

// WithinHost is the set of concurrent Infections for one human plus its
// scalar immune accumulators.
type WithinHost struct {
	infections []*infection.Infection

	y            float64 // cumulative effective exposure
	h            float64 // cumulative inoculation count
	totalDensity float64
	stepMaxDensity float64

	recentDensities []float64 // ring of the 4 most recent step totals
}

// New creates an empty WithinHost.
func New() *WithinHost {
	return &WithinHost{recentDensities: make([]float64, 0, 4)}
}

// NumInfections returns the current number of concurrent infections.
func (w *WithinHost) NumInfections() int { return len(w.infections) }

// TotalDensity returns sum of infection densities, per the invariant in
// spec.md section 3.
func (w *WithinHost) TotalDensity() float64 { return w.totalDensity }

// StepMaxDensity returns the maximum single-infection density this step.
func (w *WithinHost) StepMaxDensity() float64 { return w.stepMaxDensity }

// CumulativeExposure returns Y.
func (w *WithinHost) CumulativeExposure() float64 { return w.y }

// CumulativeInoculations returns h.
func (w *WithinHost) CumulativeInoculations() float64 { return w.h }

// AddInfection pushes a new Infection with the given genotype id at
// currentStep, provided the cap of MaxInfections has not been reached.
// Returns false if the host already carries the maximum number of
// concurrent infections.
func (w *WithinHost) AddInfection(currentStep, genotype int, p *Params, r *rng.Stream) bool {
	if len(w.infections) >= MaxInfections {
		return false
	}
	w.infections = append(w.infections, infection.New(currentStep, genotype, p.Infection, r))
	return true
}

// Update advances every infection by one step, removes extinct ones,
// recomputes total/step-max density, and accumulates h and Y, per
// spec.md section 4.4. stepLengthDays is the scenario step length in
// days; bsvEfficacy/drugFactor multiply into the per-infection survival
// factor; nInoculations is the number of new infections created this
// step (added by the caller via AddInfection before calling Update).
func (w *WithinHost) Update(step, stepLengthDays int, bsvEfficacy, drugFactor float64, nInoculations int, p *Params, r *rng.Stream) {
	survival := bsvEfficacy * drugFactor

	live := w.infections[:0]
	var total, maxD float64
	for _, inf := range w.infections {
		dayDelta := inf.AgeDays(step, stepLengthDays)
		d := inf.Update(dayDelta, survival, p.Infection, r)
		if inf.Extinct() {
			continue
		}
		live = append(live, inf)
		total += d
		if d > maxD {
			maxD = d
		}
	}
	w.infections = live
	w.totalDensity = total
	w.stepMaxDensity = maxD

	if len(w.recentDensities) == 4 {
		copy(w.recentDensities, w.recentDensities[1:])
		w.recentDensities[3] = total
	} else {
		w.recentDensities = append(w.recentDensities, total)
	}

	w.h += float64(nInoculations)
	w.y += float64(stepLengthDays) * total

	if p.ImmuneDecayEnabled {
		decay := math.Exp(-p.Lambda * float64(stepLengthDays))
		w.h *= decay
		w.y *= decay
	}
}

// PenalizeForEpisode applies the additive Y deduction for a clinical
// episode (spec.md section 4.4, immune decay paragraph).
func (w *WithinHost) PenalizeForEpisode(p *Params) {
	w.y -= p.ClinicalEpisodeYDeduction
	if w.y < 0 {
		w.y = 0
	}
}

// Susceptibility returns the pre-erythrocytic immunity factor
// S_imm + (1-S_imm)/(1+(h/h*)^gamma).
func (w *WithinHost) Susceptibility(p *Params) float64 {
	if p.HStar <= 0 {
		return 1
	}
	ratio := w.h / p.HStar
	return p.SImm + (1-p.SImm)/(1+math.Pow(ratio, p.Gamma))
}

// ProbTransmissionToMosquito returns the infectiousness of this host
// aggregated from the 4 most recent per-step densities via a logistic
// saturation (spec.md section 4.4).
func (w *WithinHost) ProbTransmissionToMosquito(p *Params) float64 {
	if len(w.recentDensities) == 0 {
		return 0
	}
	var sum float64
	for _, d := range w.recentDensities {
		sum += d
	}
	mean := sum / float64(len(w.recentDensities))
	return p.InfectiousnessSaturation(mean)
}

// Patent reports whether the host is currently patent, i.e.
// TotalDensity() > the configured detection limit.
func (w *WithinHost) Patent(p *Params) bool {
	return w.totalDensity > p.DetectionLimit
}

// Clear removes every current infection, for the mass drug administration
// (MDA) intervention component's full-clearance effect.
func (w *WithinHost) Clear() {
	w.infections = nil
	w.totalDensity = 0
	w.stepMaxDensity = 0
}

// withinHostState mirrors WithinHost's unexported fields for checkpointing.
type withinHostState struct {
	Infections      []*infection.Infection
	Y               float64
	H               float64
	TotalDensity    float64
	StepMaxDensity  float64
	RecentDensities []float64
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (w *WithinHost) MarshalBinary() ([]byte, error) {
	st := withinHostState{w.infections, w.y, w.h, w.totalDensity, w.stepMaxDensity, w.recentDensities}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "withinhost: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (w *WithinHost) UnmarshalBinary(data []byte) error {
	var st withinHostState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "withinhost: decode state")
	}
	w.infections, w.y, w.h, w.totalDensity, w.stepMaxDensity, w.recentDensities =
		st.Infections, st.Y, st.H, st.TotalDensity, st.StepMaxDensity, st.RecentDensities
	return nil
}
