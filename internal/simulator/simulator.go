// Package simulator drives the phase machine of spec.md section 4.14:
// STARTING -> ONE_LIFE_SPAN -> TRANSMISSION_INIT -> MAIN -> END, calling
// every other component in the fixed per-step order of spec.md section 5.
package simulator

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/checkpoint"
	"github.com/kentwait/malariasim/internal/human"
	"github.com/kentwait/malariasim/internal/incidence"
	"github.com/kentwait/malariasim/internal/intervention"
	"github.com/kentwait/malariasim/internal/nonvector"
	"github.com/kentwait/malariasim/internal/pathogenesis"
	"github.com/kentwait/malariasim/internal/population"
	"github.com/kentwait/malariasim/internal/rng"
	"github.com/kentwait/malariasim/internal/simerrors"
	"github.com/kentwait/malariasim/internal/survey"
	"github.com/kentwait/malariasim/internal/vector"
	"github.com/kentwait/malariasim/internal/withinhost"
)

// Phase names the simulator's current lifecycle stage.
type Phase int

const (
	Starting Phase = iota
	OneLifeSpan
	TransmissionInit
	Main
	End
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "STARTING"
	case OneLifeSpan:
		return "ONE_LIFE_SPAN"
	case TransmissionInit:
		return "TRANSMISSION_INIT"
	case Main:
		return "MAIN"
	case End:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// TransmissionEngine abstracts over the forced (non-vector) and dynamic
// (vector) transmission engines, so the driver's per-step loop does not
// need to know which one the scenario configured.
type TransmissionEngine interface {
	// StepEIR returns the population-level EIR for the given absolute
	// step, for use computing each host's incidence draw.
	StepEIR(step int) float64
	// RecordInfectiousness folds the population's aggregate
	// infectiousness-to-mosquito signal into the engine's feedback state
	// for this step.
	RecordInfectiousness(step int, kappa float64)
	// EnterMain captures warm-up equilibrium state and switches the
	// engine into dynamic feedback mode; called exactly once, at the
	// MAIN phase transition.
	EnterMain() error
	// InitIterate reports whether the transmission model's periodic orbit
	// has settled: it returns 0 once converged, or a nonzero count of
	// additional steps still needed. The driver does not use the count
	// itself: it runs one more step and asks again after every
	// TRANSMISSION_INIT step while the answer is nonzero. stepsSoFar is the
	// number of TRANSMISSION_INIT steps already run, used to cap runaway
	// iteration.
	InitIterate(stepsSoFar int) (int, error)
}

// nonVectorEngine adapts *nonvector.Model to TransmissionEngine.
type nonVectorEngine struct{ m *nonvector.Model }

func (e *nonVectorEngine) StepEIR(step int) float64 { return e.m.StepEIR(step) }
func (e *nonVectorEngine) RecordInfectiousness(step int, kappa float64) {
	e.m.RecordKappa(step, kappa)
}
func (e *nonVectorEngine) EnterMain() error { return e.m.EnterMain() }

// InitIterate always reports "converged" for the forced non-vector model:
// its seasonal forcing has no periodic-orbit settling step of its own
// beyond the population life-span warm-up the driver already runs.
func (e *nonVectorEngine) InitIterate(stepsSoFar int) (int, error) { return 0, nil }

// NewNonVectorEngine wraps m as a TransmissionEngine.
func NewNonVectorEngine(m *nonvector.Model) TransmissionEngine { return &nonVectorEngine{m} }

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (e *nonVectorEngine) MarshalBinary() ([]byte, error) { return e.m.MarshalBinary() }

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (e *nonVectorEngine) UnmarshalBinary(data []byte) error {
	if e.m == nil {
		e.m = &nonvector.Model{}
	}
	return e.m.UnmarshalBinary(data)
}

// vectorEngine adapts a set of *vector.Species plus a host-contribution
// source to TransmissionEngine, advancing every species one day per
// step-day and summing their EIR contributions. hostsForDay is called
// once per species per day, since each species composes a host's
// availability/biting/resting differently.
type vectorEngine struct {
	species        []*vector.Species
	stepLengthDays int
	hostsForDay    func(day, speciesIdx int) []vector.HostContribution
	day            int
	dynamic        bool

	stepsPerYear   int
	yearBuf        []float64
	completedYears [][]float64
}

// NewVectorEngine wraps species as a TransmissionEngine, driven by
// hostsForDay to assemble each day's per-host feeding contributions for
// the given species index.
func NewVectorEngine(species []*vector.Species, stepLengthDays int, hostsForDay func(day, speciesIdx int) []vector.HostContribution) TransmissionEngine {
	stepsPerYear := 365 / stepLengthDays
	return &vectorEngine{
		species:        species,
		stepLengthDays: stepLengthDays,
		hostsForDay:    hostsForDay,
		stepsPerYear:   stepsPerYear,
		yearBuf:        make([]float64, 0, stepsPerYear),
	}
}

func (e *vectorEngine) StepEIR(step int) float64 {
	var total float64
	for d := 0; d < e.stepLengthDays; d++ {
		day := e.day
		for spIdx, sp := range e.species {
			sp.AdvanceDay(e.hostsForDay(day, spIdx))
		}
		e.day++
	}
	for _, sp := range e.species {
		total += sp.TakeEIRContribution()
	}

	e.yearBuf = append(e.yearBuf, total)
	if len(e.yearBuf) >= e.stepsPerYear {
		e.completedYears = append(e.completedYears, e.yearBuf)
		if len(e.completedYears) > 2 {
			e.completedYears = e.completedYears[len(e.completedYears)-2:]
		}
		e.yearBuf = make([]float64, 0, e.stepsPerYear)
	}
	return total
}

func (e *vectorEngine) RecordInfectiousness(step int, kappa float64) {
	// The vector engine reads infectiousness directly from
	// HostContribution.Infectiousness via hostsForDay; no separate
	// feedback channel is needed.
}

func (e *vectorEngine) EnterMain() error {
	e.dynamic = true
	return nil
}

// initIterateTolerance is the fractional year-over-year L1 residual below
// which the periodic orbit is considered settled.
const initIterateTolerance = 0.02

// maxInitIterateYears bounds how many extra years InitIterate will request
// before giving up, guarding against a scenario whose forcing never
// settles.
const maxInitIterateYears = 25

// InitIterate reports whether the vector model's year-over-year EIR cycle
// has settled: it compares the two most recently completed calendar years'
// per-step EIR sequences, and reports convergence once their L1 residual,
// normalized by the latest year's mean EIR, falls below
// initIterateTolerance.
func (e *vectorEngine) InitIterate(stepsSoFar int) (int, error) {
	if len(e.completedYears) < 2 {
		return e.stepsPerYear, nil
	}
	prev, cur := e.completedYears[0], e.completedYears[1]

	var residual, mean float64
	for i := range cur {
		residual += math.Abs(cur[i] - prev[i])
		mean += cur[i]
	}
	mean /= float64(len(cur))
	if mean <= 0 {
		return 0, nil
	}
	if residual/(mean*float64(len(cur))) < initIterateTolerance {
		return 0, nil
	}
	if stepsSoFar/e.stepsPerYear >= maxInitIterateYears {
		return 0, simerrors.NewNumeric(errors.Errorf(
			"vector: transmission init did not settle within %d years (residual=%f)",
			maxInitIterateYears, residual))
	}
	return e.stepsPerYear, nil
}

// vectorEngineState mirrors vectorEngine's gob-encodable fields for
// checkpointing. Each species is encoded as its own opaque
// MarshalBinary payload rather than the *vector.Species value directly,
// since UnmarshalBinary restores into the caller's already-constructed
// Species slice (built with the scenario's SpeciesParams) instead of
// letting gob allocate fresh, parameter-less zero values.
type vectorEngineState struct {
	Species        [][]byte
	Day            int
	Dynamic        bool
	YearBuf        []float64
	CompletedYears [][]float64
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (e *vectorEngine) MarshalBinary() ([]byte, error) {
	st := vectorEngineState{Day: e.day, Dynamic: e.dynamic, YearBuf: e.yearBuf, CompletedYears: e.completedYears}
	for _, sp := range e.species {
		b, err := sp.MarshalBinary()
		if err != nil {
			return nil, err
		}
		st.Species = append(st.Species, b)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "simulator: encode vector engine")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore. e.species must already hold the same number of
// scenario-constructed *vector.Species as when MarshalBinary was called.
func (e *vectorEngine) UnmarshalBinary(data []byte) error {
	var st vectorEngineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "simulator: decode vector engine")
	}
	if len(st.Species) != len(e.species) {
		return errors.Errorf("simulator: checkpoint has %d vector species, engine has %d", len(st.Species), len(e.species))
	}
	for i, b := range st.Species {
		if err := e.species[i].UnmarshalBinary(b); err != nil {
			return err
		}
	}
	e.day, e.dynamic, e.yearBuf, e.completedYears = st.Day, st.Dynamic, st.YearBuf, st.CompletedYears
	return nil
}

// Config bundles the scenario-derived parameters the driver needs once
// assembled by internal/config, independent of TOML structure.
type Config struct {
	StepLengthDays int
	WarmupOverrideSteps int // 0 means "compute from demography/transmission"

	WithinHost   *withinhost.Params
	Pathogenesis *pathogenesis.Params
	Incidence    *incidence.Params

	Survivorship *population.SurvivorshipParams
	MaxAgeSteps  int

	PopulationSize int

	// AgeBandUpperYears are the survey age-band upper bounds (years),
	// ascending, used to stratify recorded measures; a human's age falls
	// into the first band whose upper bound exceeds it, or the last band
	// if it exceeds them all. Empty means all measures accumulate
	// unstratified (band 0).
	AgeBandUpperYears []float64
}

// ageBandIndex returns the index of the age band ageYears falls into,
// given ascending upper bounds: the first band whose upper bound is
// greater than ageYears, or the last band if none is.
func ageBandIndex(ageYears float64, upperBounds []float64) int {
	for i, upper := range upperBounds {
		if ageYears < upper {
			return i
		}
	}
	if len(upperBounds) == 0 {
		return 0
	}
	return len(upperBounds) - 1
}

// Driver owns the full simulation state and advances it one step at a
// time. A MAIN step runs, in this order: checkpoint poll (in Run), survey
// boundary check, intervention dispatch, the transmission engine's step
// EIR (which advances the vector model before any human is updated),
// human updates, recording of the population's infectiousness with the
// engine, death replacement, step increment.
type Driver struct {
	cfg *Config

	rng        *rng.Stream
	pop        *population.Population
	transmission TransmissionEngine
	interventions *intervention.Manager
	monitor    *survey.Monitor
	store      *checkpoint.Store
	scenarioChecksum [32]byte

	phase Phase
	step  int

	warmupSteps int
	transmissionInitSteps int
	surveySteps []int
	nextSurvey  int

	infantBirths int
	infantDeaths int

	// bornFactory creates a new human (replacement birth or warm-up
	// initial cohort member) at the given birth step.
	bornFactory func(birthStep int) *human.Human
}

// New assembles a Driver in the STARTING phase.
func New(cfg *Config, r *rng.Stream, pop *population.Population, engine TransmissionEngine, mgr *intervention.Manager, monitor *survey.Monitor, store *checkpoint.Store, scenarioChecksum [32]byte, bornFactory func(birthStep int) *human.Human) *Driver {
	return &Driver{
		cfg:              cfg,
		rng:              r,
		pop:              pop,
		transmission:     engine,
		interventions:    mgr,
		monitor:          monitor,
		store:            store,
		scenarioChecksum: scenarioChecksum,
		phase:            Starting,
		bornFactory:      bornFactory,
	}
}

// Phase returns the driver's current lifecycle phase.
func (d *Driver) Phase() Phase { return d.phase }

// Step returns the absolute step counter.
func (d *Driver) Step() int { return d.step }

// SetSurveySteps installs the absolute step numbers (already converted
// from scenario dates by internal/config) that the driver should treat as
// survey boundaries once in MAIN phase.
func (d *Driver) SetSurveySteps(steps []int) { d.surveySteps = steps }

// computeWarmupSteps returns cfg.WarmupOverrideSteps when it is positive,
// and otherwise the human population's maximum age rounded up to a whole
// year, in steps. No minimum warm-up of the transmission model is added
// to the computed length.
func (d *Driver) computeWarmupSteps() int {
	if d.cfg.WarmupOverrideSteps > 0 {
		return d.cfg.WarmupOverrideSteps
	}
	stepsPerYear := 365 / d.cfg.StepLengthDays
	years := math.Ceil(float64(d.cfg.MaxAgeSteps) / float64(stepsPerYear))
	return int(years) * stepsPerYear
}

// Run advances the driver through every phase until END, calling
// onStep after every completed step (for progress/print hooks). It
// returns nil on reaching END, the first step error, or, when
// checkpointStopStep is reached first (0 disables the stop), the result
// of saving a checkpoint at that step.
func (d *Driver) Run(endStep, checkpointStopStep int, onStep func(d *Driver)) error {
	for d.phase != End {
		if checkpointStopStep > 0 && d.step >= checkpointStopStep {
			return d.saveCheckpoint()
		}
		if err := d.stepOnce(endStep); err != nil {
			return err
		}
		if onStep != nil {
			onStep(d)
		}
	}
	return nil
}

func (d *Driver) stepOnce(endStep int) error {
	switch d.phase {
	case Starting:
		d.warmupSteps = d.computeWarmupSteps()
		d.phase = OneLifeSpan
		return nil
	case OneLifeSpan:
		d.advanceHumans(nil)
		d.step++
		if d.step >= d.warmupSteps {
			d.phase = TransmissionInit
		}
		return nil
	case TransmissionInit:
		d.advanceHumans(nil)
		d.step++
		d.transmissionInitSteps++
		if d.step-d.warmupSteps < 0 {
			// Still finishing the life-span warm-up itself before asking
			// the transmission engine whether its own periodic orbit has
			// settled.
			return nil
		}
		more, err := d.transmission.InitIterate(d.transmissionInitSteps)
		if err != nil {
			return err
		}
		if more == 0 {
			d.phase = Main
			if err := d.transmission.EnterMain(); err != nil {
				return err
			}
			d.step = 0
			d.nextSurvey = 0
		}
		return nil
	case Main:
		if d.nextSurvey < len(d.surveySteps) && d.step == d.surveySteps[d.nextSurvey] {
			d.monitor.Swap()
			d.nextSurvey++
		}
		for _, h := range d.pop.Humans() {
			d.interventions.DispatchContinuous(h, d.step)
		}
		d.interventions.DispatchTimed(d.step, d.pop.Humans())
		d.advanceHumans(d.monitor)
		d.recordDeaths()
		d.step++
		if endStep > 0 && d.step >= endStep {
			d.phase = End
		}
		return nil
	default:
		return nil
	}
}

// advanceHumans first takes the transmission engine's step EIR, then runs
// the incidence draw and per-host update for every human in population-
// traversal (age-sorted) order, and finally records the population's mean
// infectiousness with the engine. A nil monitor means warm-up: measures
// are computed but not accumulated.
func (d *Driver) advanceHumans(monitor *survey.Monitor) {
	eir := d.transmission.StepEIR(d.step)
	ageYears := func(h *human.Human) float64 {
		return float64(h.AgeSteps(d.step)*d.cfg.StepLengthDays) / 365.0
	}

	var infectedMosquitoSum, totalHosts float64
	for _, h := range d.pop.Humans() {
		susceptibility := h.WithinHost().Susceptibility(d.cfg.WithinHost)
		result := incidence.NewInfections(eir, susceptibility, h.PEVEfficacy(d.step), d.cfg.Incidence, d.rng)
		for i := 0; i < result.N; i++ {
			h.WithinHost().AddInfection(d.step, 0, d.cfg.WithinHost, d.rng)
		}
		wasFirstInfection := !h.HadInfection() && (result.N > 0 || h.WithinHost().NumInfections() > 0)
		if result.N > 0 {
			h.RecordInfectionEvent()
		}
		outcome := h.StepUpdate(d.step, d.cfg.StepLengthDays, h.BSVSurvival(d.step), h.CaseManagementSurvival(d.step), result.N, ageYears(h), d.cfg.WithinHost, d.cfg.Pathogenesis, d.rng)

		infectedMosquitoSum += h.WithinHost().ProbTransmissionToMosquito(d.cfg.WithinHost)
		totalHosts++

		if monitor != nil {
			d.recordOutcome(monitor, h, outcome, result, ageYears(h))
		}
		wasFirstBout := outcome.Episode && !h.HadBout()
		if outcome.Episode {
			h.RecordBout()
		}
		if d.interventions != nil {
			d.interventions.ApplyRemovalRules(h, h.BirthStep(), d.step, wasFirstBout, wasFirstInfection, false)
		}
		if h.Pathogenesis().DueToDie(d.step) {
			h.MarkDead(human.DeathIndirect)
		}
	}

	if totalHosts > 0 {
		d.transmission.RecordInfectiousness(d.step, infectedMosquitoSum/totalHosts)
	}
}

func (d *Driver) recordOutcome(monitor *survey.Monitor, h *human.Human, outcome pathogenesis.Outcome, inf incidence.NewInfectionsResult, ageYears float64) {
	ageBand := ageBandIndex(ageYears, d.cfg.AgeBandUpperYears)
	monitor.Accumulate(survey.MeasureHostCount, ageBand, -1, 1)
	if h.WithinHost().Patent(d.cfg.WithinHost) {
		monitor.Accumulate(survey.MeasurePatentHostCount, ageBand, -1, 1)
	}
	monitor.Accumulate(survey.MeasureInfectionCount, ageBand, -1, float64(h.WithinHost().NumInfections()))
	if outcome.Episode {
		monitor.Accumulate(survey.MeasureEpisodes, ageBand, -1, 1)
	}
	if outcome.Severe {
		monitor.Accumulate(survey.MeasureSevereEpisodes, ageBand, -1, 1)
	}
	if outcome.Doomed {
		monitor.Accumulate(survey.MeasureIndirectDeaths, ageBand, -1, 1)
	}
}

// recordDeaths removes humans that died this step (indirect mortality,
// or all-cause/max-age mortality decided by the caller before calling
// Run) and replaces each with a newborn at the current step, keeping
// population size constant per spec.md section 4.11.
func (d *Driver) recordDeaths() {
	removed := d.pop.RemoveDead()
	for _, h := range removed {
		ageYears := float64(h.AgeSteps(d.step)*d.cfg.StepLengthDays) / 365.0
		if ageYears < 1 {
			d.infantDeaths++
		}
		if d.bornFactory == nil {
			continue
		}
		d.infantBirths++
		d.pop.Insert(d.bornFactory(d.step))
	}
}

// InfantMortalityRate returns the number of deaths under one year of age
// during MAIN divided by the number of replacement births during MAIN,
// the unstratified measure recorded by EmitUnstratified at end of run.
func (d *Driver) InfantMortalityRate() float64 {
	if d.infantBirths == 0 {
		return 0
	}
	return float64(d.infantDeaths) / float64(d.infantBirths)
}

// binaryCodec is satisfied by every checkpointable component owned by the
// driver. Rather than gob-encoding d.transmission as a bare interface
// value (which would force gob to allocate a fresh, parameter-less
// vectorEngine/nonVectorEngine on decode, discarding the scenario-built
// vector.Species/nonvector.Model it wraps), the driver type-asserts to
// this interface and threads the payload through its own snapshot
// explicitly; the caller must install the same scenario-configured
// engine/population/monitor/manager before calling RestoreFromCheckpoint.
type binaryCodec interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// driverSnapshot is the driver's own gob-encodable checkpoint payload.
// The RNG field is declared last so gob's declaration-order field
// encoding places it last among mutable state, per spec.md section 4.15.
type driverSnapshot struct {
	Phase                 Phase
	Step                  int
	WarmupSteps           int
	TransmissionInitSteps int
	NextSurvey            int
	InfantBirths          int
	InfantDeaths          int

	Population       []byte
	Transmission     []byte
	Monitor          []byte
	Recruited        []byte

	RNG []byte
}

// saveCheckpoint persists a State snapshot via the installed Store,
// gob-encoding the driver's own mutable state plus every component's
// opaque BinaryMarshaler payload.
func (d *Driver) saveCheckpoint() error {
	payload, err := d.checkpointPayload()
	if err != nil {
		return err
	}
	st := &checkpoint.State{
		Header:  checkpoint.Header{ScenarioChecksum: d.scenarioChecksum, Step: d.step},
		Payload: payload,
	}
	return d.store.Save(st)
}

func (d *Driver) checkpointPayload() ([]byte, error) {
	popBytes, err := d.pop.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "simulator: encode population")
	}
	transBytes, err := d.transmissionPayload()
	if err != nil {
		return nil, err
	}
	monBytes, err := d.monitor.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "simulator: encode monitor")
	}
	recruitedBytes, err := d.interventions.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "simulator: encode intervention manager")
	}
	rngBytes, err := d.rng.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "simulator: encode rng")
	}

	snap := driverSnapshot{
		Phase:                 d.phase,
		Step:                  d.step,
		WarmupSteps:           d.warmupSteps,
		TransmissionInitSteps: d.transmissionInitSteps,
		NextSurvey:            d.nextSurvey,
		InfantBirths:          d.infantBirths,
		InfantDeaths:          d.infantDeaths,
		Population:            popBytes,
		Transmission:          transBytes,
		Monitor:               monBytes,
		Recruited:             recruitedBytes,
		RNG:                   rngBytes,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "simulator: encode driver snapshot")
	}
	return buf.Bytes(), nil
}

func (d *Driver) transmissionPayload() ([]byte, error) {
	codec, ok := d.transmission.(binaryCodec)
	if !ok {
		return nil, errors.New("simulator: transmission engine does not support checkpointing")
	}
	return codec.MarshalBinary()
}

// RestoreFromCheckpoint applies a previously-saved State onto this
// Driver. The caller must have already constructed the Driver with the
// same scenario-built population, transmission engine, monitor, and
// intervention manager shapes used when the checkpoint was saved (their
// contents are overwritten in place; their construction parameters,
// e.g. vector.SpeciesParams, are not part of the checkpoint).
func (d *Driver) RestoreFromCheckpoint(st *checkpoint.State) error {
	var snap driverSnapshot
	if err := gob.NewDecoder(bytes.NewReader(st.Payload)).Decode(&snap); err != nil {
		return errors.Wrap(err, "simulator: decode driver snapshot")
	}
	if err := d.pop.UnmarshalBinary(snap.Population); err != nil {
		return errors.Wrap(err, "simulator: restore population")
	}
	codec, ok := d.transmission.(binaryCodec)
	if !ok {
		return errors.New("simulator: transmission engine does not support checkpointing")
	}
	if err := codec.UnmarshalBinary(snap.Transmission); err != nil {
		return errors.Wrap(err, "simulator: restore transmission engine")
	}
	if err := d.monitor.UnmarshalBinary(snap.Monitor); err != nil {
		return errors.Wrap(err, "simulator: restore monitor")
	}
	if err := d.interventions.UnmarshalBinary(snap.Recruited); err != nil {
		return errors.Wrap(err, "simulator: restore intervention manager")
	}
	if err := d.rng.UnmarshalBinary(snap.RNG); err != nil {
		return errors.Wrap(err, "simulator: restore rng")
	}
	d.phase = snap.Phase
	d.step = snap.Step
	d.warmupSteps = snap.WarmupSteps
	d.transmissionInitSteps = snap.TransmissionInitSteps
	d.nextSurvey = snap.NextSurvey
	d.infantBirths = snap.InfantBirths
	d.infantDeaths = snap.InfantDeaths
	return nil
}
