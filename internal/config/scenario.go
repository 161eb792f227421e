// Package config parses and validates the scenario input document of
// spec.md section 6, following the teacher's TOML-decode-then-Validate
// pattern (evoepi_config.go, utils.go).
package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/kentwait/malariasim/internal/simerrors"
)

// Scenario is the top-level configuration document.
type Scenario struct {
	Simulation *SimulationConfig `toml:"simulation"`
	Demography *DemographyConfig `toml:"demography"`
	Entomology *EntomologyConfig `toml:"entomology"`
	Interventions []*InterventionConfig `toml:"intervention"`
	Monitoring *MonitoringConfig `toml:"monitoring"`

	validated bool
}

// SimulationConfig is the [simulation] section.
type SimulationConfig struct {
	Seed               int64  `toml:"seed"`
	StartDate          string `toml:"start_date"` // "YYYY-MM-DD"; absolute step 0
	StepLengthDays     int    `toml:"step_length_days"`
	PopulationSize     int    `toml:"population_size"`
	ModelVariant       int    `toml:"model_variant"` // 1..38, or 0 for a named model
	ModelName          string `toml:"model_name"`
	WarmupOverrideYears int   `toml:"warmup_override_years"`
	TestCheckpointing  bool   `toml:"test_checkpointing"`
}

// Validate checks the [simulation] section.
func (c *SimulationConfig) Validate() error {
	if c.StepLengthDays <= 0 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "step_length_days", c.StepLengthDays, "must be > 0"))
	}
	if c.ModelVariant != 0 && (c.ModelVariant < 1 || c.ModelVariant > 38) {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "model_variant", c.ModelVariant, "must be in 1..38"))
	}
	if c.StartDate != "" {
		if _, err := ParseDate(c.StartDate); err != nil {
			return err
		}
	}
	if c.WarmupOverrideYears < 0 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "warmup_override_years", c.WarmupOverrideYears, "must be >= 0"))
	}
	return nil
}

// AgeBand is one [[demography.age_band]] entry: percent of the population
// aged at least LowerAgeYears.
type AgeBand struct {
	LowerAgeYears float64 `toml:"lower_age_years"`
	PercentOfPop  float64 `toml:"percent_of_pop"`
}

// DemographyConfig is the [demography] section.
type DemographyConfig struct {
	MaxAgeYears float64    `toml:"max_age_years"`
	GrowthRate  float64    `toml:"growth_rate"`
	AgeBands    []AgeBand  `toml:"age_band"`
}

// Validate checks the [demography] section; a nonzero growth rate is
// unsupported and fatal (spec.md section 4.11).
func (c *DemographyConfig) Validate() error {
	if c.MaxAgeYears <= 0 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidFloatParameterError, "max_age_years", c.MaxAgeYears, "must be > 0"))
	}
	if c.GrowthRate != 0 {
		return simerrors.NewScenario(errors.New("demography: growth_rate != 0 is not supported"))
	}
	if len(c.AgeBands) == 0 {
		return simerrors.NewScenario(errors.New("demography: at least one age_band is required"))
	}
	for i, ab := range c.AgeBands {
		if ab.PercentOfPop < 0 || ab.PercentOfPop > 100 {
			return simerrors.NewScenario(errors.Errorf(simerrors.InvalidFloatParameterError, "age_band.percent_of_pop", ab.PercentOfPop, "must be in [0, 100]"))
		}
		if i > 0 && ab.LowerAgeYears <= c.AgeBands[i-1].LowerAgeYears {
			return simerrors.NewScenario(errors.New("demography: age_band entries must be in strictly increasing lower_age_years order"))
		}
	}
	return nil
}

// NonVectorConfig is the [entomology.non_vector] section: a forced
// seasonal EIR given either as an explicit 365-day series or Fourier
// coefficients.
type NonVectorConfig struct {
	DailyEIR         []float64 `toml:"daily_eir"`
	FourierCoeffs    []float64 `toml:"fourier_coeffs"`
	MinEIRMult       float64   `toml:"min_eir_mult"`
}

// Validate checks the [entomology.non_vector] section: the forced
// seasonal series, when given explicitly rather than via Fourier
// coefficients, must cover a full year.
func (c *NonVectorConfig) Validate() error {
	if len(c.DailyEIR) != 0 && len(c.DailyEIR) != 365 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "daily_eir length", len(c.DailyEIR), "must be 365"))
	}
	return nil
}

// SpeciesConfig is one [[entomology.vector.species]] entry.
type SpeciesConfig struct {
	Name              string  `toml:"name"`
	RestingDurationDays int   `toml:"resting_duration_days"`
	EIPDays           int     `toml:"eip_days"`
	SeekingDeathRate  float64 `toml:"seeking_death_rate"`
	SeekingDuration   float64 `toml:"seeking_duration"`
	OvipositionProb   float64 `toml:"oviposition_prob"`
	AvailabilityMean  float64 `toml:"availability_mean"`
	AvailabilityVar   float64 `toml:"availability_var"`
	BitingProbAlpha   float64 `toml:"biting_prob_alpha"`
	BitingProbBeta    float64 `toml:"biting_prob_beta"`
	RestingProbAlpha  float64 `toml:"resting_prob_alpha"`
	RestingProbBeta   float64 `toml:"resting_prob_beta"`

	// TargetAnnualEIR (or the finer-grained TargetDailyEIR, which takes
	// precedence when non-empty) is the annual entomological inoculation
	// rate this species' emergence rate is fit to reproduce, via
	// vector.FitEmergence.
	TargetAnnualEIR float64   `toml:"target_annual_eir"`
	TargetDailyEIR  []float64 `toml:"target_daily_eir"`

	// InitialKappa seeds the pre-fit host infectiousness used while
	// solving for the emergence rate, since fitting against all-zero
	// infectiousness is a degenerate fixed point (observed EIR stays zero
	// for any trial emergence). Defaults to a small nonzero constant when
	// unset; see simerrors.ZeroInitialKappaError.
	InitialKappa float64 `toml:"initial_kappa"`
}

// Validate checks one [[entomology.vector.species]] entry: exactly one
// of TargetAnnualEIR or TargetDailyEIR must be set, since both feed
// vector.FitEmergence's target and a missing target is a degenerate
// fit (see InitialKappa's doc comment for the companion degenerate
// case).
func (c *SpeciesConfig) Validate() error {
	if (c.TargetAnnualEIR == 0) == (len(c.TargetDailyEIR) == 0) {
		return simerrors.NewScenario(errors.New("entomology.vector.species: exactly one of target_annual_eir or target_daily_eir must be set"))
	}
	if len(c.TargetDailyEIR) != 0 && len(c.TargetDailyEIR) != 365 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "target_daily_eir length", len(c.TargetDailyEIR), "must be 365"))
	}
	if c.RestingDurationDays <= 0 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "resting_duration_days", c.RestingDurationDays, "must be > 0"))
	}
	if c.EIPDays <= 0 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidIntParameterError, "eip_days", c.EIPDays, "must be > 0"))
	}
	return nil
}

// VectorConfig is the [entomology.vector] section.
type VectorConfig struct {
	Species []*SpeciesConfig `toml:"species"`
}

// EntomologyConfig is the [entomology] section: exactly one of NonVector
// or Vector must be set.
type EntomologyConfig struct {
	NonVector *NonVectorConfig `toml:"non_vector"`
	Vector    *VectorConfig    `toml:"vector"`
}

// Validate checks that exactly one transmission mode is configured.
func (c *EntomologyConfig) Validate() error {
	if (c.NonVector == nil) == (c.Vector == nil) {
		return simerrors.NewScenario(errors.New("entomology: exactly one of [entomology.non_vector] or [entomology.vector] must be set"))
	}
	if c.NonVector != nil {
		if err := c.NonVector.Validate(); err != nil {
			return err
		}
	}
	if c.Vector != nil {
		if len(c.Vector.Species) == 0 {
			return simerrors.NewScenario(errors.New("entomology.vector: at least one species is required"))
		}
		for _, sc := range c.Vector.Species {
			if err := sc.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// InterventionConfig is one [[intervention]] deployment entry.
type InterventionConfig struct {
	Component string `toml:"component"` // e.g. "itn", "irs", "pev", ...
	ComponentID int  `toml:"component_id"`
	Timing    string `toml:"timing"` // "timed" | "continuous"
	Date      string `toml:"date"`
	TargetAgeYears float64 `toml:"target_age_years"`
	Coverage  float64 `toml:"coverage"`

	// Decay parameters, interpretation depends on Component.
	DecayLambda float64 `toml:"decay_lambda"`
	DecayK      float64 `toml:"decay_k"`
	DecayRate   float64 `toml:"decay_rate"`

	RemovalRule string `toml:"removal_rule"` // "", "first_bout", "first_infection", "first_treatment", "after_years"
	RemovalAfterYears float64 `toml:"removal_after_years"`

	CohortID int `toml:"cohort_id"`
}

// Validate checks one [[intervention]] deployment entry.
func (c *InterventionConfig) Validate() error {
	switch c.Component {
	case "itn", "irs", "gvi", "mda", "pev", "bsv", "tbv", "larviciding",
		"imported_infections", "cohort", "case_management":
	default:
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidStringParameterError, "component", c.Component, "unrecognized component"))
	}
	switch c.Timing {
	case "timed", "continuous":
	default:
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidStringParameterError, "timing", c.Timing, `must be "timed" or "continuous"`))
	}
	if c.Timing == "timed" && c.Date != "" {
		if _, err := ParseDate(c.Date); err != nil {
			return err
		}
	}
	if c.Coverage < 0 || c.Coverage > 1 {
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidFloatParameterError, "coverage", c.Coverage, "must be in [0, 1]"))
	}
	switch c.RemovalRule {
	case "", "first_bout", "first_infection", "first_treatment", "after_years":
	default:
		return simerrors.NewScenario(errors.Errorf(simerrors.InvalidStringParameterError, "removal_rule", c.RemovalRule, "unrecognized removal_rule"))
	}
	return nil
}

// MonitoringConfig is the [monitoring] section.
type MonitoringConfig struct {
	SurveyDates []string `toml:"survey_dates"`
	AgeBandsYears []float64 `toml:"age_bands_years"`
	Measures    []string `toml:"measures"`
	Cohorts     []string `toml:"cohorts"`
}

// Validate checks the [monitoring] section.
func (c *MonitoringConfig) Validate() error {
	for _, d := range c.SurveyDates {
		if _, err := ParseDate(d); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every section and fills in cross-section defaults, in
// the teacher's evoepi_config.go style (per-section Validate, called from
// the top-level Validate).
func (s *Scenario) Validate() error {
	if err := s.Simulation.Validate(); err != nil {
		return err
	}
	if err := s.Demography.Validate(); err != nil {
		return err
	}
	if err := s.Entomology.Validate(); err != nil {
		return err
	}
	for _, ic := range s.Interventions {
		if err := ic.Validate(); err != nil {
			return err
		}
	}
	if err := s.Monitoring.Validate(); err != nil {
		return err
	}
	s.validated = true
	return nil
}

// LoadScenario decodes path as TOML into a Scenario, mirroring the
// teacher's LoadEvoEpiConfig (evoepi_config_loader.go) /
// LoadSingleHostConfig (utils.go) pattern: toml.DecodeFile then return.
func LoadScenario(path string) (*Scenario, error) {
	spec := new(Scenario)
	if _, err := toml.DecodeFile(path, spec); err != nil {
		return nil, simerrors.NewScenario(errors.Wrapf(err, "config: decode %s", path))
	}
	return spec, nil
}

// Checksum computes a stable checksum of the scenario's validated fields,
// used by the checkpoint codec's header to detect a scenario file that
// changed between a checkpoint write and a resume (spec.md section 4.15).
func (s *Scenario) Checksum() [32]byte {
	var b strings.Builder
	if err := json.NewEncoder(&b).Encode(s); err != nil {
		fmt.Fprintf(&b, "%+v", err)
	}
	return sha256.Sum256([]byte(b.String()))
}

// AbsoluteStep converts a calendar date to an absolute simulation step
// number relative to the scenario's [simulation] start_date, truncating
// toward the start of the step. Returns an error if date cannot be
// parsed or start_date is unset.
func (s *Scenario) AbsoluteStep(date string) (int, error) {
	if s.Simulation.StartDate == "" {
		return 0, simerrors.NewScenario(errors.New("config: simulation.start_date is required to resolve calendar dates to steps"))
	}
	start, err := ParseDate(s.Simulation.StartDate)
	if err != nil {
		return 0, err
	}
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	days := int(t.Sub(start).Hours() / 24)
	stepLengthDays := s.Simulation.StepLengthDays
	if stepLengthDays <= 0 {
		stepLengthDays = 1
	}
	return days / stepLengthDays, nil
}

// ParseDate parses a scenario date string in "YYYY-MM-DD" form, rejecting
// out-of-range months/days, per spec.md section 8's boundary behaviours
// ("2011-12-20" accepted; month 13 rejected; day 32 rejected).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, simerrors.NewFormat(errors.Errorf(simerrors.InvalidDateError, s, err.Error()))
	}
	return t, nil
}

// ParseDuration parses a scenario duration string of the form
// "<number><unit>" where unit is one of d (days), t (steps), y (years);
// "0" alone is accepted without a unit; any other unitless number is
// rejected, per spec.md section 8's boundary behaviours.
func ParseDuration(s string, stepLengthDays int) (steps int, err error) {
	if s == "0" {
		return 0, nil
	}
	if len(s) == 0 {
		return 0, simerrors.NewFormat(errors.New("duration: empty string"))
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	switch unit {
	case 'd', 't', 'y':
	default:
		return 0, simerrors.NewFormat(errors.Errorf(simerrors.DurationUnitRequiredError, s))
	}
	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, simerrors.NewFormat(errors.Errorf(simerrors.InvalidStringParameterError, "duration", s, err.Error()))
	}
	switch unit {
	case 'd':
		return int(value / float64(stepLengthDays)), nil
	case 't':
		return int(value), nil
	case 'y':
		return int(value * 365 / float64(stepLengthDays)), nil
	}
	return 0, simerrors.NewFormat(errors.Errorf(simerrors.DurationUnitRequiredError, s))
}
