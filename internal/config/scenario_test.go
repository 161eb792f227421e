package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validScenario() *Scenario {
	return &Scenario{
		Simulation: &SimulationConfig{StepLengthDays: 5, ModelVariant: 1},
		Demography: &DemographyConfig{
			MaxAgeYears: 90,
			AgeBands:    []AgeBand{{LowerAgeYears: 0, PercentOfPop: 100}},
		},
		Entomology: &EntomologyConfig{NonVector: &NonVectorConfig{DailyEIR: make([]float64, 365)}},
		Monitoring: &MonitoringConfig{SurveyDates: []string{"2011-12-20"}},
	}
}

func TestValidateAcceptsWellFormedScenario(t *testing.T) {
	s := validScenario()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsNonzeroGrowthRate(t *testing.T) {
	s := validScenario()
	s.Demography.GrowthRate = 0.01
	if err := s.Validate(); err == nil {
		t.Errorf("Validate() with nonzero growth_rate = nil, want error")
	}
}

func TestValidateRejectsBothOrNeitherEntomologyMode(t *testing.T) {
	s := validScenario()
	s.Entomology.Vector = &VectorConfig{Species: []*SpeciesConfig{{Name: "gambiae"}}}
	if err := s.Validate(); err == nil {
		t.Errorf("Validate() with both non_vector and vector set = nil, want error")
	}

	s2 := validScenario()
	s2.Entomology.NonVector = nil
	if err := s2.Validate(); err == nil {
		t.Errorf("Validate() with neither entomology mode set = nil, want error")
	}
}

func TestValidateRejectsMalformedSurveyDate(t *testing.T) {
	s := validScenario()
	s.Monitoring.SurveyDates = []string{"2011-13-20"}
	if err := s.Validate(); err == nil {
		t.Errorf("Validate() with month 13 = nil, want error")
	}
}

func TestParseDateRejectsOutOfRangeDay(t *testing.T) {
	if _, err := ParseDate("2011-01-32"); err == nil {
		t.Errorf("ParseDate(day 32) = nil, want error")
	}
}

func TestParseDurationUnits(t *testing.T) {
	cases := []struct {
		in       string
		wantStep int
	}{
		{"0", 0},
		{"10t", 10},
		{"15d", 3},
		{"1y", 73},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in, 5)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", c.in, err)
		}
		if got != c.wantStep {
			t.Errorf("ParseDuration(%q) = %d, want %d", c.in, got, c.wantStep)
		}
	}
}

func TestParseDurationRejectsUnitlessNumber(t *testing.T) {
	if _, err := ParseDuration("10", 5); err == nil {
		t.Errorf("ParseDuration(\"10\") = nil, want error (unit required)")
	}
}

func TestLoadScenarioReadsTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.toml")
	doc := `
[simulation]
step_length_days = 5
seed = 42

[demography]
max_age_years = 90

[[demography.age_band]]
lower_age_years = 0
percent_of_pop = 100

[entomology.non_vector]
min_eir_mult = 0.01

[monitoring]
survey_dates = ["2011-12-20"]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if s.Simulation.Seed != 42 {
		t.Errorf("Seed = %d, want 42", s.Simulation.Seed)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() on loaded scenario: %v", err)
	}
}
