package simulator

import (
	"math"
	"testing"

	"github.com/kentwait/malariasim/internal/checkpoint"
	"github.com/kentwait/malariasim/internal/human"
	"github.com/kentwait/malariasim/internal/incidence"
	"github.com/kentwait/malariasim/internal/infection"
	"github.com/kentwait/malariasim/internal/intervention"
	"github.com/kentwait/malariasim/internal/nonvector"
	"github.com/kentwait/malariasim/internal/pathogenesis"
	"github.com/kentwait/malariasim/internal/perhost"
	"github.com/kentwait/malariasim/internal/population"
	"github.com/kentwait/malariasim/internal/rng"
	"github.com/kentwait/malariasim/internal/survey"
	"github.com/kentwait/malariasim/internal/withinhost"
)

func testConfig() *Config {
	return &Config{
		StepLengthDays:      5,
		WarmupOverrideSteps: 10,
		WithinHost: &withinhost.Params{
			Infection:      &infection.Params{},
			SImm:           0.5,
			HStar:          1,
			Gamma:          1,
			DetectionLimit: 1,
			InfectiousnessSaturation: func(d float64) float64 {
				return d / (d + 1)
			},
		},
		Pathogenesis: &pathogenesis.Params{Alpha: 1, Y1: 1, Y2: 1, MuY: 0.1, ThresholdSevere: 1e6},
		Incidence:    &incidence.Params{SInf: 0.1, EStar: 1},
		MaxAgeSteps:  20,
	}
}

func newTestPopulation(n int) *population.Population {
	pop := population.New()
	for i := 0; i < n; i++ {
		h := human.New(pop.NextHID(), 0, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
		pop.Insert(h)
	}
	return pop
}

func newDriver(t *testing.T) *Driver {
	t.Helper()
	cfg := testConfig()
	dailyEIR := make([]float64, 365)
	for i := range dailyEIR {
		dailyEIR[i] = 0.1
	}
	model := nonvector.New(dailyEIR, 365, cfg.StepLengthDays, 2, 0.01)
	engine := NewNonVectorEngine(model)
	pop := newTestPopulation(5)
	mgr := intervention.NewManager(nil, nil)
	monitor := survey.NewMonitor([]survey.Measure{survey.MeasureHostCount, survey.MeasureEpisodes})
	store := checkpoint.NewStore(t.TempDir() + "/ckpt")
	bornFactory := func(birthStep int) *human.Human {
		return human.New(0, birthStep, 1, withinhost.New(), pathogenesis.New(1e5), perhost.NewState(nil))
	}
	return New(cfg, rng.New(1), pop, engine, mgr, monitor, store, [32]byte{}, bornFactory)
}

func TestPhaseProgression(t *testing.T) {
	d := newDriver(t)
	if d.Phase() != Starting {
		t.Fatalf("initial phase = %s, want STARTING", d.Phase())
	}
	err := d.Run(5, 0, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.Phase() != Main && d.Phase() != End {
		t.Errorf("after Run, phase = %s, want MAIN or END", d.Phase())
	}
}

func TestRunReachesEndStep(t *testing.T) {
	d := newDriver(t)
	if err := d.Run(3, 0, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.Phase() != End {
		t.Errorf("phase = %s, want END", d.Phase())
	}
}

func TestWarmupStepsComputedFromMaxAge(t *testing.T) {
	d := newDriver(t)
	d.cfg.WarmupOverrideSteps = 0
	got := d.computeWarmupSteps()
	stepsPerYear := 365 / d.cfg.StepLengthDays
	wantYears := math.Ceil(float64(d.cfg.MaxAgeSteps) / float64(stepsPerYear))
	want := int(wantYears) * stepsPerYear
	if got != want {
		t.Errorf("computeWarmupSteps() = %d, want %d", got, want)
	}
}

func TestPopulationSizeConstantAcrossSteps(t *testing.T) {
	d := newDriver(t)
	want := d.pop.Size()
	if err := d.Run(20, 0, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := d.pop.Size(); got != want {
		t.Errorf("population size changed from %d to %d", want, got)
	}
}
