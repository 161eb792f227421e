// Package survey accumulates per-step measures into a current-survey
// buffer, stratified by age band and optional cohort, and emits them at
// configured survey times (spec.md section 4.12).
package survey

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/pkg/errors"
)

// Measure identifies one pre-declared output quantity.
type Measure string

const (
	MeasureHostCount         Measure = "nHost"
	MeasurePatentHostCount   Measure = "nPatent"
	MeasureInfectionCount    Measure = "nInfections"
	MeasureLogDensitySum     Measure = "logDensitySum"
	MeasureEpisodes          Measure = "nEpisodes"
	MeasureSevereEpisodes    Measure = "nSevereEpisodes"
	MeasureDirectDeaths      Measure = "nDirectDeaths"
	MeasureIndirectDeaths    Measure = "nIndirectDeaths"
	MeasureEIR               Measure = "simulatedEIR"
	MeasureInfantMortality   Measure = "infantMortalityRate" // unstratified, end-of-run only
)

// Key identifies one accumulation cell: a measure within an age band
// (and, if cohorts are configured, a cohort id; -1 means "no cohort
// restriction").
type Key struct {
	Measure  Measure
	AgeBand  int
	CohortID int
}

// Row is one emitted (survey, age-band, measure, value) tuple, per
// spec.md section 6's output format.
type Row struct {
	SurveyIndex int
	AgeBand     int
	CohortID    int
	Measure     Measure
	Value       float64
}

// Monitor accumulates measures into a current-survey buffer and swaps it
// out at each configured survey boundary.
type Monitor struct {
	enabled map[Measure]bool
	current map[Key]float64
	rows    []Row
	surveyIdx int
}

// NewMonitor creates a Monitor with the given enabled measures.
func NewMonitor(enabled []Measure) *Monitor {
	m := &Monitor{enabled: make(map[Measure]bool), current: make(map[Key]float64)}
	for _, e := range enabled {
		m.enabled[e] = true
	}
	return m
}

// Enabled reports whether measure is configured to be reported.
func (m *Monitor) Enabled(measure Measure) bool {
	return m.enabled[measure]
}

// Accumulate adds delta to the running total for (measure, ageBand,
// cohortID) in the current survey buffer. Reporting is additive and
// append-only, per spec.md section 4.12; cohortID -1 means unrestricted.
func (m *Monitor) Accumulate(measure Measure, ageBand, cohortID int, delta float64) {
	if !m.enabled[measure] {
		return
	}
	m.current[Key{measure, ageBand, cohortID}] += delta
}

// Swap emits the current buffer as Rows tagged with the current survey
// index, then clears the buffer for the next accumulation period,
// per spec.md section 4.12's "intermediate increments... swapped on
// survey boundaries".
func (m *Monitor) Swap() []Row {
	keys := make([]Key, 0, len(m.current))
	for k := range m.current {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AgeBand != keys[j].AgeBand {
			return keys[i].AgeBand < keys[j].AgeBand
		}
		if keys[i].CohortID != keys[j].CohortID {
			return keys[i].CohortID < keys[j].CohortID
		}
		return keys[i].Measure < keys[j].Measure
	})
	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Row{
			SurveyIndex: m.surveyIdx,
			AgeBand:     k.AgeBand,
			CohortID:    k.CohortID,
			Measure:     k.Measure,
			Value:       m.current[k],
		})
	}
	m.rows = append(m.rows, rows...)
	m.current = make(map[Key]float64)
	m.surveyIdx++
	return rows
}

// AllRows returns every row emitted so far, in emission order.
func (m *Monitor) AllRows() []Row {
	return m.rows
}

// EmitUnstratified adds a single, non-survey-indexed row for a
// population-wide, unstratified measure such as infant mortality rate
// (spec.md section 4.12 / 9: "a single row per simulation for
// non-stratified measures").
func (m *Monitor) EmitUnstratified(measure Measure, value float64) {
	m.rows = append(m.rows, Row{SurveyIndex: -1, AgeBand: -1, CohortID: -1, Measure: measure, Value: value})
}

// monitorState mirrors Monitor's unexported fields for checkpointing.
type monitorState struct {
	Enabled   map[Measure]bool
	Current   map[Key]float64
	Rows      []Row
	SurveyIdx int
}

// MarshalBinary implements encoding.BinaryMarshaler for checkpointing.
func (m *Monitor) MarshalBinary() ([]byte, error) {
	st := monitorState{m.enabled, m.current, m.rows, m.surveyIdx}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, errors.Wrap(err, "survey: encode state")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for checkpoint
// restore.
func (m *Monitor) UnmarshalBinary(data []byte) error {
	var st monitorState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "survey: decode state")
	}
	m.enabled, m.current, m.rows, m.surveyIdx = st.Enabled, st.Current, st.Rows, st.SurveyIdx
	return nil
}
