package survey

import "testing"

func TestDisabledMeasureIsNotAccumulated(t *testing.T) {
	m := NewMonitor([]Measure{MeasureHostCount})
	m.Accumulate(MeasureEpisodes, 0, -1, 5)
	rows := m.Swap()
	for _, r := range rows {
		if r.Measure == MeasureEpisodes {
			t.Fatalf("disabled measure MeasureEpisodes was accumulated")
		}
	}
}

func TestSwapClearsBufferAndAdvancesSurveyIndex(t *testing.T) {
	m := NewMonitor([]Measure{MeasureHostCount})
	m.Accumulate(MeasureHostCount, 0, -1, 10)
	first := m.Swap()
	if len(first) != 1 || first[0].Value != 10 || first[0].SurveyIndex != 0 {
		t.Fatalf("unexpected first swap: %+v", first)
	}
	m.Accumulate(MeasureHostCount, 0, -1, 3)
	second := m.Swap()
	if len(second) != 1 || second[0].Value != 3 || second[0].SurveyIndex != 1 {
		t.Fatalf("unexpected second swap: %+v (buffer not cleared or index not advanced)", second)
	}
}

func TestAllRowsAccumulatesAcrossSwaps(t *testing.T) {
	m := NewMonitor([]Measure{MeasureHostCount})
	m.Accumulate(MeasureHostCount, 0, -1, 1)
	m.Swap()
	m.Accumulate(MeasureHostCount, 0, -1, 1)
	m.Swap()
	if len(m.AllRows()) != 2 {
		t.Errorf("AllRows() has %d rows, want 2", len(m.AllRows()))
	}
}
