package timegrid

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

var testBase = time.Date(2016, time.September, 1, 0, 0, 0, 0, time.UTC)

// steppedInstrument builds a constant-valued temperature record with the
// given cadence, starting offset hours after testBase.
func steppedInstrument(serial string, startHour, n int, step time.Duration, value float64) *types.InstrumentSeries {
	s := &types.InstrumentSeries{
		Mooring: "wb4",
		Serial:  serial,
		Type:    types.InstrumentMicrocat,
	}
	start := testBase.Add(time.Duration(startHour) * time.Hour)
	s.Times = make([]time.Time, n)
	s.Temperature = make([]float64, n)
	for i := 0; i < n; i++ {
		s.Times[i] = start.Add(time.Duration(i) * step)
		s.Temperature[i] = value
	}
	return s
}

func TestGridUnionSpan(t *testing.T) {
	a := steppedInstrument("9062", 0, 100, time.Hour, 5)
	a.NominalDepth = 100
	a.ClockOffset = -120
	b := steppedInstrument("9063", 50, 100, time.Hour, 8)
	b.NominalDepth = 800

	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{a, b}}
	out, report, err := NewGridder(DefaultParams(), nil).Grid(set)
	if err != nil {
		t.Fatal(err)
	}

	if out.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", out.Interval)
	}
	if len(out.Times) != 150 {
		t.Fatalf("got %d grid times, want 150", len(out.Times))
	}
	if !out.Times[0].Equal(testBase) {
		t.Errorf("Times[0] = %v, want %v", out.Times[0], testBase)
	}
	if want := testBase.Add(149 * time.Hour); !out.Times[149].Equal(want) {
		t.Errorf("Times[149] = %v, want %v", out.Times[149], want)
	}

	temp := out.Variables[types.VarTemperature]
	if temp[99][0] != 5 {
		t.Errorf("A at hour 99 = %v, want 5", temp[99][0])
	}
	if !math.IsNaN(temp[100][0]) {
		t.Errorf("A at hour 100 = %v, want NaN beyond its native range", temp[100][0])
	}
	if !math.IsNaN(temp[49][1]) {
		t.Errorf("B at hour 49 = %v, want NaN before its native range", temp[49][1])
	}
	if temp[50][1] != 8 {
		t.Errorf("B at hour 50 = %v, want 8", temp[50][1])
	}

	if out.Levels() != 2 {
		t.Fatalf("Levels = %d, want 2", out.Levels())
	}
	if out.Serials[0] != "9062" || out.Serials[1] != "9063" {
		t.Errorf("Serials = %v, want input order", out.Serials)
	}
	if out.Depths[0] != 100 || out.Depths[1] != 800 {
		t.Errorf("Depths = %v", out.Depths)
	}
	if out.AppliedOffsets[0] != -120 || out.AppliedOffsets[1] != 0 {
		t.Errorf("AppliedOffsets = %v", out.AppliedOffsets)
	}
	if out.InstrumentFlags[0] != 1 || out.InstrumentFlags[1] != 2 {
		t.Errorf("InstrumentFlags = %v, want [1 2]", out.InstrumentFlags)
	}
	if out.FlagMeanings[2] != "9063" {
		t.Errorf("FlagMeanings[2] = %q, want 9063", out.FlagMeanings[2])
	}

	if len(report.Instruments) != 2 || report.Instruments[0].MedianInterval != time.Hour {
		t.Errorf("timing stats = %+v", report.Instruments)
	}
	if !report.Start.Equal(testBase) || !report.End.Equal(testBase.Add(149*time.Hour)) {
		t.Errorf("report span = [%v, %v]", report.Start, report.End)
	}
}

func TestGridIntersectionSpan(t *testing.T) {
	a := steppedInstrument("9062", 0, 100, time.Hour, 5)
	b := steppedInstrument("9063", 50, 100, time.Hour, 8)
	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{a, b}}

	params := DefaultParams()
	params.Span = SpanIntersection
	out, _, err := NewGridder(params, nil).Grid(set)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Times) != 50 {
		t.Fatalf("got %d grid times, want 50", len(out.Times))
	}
	if !out.Times[0].Equal(testBase.Add(50 * time.Hour)) {
		t.Errorf("Times[0] = %v, want hour 50", out.Times[0])
	}
	temp := out.Variables[types.VarTemperature]
	for ti := range out.Times {
		for li := 0; li < 2; li++ {
			if math.IsNaN(temp[ti][li]) {
				t.Fatalf("NaN at [%d][%d] inside the intersection", ti, li)
			}
		}
	}
}

func TestGridDisjointIntersection(t *testing.T) {
	a := steppedInstrument("9062", 0, 100, time.Hour, 5)
	b := steppedInstrument("9063", 200, 100, time.Hour, 8)
	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{a, b}}

	params := DefaultParams()
	params.Span = SpanIntersection
	if _, _, err := NewGridder(params, nil).Grid(set); err == nil {
		t.Fatal("expected an error for disjoint instruments under intersection span")
	}
}

func TestGridIntervalFromMedianOfMedians(t *testing.T) {
	a := steppedInstrument("9062", 0, 200, time.Hour, 5)
	b := steppedInstrument("9063", 0, 100, 2*time.Hour, 8)
	c := steppedInstrument("9064", 0, 400, 30*time.Minute, 12)
	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{a, b, c}}

	out, report, err := NewGridder(DefaultParams(), nil).Grid(set)
	if err != nil {
		t.Fatal(err)
	}
	if out.Interval != time.Hour {
		t.Errorf("Interval = %v, want the median cadence 1h", out.Interval)
	}

	// 30-minute against 2-hour cadence is beyond the 2x advisory spread.
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "7200") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a rate-mismatch warning", report.Warnings)
	}
}

func TestGridLinearMidpoints(t *testing.T) {
	coarse := steppedInstrument("9062", 0, 50, 2*time.Hour, 0)
	for i := range coarse.Temperature {
		coarse.Temperature[i] = float64(2 * i) // one unit per hour
	}
	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{coarse}}

	params := DefaultParams()
	params.Interval = time.Hour
	out, _, err := NewGridder(params, nil).Grid(set)
	if err != nil {
		t.Fatal(err)
	}
	temp := out.Variables[types.VarTemperature]
	for ti := 0; ti < len(out.Times); ti++ {
		if want := float64(ti); math.Abs(temp[ti][0]-want) > 1e-9 {
			t.Fatalf("temp[%d] = %v, want %v", ti, temp[ti][0], want)
		}
	}
}

func TestGridMissingVariableLevel(t *testing.T) {
	a := steppedInstrument("9062", 0, 100, time.Hour, 5)
	a.Pressure = make([]float64, 100)
	for i := range a.Pressure {
		a.Pressure[i] = 1500
	}
	b := steppedInstrument("9063", 0, 100, time.Hour, 8) // no pressure channel
	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{a, b}}

	out, _, err := NewGridder(DefaultParams(), nil).Grid(set)
	if err != nil {
		t.Fatal(err)
	}
	pres := out.Variables[types.VarPressure]
	if pres == nil {
		t.Fatal("pressure missing from the gridded product")
	}
	if pres[10][0] != 1500 {
		t.Errorf("pressure[10][0] = %v, want 1500", pres[10][0])
	}
	if !math.IsNaN(pres[10][1]) {
		t.Errorf("pressure[10][1] = %v, want NaN for an instrument without the channel", pres[10][1])
	}
}

func TestGridWarnings(t *testing.T) {
	t.Run("declared but missing", func(t *testing.T) {
		a := steppedInstrument("9062", 0, 100, time.Hour, 5)
		set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{a}}
		params := DefaultParams()
		params.ExpectedSerials = []string{"9062", "9999"}
		_, report, err := NewGridder(params, nil).Grid(set)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, w := range report.Warnings {
			if strings.Contains(w, "9999") {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, want one for 9999", report.Warnings)
		}
	})

	t.Run("irregular cadence", func(t *testing.T) {
		jittery := &types.InstrumentSeries{Serial: "9062", Mooring: "wb4"}
		tm := testBase
		for i := 0; i < 100; i++ {
			jittery.Times = append(jittery.Times, tm)
			jittery.Temperature = append(jittery.Temperature, 5)
			if i%2 == 0 {
				tm = tm.Add(30 * time.Minute)
			} else {
				tm = tm.Add(90 * time.Minute)
			}
		}
		set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{jittery}}
		_, report, err := NewGridder(DefaultParams(), nil).Grid(set)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, w := range report.Warnings {
			if strings.Contains(w, "irregularity") {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, want an irregularity warning", report.Warnings)
		}
	})
}

func TestGridNoUsableInstruments(t *testing.T) {
	stub := &types.InstrumentSeries{
		Serial:      "9062",
		Times:       []time.Time{testBase},
		Temperature: []float64{5},
	}
	set := &types.MooringInstrumentSet{Name: "wb4", Instruments: []*types.InstrumentSeries{stub}}

	_, report, err := NewGridder(DefaultParams(), nil).Grid(set)
	if err == nil {
		t.Fatal("expected an error with no gridable instruments")
	}
	if len(report.Excluded) != 1 || report.Excluded[0] != "9062" {
		t.Errorf("Excluded = %v, want [9062]", report.Excluded)
	}
}
