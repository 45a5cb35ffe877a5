package filter

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/series"
	"github.com/oceanobs/moorproc/internal/types"
	"gonum.org/v1/gonum/stat"
)

var testBase = time.Date(2016, time.September, 1, 0, 0, 0, 0, time.UTC)

func hourlyTimes(n int) []time.Time {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = testBase.Add(time.Duration(i) * time.Hour)
	}
	return times
}

// slowSignal has a 20-day period, well inside the 2-day-cutoff passband.
func slowSignal(i int) float64 {
	return 5 * math.Sin(2*math.Pi*float64(i)/480)
}

// fastSignal has a 6-hour period, far into the stopband.
func fastSignal(i int) float64 {
	return math.Sin(2 * math.Pi * float64(i) / 6)
}

func TestFilterSeriesSeparatesTimescales(t *testing.T) {
	n := 1440
	times := hourlyTimes(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 10 + slowSignal(i) + fastSignal(i)
	}

	f := NewFilter(DefaultParams(), nil)
	out, warnings, err := f.Series(times, x)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	for i := 72; i < n-72; i++ {
		if want := 10 + slowSignal(i); math.Abs(out[i]-want) > 0.05 {
			t.Fatalf("out[%d] = %v, want %v within 0.05", i, out[i], want)
		}
	}

	// Smoothing must not add sample-to-sample variability.
	if got, in := stat.Variance(series.Diff(out), nil), stat.Variance(series.Diff(x), nil); got > in {
		t.Errorf("first-difference variance grew from %v to %v", in, got)
	}
}

func TestFilterSeriesGapSplitsSegments(t *testing.T) {
	n := 720
	times := make([]time.Time, n)
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		hour := i
		if i >= 360 {
			hour = i + 120 // 5-day recovery gap between the two halves
		}
		times[i] = testBase.Add(time.Duration(hour) * time.Hour)
		x[i] = 10 + fastSignal(hour)
	}

	f := NewFilter(DefaultParams(), nil)
	out, warnings, err := f.Series(times, x)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	for i, v := range out {
		if math.IsNaN(v) {
			t.Fatalf("out[%d] is NaN for finite input", i)
		}
	}
	check := func(lo, hi int) {
		t.Helper()
		for i := lo; i < hi; i++ {
			if math.Abs(out[i]-10) > 0.05 {
				t.Fatalf("out[%d] = %v, want ~10", i, out[i])
			}
		}
	}
	check(24, 336)
	check(384, 696)
}

func TestFilterSeriesNaNRunPreserved(t *testing.T) {
	n := 600
	times := hourlyTimes(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 10 + slowSignal(i) + fastSignal(i)
	}
	for i := 300; i < 360; i++ {
		x[i] = math.NaN()
	}

	f := NewFilter(DefaultParams(), nil)
	out, _, err := f.Series(times, x)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if inGap := i >= 300 && i < 360; inGap != math.IsNaN(out[i]) {
			t.Fatalf("out[%d] NaN-ness does not match input", i)
		}
	}
	for i := 72; i < 228; i++ {
		if want := 10 + slowSignal(i); math.Abs(out[i]-want) > 0.05 {
			t.Fatalf("out[%d] = %v, want %v within 0.05", i, out[i], want)
		}
	}
	for i := 432; i < 528; i++ {
		if want := 10 + slowSignal(i); math.Abs(out[i]-want) > 0.05 {
			t.Fatalf("out[%d] = %v, want %v within 0.05", i, out[i], want)
		}
	}
}

func TestFilterSeriesNyquistError(t *testing.T) {
	n := 150
	times := make([]time.Time, n)
	x := make([]float64, n)
	for i := range times {
		times[i] = testBase.Add(time.Duration(i) * 24 * time.Hour)
		x[i] = float64(i)
	}

	f := NewFilter(DefaultParams(), nil)
	if _, _, err := f.Series(times, x); err == nil {
		t.Fatal("expected a Nyquist configuration error for daily sampling with a 2-day cutoff")
	}
}

func TestFilterSeriesShortSeriesPassthrough(t *testing.T) {
	n := 80
	times := hourlyTimes(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 10 + fastSignal(i)
	}

	f := NewFilter(DefaultParams(), nil)
	out, warnings, err := f.Series(times, x)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "80") {
		t.Fatalf("warnings = %v, want one naming the sample count", warnings)
	}
	for i := range x {
		if out[i] != x[i] {
			t.Fatalf("out[%d] = %v, want untouched %v", i, out[i], x[i])
		}
	}
}

func TestFilterSeriesShortSegmentPassthrough(t *testing.T) {
	n := 150
	times := hourlyTimes(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = 10 + fastSignal(i)
	}
	x[120] = math.NaN()

	f := NewFilter(DefaultParams(), nil)
	out, warnings, err := f.Series(times, x)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "29") {
		t.Fatalf("warnings = %v, want one for the 29-sample tail", warnings)
	}

	// The long head segment is filtered, the short tail passes through.
	if math.Abs(out[61]-10) > 0.05 {
		t.Errorf("out[61] = %v, want ~10 after filtering", out[61])
	}
	if math.Abs(x[61]-10) < 0.8 {
		t.Fatalf("fixture broken: x[61] = %v should carry the fast signal", x[61])
	}
	if !math.IsNaN(out[120]) {
		t.Errorf("out[120] = %v, want NaN", out[120])
	}
	for i := 121; i < n; i++ {
		if out[i] != x[i] {
			t.Fatalf("out[%d] = %v, want untouched %v", i, out[i], x[i])
		}
	}
}

func TestFilterInstrument(t *testing.T) {
	n := 400
	inst := &types.InstrumentSeries{
		Mooring: "wb4",
		Serial:  "9062",
		Type:    types.InstrumentMicrocat,
		Times:   hourlyTimes(n),
	}
	inst.Temperature = make([]float64, n)
	inst.Pressure = make([]float64, n)
	for i := 0; i < n; i++ {
		inst.Temperature[i] = 10 + fastSignal(i)
		inst.Pressure[i] = 2000
	}
	rawTemp := append([]float64(nil), inst.Temperature...)

	f := NewFilter(DefaultParams(), nil)
	out, warnings, err := f.Instrument(inst)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	for i := 48; i < n-48; i++ {
		if math.Abs(out.Temperature[i]-10) > 0.05 {
			t.Fatalf("Temperature[%d] = %v, want ~10", i, out.Temperature[i])
		}
		if math.Abs(out.Pressure[i]-2000) > 1e-6 {
			t.Fatalf("Pressure[%d] = %v, want 2000", i, out.Pressure[i])
		}
	}
	if inst.Temperature[61] != rawTemp[61] {
		t.Error("input series was mutated")
	}
}

func TestFilterInstrumentSelectedVariables(t *testing.T) {
	n := 400
	inst := &types.InstrumentSeries{Serial: "9062", Times: hourlyTimes(n)}
	inst.Temperature = make([]float64, n)
	inst.Pressure = make([]float64, n)
	for i := 0; i < n; i++ {
		inst.Temperature[i] = 10 + fastSignal(i)
		inst.Pressure[i] = 2000 + fastSignal(i)
	}

	params := DefaultParams()
	params.Variables = []string{types.VarTemperature}
	out, _, err := NewFilter(params, nil).Instrument(inst)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out.Temperature[61]-10) > 0.05 {
		t.Errorf("Temperature[61] = %v, want filtered ~10", out.Temperature[61])
	}
	for i := range out.Pressure {
		if out.Pressure[i] != inst.Pressure[i] {
			t.Fatalf("Pressure[%d] changed, want untouched", i)
		}
	}
}
