package deployment

import (
	"math"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

func hourlySeries(serial string, values []float64) *types.InstrumentSeries {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, len(values))
	for i := range times {
		times[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return &types.InstrumentSeries{
		Serial:      serial,
		Type:        types.InstrumentMicrocat,
		Times:       times,
		Temperature: values,
	}
}

// coldBetween builds the classic mooring record shape: warm surface values
// before deployment and after recovery, cold stable values at depth between.
func coldBetween(n, coldStart, coldEnd int) []float64 {
	values := make([]float64, n)
	for i := range values {
		if i >= coldStart && i <= coldEnd {
			values[i] = 4.0 + 0.05*math.Sin(float64(i))
		} else {
			values[i] = 20.0
		}
	}
	return values
}

func TestDetectWarmColdWarm(t *testing.T) {
	s := hourlySeries("6123", coldBetween(1000, 50, 900))

	d := NewDetector(DefaultParams(), nil)
	win, err := d.Detect(s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}

	if win.Confidence != types.ConfidenceHigh {
		t.Errorf("confidence = %v, want high", win.Confidence)
	}

	wantStart := s.Times[50]
	wantEnd := s.Times[900]
	if absDuration(win.Start.Sub(wantStart)) > time.Hour {
		t.Errorf("start = %v, want %v +/- one sample", win.Start, wantStart)
	}
	if absDuration(win.End.Sub(wantEnd)) > time.Hour {
		t.Errorf("end = %v, want %v +/- one sample", win.End, wantEnd)
	}

	// Split value must separate the cold plateau from the surface values.
	if win.SplitValue < 4.1 || win.SplitValue > 20 {
		t.Errorf("split value = %v, want between cold plateau and surface", win.SplitValue)
	}
}

func TestDetectBoundaryOrdering(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{name: "centered deployment", values: coldBetween(1000, 50, 900)},
		{name: "late deployment", values: coldBetween(1000, 300, 980)},
		{name: "short surface tails", values: coldBetween(500, 10, 489)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := hourlySeries("7000", tt.values)
			d := NewDetector(DefaultParams(), nil)
			win, err := d.Detect(s)
			if err != nil {
				t.Fatalf("Detect() error: %v", err)
			}
			if !win.Start.Before(win.End) {
				t.Errorf("start %v not before end %v", win.Start, win.End)
			}
			first, last := s.Span()
			if win.Start.Before(first) || win.End.After(last) {
				t.Errorf("window [%v, %v] outside record span [%v, %v]", win.Start, win.End, first, last)
			}
		})
	}
}

func TestDetectBriefSurfacing(t *testing.T) {
	// A mid-deployment excursion splits the stable period; the detector must
	// keep the longest interior stable run.
	values := coldBetween(1000, 50, 900)
	for i := 410; i <= 420; i++ {
		values[i] = 20.0
	}
	s := hourlySeries("6124", values)

	d := NewDetector(DefaultParams(), nil)
	win, err := d.Detect(s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}

	// Longest run is the post-excursion segment starting at sample 421.
	if absDuration(win.Start.Sub(s.Times[421])) > time.Hour {
		t.Errorf("start = %v, want %v +/- one sample", win.Start, s.Times[421])
	}
	if absDuration(win.End.Sub(s.Times[900])) > time.Hour {
		t.Errorf("end = %v, want %v +/- one sample", win.End, s.Times[900])
	}
}

func TestDetectDeploymentBoundsStrategy(t *testing.T) {
	// Long pre-deployment surface period: the central-span window would be
	// contaminated by surface values, but the declared bounds are not.
	values := coldBetween(1000, 600, 950)
	s := hourlySeries("6125", values)
	deploy := s.Times[600]
	recover := s.Times[950]
	s.Deployment = &deploy
	s.Recovery = &recover

	d := NewDetector(DefaultParams(), nil)
	win, err := d.Detect(s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}

	if win.Confidence == types.ConfidenceNone {
		t.Fatalf("confidence = none, want a usable detection")
	}
	if absDuration(win.Start.Sub(s.Times[600])) > time.Hour {
		t.Errorf("start = %v, want %v +/- one sample", win.Start, s.Times[600])
	}
	if absDuration(win.End.Sub(s.Times[950])) > time.Hour {
		t.Errorf("end = %v, want %v +/- one sample", win.End, s.Times[950])
	}
}

func TestDetectInvertedThermalStructure(t *testing.T) {
	// Surface colder than depth: the warm side of the band is below it.
	values := make([]float64, 1000)
	for i := range values {
		if i >= 50 && i <= 900 {
			values[i] = 10.0 + 0.05*math.Sin(float64(i))
		} else {
			values[i] = 1.0
		}
	}
	s := hourlySeries("6126", values)

	d := NewDetector(DefaultParams(), nil)
	win, err := d.Detect(s)
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}

	if absDuration(win.Start.Sub(s.Times[50])) > time.Hour {
		t.Errorf("start = %v, want %v +/- one sample", win.Start, s.Times[50])
	}
	if win.SplitValue >= 10.0 {
		t.Errorf("split value = %v, want below the stable plateau", win.SplitValue)
	}
}

func TestDetectDegenerateInputs(t *testing.T) {
	d := NewDetector(DefaultParams(), nil)

	t.Run("empty series is an error", func(t *testing.T) {
		if _, err := d.Detect(hourlySeries("x", nil)); err == nil {
			t.Error("Detect() on empty series: expected error")
		}
	})

	t.Run("all NaN yields low confidence full bounds", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = math.NaN()
		}
		s := hourlySeries("x", values)
		win, err := d.Detect(s)
		if err != nil {
			t.Fatalf("Detect() error: %v", err)
		}
		if win.Confidence != types.ConfidenceLow {
			t.Errorf("confidence = %v, want low", win.Confidence)
		}
		if !win.Start.Equal(s.Times[0]) || !win.End.Equal(s.Times[len(s.Times)-1]) {
			t.Error("all-NaN series must keep full record bounds")
		}
	})

	t.Run("near constant yields low confidence and no trim", func(t *testing.T) {
		values := make([]float64, 500)
		for i := range values {
			values[i] = 4.0 + 0.001*math.Sin(float64(i))
		}
		s := hourlySeries("x", values)
		win, err := d.Detect(s)
		if err != nil {
			t.Fatalf("Detect() error: %v", err)
		}
		if win.Confidence != types.ConfidenceLow {
			t.Errorf("confidence = %v, want low", win.Confidence)
		}
		if !win.Start.Equal(s.Times[0]) || !win.End.Equal(s.Times[len(s.Times)-1]) {
			t.Error("near-constant series must keep full record bounds")
		}
	})

	t.Run("shorter than debounce yields lowest confidence", func(t *testing.T) {
		// One-minute cadence with a 1800 s dwell needs 30 samples.
		base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		s := &types.InstrumentSeries{
			Serial: "x",
			Times: []time.Time{
				base, base.Add(time.Minute), base.Add(2 * time.Minute),
				base.Add(3 * time.Minute), base.Add(4 * time.Minute),
			},
			Temperature: []float64{4, 4, 4, 4, 4},
		}
		win, err := d.Detect(s)
		if err != nil {
			t.Fatalf("Detect() error: %v", err)
		}
		if win.Confidence != types.ConfidenceNone {
			t.Errorf("confidence = %v, want none", win.Confidence)
		}
	})
}

func TestBestStepChange(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected int
		ok       bool
	}{
		{
			name:     "clean step",
			values:   []float64{1, 1, 1, 5, 5, 5},
			expected: 3,
			ok:       true,
		},
		{
			name:     "noisy step",
			values:   []float64{1.1, 0.9, 1.0, 1.05, 5.1, 4.9, 5.0, 5.05},
			expected: 4,
			ok:       true,
		},
		{
			name:   "too short",
			values: []float64{1, 5, 5},
			ok:     false,
		},
		{
			name:   "NaN disables refinement",
			values: []float64{1, 1, math.NaN(), 5, 5, 5},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := bestStepChange(tt.values)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && k != tt.expected {
				t.Errorf("split = %d, want %d", k, tt.expected)
			}
		})
	}
}

func TestLongestRun(t *testing.T) {
	mask := []bool{false, true, true, false, true, true, true, true, false, true}

	r, ok := longestRun(mask, 2)
	if !ok {
		t.Fatal("longestRun found nothing")
	}
	if r.start != 4 || r.end != 8 {
		t.Errorf("run = [%d, %d), want [4, 8)", r.start, r.end)
	}

	if _, ok := longestRun(mask, 5); ok {
		t.Error("longestRun with minLen 5 should find nothing")
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
