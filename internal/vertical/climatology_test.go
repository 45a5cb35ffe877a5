package vertical

import (
	"math"
	"testing"
	"time"
)

func TestClimatologyBinClamping(t *testing.T) {
	c := NewClimatology(-2, 0.5, 75)
	c.SetGradient(time.January, 0, -0.111)
	c.SetGradient(time.January, 24, -0.5)
	c.SetGradient(time.January, 74, -0.999)

	tests := []struct {
		name string
		temp float64
		want float64
	}{
		{"below range clamps to first bin", -50, -0.111},
		{"above range clamps to last bin", 99, -0.999},
		{"interior bin", 10.2, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Gradient(time.January, tt.temp); got != tt.want {
				t.Errorf("Gradient(January, %v) = %v, want %v", tt.temp, got, tt.want)
			}
		})
	}

	if got := c.Gradient(time.January, math.NaN()); !math.IsNaN(got) {
		t.Errorf("Gradient with NaN temperature = %v, want NaN", got)
	}
	if got := c.Gradient(time.February, 10.2); !math.IsNaN(got) {
		t.Errorf("empty cell = %v, want NaN", got)
	}
	var missing *Climatology
	if got := missing.Gradient(time.January, 10); !math.IsNaN(got) {
		t.Errorf("nil table = %v, want NaN", got)
	}
}

func TestBuildClimatology(t *testing.T) {
	cast := func(month time.Month) CTDProfile {
		p := CTDProfile{Time: time.Date(2010, month, 10, 0, 0, 0, 0, time.UTC)}
		for press := 0.0; press <= 2000; press += 10 {
			p.Pressure = append(p.Pressure, press)
			p.Temperature = append(p.Temperature, 20-0.008*press)
		}
		return p
	}

	var casts []CTDProfile
	for i := 0; i < 6; i++ {
		casts = append(casts, cast(time.January))
	}
	for i := 0; i < 3; i++ {
		casts = append(casts, cast(time.March))
	}

	clim, err := BuildClimatology(casts, DefaultBuilderParams(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := clim.Gradient(time.January, 10); math.Abs(got-(-0.008)) > 1e-12 {
		t.Errorf("January gradient at 10C = %v, want -0.008", got)
	}
	// Only three March casts, below the five-cast minimum.
	if got := clim.Gradient(time.March, 10); !math.IsNaN(got) {
		t.Errorf("March gradient = %v, want NaN", got)
	}
	// No cast reaches 25C.
	if got := clim.Gradient(time.January, 25); !math.IsNaN(got) {
		t.Errorf("January gradient at 25C = %v, want NaN", got)
	}
	if got := clim.Gradient(time.July, 10); !math.IsNaN(got) {
		t.Errorf("July gradient = %v, want NaN", got)
	}
}

func TestBuildClimatologyNoCasts(t *testing.T) {
	if _, err := BuildClimatology(nil, DefaultBuilderParams(), nil); err == nil {
		t.Fatal("expected an error with no casts")
	}
}

func TestClimatologyCellsRoundTrip(t *testing.T) {
	c := NewClimatology(-2, 0.5, 75)
	c.SetGradient(time.April, 7, -0.004)
	c.SetGradient(time.December, 74, 0.002)

	rebuilt, err := ClimatologyFromCells(c.TempMin(), c.TempStep(), c.Bins(), c.Cells())
	if err != nil {
		t.Fatal(err)
	}
	if got := rebuilt.Gradient(time.April, c.TempMin()+7.2*c.TempStep()); got != -0.004 {
		t.Errorf("April cell = %v, want -0.004", got)
	}
	if got := rebuilt.Gradient(time.December, 99); got != 0.002 {
		t.Errorf("December cell = %v, want 0.002", got)
	}
	if got := rebuilt.Gradient(time.April, -2); !math.IsNaN(got) {
		t.Errorf("untouched cell = %v, want NaN", got)
	}

	if _, err := ClimatologyFromCells(-2, 0.5, 75, make([]float64, 10)); err == nil {
		t.Error("expected an error for a truncated cell slice")
	}
}
