package vertical

import (
	"math"
	"testing"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
)

var profTime = time.Date(2016, time.September, 15, 6, 0, 0, 0, time.UTC)

// uniformClim fills every cell of a standard table with one gradient.
func uniformClim(g float64) *Climatology {
	c := NewClimatology(-2, 0.5, 75)
	for m := time.January; m <= time.December; m++ {
		for b := 0; b < 75; b++ {
			c.SetGradient(m, b, g)
		}
	}
	return c
}

func TestProfileObservedRoundTrip(t *testing.T) {
	ip := NewInterpolator(uniformClim(-0.005), DefaultParams(), nil)
	p := ip.Profile(profTime, []Anchor{
		{Pressure: 100, Value: 18},
		{Pressure: 1000, Value: 8},
		{Pressure: 3000, Value: 3},
	})

	if len(p.Pressures) != 251 || p.Pressures[250] != 5000 {
		t.Fatalf("grid = %d points to %v dbar, want 251 to 5000", len(p.Pressures), p.Pressures[len(p.Pressures)-1])
	}
	checks := []struct {
		idx  int
		want float64
	}{{5, 18}, {50, 8}, {150, 3}}
	for _, c := range checks {
		if p.Values[c.idx] != c.want {
			t.Errorf("Values[%d] = %v, want exact copy %v", c.idx, p.Values[c.idx], c.want)
		}
		if p.Provenance[c.idx] != types.ProvObserved {
			t.Errorf("Provenance[%d] = %v, want observed", c.idx, p.Provenance[c.idx])
		}
	}
}

func TestProfileInteriorBlend(t *testing.T) {
	g := -0.005
	ip := NewInterpolator(uniformClim(g), DefaultParams(), nil)
	p := ip.Profile(profTime, []Anchor{
		{Pressure: 100, Value: 18},
		{Pressure: 1000, Value: 8},
	})

	// With a uniform gradient the Euler legs are exact, so the blend has a
	// closed form against both anchors.
	for k := 6; k < 50; k++ {
		pk := p.Pressures[k]
		wA := (1000 - pk) / 900
		down := 18 + g*(pk-100)
		up := 8 + g*(pk-1000)
		want := wA*down + (1-wA)*up
		if math.Abs(p.Values[k]-want) > 1e-9 {
			t.Fatalf("Values[%d] = %v, want %v", k, p.Values[k], want)
		}
		if p.Provenance[k] != types.ProvInterpolated {
			t.Fatalf("Provenance[%d] = %v, want interpolated", k, p.Provenance[k])
		}
	}
}

func TestProfileExtrapolation(t *testing.T) {
	g := -0.005
	ip := NewInterpolator(uniformClim(g), DefaultParams(), nil)
	p := ip.Profile(profTime, []Anchor{
		{Pressure: 100, Value: 18},
		{Pressure: 3000, Value: 3},
	})

	if want := 18.5; math.Abs(p.Values[0]-want) > 1e-9 {
		t.Errorf("surface value = %v, want %v", p.Values[0], want)
	}
	for k := 0; k < 5; k++ {
		if p.Provenance[k] != types.ProvExtrapolated {
			t.Errorf("Provenance[%d] = %v, want extrapolated", k, p.Provenance[k])
		}
	}
	if want := -7.0; math.Abs(p.Values[250]-want) > 1e-9 {
		t.Errorf("bottom value = %v, want %v", p.Values[250], want)
	}
	if p.Provenance[200] != types.ProvExtrapolated {
		t.Errorf("Provenance[200] = %v, want extrapolated", p.Provenance[200])
	}
}

func TestProfileLinearFallback(t *testing.T) {
	ip := NewInterpolator(nil, DefaultParams(), nil)
	p := ip.Profile(profTime, []Anchor{
		{Pressure: 100, Value: 18},
		{Pressure: 1000, Value: 8},
	})

	for k := 6; k < 50; k++ {
		pk := p.Pressures[k]
		want := 18 + (pk-100)/900*(8-18)
		if math.Abs(p.Values[k]-want) > 1e-9 {
			t.Fatalf("Values[%d] = %v, want linear %v", k, p.Values[k], want)
		}
		if p.Provenance[k] != types.ProvInterpolatedLinear {
			t.Fatalf("Provenance[%d] = %v, want interpolated_linear", k, p.Provenance[k])
		}
	}
	for k := 0; k < 5; k++ {
		if p.Values[k] != 18 || p.Provenance[k] != types.ProvExtrapolatedLinear {
			t.Fatalf("surface fallback at %d = %v (%v), want clamped 18", k, p.Values[k], p.Provenance[k])
		}
	}
	for k := 51; k <= 250; k += 50 {
		if p.Values[k] != 8 || p.Provenance[k] != types.ProvExtrapolatedLinear {
			t.Fatalf("deep fallback at %d = %v (%v), want clamped 8", k, p.Values[k], p.Provenance[k])
		}
	}
}

func TestProfilePartialClimatology(t *testing.T) {
	// Cells defined at and above 5C only; integrating downward cools out of
	// the defined range partway to the bottom.
	c := NewClimatology(-2, 0.5, 75)
	for m := time.January; m <= time.December; m++ {
		for b := c.Bin(5.0); b < 75; b++ {
			c.SetGradient(m, b, -0.005)
		}
	}
	ip := NewInterpolator(c, DefaultParams(), nil)
	p := ip.Profile(profTime, []Anchor{{Pressure: 4000, Value: 5.05}})

	if math.Abs(p.Values[201]-4.95) > 1e-9 || p.Provenance[201] != types.ProvExtrapolated {
		t.Errorf("Values[201] = %v (%v), want 4.95 extrapolated", p.Values[201], p.Provenance[201])
	}
	for k := 202; k <= 250; k++ {
		if math.Abs(p.Values[k]-4.95) > 1e-9 || p.Provenance[k] != types.ProvExtrapolatedLinear {
			t.Fatalf("Values[%d] = %v (%v), want 4.95 clamped", k, p.Values[k], p.Provenance[k])
		}
	}
	// Warming upward stays inside the defined bins all the way to the
	// surface.
	if want := 5.05 + 0.1*200; math.Abs(p.Values[0]-want) > 1e-9 || p.Provenance[0] != types.ProvExtrapolated {
		t.Errorf("Values[0] = %v (%v), want %v extrapolated", p.Values[0], p.Provenance[0], want)
	}
}

func TestProfileNoAnchors(t *testing.T) {
	ip := NewInterpolator(uniformClim(-0.005), DefaultParams(), nil)
	p := ip.Profile(profTime, nil)
	for i := range p.Values {
		if !math.IsNaN(p.Values[i]) || p.Provenance[i] != types.ProvMissing {
			t.Fatalf("point %d = %v (%v), want missing", i, p.Values[i], p.Provenance[i])
		}
	}
}

func TestProfileAnchorSnapping(t *testing.T) {
	ip := NewInterpolator(uniformClim(-0.005), DefaultParams(), nil)
	p := ip.Profile(profTime, []Anchor{
		{Pressure: 98, Value: 18},    // snaps to 100
		{Pressure: 102, Value: 17.5}, // same grid point, equal distance, first wins
		{Pressure: 3000, Value: 3},
		{Pressure: 5100, Value: 2}, // beyond the grid, clamps to the last point
	})

	if p.Values[5] != 18 {
		t.Errorf("Values[5] = %v, want the first of the tied anchors", p.Values[5])
	}
	if p.Values[150] != 3 {
		t.Errorf("Values[150] = %v, want 3", p.Values[150])
	}
	if p.Values[250] != 2 || p.Provenance[250] != types.ProvObserved {
		t.Errorf("Values[250] = %v (%v), want clamped observed 2", p.Values[250], p.Provenance[250])
	}
}

func TestMooringProfiles(t *testing.T) {
	nan := math.NaN()
	g := &types.GriddedMooring{
		Mooring: "wb4",
		Times:   []time.Time{profTime, profTime.Add(12 * time.Hour)},
		Depths:  []float64{100, 1000},
		Serials: []string{"9062", "9063"},
		Variables: map[string][][]float64{
			types.VarTemperature: {{18, 8}, {nan, 8.2}},
			types.VarPressure:    {{120, nan}, {118, 1005}},
		},
	}

	ip := NewInterpolator(uniformClim(-0.005), DefaultParams(), nil)
	profiles, err := ip.Mooring(g)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}

	// First slice: the shallow anchor rides at its measured pressure 120,
	// the deep one falls back to nominal depth.
	if profiles[0].Values[6] != 18 || profiles[0].Provenance[6] != types.ProvObserved {
		t.Errorf("slice 0 at 120 dbar = %v (%v), want observed 18", profiles[0].Values[6], profiles[0].Provenance[6])
	}
	if profiles[0].Values[50] != 8 {
		t.Errorf("slice 0 at 1000 dbar = %v, want 8", profiles[0].Values[50])
	}

	// Second slice: the shallow temperature is missing, so only the deep
	// anchor contributes and the upper column is extrapolated.
	if profiles[1].Values[50] != 8.2 || profiles[1].Provenance[50] != types.ProvObserved {
		t.Errorf("slice 1 at 1005 dbar = %v (%v), want observed 8.2", profiles[1].Values[50], profiles[1].Provenance[50])
	}
	if profiles[1].Provenance[6] != types.ProvExtrapolated {
		t.Errorf("slice 1 upper column = %v, want extrapolated", profiles[1].Provenance[6])
	}

	t.Run("missing variable", func(t *testing.T) {
		params := DefaultParams()
		params.Variable = types.VarSalinity
		if _, err := NewInterpolator(nil, params, nil).Mooring(g); err == nil {
			t.Error("expected an error for an absent variable")
		}
	})
}

func TestTwelveHourly(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []time.Time
	}{
		{
			"mid-morning start",
			time.Date(2016, 9, 1, 5, 0, 0, 0, time.UTC),
			time.Date(2016, 9, 3, 1, 0, 0, 0, time.UTC),
			[]time.Time{
				time.Date(2016, 9, 1, 12, 0, 0, 0, time.UTC),
				time.Date(2016, 9, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2016, 9, 2, 12, 0, 0, 0, time.UTC),
				time.Date(2016, 9, 3, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			"start on a boundary",
			time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2016, 9, 1, 12, 0, 0, 0, time.UTC),
			[]time.Time{
				time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2016, 9, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		{
			"empty range",
			time.Date(2016, 9, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC),
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TwelveHourly(tt.start, tt.end)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d times, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("time %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
