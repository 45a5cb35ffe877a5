// Package vertical fills the water column between and beyond a mooring's
// instruments. A monthly, temperature-binned climatology of the vertical
// property gradient drives small forward-Euler integration steps away from
// each observed anchor; where the climatology is empty the package degrades
// to plain linear interpolation with downgraded provenance instead of
// failing.
package vertical

import (
	"fmt"
	"math"
	"time"

	"github.com/oceanobs/moorproc/internal/series"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Climatology is a gradient lookup table: d(property)/d(pressure) in units
// per dbar, by calendar month and temperature bin. Empty cells are NaN.
type Climatology struct {
	tempMin  float64
	tempStep float64
	bins     int
	cells    *mat.Dense // 12 rows, one per month
}

// NewClimatology returns an all-empty table with the given temperature
// binning.
func NewClimatology(tempMin, tempStep float64, bins int) *Climatology {
	c := &Climatology{tempMin: tempMin, tempStep: tempStep, bins: bins}
	c.cells = mat.NewDense(12, bins, nil)
	for m := 0; m < 12; m++ {
		for b := 0; b < bins; b++ {
			c.cells.Set(m, b, math.NaN())
		}
	}
	return c
}

// Bin maps a temperature to its bin index, clamping beyond-range values to
// the edge bins.
func (c *Climatology) Bin(temp float64) int {
	bin := int(math.Floor((temp - c.tempMin) / c.tempStep))
	if bin < 0 {
		return 0
	}
	if bin >= c.bins {
		return c.bins - 1
	}
	return bin
}

// Gradient returns the cell value for the month and temperature. A nil
// table, an empty cell, or a NaN temperature all yield NaN, which callers
// treat as "no climatology here".
func (c *Climatology) Gradient(month time.Month, temp float64) float64 {
	if c == nil || math.IsNaN(temp) {
		return math.NaN()
	}
	return c.cells.At(int(month)-1, c.Bin(temp))
}

// SetGradient stores one cell value.
func (c *Climatology) SetGradient(month time.Month, bin int, gradient float64) {
	c.cells.Set(int(month)-1, bin, gradient)
}

// TempMin returns the lower edge of the first temperature bin.
func (c *Climatology) TempMin() float64 { return c.tempMin }

// TempStep returns the temperature bin width.
func (c *Climatology) TempStep() float64 { return c.tempStep }

// Bins returns the number of temperature bins.
func (c *Climatology) Bins() int { return c.bins }

// Cells returns a row-major copy of the table, months outermost, for
// serialization.
func (c *Climatology) Cells() []float64 {
	out := make([]float64, 0, 12*c.bins)
	for m := 0; m < 12; m++ {
		out = append(out, c.cells.RawRowView(m)...)
	}
	return out
}

// ClimatologyFromCells rebuilds a table from its serialized form.
func ClimatologyFromCells(tempMin, tempStep float64, bins int, cells []float64) (*Climatology, error) {
	if bins <= 0 || tempStep <= 0 {
		return nil, fmt.Errorf("invalid climatology shape: %d bins, step %g", bins, tempStep)
	}
	if len(cells) != 12*bins {
		return nil, fmt.Errorf("climatology has %d cells, want %d", len(cells), 12*bins)
	}
	c := &Climatology{tempMin: tempMin, tempStep: tempStep, bins: bins}
	c.cells = mat.NewDense(12, bins, append([]float64(nil), cells...))
	return c, nil
}

// CTDProfile is one historical hydrographic cast used to fit a climatology.
type CTDProfile struct {
	Time        time.Time
	Pressure    []float64 // dbar, increasing
	Temperature []float64
}

// BuilderParams holds the tunable parameters for climatology fitting.
type BuilderParams struct {
	// TempMin and TempMax bound the binned temperature range; samples
	// outside it are ignored.
	TempMin float64
	TempMax float64

	// TempStep is the bin width.
	TempStep float64

	// MinCasts is the minimum number of distinct casts contributing to a
	// cell; sparser cells stay empty.
	MinCasts int
}

// DefaultBuilderParams returns the standard fitting parameters.
func DefaultBuilderParams() BuilderParams {
	return BuilderParams{TempMin: -2, TempMax: 35.5, TempStep: 0.5, MinCasts: 5}
}

// BuildClimatology fits a gradient table from historical casts. Each cast
// contributes its central-difference dT/dP samples to the (month,
// temperature-bin) cells its temperatures fall into; a cell's value is the
// mean over all contributing samples.
func BuildClimatology(profiles []CTDProfile, p BuilderParams, logger *zap.SugaredLogger) (*Climatology, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no casts to fit a climatology from")
	}
	bins := int(math.Round((p.TempMax - p.TempMin) / p.TempStep))
	if bins <= 0 {
		return nil, fmt.Errorf("invalid temperature range %g..%g step %g", p.TempMin, p.TempMax, p.TempStep)
	}

	sums := make([][]float64, 12)
	counts := make([][]int, 12)
	castCounts := make([][]int, 12)
	for m := 0; m < 12; m++ {
		sums[m] = make([]float64, bins)
		counts[m] = make([]int, bins)
		castCounts[m] = make([]int, bins)
	}

	used := 0
	for _, cast := range profiles {
		if len(cast.Pressure) < 2 || len(cast.Pressure) != len(cast.Temperature) {
			continue
		}
		grad := series.Gradient(cast.Temperature, cast.Pressure)
		row := int(cast.Time.UTC().Month()) - 1
		touched := make(map[int]bool)
		for i, temp := range cast.Temperature {
			if math.IsNaN(temp) || math.IsNaN(grad[i]) {
				continue
			}
			bin := int(math.Floor((temp - p.TempMin) / p.TempStep))
			if bin < 0 || bin >= bins {
				continue
			}
			sums[row][bin] += grad[i]
			counts[row][bin]++
			touched[bin] = true
		}
		if len(touched) > 0 {
			used++
			for bin := range touched {
				castCounts[row][bin]++
			}
		}
	}

	clim := NewClimatology(p.TempMin, p.TempStep, bins)
	filled := 0
	for m := 0; m < 12; m++ {
		for b := 0; b < bins; b++ {
			if castCounts[m][b] >= p.MinCasts && counts[m][b] > 0 {
				clim.cells.Set(m, b, sums[m][b]/float64(counts[m][b]))
				filled++
			}
		}
	}

	logger.Infow("fitted gradient climatology",
		"casts", used, "bins", bins, "filled_cells", filled)
	return clim, nil
}
