// Package timegrid resamples a mooring's instruments onto one shared regular
// time axis. The grid interval is the median of the per-instrument median
// sampling intervals, values are linearly interpolated with no extrapolation
// beyond an instrument's native range, and the instruments stack into a level
// dimension carrying metadata in level-indexed side arrays.
package timegrid

import (
	"fmt"
	"math"
	"time"

	"github.com/oceanobs/moorproc/internal/series"
	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
)

// SpanMode selects how the shared axis covers the instruments' time ranges.
type SpanMode string

const (
	// SpanUnion covers the earliest to the latest sample of any instrument.
	SpanUnion SpanMode = "union"
	// SpanIntersection covers only the period where every instrument has data.
	SpanIntersection SpanMode = "intersection"
)

// Params holds the tunable parameters for common-grid interpolation.
type Params struct {
	// Variables names the variables to grid. Empty means every variable any
	// instrument carries.
	Variables []string

	// Span selects union or intersection coverage.
	Span SpanMode

	// Interval fixes the grid interval. Zero derives it as the median of
	// the per-instrument median sampling intervals.
	Interval time.Duration

	// ExpectedSerials lists instruments the mooring configuration declares.
	// Declared instruments absent from the input are warned about.
	ExpectedSerials []string

	// RateMismatchFactor is the spread between the fastest and slowest
	// instrument cadence beyond which a warning is emitted.
	RateMismatchFactor float64

	// IrregularityLimit is the interval std/median ratio beyond which an
	// instrument's cadence is flagged as too irregular for clean linear
	// interpolation.
	IrregularityLimit float64
}

// DefaultParams returns the standard gridding parameters.
func DefaultParams() Params {
	return Params{
		Span:               SpanUnion,
		RateMismatchFactor: 2,
		IrregularityLimit:  0.10,
	}
}

// Gridder builds GriddedMooring products.
type Gridder struct {
	params Params
	logger *zap.SugaredLogger
}

// NewGridder creates a Gridder with the given parameters.
func NewGridder(params Params, logger *zap.SugaredLogger) *Gridder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if params.Span == "" {
		params.Span = SpanUnion
	}
	if params.RateMismatchFactor <= 0 {
		params.RateMismatchFactor = 2
	}
	if params.IrregularityLimit <= 0 {
		params.IrregularityLimit = 0.10
	}
	return &Gridder{params: params, logger: logger}
}

// Grid interpolates every usable instrument onto a shared regular time axis.
// Instruments with fewer than two samples are excluded and reported; the
// operation fails only when no axis can be constructed at all.
func (g *Gridder) Grid(set *types.MooringInstrumentSet) (*types.GriddedMooring, *types.GridReport, error) {
	usable, report, err := g.usable(set)
	if err != nil {
		return nil, report, err
	}

	interval := g.params.Interval
	if interval <= 0 {
		medians := make([]float64, len(report.Instruments))
		for i := range report.Instruments {
			medians[i] = report.Instruments[i].MedianInterval.Seconds()
		}
		interval = time.Duration(series.Median(medians) * float64(time.Second))
	}
	if interval <= 0 {
		return nil, report, fmt.Errorf("mooring %s: derived grid interval is not positive", set.Name)
	}

	start, end, err := g.span(usable)
	if err != nil {
		return nil, report, fmt.Errorf("mooring %s: %w", set.Name, err)
	}

	n := int(end.Sub(start)/interval) + 1
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * interval)
	}

	out := g.assemble(set.Name, usable, times, interval)
	report.Interval = interval
	report.Start = start
	report.End = end
	g.logger.Infow("built common time grid",
		"mooring", set.Name, "levels", out.Levels(), "samples", n,
		"interval", interval, "span", g.params.Span, "warnings", len(report.Warnings))
	return out, report, nil
}

// GridAt interpolates every usable instrument onto a caller-supplied axis,
// for products that live on a fixed external grid rather than the mooring's
// native cadence. The axis must be strictly increasing.
func (g *Gridder) GridAt(set *types.MooringInstrumentSet, times []time.Time) (*types.GriddedMooring, *types.GridReport, error) {
	usable, report, err := g.usable(set)
	if err != nil {
		return nil, report, err
	}
	if len(times) == 0 {
		return nil, report, fmt.Errorf("mooring %s: empty target axis", set.Name)
	}

	var interval time.Duration
	if len(times) > 1 {
		interval = times[1].Sub(times[0])
	}

	out := g.assemble(set.Name, usable, times, interval)
	report.Interval = interval
	report.Start = times[0]
	report.End = times[len(times)-1]
	g.logger.Infow("built grid on fixed axis",
		"mooring", set.Name, "levels", out.Levels(), "samples", len(times),
		"interval", interval, "warnings", len(report.Warnings))
	return out, report, nil
}

// usable filters the set down to gridable instruments and starts the report
// with per-instrument timing diagnostics.
func (g *Gridder) usable(set *types.MooringInstrumentSet) ([]*types.InstrumentSeries, *types.GridReport, error) {
	report := &types.GridReport{Mooring: set.Name}

	present := make(map[string]bool, len(set.Instruments))
	var usable []*types.InstrumentSeries
	for _, inst := range set.Instruments {
		present[inst.Serial] = true
		if inst.Len() < 2 {
			report.Excluded = append(report.Excluded, inst.Serial)
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("instrument %s: %d samples, too few to grid", inst.Serial, inst.Len()))
			continue
		}
		usable = append(usable, inst)
	}
	for _, serial := range g.params.ExpectedSerials {
		if !present[serial] {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("instrument %s: declared in configuration but missing from the input set", serial))
		}
	}
	if len(usable) == 0 {
		return nil, report, fmt.Errorf("mooring %s: no instrument has enough samples to grid", set.Name)
	}

	stats := make([]types.TimingStats, len(usable))
	medians := make([]float64, len(usable))
	for i, inst := range usable {
		stats[i] = timing(inst)
		medians[i] = stats[i].MedianInterval.Seconds()
		if stats[i].Irregularity > g.params.IrregularityLimit {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("instrument %s: sampling irregularity %.0f%% exceeds %.0f%%, linear interpolation may bias",
					inst.Serial, stats[i].Irregularity*100, g.params.IrregularityLimit*100))
		}
	}
	report.Instruments = stats

	if fastest, slowest := minMax(medians); slowest > g.params.RateMismatchFactor*fastest {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("sampling rates span %.0f s to %.0f s, more than %.1fx apart",
				fastest, slowest, g.params.RateMismatchFactor))
	}

	return usable, report, nil
}

// assemble interpolates the usable instruments onto the axis and stacks them
// into the level dimension with their metadata side arrays.
func (g *Gridder) assemble(mooring string, usable []*types.InstrumentSeries, times []time.Time, interval time.Duration) *types.GriddedMooring {
	names := g.params.Variables
	if len(names) == 0 {
		names = presentVariables(usable)
	}

	out := &types.GriddedMooring{
		Mooring:      mooring,
		Times:        times,
		Interval:     interval,
		Variables:    make(map[string][][]float64, len(names)),
		FlagMeanings: make(map[int16]string, len(usable)),
	}
	gridEpochs := series.EpochSeconds(times)
	for li, inst := range usable {
		out.Depths = append(out.Depths, inst.NominalDepth)
		out.Serials = append(out.Serials, inst.Serial)
		out.InstrumentTags = append(out.InstrumentTags, inst.Type)
		out.AppliedOffsets = append(out.AppliedOffsets, inst.ClockOffset)
		out.InstrumentFlags = append(out.InstrumentFlags, int16(li+1))
		out.FlagMeanings[int16(li+1)] = inst.Serial
	}

	for _, name := range names {
		matrix := make([][]float64, len(times))
		for ti := range matrix {
			matrix[ti] = make([]float64, len(usable))
		}
		for li, inst := range usable {
			values := inst.Var(name)
			if values == nil {
				for ti := range matrix {
					matrix[ti][li] = math.NaN()
				}
				continue
			}
			col := series.Interp(gridEpochs, series.EpochSeconds(inst.Times), values)
			for ti := range matrix {
				matrix[ti][li] = col[ti]
			}
		}
		out.Variables[name] = matrix
	}

	return out
}

// span resolves the shared axis bounds for the usable instruments.
func (g *Gridder) span(usable []*types.InstrumentSeries) (time.Time, time.Time, error) {
	start, end := usable[0].Span()
	for _, inst := range usable[1:] {
		first, last := inst.Span()
		switch g.params.Span {
		case SpanIntersection:
			if first.After(start) {
				start = first
			}
			if last.Before(end) {
				end = last
			}
		default:
			if first.Before(start) {
				start = first
			}
			if last.After(end) {
				end = last
			}
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("instrument time ranges do not intersect")
	}
	return start, end, nil
}

// timing summarizes one instrument's native cadence.
func timing(inst *types.InstrumentSeries) types.TimingStats {
	intervals := series.Intervals(inst.Times)
	med := series.Median(intervals)
	lo, hi := minMax(intervals)
	st := types.TimingStats{
		Serial:         inst.Serial,
		Samples:        inst.Len(),
		MedianInterval: time.Duration(med * float64(time.Second)),
		MinInterval:    time.Duration(lo * float64(time.Second)),
		MaxInterval:    time.Duration(hi * float64(time.Second)),
	}
	if med > 0 {
		st.Irregularity = series.Std(intervals) / med
	}
	return st
}

func presentVariables(instruments []*types.InstrumentSeries) []string {
	var names []string
	for _, name := range types.AllVariables {
		for _, inst := range instruments {
			if inst.Var(name) != nil {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

func minMax(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}
