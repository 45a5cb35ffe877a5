// Package deployment estimates the true in-situ period of a moored
// instrument record by detecting the transitions into and out of the cold
// stable value range that characterizes time at depth.
package deployment

import (
	"fmt"
	"math"

	"github.com/oceanobs/moorproc/internal/series"
	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
)

// WindowStrategy selects how the candidate stable window is chosen before
// any boundaries are known.
type WindowStrategy string

const (
	// WindowDeploymentBounds uses the declared deployment/recovery times,
	// shrunk by a safety margin. Falls back to WindowPercentSpan when the
	// bounds are not set.
	WindowDeploymentBounds WindowStrategy = "deployment_bounds"
	// WindowPercentSpan uses a central fraction of the record by index.
	WindowPercentSpan WindowStrategy = "percent_span"
	// WindowFixedHours trims a fixed number of hours from each end of the
	// record and uses the remainder.
	WindowFixedHours WindowStrategy = "fixed_hours"
)

// Params holds the tunable parameters for deployment-window detection.
type Params struct {
	// Variable is the proxy variable examined, normally temperature.
	Variable string

	// Strategy picks the candidate stable window used to estimate the
	// at-depth value distribution.
	Strategy WindowStrategy

	// BandSigma is the k in the stable range [mean-k*sigma, mean+k*sigma].
	BandSigma float64

	// MinHalfWidth is the floor on the band half-width, in the variable's
	// units. Guards against absurdly tight bands on very quiet records.
	MinHalfWidth float64

	// DwellSeconds is the minimum time a candidate boundary run must
	// persist inside the stable band, debouncing single-sample noise.
	DwellSeconds float64

	// SmoothWindow is the rolling-median width applied before scanning,
	// suppressing isolated spikes without moving real transitions.
	SmoothWindow int

	// WarmPercentile locates the warm (surface) excursion in the early and
	// late portions of the record.
	WarmPercentile float64

	// PercentSpan is the central fraction of the record used by
	// WindowPercentSpan.
	PercentSpan float64

	// FixedWindowHours is the trim applied by WindowFixedHours, and also
	// the width of the early/late windows inspected for warm excursions.
	FixedWindowHours float64

	// BoundsMarginHours shrinks the declared deployment bounds before they
	// are trusted as a stable window.
	BoundsMarginHours float64

	// RefineBoundaries enables a step-change fit around each coarse
	// boundary to place it at the sample resolution of the raw record.
	RefineBoundaries bool

	// RefineWindowHours is the half-width of the neighborhood searched by
	// the step-change refinement.
	RefineWindowHours float64
}

// DefaultParams returns the standard detection parameters.
func DefaultParams() Params {
	return Params{
		Variable:          types.VarTemperature,
		Strategy:          WindowDeploymentBounds,
		BandSigma:         3.0,
		MinHalfWidth:      0.10,
		DwellSeconds:      1800,
		SmoothWindow:      9,
		WarmPercentile:    90,
		PercentSpan:       0.25,
		FixedWindowHours:  24,
		BoundsMarginHours: 2,
		RefineBoundaries:  true,
		RefineWindowHours: 24,
	}
}

// Detector finds deployment windows on instrument series.
type Detector struct {
	params Params
	logger *zap.SugaredLogger
}

// NewDetector creates a Detector with the given parameters.
func NewDetector(params Params, logger *zap.SugaredLogger) *Detector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if params.Variable == "" {
		params.Variable = types.VarTemperature
	}
	if params.SmoothWindow < 1 {
		params.SmoothWindow = 1
	}
	return &Detector{params: params, logger: logger}
}

// Detect estimates the deployment window of one instrument series. The
// returned window always satisfies Start <= End and lies within the record's
// time span; with ConfidenceNone or ConfidenceLow the bounds are the full
// record and no trimming should be applied.
func (d *Detector) Detect(s *types.InstrumentSeries) (types.DeploymentWindow, error) {
	if s.Len() == 0 {
		return types.DeploymentWindow{}, fmt.Errorf("instrument %s: cannot detect deployment window on an empty series", s.Serial)
	}

	values := s.Var(d.params.Variable)
	if values == nil {
		return types.DeploymentWindow{}, fmt.Errorf("instrument %s: series has no %s variable", s.Serial, d.params.Variable)
	}

	first, last := s.Span()
	full := types.DeploymentWindow{
		Serial:     s.Serial,
		Start:      first,
		End:        last,
		Confidence: types.ConfidenceNone,
	}

	if series.AllNaN(values) {
		d.logger.Warnw("deployment detection found no finite samples", "serial", s.Serial)
		full.Confidence = types.ConfidenceLow
		return full, nil
	}

	dt := series.MedianInterval(s.Times)
	debounce := 1
	if !math.IsNaN(dt) && dt > 0 {
		debounce = int(math.Ceil(d.params.DwellSeconds / dt))
		if debounce < 1 {
			debounce = 1
		}
	}
	if s.Len() < debounce || s.Len() < 2 {
		d.logger.Warnw("record shorter than debounce window, returning full bounds",
			"serial", s.Serial, "samples", s.Len(), "debounce", debounce)
		return full, nil
	}

	smoothed := series.RollingMedian(values, d.params.SmoothWindow)

	mean, std, usedFallback := d.stableStats(s, values)
	halfw := d.params.BandSigma * std
	if halfw < d.params.MinHalfWidth || math.IsNaN(halfw) {
		halfw = d.params.MinHalfWidth
	}
	lower := mean - halfw
	upper := mean + halfw

	warmAbove, warmBelow := d.warmExcursion(s, smoothed, dt, lower, upper)
	if !warmAbove && !warmBelow {
		// Nothing resembling a surface period at either end: either the
		// record was pre-trimmed or the series is near-constant.
		d.logger.Infow("no surface excursion detected, not trimming",
			"serial", s.Serial, "band_lower", lower, "band_upper", upper)
		full.Confidence = types.ConfidenceLow
		full.SplitValue = upper
		return full, nil
	}

	split := upper
	if warmBelow && !warmAbove {
		split = lower
	}

	mask := make([]bool, len(smoothed))
	for i, v := range smoothed {
		mask[i] = !math.IsNaN(v) && v >= lower && v <= upper
	}

	best, ok := longestRun(mask, debounce)
	if !ok || best.length() < 2 {
		d.logger.Warnw("no stable run of sufficient length, returning full bounds",
			"serial", s.Serial, "debounce", debounce)
		full.Confidence = types.ConfidenceLow
		full.SplitValue = split
		return full, nil
	}

	startIdx := best.start
	endIdx := best.end - 1

	if d.params.RefineBoundaries {
		startIdx = d.refineStart(s, values, startIdx, split, warmAbove, dt)
		endIdx = d.refineEnd(s, values, endIdx, split, warmAbove, dt)
	}
	if endIdx <= startIdx {
		startIdx = best.start
		endIdx = best.end - 1
	}

	confidence := types.ConfidenceHigh
	if usedFallback || best.length()*2 < s.Len() {
		confidence = types.ConfidenceLow
	}

	win := types.DeploymentWindow{
		Serial:     s.Serial,
		Start:      s.Times[startIdx],
		End:        s.Times[endIdx],
		SplitValue: split,
		Confidence: confidence,
	}
	d.logger.Infow("deployment window detected",
		"serial", s.Serial,
		"start", win.Start, "end", win.End,
		"split_value", split, "confidence", confidence.String())
	return win, nil
}

// stableStats estimates the at-depth mean and spread from the candidate
// window. When the window yields too few samples it falls back to the middle
// 50% of the whole record by value, which caps confidence at low.
func (d *Detector) stableStats(s *types.InstrumentSeries, values []float64) (mean, std float64, fallback bool) {
	lo, hi := d.stableWindow(s)
	const minWindowSamples = 10

	if hi-lo >= minWindowSamples {
		window := values[lo:hi]
		if series.CountFinite(window) >= minWindowSamples {
			return series.Mean(window), series.Std(window), false
		}
	}

	mean, std, _ = series.QuantileBandStats(values, 25, 75)
	return mean, std, true
}

// stableWindow returns the [lo, hi) index range of the candidate stable
// window according to the configured strategy.
func (d *Detector) stableWindow(s *types.InstrumentSeries) (int, int) {
	n := s.Len()

	switch d.params.Strategy {
	case WindowDeploymentBounds:
		if s.Deployment != nil && s.Recovery != nil {
			margin := hoursToDuration(d.params.BoundsMarginHours)
			lo := searchTime(s.Times, s.Deployment.Add(margin))
			hi := searchTime(s.Times, s.Recovery.Add(-margin))
			if hi > lo {
				return lo, hi
			}
		}
		return d.centralSpan(n)
	case WindowFixedHours:
		trim := hoursToDuration(d.params.FixedWindowHours)
		lo := searchTime(s.Times, s.Times[0].Add(trim))
		hi := searchTime(s.Times, s.Times[n-1].Add(-trim))
		if hi > lo {
			return lo, hi
		}
		return d.centralSpan(n)
	default:
		return d.centralSpan(n)
	}
}

func (d *Detector) centralSpan(n int) (int, int) {
	span := d.params.PercentSpan
	if span <= 0 || span > 1 {
		span = 0.25
	}
	width := int(float64(n) * span)
	if width < 1 {
		width = 1
	}
	lo := (n - width) / 2
	return lo, lo + width
}

// warmExcursion inspects the early and late portions of the record for
// values outside the stable band, establishing on which side of the band the
// surface period lies.
func (d *Detector) warmExcursion(s *types.InstrumentSeries, smoothed []float64, dt, lower, upper float64) (above, below bool) {
	n := s.Len()
	edge := n / 4
	if !math.IsNaN(dt) && dt > 0 {
		w := int(d.params.FixedWindowHours * 3600 / dt)
		if w >= 1 && w < edge {
			edge = w
		}
	}
	if edge < 1 {
		edge = 1
	}

	early := smoothed[:edge]
	late := smoothed[n-edge:]

	hiP := d.params.WarmPercentile
	loP := 100 - d.params.WarmPercentile

	eHi := series.Percentile(early, hiP)
	lHi := series.Percentile(late, hiP)
	if math.Max(eHi, lHi) > upper {
		above = true
	}

	eLo := series.Percentile(early, loP)
	lLo := series.Percentile(late, loP)
	if math.Min(eLo, lLo) < lower {
		below = true
	}
	return above, below
}

// refineStart sharpens the start boundary with a two-segment step fit on the
// raw values around the coarse boundary. The refined index is accepted only
// when the fitted segment means straddle the split value.
func (d *Detector) refineStart(s *types.InstrumentSeries, values []float64, coarse int, split float64, warmAbove bool, dt float64) int {
	if coarse == 0 {
		return coarse
	}
	lo, hi := d.refineSpan(s.Len(), coarse, dt)
	window := values[lo:hi]
	k, ok := bestStepChange(window)
	if !ok {
		return coarse
	}
	leftMean := series.Mean(window[:k])
	rightMean := series.Mean(window[k:])
	if straddles(leftMean, rightMean, split, warmAbove) {
		return lo + k
	}
	return coarse
}

// refineEnd mirrors refineStart for the recovery-side boundary.
func (d *Detector) refineEnd(s *types.InstrumentSeries, values []float64, coarse int, split float64, warmAbove bool, dt float64) int {
	if coarse >= s.Len()-1 {
		return coarse
	}
	lo, hi := d.refineSpan(s.Len(), coarse, dt)
	window := values[lo:hi]
	k, ok := bestStepChange(window)
	if !ok {
		return coarse
	}
	leftMean := series.Mean(window[:k])
	rightMean := series.Mean(window[k:])
	if straddles(rightMean, leftMean, split, warmAbove) {
		return lo + k - 1
	}
	return coarse
}

func (d *Detector) refineSpan(n, center int, dt float64) (int, int) {
	half := 24
	if !math.IsNaN(dt) && dt > 0 {
		half = int(d.params.RefineWindowHours * 3600 / dt)
		if half < 2 {
			half = 2
		}
	}
	lo := center - half
	if lo < 0 {
		lo = 0
	}
	hi := center + half
	if hi > n {
		hi = n
	}
	return lo, hi
}

// straddles reports whether warmMean sits on the warm side of split while
// coldMean sits on the cold side.
func straddles(warmMean, coldMean, split float64, warmAbove bool) bool {
	if math.IsNaN(warmMean) || math.IsNaN(coldMean) {
		return false
	}
	if warmAbove {
		return warmMean > split && coldMean <= split
	}
	return warmMean < split && coldMean >= split
}
