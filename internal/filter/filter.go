// Package filter applies zero-phase Butterworth low-pass filtering to
// instrument series. Each maximal run of finite, near-regularly-spaced
// samples is filtered on its own so that missing-data gaps never ring or
// smear into neighboring data. Samples the filter cannot treat pass through
// unchanged and are reported as warnings rather than dropped.
package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/oceanobs/moorproc/internal/series"
	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
)

// Params holds the tunable parameters for low-pass filtering.
type Params struct {
	// Variables names the series variables to filter. Empty means every
	// variable the series carries.
	Variables []string

	// CutoffDays is the low-pass cutoff period. Oscillations faster than
	// this are attenuated.
	CutoffDays float64

	// Order is the Butterworth filter order.
	Order int

	// MinSeries is the minimum total sample count for filtering. Shorter
	// series pass through with a warning.
	MinSeries int

	// MinSegment is the minimum gap-free segment length worth filtering.
	// Shorter segments pass through with a warning.
	MinSegment int

	// GapFactor breaks a segment wherever the sampling interval exceeds
	// this multiple of the series median interval. Single missed samples
	// stay inside a segment; real gaps split it.
	GapFactor float64
}

// DefaultParams returns the standard filtering parameters: a 2-day cutoff,
// order 6.
func DefaultParams() Params {
	return Params{
		CutoffDays: 2,
		Order:      6,
		MinSeries:  100,
		MinSegment: 50,
		GapFactor:  3,
	}
}

// Filter is a zero-phase low-pass filter over instrument series.
type Filter struct {
	params Params
	logger *zap.SugaredLogger
}

// NewFilter creates a Filter with the given parameters.
func NewFilter(params Params, logger *zap.SugaredLogger) *Filter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Filter{params: params, logger: logger}
}

// segment is a half-open index range of finite, gap-free samples.
type segment struct {
	start, end int
}

// Series low-pass filters one variable. The result has the same length as
// values, with NaN exactly where the input was NaN. A cutoff at or beyond
// the Nyquist period of the series' median sampling interval is a
// configuration error.
func (f *Filter) Series(times []time.Time, values []float64) ([]float64, []string, error) {
	if len(times) != len(values) {
		return nil, nil, fmt.Errorf("%d timestamps for %d values", len(times), len(values))
	}
	out := append([]float64(nil), values...)
	if len(values) == 0 {
		return out, nil, nil
	}

	var warnings []string
	med := series.MedianInterval(times)
	if math.IsNaN(med) || med <= 0 {
		warnings = append(warnings, "sampling interval undetermined, passed through unfiltered")
		return out, warnings, nil
	}

	cutoffSeconds := f.params.CutoffDays * 86400
	if cutoffSeconds <= 0 {
		return nil, nil, fmt.Errorf("cutoff period %g days, want > 0", f.params.CutoffDays)
	}
	// Normalized cutoff = cutoff frequency / Nyquist frequency.
	if wn := 2 * med / cutoffSeconds; wn >= 1 {
		return nil, nil, fmt.Errorf("cutoff period %g days is at or beyond the Nyquist period for a %.0f s sampling interval",
			f.params.CutoffDays, med)
	}

	if len(values) < f.params.MinSeries {
		warnings = append(warnings, fmt.Sprintf("%d samples, below the filtering minimum of %d, passed through unfiltered",
			len(values), f.params.MinSeries))
		return out, warnings, nil
	}

	for _, seg := range f.segments(times, values, med) {
		segLen := seg.end - seg.start
		if segLen < f.params.MinSegment {
			warnings = append(warnings, fmt.Sprintf("segment of %d samples at %s passed through unfiltered",
				segLen, times[seg.start].Format(time.RFC3339)))
			continue
		}

		// Each segment is filtered at its own local sampling rate.
		localMed := series.MedianInterval(times[seg.start:seg.end])
		wn := 2 * localMed / cutoffSeconds
		if math.IsNaN(wn) || wn >= 1 {
			warnings = append(warnings, fmt.Sprintf("segment at %s has a local sampling rate too coarse for the cutoff, passed through unfiltered",
				times[seg.start].Format(time.RFC3339)))
			continue
		}
		sections, err := lowpassSOS(f.params.Order, wn)
		if err != nil {
			return nil, nil, err
		}
		if segLen <= padLen(sections) {
			warnings = append(warnings, fmt.Sprintf("segment of %d samples at %s is shorter than the filter padding, passed through unfiltered",
				segLen, times[seg.start].Format(time.RFC3339)))
			continue
		}
		copy(out[seg.start:seg.end], sosFiltFilt(sections, values[seg.start:seg.end]))
	}
	return out, warnings, nil
}

// Instrument returns a copy of the series with every selected variable
// low-pass filtered. Warnings from all variables are combined, prefixed with
// serial and variable.
func (f *Filter) Instrument(s *types.InstrumentSeries) (*types.InstrumentSeries, []string, error) {
	out := s.Clone()
	names := f.params.Variables
	if len(names) == 0 {
		names = s.VarNames()
	}

	var warnings []string
	for _, name := range names {
		values := s.Var(name)
		if values == nil {
			continue
		}
		filtered, w, err := f.Series(s.Times, values)
		if err != nil {
			return nil, nil, fmt.Errorf("instrument %s %s: %w", s.Serial, name, err)
		}
		for _, msg := range w {
			warnings = append(warnings, fmt.Sprintf("instrument %s %s: %s", s.Serial, name, msg))
		}
		out.SetVar(name, filtered)
	}

	f.logger.Debugw("low-pass filtered instrument",
		"serial", s.Serial, "variables", len(names),
		"cutoff_days", f.params.CutoffDays, "warnings", len(warnings))
	return out, warnings, nil
}

// segments splits the series into maximal runs of finite values whose
// spacing stays within GapFactor of the series median interval.
func (f *Filter) segments(times []time.Time, values []float64, medianInterval float64) []segment {
	var segs []segment
	start := -1
	for i := range values {
		if math.IsNaN(values[i]) {
			if start >= 0 {
				segs = append(segs, segment{start, i})
				start = -1
			}
			continue
		}
		if start >= 0 && f.params.GapFactor > 0 {
			if dt := times[i].Sub(times[i-1]).Seconds(); dt > f.params.GapFactor*medianInterval {
				segs = append(segs, segment{start, i})
				start = i
				continue
			}
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		segs = append(segs, segment{start, len(values)})
	}
	return segs
}
