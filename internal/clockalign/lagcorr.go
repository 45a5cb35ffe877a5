package clockalign

import (
	"math"

	"github.com/oceanobs/moorproc/internal/series"
	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// LagParams holds the tunable parameters for lag-correlation estimation.
type LagParams struct {
	// Variable is the shared proxy variable compared between instruments.
	Variable string

	// Subsample is the stride applied to the common comparison grid to
	// bound computation cost. 1 compares at full resolution.
	Subsample int

	// MaxLag bounds the search window in subsampled samples. Zero means
	// one fifth of the comparison length.
	MaxLag int

	// MinOverlap is the minimum number of finite sample pairs required at
	// a lag for its correlation to be trusted.
	MinOverlap int
}

// DefaultLagParams returns the standard estimation parameters.
func DefaultLagParams() LagParams {
	return LagParams{
		Variable:   types.VarTemperature,
		Subsample:  5,
		MaxLag:     0,
		MinOverlap: 10,
	}
}

// EstimateLag computes the time lag of target relative to ref that maximizes
// Pearson correlation of the shared proxy variable. The reported LagSeconds
// follows the correction convention: add it to the target's timestamps to
// align the two records. Ties are broken toward the smallest absolute lag,
// and insufficient overlap yields OK false rather than a spurious estimate.
func EstimateLag(ref, target *types.InstrumentSeries, p LagParams, logger *zap.SugaredLogger) types.LagResult {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if p.Variable == "" {
		p.Variable = types.VarTemperature
	}
	if p.Subsample < 1 {
		p.Subsample = 1
	}
	if p.MinOverlap < 2 {
		p.MinOverlap = 2
	}

	result := types.LagResult{Serial: target.Serial, RefSerial: ref.Serial}

	if ref.Len() < 2 || target.Len() < 2 {
		logger.Warnw("lag correlation needs at least two samples per series",
			"ref", ref.Serial, "target", target.Serial)
		return result
	}
	refVals := ref.Var(p.Variable)
	tgtVals := target.Var(p.Variable)
	if refVals == nil || tgtVals == nil {
		logger.Warnw("lag correlation variable missing", "variable", p.Variable,
			"ref", ref.Serial, "target", target.Serial)
		return result
	}

	// Compare on a regular grid covering the overlap of the two records, at
	// a stride-coarsened version of the coarser median interval.
	refFirst, refLast := ref.Span()
	tgtFirst, tgtLast := target.Span()
	start := refFirst
	if tgtFirst.After(start) {
		start = tgtFirst
	}
	end := refLast
	if tgtLast.Before(end) {
		end = tgtLast
	}
	if !end.After(start) {
		logger.Warnw("records do not overlap in time", "ref", ref.Serial, "target", target.Serial)
		return result
	}

	dtRef := series.MedianInterval(ref.Times)
	dtTgt := series.MedianInterval(target.Times)
	dt := math.Max(dtRef, dtTgt) * float64(p.Subsample)
	if math.IsNaN(dt) || dt <= 0 {
		return result
	}

	n := int(end.Sub(start).Seconds()/dt) + 1
	if n < p.MinOverlap {
		logger.Warnw("overlap too short for lag correlation",
			"ref", ref.Serial, "target", target.Serial, "samples", n)
		return result
	}

	grid := make([]float64, n)
	startSec := float64(start.UnixNano()) / 1e9
	for i := range grid {
		grid[i] = startSec + float64(i)*dt
	}
	x := series.Interp(grid, series.EpochSeconds(ref.Times), refVals)
	y := series.Interp(grid, series.EpochSeconds(target.Times), tgtVals)

	maxLag := p.MaxLag
	if maxLag <= 0 {
		maxLag = n / 5
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	bestLag := 0
	bestCorr := math.Inf(-1)
	bestOverlap := 0
	found := false
	for lag := -maxLag; lag <= maxLag; lag++ {
		corr, overlap := correlationAtLag(x, y, lag)
		if overlap < p.MinOverlap || math.IsNaN(corr) {
			continue
		}
		better := corr > bestCorr+1e-12
		equal := math.Abs(corr-bestCorr) <= 1e-12
		if better || (equal && abs(lag) < abs(bestLag)) {
			bestLag = lag
			bestCorr = corr
			bestOverlap = overlap
			found = true
		}
	}

	if !found {
		logger.Warnw("no lag with sufficient overlap",
			"ref", ref.Serial, "target", target.Serial, "max_lag", maxLag)
		return result
	}

	result.LagSamples = bestLag
	result.LagSeconds = float64(bestLag) * dt
	result.Correlation = bestCorr
	result.Overlap = bestOverlap
	result.OK = true
	logger.Debugw("lag correlation estimate",
		"ref", ref.Serial, "target", target.Serial,
		"lag_seconds", result.LagSeconds, "correlation", bestCorr, "overlap", bestOverlap)
	return result
}

// correlationAtLag computes the Pearson correlation between x shifted by lag
// and y, pairing x[i+lag] with y[i] and skipping pairs with a NaN member.
func correlationAtLag(x, y []float64, lag int) (float64, int) {
	var xs, ys []float64
	n := len(x)
	for i := 0; i < n; i++ {
		j := i + lag
		if j < 0 || j >= n {
			continue
		}
		if math.IsNaN(x[j]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[j])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN(), len(xs)
	}
	return stat.Correlation(xs, ys, nil), len(xs)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
