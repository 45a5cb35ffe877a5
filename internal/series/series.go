// Package series provides NaN-aware numerical helpers shared by the
// processing stages. Missing samples are represented as NaN; every helper
// either skips them or propagates them explicitly, never silently invents
// values.
package series

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// EpochSeconds converts timestamps to float64 seconds since the Unix epoch.
func EpochSeconds(times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = float64(t.UnixNano()) / 1e9
	}
	return out
}

// Intervals returns the successive differences of the time axis in seconds.
func Intervals(times []time.Time) []float64 {
	if len(times) < 2 {
		return nil
	}
	out := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		out[i-1] = times[i].Sub(times[i-1]).Seconds()
	}
	return out
}

// MedianInterval returns the median sampling interval of the time axis in
// seconds, or NaN when fewer than two timestamps are present.
func MedianInterval(times []time.Time) float64 {
	return Median(Intervals(times))
}

// Finite appends the finite values of src to dst and returns the result.
func Finite(dst, src []float64) []float64 {
	for _, v := range src {
		if !math.IsNaN(v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// CountFinite returns the number of non-NaN values.
func CountFinite(v []float64) int {
	n := 0
	for _, x := range v {
		if !math.IsNaN(x) {
			n++
		}
	}
	return n
}

// AllNaN reports whether v contains no finite values.
func AllNaN(v []float64) bool {
	return CountFinite(v) == 0
}

// Mean returns the mean of the finite values, or NaN when there are none.
func Mean(v []float64) float64 {
	f := Finite(nil, v)
	if len(f) == 0 {
		return math.NaN()
	}
	return stat.Mean(f, nil)
}

// Std returns the population standard deviation of the finite values, or NaN
// when there are none.
func Std(v []float64) float64 {
	f := Finite(nil, v)
	switch len(f) {
	case 0:
		return math.NaN()
	case 1:
		return 0
	}
	n := float64(len(f))
	return math.Sqrt(stat.Variance(f, nil) * (n - 1) / n)
}

// Median returns the median of the finite values, or NaN when there are none.
func Median(v []float64) float64 {
	f := Finite(nil, v)
	if len(f) == 0 {
		return math.NaN()
	}
	sort.Float64s(f)
	n := len(f)
	if n%2 == 1 {
		return f[n/2]
	}
	return 0.5 * (f[n/2-1] + f[n/2])
}

// Percentile returns the p-th percentile (0-100) of the finite values using
// linear interpolation between order statistics.
func Percentile(v []float64, p float64) float64 {
	f := Finite(nil, v)
	if len(f) == 0 {
		return math.NaN()
	}
	sort.Float64s(f)
	if p <= 0 {
		return f[0]
	}
	if p >= 100 {
		return f[len(f)-1]
	}
	pos := p / 100 * float64(len(f)-1)
	lo := int(math.Floor(pos))
	if lo+1 >= len(f) {
		return f[len(f)-1]
	}
	frac := pos - float64(lo)
	return f[lo]*(1-frac) + f[lo+1]*frac
}

// QuantileBandStats returns the mean and population standard deviation of
// the values lying within the [lower, upper] percentile band. This is the
// robust fallback statistic used when no better stable window is available.
func QuantileBandStats(v []float64, lower, upper float64) (mean, std float64, n int) {
	qlo := Percentile(v, lower)
	qhi := Percentile(v, upper)
	var kept []float64
	for _, x := range v {
		if !math.IsNaN(x) && x >= qlo && x <= qhi {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	mean = stat.Mean(kept, nil)
	if len(kept) == 1 {
		return mean, 0, 1
	}
	fn := float64(len(kept))
	std = math.Sqrt(stat.Variance(kept, nil) * (fn - 1) / fn)
	return mean, std, len(kept)
}

// Diff returns the successive differences v[i+1]-v[i].
func Diff(v []float64) []float64 {
	if len(v) < 2 {
		return nil
	}
	out := make([]float64, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i] - v[i-1]
	}
	return out
}

// Interp linearly interpolates the samples (xp, fp) at the points x. Outside
// the span of xp the result is NaN (no extrapolation); inside, a NaN
// bracketing value propagates NaN. xp must be strictly increasing.
func Interp(x, xp, fp []float64) []float64 {
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = InterpAt(xi, xp, fp)
	}
	return out
}

// InterpAt evaluates the piecewise-linear interpolant of (xp, fp) at xi.
func InterpAt(xi float64, xp, fp []float64) float64 {
	n := len(xp)
	if n == 0 || math.IsNaN(xi) || xi < xp[0] || xi > xp[n-1] {
		return math.NaN()
	}
	j := sort.SearchFloat64s(xp, xi)
	if j < n && xp[j] == xi {
		return fp[j]
	}
	x0, x1 := xp[j-1], xp[j]
	w := (xi - x0) / (x1 - x0)
	return fp[j-1] + w*(fp[j]-fp[j-1])
}

// Gradient returns the numerical gradient dy/dx using second-order central
// differences on the (possibly nonuniform) interior and one-sided
// differences at the edges.
func Gradient(y, x []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	out[0] = (y[1] - y[0]) / (x[1] - x[0])
	out[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		h1 := x[i] - x[i-1]
		h2 := x[i+1] - x[i]
		out[i] = (y[i+1]*h1*h1 - y[i-1]*h2*h2 + y[i]*(h2*h2-h1*h1)) / (h1 * h2 * (h1 + h2))
	}
	return out
}
