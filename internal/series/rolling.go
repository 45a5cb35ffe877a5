package series

import (
	"math"
	"sort"
)

// RollingMedian returns the centered rolling median of v with the given
// window width. NaN values inside a window are ignored; a window with no
// finite values yields NaN. Windows are truncated at the series edges, so
// the output always has the same length as the input.
func RollingMedian(v []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	half := window / 2
	out := make([]float64, len(v))
	buf := make([]float64, 0, window)
	for i := range v {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(v) {
			hi = len(v)
		}
		buf = Finite(buf[:0], v[lo:hi])
		if len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		sort.Float64s(buf)
		n := len(buf)
		if n%2 == 1 {
			out[i] = buf[n/2]
		} else {
			out[i] = 0.5 * (buf[n/2-1] + buf[n/2])
		}
	}
	return out
}
