package deployment

import (
	"math"
	"sort"
	"time"
)

// run is a half-open [start, end) index range of consecutive true samples.
type run struct {
	start, end int
}

func (r run) length() int {
	return r.end - r.start
}

// runsOfTrue returns the maximal runs of true values in mask.
func runsOfTrue(mask []bool) []run {
	var runs []run
	start := -1
	for i, v := range mask {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			runs = append(runs, run{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, run{start: start, end: len(mask)})
	}
	return runs
}

// longestRun returns the longest run of at least minLen consecutive true
// samples. Ties go to the earliest run.
func longestRun(mask []bool, minLen int) (run, bool) {
	var best run
	found := false
	for _, r := range runsOfTrue(mask) {
		if r.length() < minLen {
			continue
		}
		if !found || r.length() > best.length() {
			best = r
			found = true
		}
	}
	return best, found
}

// bestStepChange finds the split index k that minimizes the total squared
// error of fitting values[:k] and values[k:] each with their own mean, i.e.
// the best single step-change position. Cumulative sums make the scan
// linear. Returns false when the window is too short or contains NaN.
func bestStepChange(values []float64) (int, bool) {
	n := len(values)
	if n < 4 {
		return 0, false
	}

	cs := make([]float64, n+1)
	cq := make([]float64, n+1)
	for i, v := range values {
		if math.IsNaN(v) {
			return 0, false
		}
		cs[i+1] = cs[i] + v
		cq[i+1] = cq[i] + v*v
	}

	sse := func(a, b int) float64 {
		m := float64(b - a)
		s := cs[b] - cs[a]
		q := cq[b] - cq[a]
		return q - s*s/m
	}

	bestK := 0
	bestCost := math.Inf(1)
	for k := 2; k <= n-2; k++ {
		cost := sse(0, k) + sse(k, n)
		if cost < bestCost {
			bestCost = cost
			bestK = k
		}
	}
	return bestK, bestK > 0
}

// searchTime returns the index of the first timestamp not before t.
func searchTime(times []time.Time, t time.Time) int {
	return sort.Search(len(times), func(i int) bool { return !times[i].Before(t) })
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
