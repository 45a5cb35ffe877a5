package vertical

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
	"go.uber.org/zap"
)

// Anchor is one observed (pressure, value) pair for a single time slice.
// Temp selects the climatology bin when the gridded property is not
// temperature itself.
type Anchor struct {
	Pressure float64 // dbar
	Value    float64
	Temp     float64
}

// Params holds the tunable parameters for vertical gridding.
type Params struct {
	// Variable is the property being placed on the full-depth grid.
	Variable string

	// PressureStep is the grid and integration step in dbar.
	PressureStep float64

	// MaxPressure is the deepest grid point in dbar; the grid runs from the
	// surface down to it.
	MaxPressure float64

	// UseMeasuredPressure anchors at the instrument's measured pressure
	// when one is recorded for the time slice, tracking mooring knockdown.
	// Otherwise anchors sit at nominal depth.
	UseMeasuredPressure bool
}

// DefaultParams returns the standard vertical-gridding parameters: a
// 0-5000 dbar grid in 20 dbar steps.
func DefaultParams() Params {
	return Params{
		Variable:            types.VarTemperature,
		PressureStep:        20,
		MaxPressure:         5000,
		UseMeasuredPressure: true,
	}
}

// Interpolator fills full-depth profiles from sparse instrument anchors,
// guided by a gradient climatology. A nil climatology degrades every
// estimate to the linear fallback.
type Interpolator struct {
	clim       *Climatology
	params     Params
	selfBinned bool
	logger     *zap.SugaredLogger
}

// NewInterpolator creates an Interpolator with the given table and
// parameters.
func NewInterpolator(clim *Climatology, params Params, logger *zap.SugaredLogger) *Interpolator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if params.Variable == "" {
		params.Variable = types.VarTemperature
	}
	if params.PressureStep <= 0 {
		params.PressureStep = 20
	}
	if params.MaxPressure <= 0 {
		params.MaxPressure = 5000
	}
	return &Interpolator{
		clim:       clim,
		params:     params,
		selfBinned: params.Variable == types.VarTemperature,
		logger:     logger,
	}
}

// Profile grids one time slice. Anchors snap to their nearest grid point and
// are copied through exactly; interior gaps blend climatology integrations
// from both bracketing anchors with proximity weights; beyond the shallowest
// and deepest anchor the gradient is integrated outward from the single
// nearest anchor. Empty climatology cells downgrade the affected region to
// the linear fallback. No anchors yields an all-missing profile.
func (ip *Interpolator) Profile(at time.Time, anchors []Anchor) *types.FullDepthProfile {
	step := ip.params.PressureStep
	n := int(ip.params.MaxPressure/step) + 1
	press := make([]float64, n)
	values := make([]float64, n)
	prov := make([]types.Provenance, n)
	for i := range press {
		press[i] = float64(i) * step
		values[i] = math.NaN()
	}
	out := &types.FullDepthProfile{Time: at, Pressures: press, Values: values, Provenance: prov}

	type slot struct {
		a    Anchor
		dist float64
	}
	byIdx := make(map[int]slot)
	for _, a := range anchors {
		if math.IsNaN(a.Pressure) || math.IsNaN(a.Value) {
			continue
		}
		idx := int(math.Round(a.Pressure / step))
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		d := math.Abs(a.Pressure - press[idx])
		if cur, ok := byIdx[idx]; !ok || d < cur.dist {
			byIdx[idx] = slot{a: a, dist: d}
		}
	}
	if len(byIdx) == 0 {
		return out
	}

	idxs := make([]int, 0, len(byIdx))
	for idx := range byIdx {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	for _, idx := range idxs {
		values[idx] = byIdx[idx].a.Value
		prov[idx] = types.ProvObserved
	}

	month := at.UTC().Month()
	for gi := 0; gi+1 < len(idxs); gi++ {
		iA, iB := idxs[gi], idxs[gi+1]
		if iB-iA < 2 {
			continue
		}
		down, okDown := ip.leg(month, press, iA, iB, values[iA], byIdx[iA].a.Temp)
		up, okUp := ip.leg(month, press, iB, iA, values[iB], byIdx[iB].a.Temp)
		span := press[iB] - press[iA]
		for k := iA + 1; k < iB; k++ {
			if okDown && okUp {
				wA := (press[iB] - press[k]) / span
				values[k] = wA*down[k-iA-1] + (1-wA)*up[iB-1-k]
				prov[k] = types.ProvInterpolated
			} else {
				t := (press[k] - press[iA]) / span
				values[k] = values[iA] + t*(values[iB]-values[iA])
				prov[k] = types.ProvInterpolatedLinear
			}
		}
	}

	ip.extrapolate(month, press, values, prov, idxs[0], -1, byIdx[idxs[0]].a.Temp)
	ip.extrapolate(month, press, values, prov, idxs[len(idxs)-1], +1, byIdx[idxs[len(idxs)-1]].a.Temp)
	return out
}

// leg integrates the climatological gradient from the anchor at index from
// toward index to, returning the running estimate at every index strictly
// between them, ordered outward from the anchor. ok is false when a needed
// climatology cell is empty.
func (ip *Interpolator) leg(month time.Month, press []float64, from, to int, v0, anchorTemp float64) ([]float64, bool) {
	dir := 1
	if to < from {
		dir = -1
	}
	var out []float64
	v := v0
	for i := from; i != to-dir; i += dir {
		bin := v
		if !ip.selfBinned {
			bin = anchorTemp
		}
		g := ip.clim.Gradient(month, bin)
		if math.IsNaN(g) {
			return nil, false
		}
		next := i + dir
		v += g * (press[next] - press[i])
		out = append(out, v)
	}
	return out, true
}

// extrapolate integrates outward from a single anchor to the grid edge. Once
// an empty climatology cell is hit the remaining points hold the last
// estimate with downgraded provenance, matching the clamped behavior of the
// linear fallback.
func (ip *Interpolator) extrapolate(month time.Month, press, values []float64, prov []types.Provenance, from, dir int, anchorTemp float64) {
	v := values[from]
	linear := false
	for i := from + dir; i >= 0 && i < len(press); i += dir {
		if !linear {
			bin := v
			if !ip.selfBinned {
				bin = anchorTemp
			}
			g := ip.clim.Gradient(month, bin)
			if math.IsNaN(g) {
				linear = true
			} else {
				v += g * (press[i] - press[i-dir])
			}
		}
		values[i] = v
		if linear {
			prov[i] = types.ProvExtrapolatedLinear
		} else {
			prov[i] = types.ProvExtrapolated
		}
	}
}

// Mooring grids every time slice of a gridded product, anchoring each level
// at its measured pressure when available and its nominal depth otherwise.
func (ip *Interpolator) Mooring(g *types.GriddedMooring) ([]*types.FullDepthProfile, error) {
	matrix := g.Variables[ip.params.Variable]
	if matrix == nil {
		return nil, fmt.Errorf("mooring %s: variable %s not in gridded product", g.Mooring, ip.params.Variable)
	}
	pressMat := g.Variables[types.VarPressure]
	tempMat := g.Variables[types.VarTemperature]

	profiles := make([]*types.FullDepthProfile, 0, len(g.Times))
	for ti, at := range g.Times {
		var anchors []Anchor
		for li := 0; li < g.Levels(); li++ {
			v := matrix[ti][li]
			if math.IsNaN(v) {
				continue
			}
			p := g.Depths[li]
			if ip.params.UseMeasuredPressure && pressMat != nil && !math.IsNaN(pressMat[ti][li]) {
				p = pressMat[ti][li]
			}
			temp := v
			if tempMat != nil && !math.IsNaN(tempMat[ti][li]) {
				temp = tempMat[ti][li]
			}
			anchors = append(anchors, Anchor{Pressure: p, Value: v, Temp: temp})
		}
		profiles = append(profiles, ip.Profile(at, anchors))
	}
	ip.logger.Infow("built full-depth profiles",
		"mooring", g.Mooring, "variable", ip.params.Variable, "profiles", len(profiles))
	return profiles, nil
}

// TwelveHourly returns the half-day output axis: every 00:00 and 12:00 UTC
// from the first boundary at or after start through end.
func TwelveHourly(start, end time.Time) []time.Time {
	t := start.UTC().Truncate(12 * time.Hour)
	if t.Before(start) {
		t = t.Add(12 * time.Hour)
	}
	var out []time.Time
	for !t.After(end) {
		out = append(out, t)
		t = t.Add(12 * time.Hour)
	}
	return out
}
