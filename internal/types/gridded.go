package types

import "time"

// GriddedMooring is the time-gridded, stacked multi-instrument product. The
// level dimension indexes contributing instruments in a stable order that is
// traceable through the level-indexed metadata arrays; it is not assumed to
// be depth-sorted.
type GriddedMooring struct {
	Mooring  string
	Times    []time.Time
	Interval time.Duration

	// Level-indexed metadata, parallel to the level dimension.
	Depths         []float64
	Serials        []string
	InstrumentTags []InstrumentType
	AppliedOffsets []float64 // seconds added to each instrument's raw clock

	// Variables maps a canonical variable name to a time-major matrix:
	// Variables[name][timeIndex][levelIndex]. NaN marks times outside an
	// instrument's native range or gaps in its record.
	Variables map[string][][]float64

	// InstrumentFlags assigns each level a small positive code, with
	// FlagMeanings mapping code back to the instrument serial. Mirrors the
	// CF flag_values/flag_meanings encoding convention.
	InstrumentFlags []int16
	FlagMeanings    map[int16]string
}

// Levels returns the size of the level dimension.
func (g *GriddedMooring) Levels() int {
	return len(g.Serials)
}

// Provenance marks how a full-depth grid point value was produced.
type Provenance uint8

const (
	ProvMissing Provenance = iota
	ProvObserved
	ProvInterpolated
	ProvExtrapolated
	// Linear variants mark the climatology-unavailable fallback, a
	// downgraded-confidence result rather than a failure.
	ProvInterpolatedLinear
	ProvExtrapolatedLinear
)

func (p Provenance) String() string {
	switch p {
	case ProvObserved:
		return "observed"
	case ProvInterpolated:
		return "interpolated"
	case ProvExtrapolated:
		return "extrapolated"
	case ProvInterpolatedLinear:
		return "interpolated_linear"
	case ProvExtrapolatedLinear:
		return "extrapolated_linear"
	default:
		return "missing"
	}
}

// FullDepthProfile is the vertical-gridding output for one timestamp: values
// on a regular pressure grid with a provenance tag per grid point.
type FullDepthProfile struct {
	Time       time.Time
	Pressures  []float64 // dbar, regular
	Values     []float64
	Provenance []Provenance
}
