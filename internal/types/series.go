package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// InstrumentType is a closed set of supported moored instrument classes.
// Raw vendor identifiers are mapped to this enum at ingestion so that the
// processing core never inspects raw strings.
type InstrumentType int

const (
	InstrumentUnknown InstrumentType = iota
	InstrumentMicrocat
	InstrumentThermistor
	InstrumentCurrentMeter
)

func (t InstrumentType) String() string {
	switch t {
	case InstrumentMicrocat:
		return "microcat"
	case InstrumentThermistor:
		return "thermistor"
	case InstrumentCurrentMeter:
		return "currentmeter"
	default:
		return "unknown"
	}
}

// ParseInstrumentType maps a raw vendor identifier to an InstrumentType.
// Unrecognized identifiers are an error so that bad metadata is caught at
// ingestion rather than deep inside the pipeline.
func ParseInstrumentType(raw string) (InstrumentType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "microcat", "sbe37", "mc":
		return InstrumentMicrocat, nil
	case "thermistor", "sbe56", "sbe39", "tr":
		return InstrumentThermistor, nil
	case "currentmeter", "aquadopp", "nortek", "rcm", "cm":
		return InstrumentCurrentMeter, nil
	}
	return InstrumentUnknown, fmt.Errorf("unrecognized instrument type %q", raw)
}

// Canonical variable names shared by series, gridded products and storage.
const (
	VarTemperature  = "temperature"
	VarConductivity = "conductivity"
	VarPressure     = "pressure"
	VarSalinity     = "salinity"
)

// AllVariables lists the canonical variables in their stable order.
var AllVariables = []string{VarTemperature, VarConductivity, VarPressure, VarSalinity}

// InstrumentSeries holds one instrument's observations for one deployment.
// Timestamps are strictly increasing; gaps are represented by irregular
// spacing, never by synthetic fill. Missing values within a variable are NaN.
// A series is never mutated in place: transformations (Shifted, Trimmed)
// return new series so the original remains available for audit.
type InstrumentSeries struct {
	Mooring      string
	Serial       string
	Type         InstrumentType
	NominalDepth float64 // meters
	ClockOffset  float64 // declared a-priori offset, seconds
	Deployment   *time.Time
	Recovery     *time.Time

	Times        []time.Time
	Temperature  []float64
	Conductivity []float64
	Pressure     []float64
	Salinity     []float64
}

// Len returns the number of samples in the series.
func (s *InstrumentSeries) Len() int {
	return len(s.Times)
}

// Var returns the named variable's values, or nil if the series does not
// carry that variable.
func (s *InstrumentSeries) Var(name string) []float64 {
	switch name {
	case VarTemperature:
		return s.Temperature
	case VarConductivity:
		return s.Conductivity
	case VarPressure:
		return s.Pressure
	case VarSalinity:
		return s.Salinity
	}
	return nil
}

// SetVar replaces the named variable's values. Unknown names are ignored.
func (s *InstrumentSeries) SetVar(name string, values []float64) {
	switch name {
	case VarTemperature:
		s.Temperature = values
	case VarConductivity:
		s.Conductivity = values
	case VarPressure:
		s.Pressure = values
	case VarSalinity:
		s.Salinity = values
	}
}

// VarNames returns the canonical names of the variables this series carries.
func (s *InstrumentSeries) VarNames() []string {
	var names []string
	for _, name := range AllVariables {
		if s.Var(name) != nil {
			names = append(names, name)
		}
	}
	return names
}

// Validate checks the structural invariants: at least one sample, strictly
// increasing timestamps, and per-variable lengths matching the time axis.
func (s *InstrumentSeries) Validate() error {
	if len(s.Times) == 0 {
		return fmt.Errorf("instrument %s: series is empty", s.Serial)
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i].After(s.Times[i-1]) {
			return fmt.Errorf("instrument %s: timestamps not strictly increasing at index %d", s.Serial, i)
		}
	}
	for _, name := range s.VarNames() {
		if n := len(s.Var(name)); n != len(s.Times) {
			return fmt.Errorf("instrument %s: %s has %d values for %d timestamps", s.Serial, name, n, len(s.Times))
		}
	}
	return nil
}

// Clone returns a deep copy of the series.
func (s *InstrumentSeries) Clone() *InstrumentSeries {
	out := *s
	out.Times = append([]time.Time(nil), s.Times...)
	for _, name := range s.VarNames() {
		out.SetVar(name, append([]float64(nil), s.Var(name)...))
	}
	return &out
}

// Shifted returns a copy of the series with offsetSeconds added to every
// timestamp. The applied amount is accumulated into ClockOffset.
func (s *InstrumentSeries) Shifted(offsetSeconds float64) *InstrumentSeries {
	out := s.Clone()
	if offsetSeconds == 0 {
		return out
	}
	d := time.Duration(offsetSeconds * float64(time.Second))
	for i := range out.Times {
		out.Times[i] = out.Times[i].Add(d)
	}
	out.ClockOffset += offsetSeconds
	return out
}

// Trimmed returns a copy of the series restricted to samples with
// start <= t <= end.
func (s *InstrumentSeries) Trimmed(start, end time.Time) *InstrumentSeries {
	lo := sort.Search(len(s.Times), func(i int) bool { return !s.Times[i].Before(start) })
	hi := sort.Search(len(s.Times), func(i int) bool { return s.Times[i].After(end) })
	if hi < lo {
		hi = lo
	}

	out := *s
	out.Times = append([]time.Time(nil), s.Times[lo:hi]...)
	for _, name := range s.VarNames() {
		out.SetVar(name, append([]float64(nil), s.Var(name)[lo:hi]...))
	}
	return &out
}

// Span returns the first and last timestamps. Callers must ensure Len() > 0.
func (s *InstrumentSeries) Span() (time.Time, time.Time) {
	return s.Times[0], s.Times[len(s.Times)-1]
}

// MooringInstrumentSet is the collection of instrument series sharing one
// mooring deployment.
type MooringInstrumentSet struct {
	Name       string
	Latitude   float64
	Longitude  float64
	Deployment *time.Time
	Recovery   *time.Time

	Instruments []*InstrumentSeries
}

// FindSerial returns the series with the given serial number, or nil.
func (m *MooringInstrumentSet) FindSerial(serial string) *InstrumentSeries {
	for _, inst := range m.Instruments {
		if inst.Serial == serial {
			return inst
		}
	}
	return nil
}

// Validate checks that serial numbers are unique within the set.
func (m *MooringInstrumentSet) Validate() error {
	seen := make(map[string]bool, len(m.Instruments))
	for _, inst := range m.Instruments {
		if seen[inst.Serial] {
			return fmt.Errorf("mooring %s: duplicate instrument serial %s", m.Name, inst.Serial)
		}
		seen[inst.Serial] = true
	}
	return nil
}
