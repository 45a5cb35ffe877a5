package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
)

// Variable names tried per canonical variable: our own names first, then the
// OceanSITES short names instrument vendors ship
var netcdfVarNames = map[string][]string{
	types.VarTemperature:  {"temperature", "TEMP", "temp"},
	types.VarConductivity: {"conductivity", "CNDC", "cond"},
	types.VarPressure:     {"pressure", "PRES", "pres"},
	types.VarSalinity:     {"salinity", "PSAL", "psal"},
}

var netcdfTimeNames = []string{"time", "TIME"}

// NetCDFReader reads instrument deployment files from a directory tree.
// Files are matched to configured instruments by name: serial.nc or
// mooring_serial.nc anywhere under the data directory.
type NetCDFReader struct {
	dataDir string
}

// NewNetCDFReader creates a reader over a directory of deployment files
func NewNetCDFReader(dataDir string) *NetCDFReader {
	return &NetCDFReader{dataDir: dataDir}
}

// ReadMooring assembles the instrument set for one configured mooring
func (r *NetCDFReader) ReadMooring(_ context.Context, mooring *config.MooringData) (*types.MooringInstrumentSet, error) {
	return readConfigured(mooring, func(inst *config.InstrumentData) (*types.InstrumentSeries, error) {
		path, err := r.findInstrumentFile(mooring.Name, inst.Serial)
		if err != nil {
			return nil, err
		}
		return r.ReadInstrument(path, mooring, inst)
	})
}

// findInstrumentFile locates the deployment file for one instrument
func (r *NetCDFReader) findInstrumentFile(mooring, serial string) (string, error) {
	candidates := []string{
		fmt.Sprintf("%v.nc", serial),
		fmt.Sprintf("%v_%v.nc", mooring, serial),
	}

	errFound := errors.New("found")
	var match string

	err := filepath.WalkDir(r.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, candidate := range candidates {
			if strings.EqualFold(d.Name(), candidate) {
				match = path
				return errFound
			}
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return match, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to walk %v: %w", r.dataDir, err)
	}
	return "", fmt.Errorf("no deployment file named %v under %v", strings.Join(candidates, " or "), r.dataDir)
}

// ReadInstrument reads one instrument deployment file
func (r *NetCDFReader) ReadInstrument(path string, mooring *config.MooringData, inst *config.InstrumentData) (*types.InstrumentSeries, error) {
	s, err := seriesScaffold(mooring, inst)
	if err != nil {
		return nil, err
	}

	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer nc.Close()

	times, err := readTimeAxis(nc)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filepath.Base(path), err)
	}
	s.Times = times

	variables := inst.Variables
	if len(variables) == 0 {
		variables = types.AllVariables
	}

	found := 0
	for _, name := range variables {
		values, ok, err := readSeriesVar(nc, name, len(times))
		if err != nil {
			return nil, fmt.Errorf("%v: %w", filepath.Base(path), err)
		}
		if !ok {
			log.Warnf("instrument %v: variable %v not present in %v", inst.Serial, name, filepath.Base(path))
			continue
		}
		s.SetVar(name, values)
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("%v holds none of the expected variables", filepath.Base(path))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// readTimeAxis reads the 1D time variable. Deployment files carry time as
// seconds since the Unix epoch, UTC.
func readTimeAxis(nc netcdf.Dataset) ([]time.Time, error) {
	for _, name := range netcdfTimeNames {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		epochs, err := readFloatVar(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read time axis: %w", err)
		}
		times := make([]time.Time, len(epochs))
		for i, e := range epochs {
			sec := math.Floor(e)
			nsec := math.Round((e - sec) * 1e9)
			times[i] = time.Unix(int64(sec), int64(nsec)).UTC()
		}
		return times, nil
	}
	return nil, fmt.Errorf("time variable not found (tried: %v)", netcdfTimeNames)
}

// readSeriesVar reads one canonical variable, trying each known name. The
// second return reports whether the variable was present at all.
func readSeriesVar(nc netcdf.Dataset, canonical string, n int) ([]float64, bool, error) {
	for _, name := range netcdfVarNames[canonical] {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		values, err := readFloatVar(v)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %v: %w", name, err)
		}
		if len(values) != n {
			return nil, false, fmt.Errorf("variable %v has %v values for %v timestamps", name, len(values), n)
		}
		maskFillValues(v, values)
		return values, true, nil
	}
	return nil, false, nil
}

// readFloatVar reads a 1D numeric variable as float64
func readFloatVar(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}

	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}

	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, length)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, length)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, length)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, length)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

// maskFillValues replaces fill-value entries with NaN, the pipeline's
// missing marker
func maskFillValues(v netcdf.Var, values []float64) {
	fv, ok := getFillValue(v)
	if !ok {
		return
	}
	for i := range values {
		if values[i] == fv {
			values[i] = math.NaN()
		}
	}
}

// getFillValue returns the _FillValue or missing_value attribute if present
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if a == (netcdf.Attr{}) {
			continue
		}
		if n, err := a.Len(); err == nil && n > 0 {
			buf64 := make([]float64, 1)
			if err := a.ReadFloat64s(buf64); err == nil {
				return buf64[0], true
			}
			buf32 := make([]float32, 1)
			if err := a.ReadFloat32s(buf32); err == nil {
				return float64(buf32[0]), true
			}
			bufi := make([]int32, 1)
			if err := a.ReadInt32s(bufi); err == nil {
				return float64(bufi[0]), true
			}
		}
	}
	return 0, false
}
