package ingest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/internal/vertical"
)

// ReadCTDCasts loads ship CTD casts from a directory tree of NetCDF files,
// one cast per file. A cast that cannot be read is skipped with a warning so
// that one bad file does not sink a fit over hundreds of casts.
func ReadCTDCasts(dir string) ([]vertical.CTDProfile, error) {
	var casts []vertical.CTDProfile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".nc") {
			return nil
		}
		cast, err := readCTDCast(path)
		if err != nil {
			log.Warnf("skipping cast %v: %v", filepath.Base(path), err)
			return nil
		}
		casts = append(casts, *cast)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %v: %w", dir, err)
	}
	if len(casts) == 0 {
		return nil, fmt.Errorf("no readable CTD casts under %v", dir)
	}
	return casts, nil
}

// readCTDCast reads one cast file: a pressure axis, the temperature profile
// along it, and the cast time when the file carries one.
func readCTDCast(path string) (*vertical.CTDProfile, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer nc.Close()

	pressure, err := readCastVar(nc, types.VarPressure)
	if err != nil {
		return nil, err
	}
	temperature, err := readCastVar(nc, types.VarTemperature)
	if err != nil {
		return nil, err
	}
	if len(pressure) != len(temperature) {
		return nil, fmt.Errorf("pressure has %v values, temperature %v", len(pressure), len(temperature))
	}

	var at time.Time
	if times, err := readTimeAxis(nc); err == nil && len(times) > 0 {
		at = times[0]
	}

	return &vertical.CTDProfile{Time: at, Pressure: pressure, Temperature: temperature}, nil
}

// readCastVar reads one canonical variable without a length constraint, since
// cast files are indexed by depth level rather than time
func readCastVar(nc netcdf.Dataset, canonical string) ([]float64, error) {
	for _, name := range netcdfVarNames[canonical] {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		values, err := readFloatVar(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read %v: %w", name, err)
		}
		maskFillValues(v, values)
		return values, nil
	}
	return nil, fmt.Errorf("variable %v not found (tried: %v)", canonical, netcdfVarNames[canonical])
}
