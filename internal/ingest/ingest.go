// Package ingest assembles mooring instrument sets from the places raw data
// lives: NetCDF deployment files, MessagePack archive snapshots, the raw
// sample store, or a remote archive host over gRPC. Every reader produces
// the same product so the pipeline does not care where the data came from.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
)

// Reader assembles the instrument series of one configured mooring
type Reader interface {
	ReadMooring(ctx context.Context, mooring *config.MooringData) (*types.MooringInstrumentSet, error)
}

// Open builds a reader from a source designator of the form kind:location.
// Supported kinds: netcdf (directory of instrument files), archive
// (snapshot directory), rawstore (SQLite path), grpc and grpcs (archive
// host endpoint, grpcs with TLS).
func Open(source string) (Reader, error) {
	kind, location, found := strings.Cut(source, ":")
	if !found || location == "" {
		return nil, fmt.Errorf("source %q must have the form kind:location", source)
	}

	switch kind {
	case "netcdf":
		return NewNetCDFReader(location), nil
	case "archive":
		return NewArchiveReader(location)
	case "rawstore":
		return NewRawStoreReader(location)
	case "grpc":
		return NewRemoteReader(location, false)
	case "grpcs":
		return NewRemoteReader(location, true)
	}
	return nil, fmt.Errorf("unknown source kind %q (want netcdf, archive, rawstore, grpc or grpcs)", kind)
}

// newSet builds an empty instrument set carrying the mooring's metadata
func newSet(mooring *config.MooringData) *types.MooringInstrumentSet {
	return &types.MooringInstrumentSet{
		Name:       mooring.Name,
		Latitude:   mooring.Latitude,
		Longitude:  mooring.Longitude,
		Deployment: mooring.DeployedAt,
		Recovery:   mooring.RecoveredAt,
	}
}

// seriesScaffold builds an empty series carrying the instrument's metadata.
// An unrecognized instrument model is an error so bad metadata surfaces at
// ingestion rather than deep inside the pipeline.
func seriesScaffold(mooring *config.MooringData, inst *config.InstrumentData) (*types.InstrumentSeries, error) {
	instType, err := types.ParseInstrumentType(inst.Model)
	if err != nil {
		return nil, err
	}
	return &types.InstrumentSeries{
		Mooring:      mooring.Name,
		Serial:       inst.Serial,
		Type:         instType,
		NominalDepth: inst.NominalDepth,
		ClockOffset:  inst.ClockOffset,
		Deployment:   mooring.DeployedAt,
		Recovery:     mooring.RecoveredAt,
	}, nil
}

// samplesToSeries converts captured samples into an instrument series,
// keeping only the variables the instrument is configured to measure
func samplesToSeries(mooring *config.MooringData, inst *config.InstrumentData, samples []types.RawSample) (*types.InstrumentSeries, error) {
	s, err := seriesScaffold(mooring, inst)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("instrument %v has no samples", inst.Serial)
	}

	s.Times = make([]time.Time, len(samples))
	for i := range samples {
		s.Times[i] = samples[i].Timestamp.UTC()
	}

	variables := inst.Variables
	if len(variables) == 0 {
		variables = types.AllVariables
	}
	for _, name := range variables {
		values := make([]float64, len(samples))
		for i := range samples {
			switch name {
			case types.VarTemperature:
				values[i] = samples[i].Temperature
			case types.VarConductivity:
				values[i] = samples[i].Conductivity
			case types.VarPressure:
				values[i] = samples[i].Pressure
			case types.VarSalinity:
				values[i] = samples[i].Salinity
			default:
				return nil, fmt.Errorf("instrument %v configured with unknown variable %q", inst.Serial, name)
			}
		}
		s.SetVar(name, values)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// readConfigured runs a per-instrument fetch over a mooring's configured
// instruments with partial-failure semantics: an instrument that cannot be
// read is logged and excluded, and the mooring continues with the rest
func readConfigured(mooring *config.MooringData, fetch func(inst *config.InstrumentData) (*types.InstrumentSeries, error)) (*types.MooringInstrumentSet, error) {
	set := newSet(mooring)

	for i := range mooring.Instruments {
		inst := &mooring.Instruments[i]
		s, err := fetch(inst)
		if err != nil {
			log.Errorf("excluding instrument %v/%v: %v", mooring.Name, inst.Serial, err)
			continue
		}
		set.Instruments = append(set.Instruments, s)
	}

	if len(set.Instruments) == 0 {
		return nil, fmt.Errorf("no readable instruments for mooring %v", mooring.Name)
	}
	return set, nil
}
