package server

import (
	"strings"

	"github.com/jackc/pgtype"
	"github.com/oceanobs/moorproc/internal/types"
)

// transformRun flattens a run row for the API
func transformRun(row *types.RunRow) RunSummary {
	var stages []string
	if row.Stages != "" {
		stages = strings.Split(row.Stages, ",")
	}
	return RunSummary{
		RunID:      row.RunID,
		Mooring:    row.Mooring,
		Stages:     stages,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		Issues:     row.Issues,
		Succeeded:  row.Succeeded,
	}
}

func transformOffsets(rows []types.OffsetRow) []ClockOffset {
	offsets := make([]ClockOffset, 0, len(rows))
	for _, row := range rows {
		offsets = append(offsets, ClockOffset{
			Serial:        row.Serial,
			StartOffset:   row.StartOffset,
			EndOffset:     row.EndOffset,
			AvgOffset:     row.AvgOffset,
			DriftRate:     row.DriftRate,
			OffsetSeconds: row.OffsetSeconds,
			Source:        row.Source,
			NoConsensus:   row.NoConsensus,
		})
	}
	return offsets
}

func transformWindows(rows []types.DeploymentRow) []DeploymentWindow {
	windows := make([]DeploymentWindow, 0, len(rows))
	for _, row := range rows {
		windows = append(windows, DeploymentWindow{
			Serial:     row.Serial,
			Start:      row.Start,
			End:        row.End,
			SplitValue: row.SplitValue,
			Confidence: row.Confidence,
		})
	}
	return windows
}

// transformGridded converts hypertable rows to the wire shape
func transformGridded(mooring string, rows []types.GriddedSampleRow) GriddedResponse {
	resp := GriddedResponse{Mooring: mooring, Samples: make([]GriddedSample, 0, len(rows))}
	for i := range rows {
		resp.Samples = append(resp.Samples, GriddedSample{
			Time:        rows[i].Time,
			RunID:       rows[i].RunID,
			Depths:      floatArray(rows[i].Depths),
			Temperature: floatArray(rows[i].Temperature),
			Salinity:    floatArray(rows[i].Salinity),
			Pressure:    floatArray(rows[i].PressureVar),
		})
	}
	return resp
}

// transformProfiles converts full-depth profile rows to the wire shape
func transformProfiles(mooring string, rows []types.ProfileRow) ProfileResponse {
	resp := ProfileResponse{Mooring: mooring, Profiles: make([]Profile, 0, len(rows))}
	for i := range rows {
		resp.Profiles = append(resp.Profiles, Profile{
			Time:       rows[i].Time,
			RunID:      rows[i].RunID,
			Pressures:  floatArray(rows[i].Pressures),
			Values:     floatArray(rows[i].Values),
			Provenance: rows[i].Provenance,
		})
	}
	return resp
}

// floatArray converts a Postgres float8 array to a nullable slice
func floatArray(a pgtype.Float8Array) []*float64 {
	if a.Status != pgtype.Present {
		return nil
	}
	out := make([]*float64, len(a.Elements))
	for i, e := range a.Elements {
		if e.Status == pgtype.Present {
			v := e.Float
			out[i] = &v
		}
	}
	return out
}
