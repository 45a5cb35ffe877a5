package server

import "time"

// MooringList is the response shape for the mooring index
type MooringList struct {
	Moorings []string `json:"moorings"`
}

// RunSummary is one processing run
type RunSummary struct {
	RunID      string    `json:"runId"`
	Mooring    string    `json:"mooring"`
	Stages     []string  `json:"stages,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Issues     int       `json:"issues"`
	Succeeded  bool      `json:"succeeded"`
}

// RunList carries recent runs for one mooring, newest first
type RunList struct {
	Mooring string       `json:"mooring"`
	Runs    []RunSummary `json:"runs"`
}

// ClockOffset is one instrument clock recommendation within a report
type ClockOffset struct {
	Serial        string  `json:"serial"`
	StartOffset   float64 `json:"startOffset"`
	EndOffset     float64 `json:"endOffset"`
	AvgOffset     float64 `json:"avgOffset"`
	DriftRate     float64 `json:"driftRate"`
	OffsetSeconds float64 `json:"offsetSeconds"`
	Source        string  `json:"source"`
	NoConsensus   bool    `json:"noConsensus,omitempty"`
}

// DeploymentWindow is one detected in-water window within a report
type DeploymentWindow struct {
	Serial     string    `json:"serial"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	SplitValue float64   `json:"splitValue"`
	Confidence string    `json:"confidence"`
}

// MooringReport is the newest processing run with its detail rows
type MooringReport struct {
	Mooring           string             `json:"mooring"`
	Run               RunSummary         `json:"run"`
	ClockOffsets      []ClockOffset      `json:"clockOffsets"`
	DeploymentWindows []DeploymentWindow `json:"deploymentWindows"`
}

// GriddedSample is one time step of the gridded product. Missing grid points
// are rendered as nulls since JSON cannot carry NaN.
type GriddedSample struct {
	Time        time.Time  `json:"time"`
	RunID       string     `json:"runId"`
	Depths      []*float64 `json:"depths"`
	Temperature []*float64 `json:"temperature"`
	Salinity    []*float64 `json:"salinity"`
	Pressure    []*float64 `json:"pressure"`
}

// GriddedResponse carries a gridded window
type GriddedResponse struct {
	Mooring string          `json:"mooring"`
	Samples []GriddedSample `json:"samples"`
}

// Profile is one full-depth profile time step. Provenance holds one letter
// per grid point: O observed, I interpolated, E extrapolated, i/e the
// linear-fallback variants, - missing.
type Profile struct {
	Time       time.Time  `json:"time"`
	RunID      string     `json:"runId"`
	Pressures  []*float64 `json:"pressures"`
	Values     []*float64 `json:"values"`
	Provenance string     `json:"provenance"`
}

// ProfileResponse carries a window of full-depth profiles
type ProfileResponse struct {
	Mooring  string    `json:"mooring"`
	Profiles []Profile `json:"profiles"`
}

// HealthResponse reports service liveness and backend reachability
type HealthResponse struct {
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
	ResultsDB string    `json:"resultsDb,omitempty"`
	RawStore  string    `json:"rawStore,omitempty"`
}
