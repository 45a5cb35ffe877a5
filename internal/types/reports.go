package types

import "time"

// Confidence grades a deployment-window detection.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// DeploymentWindow is the detector's estimate of the true in-situ period for
// one instrument. With ConfidenceNone the bounds are the full record and no
// trimming should be applied.
type DeploymentWindow struct {
	Serial     string     `json:"serial"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	SplitValue float64    `json:"split_value"` // threshold separating in-water from surface values
	Confidence Confidence `json:"confidence"`
}

// LagResult is one lag-correlation estimate of a target instrument against a
// reference. LagSeconds follows the correction convention: the amount to add
// to the target's timestamps to align it with the reference. OK is false when
// the overlap was too short to produce a trustworthy estimate.
type LagResult struct {
	Serial      string  `json:"serial"`
	RefSerial   string  `json:"ref_serial"`
	LagSamples  int     `json:"lag_samples"`
	LagSeconds  float64 `json:"lag_seconds"`
	Correlation float64 `json:"correlation"`
	Overlap     int     `json:"overlap"`
	OK          bool    `json:"ok"`
}

// OffsetSource records which estimator produced a recommendation.
type OffsetSource int

const (
	OffsetSourceNone OffsetSource = iota
	OffsetSourceConsensus
	OffsetSourceLagCorrelation
)

func (s OffsetSource) String() string {
	switch s {
	case OffsetSourceConsensus:
		return "consensus"
	case OffsetSourceLagCorrelation:
		return "lag_correlation"
	default:
		return "none"
	}
}

// OffsetRecommendation is the reconciler's advisory output for one
// instrument. StartOffset/EndOffset/AvgOffset are the detected discrepancies
// (detected boundary minus consensus boundary, seconds); OffsetSeconds is the
// recommended correction, the negative of AvgOffset, to be added to the raw
// timestamps. Nothing is mutated by the reconciler itself.
type OffsetRecommendation struct {
	Serial        string       `json:"serial"`
	StartOffset   float64      `json:"start_offset"`
	EndOffset     float64      `json:"end_offset"`
	AvgOffset     float64      `json:"avg_offset"`
	DriftRate     float64      `json:"drift_rate"` // seconds per day across the deployment
	OffsetSeconds float64      `json:"offset_seconds"`
	Source        OffsetSource `json:"source"`
}

// MooringOffsetReport is the per-mooring reconciliation summary.
type MooringOffsetReport struct {
	Mooring            string                 `json:"mooring"`
	ReferenceSerial    string                 `json:"reference_serial"`     // instrument used for lag-correlation fallback
	SuggestedReference string                 `json:"suggested_reference"`  // smallest average discrepancy
	ConsensusStart     time.Time              `json:"consensus_start"`
	ConsensusEnd       time.Time              `json:"consensus_end"`
	ConsensusSize      int                    `json:"consensus_size"`
	NoConsensus        bool                   `json:"no_consensus"`
	Recommendations    []OffsetRecommendation `json:"recommendations"`
	Warnings           []string               `json:"warnings"`
}

// Recommendation returns the entry for the given serial, or nil.
func (r *MooringOffsetReport) Recommendation(serial string) *OffsetRecommendation {
	for i := range r.Recommendations {
		if r.Recommendations[i].Serial == serial {
			return &r.Recommendations[i]
		}
	}
	return nil
}

// TimingStats summarizes one instrument's native sampling cadence.
type TimingStats struct {
	Serial         string        `json:"serial"`
	Samples        int           `json:"samples"`
	MedianInterval time.Duration `json:"median_interval"`
	MinInterval    time.Duration `json:"min_interval"`
	MaxInterval    time.Duration `json:"max_interval"`
	Irregularity   float64       `json:"irregularity"` // interval std / median
}

// GridReport carries the common-grid interpolator's diagnostics.
type GridReport struct {
	Mooring     string        `json:"mooring"`
	Interval    time.Duration `json:"interval"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Instruments []TimingStats `json:"instruments"`
	Excluded    []string      `json:"excluded"` // serials with no usable samples
	Warnings    []string      `json:"warnings"`
}

// InstrumentIssue is one recorded problem during a pipeline run.
type InstrumentIssue struct {
	Serial  string `json:"serial"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ProcessingReport summarizes one pipeline run over one mooring: best-effort
// product plus an explicit list of issues, rather than a terminated run.
type ProcessingReport struct {
	RunID      string            `json:"run_id"`
	Mooring    string            `json:"mooring"`
	Stages     []string          `json:"stages"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Issues     []InstrumentIssue `json:"issues"`
	Succeeded  bool              `json:"succeeded"`
}

// AddIssue appends a problem record for one instrument and stage.
func (p *ProcessingReport) AddIssue(serial, stage, message string) {
	p.Issues = append(p.Issues, InstrumentIssue{Serial: serial, Stage: stage, Message: message})
}
