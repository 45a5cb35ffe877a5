package types

import (
	"time"

	"github.com/jackc/pgtype"
)

// RawSample is one captured instrument record as held in the raw sample
// store and in msgpack archives. Unmeasured variables are NaN.
type RawSample struct {
	Timestamp    time.Time `gorm:"column:time" json:"time" msgpack:"time"`
	Mooring      string    `gorm:"column:mooring" json:"mooring" msgpack:"mooring"`
	Serial       string    `gorm:"column:serial" json:"serial" msgpack:"serial"`
	Temperature  float64   `gorm:"column:temperature" json:"temperature" msgpack:"temperature"`
	Conductivity float64   `gorm:"column:conductivity" json:"conductivity" msgpack:"conductivity"`
	Pressure     float64   `gorm:"column:pressure" json:"pressure" msgpack:"pressure"`
	Salinity     float64   `gorm:"column:salinity" json:"salinity" msgpack:"salinity"`
}

// TableName implements the GORM Tabler interface for the RawSample struct
func (RawSample) TableName() string { return "raw_samples" }

// RunRow records one pipeline run in the results database.
type RunRow struct {
	RunID      string    `gorm:"column:run_id;primaryKey"`
	Mooring    string    `gorm:"column:mooring"`
	Stages     string    `gorm:"column:stages"`
	StartedAt  time.Time `gorm:"column:started_at"`
	FinishedAt time.Time `gorm:"column:finished_at"`
	Issues     int       `gorm:"column:issues"`
	Succeeded  bool      `gorm:"column:succeeded"`
}

func (RunRow) TableName() string { return "runs" }

// DeploymentRow persists one detected deployment window.
type DeploymentRow struct {
	RunID      string    `gorm:"column:run_id"`
	Mooring    string    `gorm:"column:mooring"`
	Serial     string    `gorm:"column:serial"`
	Start      time.Time `gorm:"column:deploy_start"`
	End        time.Time `gorm:"column:deploy_end"`
	SplitValue float64   `gorm:"column:split_value"`
	Confidence string    `gorm:"column:confidence"`
}

func (DeploymentRow) TableName() string { return "deployment_windows" }

// OffsetRow persists one clock-offset recommendation.
type OffsetRow struct {
	RunID         string  `gorm:"column:run_id"`
	Mooring       string  `gorm:"column:mooring"`
	Serial        string  `gorm:"column:serial"`
	StartOffset   float64 `gorm:"column:start_offset"`
	EndOffset     float64 `gorm:"column:end_offset"`
	AvgOffset     float64 `gorm:"column:avg_offset"`
	DriftRate     float64 `gorm:"column:drift_rate"`
	OffsetSeconds float64 `gorm:"column:offset_seconds"`
	Source        string  `gorm:"column:source"`
	NoConsensus   bool    `gorm:"column:no_consensus"`
}

func (OffsetRow) TableName() string { return "clock_offsets" }

// GriddedSampleRow is one time step of a gridded mooring product stored as a
// hypertable row, with the level dimension held in Postgres array columns.
type GriddedSampleRow struct {
	Time        time.Time          `gorm:"column:time"`
	Mooring     string             `gorm:"column:mooring"`
	RunID       string             `gorm:"column:run_id"`
	Depths      pgtype.Float8Array `gorm:"column:depths;type:double precision[]"`
	Temperature pgtype.Float8Array `gorm:"column:temperature;type:double precision[]"`
	Salinity    pgtype.Float8Array `gorm:"column:salinity;type:double precision[]"`
	PressureVar pgtype.Float8Array `gorm:"column:pressure;type:double precision[]"`
}

func (GriddedSampleRow) TableName() string { return "gridded_samples" }

// ProfileRow is one time step of the full-depth vertical product.
type ProfileRow struct {
	Time       time.Time          `gorm:"column:time"`
	Mooring    string             `gorm:"column:mooring"`
	RunID      string             `gorm:"column:run_id"`
	Pressures  pgtype.Float8Array `gorm:"column:pressures;type:double precision[]"`
	Values     pgtype.Float8Array `gorm:"column:temperature;type:double precision[]"`
	Provenance string             `gorm:"column:provenance"` // one letter per grid point
}

func (ProfileRow) TableName() string { return "full_depth_profiles" }
