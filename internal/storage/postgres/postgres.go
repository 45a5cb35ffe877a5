// Package postgres implements the results database: a TimescaleDB-backed
// store for captured samples, pipeline runs, and gridded products.
package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgtype"
	"github.com/oceanobs/moorproc/internal/database"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"gorm.io/gorm"
)

// Storage holds the connection for the results database backend
type Storage struct {
	PGConn *gorm.DB
}

// We declare the Tabler interface for purposes of customizing the table name in the DB
type Tabler interface {
	TableName() string
}

// New sets up a new results database backend, creating tables, hypertables
// and continuous aggregates as needed
func New(ctx context.Context, connectionString string) (*Storage, error) {
	var err error
	t := Storage{}

	t.PGConn, err = database.CreateConnection(connectionString)
	if err != nil {
		log.Warn("warning: unable to create a results database connection:", err)
		return &Storage{}, err
	}

	log.Info("creating raw sample table...")
	err = t.PGConn.WithContext(ctx).Exec(createRawTableSQL).Error
	if err != nil {
		log.Warn("warning: could not create raw sample table")
		return &Storage{}, err
	}

	log.Info("creating TimescaleDB extension...")
	err = t.PGConn.WithContext(ctx).Exec(createExtensionSQL).Error
	if err != nil {
		log.Warn("warning: could not create TimescaleDB extension")
		return &Storage{}, err
	}

	log.Info("creating raw sample hypertable...")
	err = t.PGConn.WithContext(ctx).Exec(createRawHypertableSQL).Error
	if err != nil {
		log.Warn("warning: could not create raw sample hypertable")
		return &Storage{}, err
	}

	err = t.PGConn.WithContext(ctx).Exec(createRawIndexSQL).Error
	if err != nil {
		log.Warn("warning: could not create raw sample index")
		return &Storage{}, err
	}

	log.Info("creating run bookkeeping tables...")
	for _, ddl := range []string{createRunsTableSQL, createDeploymentWindowsTableSQL, createClockOffsetsTableSQL} {
		if err = t.PGConn.WithContext(ctx).Exec(ddl).Error; err != nil {
			log.Warn("warning: could not create run bookkeeping table")
			return &Storage{}, err
		}
	}

	log.Info("creating gridded product hypertable...")
	err = t.PGConn.WithContext(ctx).Exec(createGriddedTableSQL).Error
	if err != nil {
		log.Warn("warning: could not create gridded product table")
		return &Storage{}, err
	}
	err = t.PGConn.WithContext(ctx).Exec(createGriddedHypertableSQL).Error
	if err != nil {
		log.Warn("warning: could not create gridded product hypertable")
		return &Storage{}, err
	}
	err = t.PGConn.WithContext(ctx).Exec(createGriddedIndexSQL).Error
	if err != nil {
		log.Warn("warning: could not create gridded product index")
		return &Storage{}, err
	}

	log.Info("creating full-depth profile hypertable...")
	err = t.PGConn.WithContext(ctx).Exec(createProfilesTableSQL).Error
	if err != nil {
		log.Warn("warning: could not create full-depth profile table")
		return &Storage{}, err
	}
	err = t.PGConn.WithContext(ctx).Exec(createProfilesHypertableSQL).Error
	if err != nil {
		log.Warn("warning: could not create full-depth profile hypertable")
		return &Storage{}, err
	}

	log.Info("creating 1h view...")
	err = t.PGConn.WithContext(ctx).Exec(create1hViewSQL).Error
	if err != nil {
		log.Warn("warning: could not create 1h view")
		return &Storage{}, err
	}

	log.Info("creating 1d view...")
	err = t.PGConn.WithContext(ctx).Exec(create1dViewSQL).Error
	if err != nil {
		log.Warn("warning: could not create 1d view")
		return &Storage{}, err
	}

	log.Info("adding 1h aggregation policy...")
	err = t.PGConn.WithContext(ctx).Exec(addAggregationPolicy1hSQL).Error
	if err != nil {
		log.Warn("warning: could not add 1h aggregation policy")
		return &Storage{}, err
	}

	log.Info("adding 1d aggregation policy...")
	err = t.PGConn.WithContext(ctx).Exec(addAggregationPolicy1dSQL).Error
	if err != nil {
		log.Warn("warning: could not add 1d aggregation policy")
		return &Storage{}, err
	}

	return &t, nil
}

// StartStorageEngine creates a goroutine loop to receive captured samples and
// send them off to the results database
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.RawSample {
	log.Info("starting results database storage engine...")
	sampleChan := make(chan types.RawSample, 10)
	go t.processSamples(ctx, wg, sampleChan)
	return sampleChan
}

func (t *Storage) processSamples(ctx context.Context, wg *sync.WaitGroup, schan <-chan types.RawSample) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case s := <-schan:
			if err := t.StoreSample(s); err != nil {
				log.Error("could not store sample:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling sample processor.")
			return
		}
	}
}

// StoreSample stores one captured sample in the raw_samples hypertable
func (t *Storage) StoreSample(s types.RawSample) error {
	return t.PGConn.Create(&s).Error
}

// StoreRun records the bookkeeping row for one pipeline run
func (t *Storage) StoreRun(report *types.ProcessingReport) error {
	row := types.RunRow{
		RunID:      report.RunID,
		Mooring:    report.Mooring,
		Stages:     strings.Join(report.Stages, ","),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Issues:     len(report.Issues),
		Succeeded:  report.Succeeded,
	}
	err := t.PGConn.Create(&row).Error
	if err != nil {
		log.Error("could not store run:", err)
		return err
	}
	return nil
}

// StoreDeploymentWindows persists the detector output for one run
func (t *Storage) StoreDeploymentWindows(runID, mooring string, windows []types.DeploymentWindow) error {
	if len(windows) == 0 {
		return nil
	}
	rows := make([]types.DeploymentRow, 0, len(windows))
	for _, w := range windows {
		rows = append(rows, types.DeploymentRow{
			RunID:      runID,
			Mooring:    mooring,
			Serial:     w.Serial,
			Start:      w.Start,
			End:        w.End,
			SplitValue: w.SplitValue,
			Confidence: w.Confidence.String(),
		})
	}
	err := t.PGConn.Create(&rows).Error
	if err != nil {
		log.Error("could not store deployment windows:", err)
		return err
	}
	return nil
}

// StoreOffsetReport persists the reconciler recommendations for one run
func (t *Storage) StoreOffsetReport(runID string, report *types.MooringOffsetReport) error {
	if report == nil || len(report.Recommendations) == 0 {
		return nil
	}
	rows := make([]types.OffsetRow, 0, len(report.Recommendations))
	for _, rec := range report.Recommendations {
		rows = append(rows, types.OffsetRow{
			RunID:         runID,
			Mooring:       report.Mooring,
			Serial:        rec.Serial,
			StartOffset:   rec.StartOffset,
			EndOffset:     rec.EndOffset,
			AvgOffset:     rec.AvgOffset,
			DriftRate:     rec.DriftRate,
			OffsetSeconds: rec.OffsetSeconds,
			Source:        rec.Source.String(),
			NoConsensus:   report.NoConsensus,
		})
	}
	err := t.PGConn.Create(&rows).Error
	if err != nil {
		log.Error("could not store clock offsets:", err)
		return err
	}
	return nil
}

// StoreGridded persists a gridded mooring product, one hypertable row per
// time step with the level dimension in array columns
func (t *Storage) StoreGridded(runID string, g *types.GriddedMooring) error {
	if g == nil || len(g.Times) == 0 {
		return nil
	}

	rows := make([]types.GriddedSampleRow, 0, len(g.Times))
	for i, ts := range g.Times {
		row := types.GriddedSampleRow{
			Time:    ts,
			Mooring: g.Mooring,
			RunID:   runID,
			Depths:  float8Array(g.Depths),
		}
		if v, ok := g.Variables[types.VarTemperature]; ok {
			row.Temperature = float8Array(v[i])
		}
		if v, ok := g.Variables[types.VarSalinity]; ok {
			row.Salinity = float8Array(v[i])
		}
		if v, ok := g.Variables[types.VarPressure]; ok {
			row.PressureVar = float8Array(v[i])
		}
		rows = append(rows, row)
	}

	err := t.PGConn.CreateInBatches(&rows, 500).Error
	if err != nil {
		log.Error("could not store gridded product:", err)
		return err
	}
	return nil
}

// StoreProfiles persists full-depth vertical profiles for one run
func (t *Storage) StoreProfiles(runID, mooring string, profiles []types.FullDepthProfile) error {
	if len(profiles) == 0 {
		return nil
	}

	rows := make([]types.ProfileRow, 0, len(profiles))
	for _, p := range profiles {
		prov := make([]byte, len(p.Provenance))
		for i, code := range p.Provenance {
			prov[i] = provenanceLetter(code)
		}
		rows = append(rows, types.ProfileRow{
			Time:       p.Time,
			Mooring:    mooring,
			RunID:      runID,
			Pressures:  float8Array(p.Pressures),
			Values:     float8Array(p.Values),
			Provenance: string(prov),
		})
	}

	err := t.PGConn.CreateInBatches(&rows, 500).Error
	if err != nil {
		log.Error("could not store full-depth profiles:", err)
		return err
	}
	return nil
}

// Moorings returns the distinct mooring names present in the runs table
func (t *Storage) Moorings() ([]string, error) {
	var names []string
	err := t.PGConn.Model(&types.RunRow{}).Distinct("mooring").Order("mooring").Pluck("mooring", &names).Error
	if err != nil {
		return nil, fmt.Errorf("error querying moorings: %w", err)
	}
	return names, nil
}

// LatestRun returns the newest run row for a mooring
func (t *Storage) LatestRun(mooring string) (*types.RunRow, error) {
	var row types.RunRow
	err := t.PGConn.Where("mooring = ?", mooring).Order("started_at DESC").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying latest run: %w", err)
	}
	return &row, nil
}

// Runs returns up to limit recent runs for a mooring, newest first
func (t *Storage) Runs(mooring string, limit int) ([]types.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []types.RunRow
	err := t.PGConn.Where("mooring = ?", mooring).Order("started_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	return rows, nil
}

// OffsetsForRun returns the stored clock-offset recommendations for a run
func (t *Storage) OffsetsForRun(runID string) ([]types.OffsetRow, error) {
	var rows []types.OffsetRow
	err := t.PGConn.Where("run_id = ?", runID).Order("serial").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying clock offsets: %w", err)
	}
	return rows, nil
}

// DeploymentWindowsForRun returns the stored detector output for a run
func (t *Storage) DeploymentWindowsForRun(runID string) ([]types.DeploymentRow, error) {
	var rows []types.DeploymentRow
	err := t.PGConn.Where("run_id = ?", runID).Order("serial").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying deployment windows: %w", err)
	}
	return rows, nil
}

// GriddedWindow returns gridded product rows for a mooring between two times
func (t *Storage) GriddedWindow(mooring string, from, to time.Time) ([]types.GriddedSampleRow, error) {
	var rows []types.GriddedSampleRow
	err := t.PGConn.Where("mooring = ? AND time >= ? AND time <= ?", mooring, from, to).
		Order("time").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying gridded samples: %w", err)
	}
	return rows, nil
}

// ProfilesWindow returns full-depth profile rows for a mooring between two times
func (t *Storage) ProfilesWindow(mooring string, from, to time.Time) ([]types.ProfileRow, error) {
	var rows []types.ProfileRow
	err := t.PGConn.Where("mooring = ? AND time >= ? AND time <= ?", mooring, from, to).
		Order("time").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying full-depth profiles: %w", err)
	}
	return rows, nil
}

// RawWindow returns captured samples for one instrument between two times
func (t *Storage) RawWindow(mooring, serial string, from, to time.Time) ([]types.RawSample, error) {
	var rows []types.RawSample
	err := t.PGConn.Where("mooring = ? AND serial = ? AND time >= ? AND time <= ?", mooring, serial, from, to).
		Order("time").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying raw samples: %w", err)
	}
	return rows, nil
}

// RawSerials returns the distinct instrument serials captured for a mooring
func (t *Storage) RawSerials(mooring string) ([]string, error) {
	var serials []string
	err := t.PGConn.Model(&types.RawSample{}).Where("mooring = ?", mooring).
		Distinct("serial").Order("serial").Pluck("serial", &serials).Error
	if err != nil {
		return nil, fmt.Errorf("error querying raw serials: %w", err)
	}
	return serials, nil
}

// float8Array converts a float slice into a Postgres double precision array.
// NaN elements are stored as SQL NULL so array cells stay queryable.
func float8Array(values []float64) pgtype.Float8Array {
	var arr pgtype.Float8Array
	if values == nil {
		arr.Status = pgtype.Null
		return arr
	}
	elements := make([]pgtype.Float8, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			elements[i] = pgtype.Float8{Status: pgtype.Null}
		} else {
			elements[i] = pgtype.Float8{Float: v, Status: pgtype.Present}
		}
	}
	arr.Elements = elements
	arr.Dimensions = []pgtype.ArrayDimension{{Length: int32(len(values)), LowerBound: 1}}
	arr.Status = pgtype.Present
	return arr
}

// Floats converts a stored array column back to a float slice, NULL cells
// becoming NaN
func Floats(arr pgtype.Float8Array) []float64 {
	if arr.Status != pgtype.Present {
		return nil
	}
	values := make([]float64, len(arr.Elements))
	for i, e := range arr.Elements {
		if e.Status == pgtype.Present {
			values[i] = e.Float
		} else {
			values[i] = math.NaN()
		}
	}
	return values
}

func provenanceLetter(p types.Provenance) byte {
	switch p {
	case types.ProvObserved:
		return 'O'
	case types.ProvInterpolated:
		return 'I'
	case types.ProvExtrapolated:
		return 'E'
	case types.ProvInterpolatedLinear:
		return 'i'
	case types.ProvExtrapolatedLinear:
		return 'e'
	default:
		return '-'
	}
}
