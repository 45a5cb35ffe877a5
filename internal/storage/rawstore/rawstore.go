// Package rawstore implements a local SQLite store for captured instrument
// samples. It is the buffer between capture daemons in the field and the
// shore-side pipeline: cheap to run on small hardware, queryable by
// mooring, serial, and time range.
package rawstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS raw_samples (
    time REAL NOT NULL,
    mooring TEXT NOT NULL,
    serial TEXT NOT NULL,
    temperature REAL,
    conductivity REAL,
    pressure REAL,
    salinity REAL
);
CREATE INDEX IF NOT EXISTS raw_samples_lookup_idx ON raw_samples (mooring, serial, time);
`

// Store holds a SQLite-backed raw sample store
type Store struct {
	db   *sql.DB
	path string
}

// New opens or creates a raw sample store at the given path
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw sample store: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping raw sample store: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create raw sample schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// StartStorageEngine creates a goroutine loop to receive captured samples
// and append them to the store
func (s *Store) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.RawSample {
	log.Info("starting raw sample store engine...")
	sampleChan := make(chan types.RawSample, 10)
	go s.processSamples(ctx, wg, sampleChan)
	return sampleChan
}

func (s *Store) processSamples(ctx context.Context, wg *sync.WaitGroup, schan <-chan types.RawSample) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case sample := <-schan:
			if err := s.StoreSample(sample); err != nil {
				log.Error("could not store sample:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling sample processor.")
			return
		}
	}
}

// StoreSample appends one captured sample. NaN variables are stored as NULL
// since SQLite has no NaN representation.
func (s *Store) StoreSample(sample types.RawSample) error {
	query := `
		INSERT INTO raw_samples (time, mooring, serial, temperature, conductivity, pressure, salinity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		epochSeconds(sample.Timestamp), sample.Mooring, sample.Serial,
		nullIfNaN(sample.Temperature), nullIfNaN(sample.Conductivity),
		nullIfNaN(sample.Pressure), nullIfNaN(sample.Salinity),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// StoreSamples appends a batch of samples inside one transaction
func (s *Store) StoreSamples(samples []types.RawSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO raw_samples (time, mooring, serial, temperature, conductivity, pressure, salinity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		_, err := stmt.Exec(
			epochSeconds(sample.Timestamp), sample.Mooring, sample.Serial,
			nullIfNaN(sample.Temperature), nullIfNaN(sample.Conductivity),
			nullIfNaN(sample.Pressure), nullIfNaN(sample.Salinity),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// Query returns samples for one instrument between two times, ordered by time
func (s *Store) Query(mooring, serial string, from, to time.Time) ([]types.RawSample, error) {
	query := `
		SELECT time, mooring, serial, temperature, conductivity, pressure, salinity
		FROM raw_samples
		WHERE mooring = ? AND serial = ? AND time >= ? AND time <= ?
		ORDER BY time
	`

	rows, err := s.db.Query(query, mooring, serial, epochSeconds(from), epochSeconds(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// All returns every sample for one instrument, ordered by time
func (s *Store) All(mooring, serial string) ([]types.RawSample, error) {
	query := `
		SELECT time, mooring, serial, temperature, conductivity, pressure, salinity
		FROM raw_samples
		WHERE mooring = ? AND serial = ?
		ORDER BY time
	`

	rows, err := s.db.Query(query, mooring, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// Serials returns the distinct instrument serials stored for a mooring
func (s *Store) Serials(mooring string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT serial FROM raw_samples WHERE mooring = ? ORDER BY serial", mooring)
	if err != nil {
		return nil, fmt.Errorf("failed to query serials: %w", err)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var serial string
		if err := rows.Scan(&serial); err != nil {
			return nil, fmt.Errorf("failed to scan serial: %w", err)
		}
		serials = append(serials, serial)
	}
	return serials, rows.Err()
}

// Moorings returns the distinct mooring names present in the store
func (s *Store) Moorings() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT mooring FROM raw_samples ORDER BY mooring")
	if err != nil {
		return nil, fmt.Errorf("failed to query moorings: %w", err)
	}
	defer rows.Close()

	var moorings []string
	for rows.Next() {
		var mooring string
		if err := rows.Scan(&mooring); err != nil {
			return nil, fmt.Errorf("failed to scan mooring: %w", err)
		}
		moorings = append(moorings, mooring)
	}
	return moorings, rows.Err()
}

// Since returns samples strictly newer than the given time, ordered by time.
// An empty mooring matches every mooring in the store.
func (s *Store) Since(mooring string, after time.Time) ([]types.RawSample, error) {
	query := `
		SELECT time, mooring, serial, temperature, conductivity, pressure, salinity
		FROM raw_samples
		WHERE time > ?
		ORDER BY time
	`
	args := []any{epochSeconds(after)}
	if mooring != "" {
		query = `
			SELECT time, mooring, serial, temperature, conductivity, pressure, salinity
			FROM raw_samples
			WHERE mooring = ? AND time > ?
			ORDER BY time
		`
		args = []any{mooring, epochSeconds(after)}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// Count returns the number of samples stored for one instrument
func (s *Store) Count(mooring, serial string) (int64, error) {
	var count int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM raw_samples WHERE mooring = ? AND serial = ?",
		mooring, serial).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// Close closes the store
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanSamples(rows *sql.Rows) ([]types.RawSample, error) {
	var samples []types.RawSample
	for rows.Next() {
		var sample types.RawSample
		var epoch float64
		var temperature, conductivity, pressure, salinity sql.NullFloat64

		err := rows.Scan(&epoch, &sample.Mooring, &sample.Serial,
			&temperature, &conductivity, &pressure, &salinity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}

		sample.Timestamp = fromEpochSeconds(epoch)
		sample.Temperature = nanIfNull(temperature)
		sample.Conductivity = nanIfNull(conductivity)
		sample.Pressure = nanIfNull(pressure)
		sample.Salinity = nanIfNull(salinity)

		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// epochSeconds converts to fractional Unix seconds, the store's native time axis
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpochSeconds(epoch float64) time.Time {
	sec := math.Floor(epoch)
	nsec := math.Round((epoch - sec) * 1e9)
	return time.Unix(int64(sec), int64(nsec)).UTC()
}

func nullIfNaN(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
