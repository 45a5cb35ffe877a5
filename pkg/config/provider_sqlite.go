package config

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/oceanobs/moorproc/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider. The schema
// is created or upgraded in place from the embedded migrations.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(sub, "config_migrations", "sqlite"))
	if err := migrator.MigrateUp(); err != nil {
		return nil, fmt.Errorf("failed to migrate config schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	moorings, err := s.GetMoorings()
	if err != nil {
		return nil, fmt.Errorf("failed to load moorings: %w", err)
	}
	config.Moorings = moorings

	pipeline, err := s.GetPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}
	if pipeline != nil {
		config.Pipeline = *pipeline
	}

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	server, err := s.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	config.Server = server

	captures, err := s.GetCaptureConfigs()
	if err != nil {
		return nil, fmt.Errorf("failed to load capture configs: %w", err)
	}
	config.Capture = captures

	return config, nil
}

// GetMoorings returns mooring configurations from the database
func (s *SQLiteProvider) GetMoorings() ([]MooringData, error) {
	query := `
		SELECT id, name, latitude, longitude, water_depth,
		       deployed_at, recovered_at, telemetry
		FROM moorings
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query moorings: %w", err)
	}
	defer rows.Close()

	var moorings []MooringData
	var ids []int64
	for rows.Next() {
		var id int64
		var mooring MooringData
		var waterDepth sql.NullFloat64
		var deployedAt, recoveredAt sql.NullString

		err := rows.Scan(
			&id, &mooring.Name, &mooring.Latitude, &mooring.Longitude,
			&waterDepth, &deployedAt, &recoveredAt, &mooring.Telemetry,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mooring row: %w", err)
		}

		if waterDepth.Valid {
			mooring.WaterDepth = waterDepth.Float64
		}

		mooring.DeployedAt, err = parseMooringTime(mooring.Name, "deployed-at", deployedAt.String)
		if err != nil {
			return nil, err
		}
		mooring.RecoveredAt, err = parseMooringTime(mooring.Name, "recovered-at", recoveredAt.String)
		if err != nil {
			return nil, err
		}

		moorings = append(moorings, mooring)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mooring rows: %w", err)
	}

	for i := range moorings {
		instruments, err := s.getInstruments(ids[i])
		if err != nil {
			return nil, fmt.Errorf("failed to load instruments for mooring %s: %w", moorings[i].Name, err)
		}
		moorings[i].Instruments = instruments
	}

	return moorings, nil
}

// getInstruments returns the instruments attached to a mooring
func (s *SQLiteProvider) getInstruments(mooringID int64) ([]InstrumentData, error) {
	query := `
		SELECT serial, model, nominal_depth, has_pressure, clock_offset, variables
		FROM instruments
		WHERE mooring_id = ?
		ORDER BY nominal_depth, serial
	`

	rows, err := s.db.Query(query, mooringID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []InstrumentData
	for rows.Next() {
		var inst InstrumentData
		var model, variables sql.NullString
		var clockOffset sql.NullFloat64

		err := rows.Scan(
			&inst.Serial, &model, &inst.NominalDepth,
			&inst.HasPressure, &clockOffset, &variables,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument row: %w", err)
		}

		if model.Valid {
			inst.Model = model.String
		}
		if clockOffset.Valid {
			inst.ClockOffset = clockOffset.Float64
		}
		inst.Variables = splitVariables(variables.String)

		instruments = append(instruments, inst)
	}

	return instruments, rows.Err()
}

// GetMooring retrieves a specific mooring by name
func (s *SQLiteProvider) GetMooring(name string) (*MooringData, error) {
	moorings, err := s.GetMoorings()
	if err != nil {
		return nil, err
	}
	for i := range moorings {
		if moorings[i].Name == name {
			return &moorings[i], nil
		}
	}
	return nil, fmt.Errorf("mooring %s not found", name)
}

// GetPipelineConfig returns pipeline configuration from the database,
// or nil when none has been stored
func (s *SQLiteProvider) GetPipelineConfig() (*PipelineData, error) {
	query := `
		SELECT workers, variables, filter_cutoff_days, filter_order,
		       grid_span, grid_interval_seconds, offset_tolerance_seconds,
		       climatology_path, pressure_step, max_pressure
		FROM pipeline_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var pipeline PipelineData
	var workers, filterOrder sql.NullInt64
	var variables, gridSpan, climatologyPath sql.NullString
	var cutoffDays, gridInterval, offsetTolerance, pressureStep, maxPressure sql.NullFloat64

	err := s.db.QueryRow(query).Scan(
		&workers, &variables, &cutoffDays, &filterOrder,
		&gridSpan, &gridInterval, &offsetTolerance,
		&climatologyPath, &pressureStep, &maxPressure,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query pipeline config: %w", err)
	}

	if workers.Valid {
		pipeline.Workers = int(workers.Int64)
	}
	pipeline.Variables = splitVariables(variables.String)
	if cutoffDays.Valid {
		pipeline.FilterCutoffDays = cutoffDays.Float64
	}
	if filterOrder.Valid {
		pipeline.FilterOrder = int(filterOrder.Int64)
	}
	if gridSpan.Valid {
		pipeline.GridSpan = gridSpan.String
	}
	if gridInterval.Valid {
		pipeline.GridIntervalSeconds = gridInterval.Float64
	}
	if offsetTolerance.Valid {
		pipeline.OffsetToleranceSeconds = offsetTolerance.Float64
	}
	if climatologyPath.Valid {
		pipeline.ClimatologyPath = climatologyPath.String
	}
	if pressureStep.Valid {
		pipeline.PressureStep = pressureStep.Float64
	}
	if maxPressure.Valid {
		pipeline.MaxPressure = maxPressure.Float64
	}

	return &pipeline, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, enabled,
		       pg_connection_string,
		       rawstore_path,
		       archive_directory,
		       grpc_cert, grpc_key, grpc_listen_addr, grpc_port, grpc_pull_from_mooring
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}

	for rows.Next() {
		var backendType string
		var enabled bool
		var pgConnectionString sql.NullString
		var rawstorePath sql.NullString
		var archiveDirectory sql.NullString
		var grpcCert, grpcKey, grpcListenAddr, grpcPullFromMooring sql.NullString
		var grpcPort sql.NullInt64

		err := rows.Scan(
			&backendType, &enabled,
			&pgConnectionString,
			&rawstorePath,
			&archiveDirectory,
			&grpcCert, &grpcKey, &grpcListenAddr, &grpcPort, &grpcPullFromMooring,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "postgres":
			if pgConnectionString.Valid {
				storage.Postgres = &PostgresData{
					ConnectionString: pgConnectionString.String,
				}
			}
		case "rawstore":
			if rawstorePath.Valid {
				storage.RawStore = &RawStoreData{
					Path: rawstorePath.String,
				}
			}
		case "archive":
			if archiveDirectory.Valid {
				storage.Archive = &ArchiveData{
					Directory: archiveDirectory.String,
				}
			}
		case "grpc":
			if grpcPort.Valid {
				storage.GRPC = &GRPCData{
					Cert:            grpcCert.String,
					Key:             grpcKey.String,
					ListenAddr:      grpcListenAddr.String,
					Port:            int(grpcPort.Int64),
					PullFromMooring: grpcPullFromMooring.String,
				}
			}
		}
	}

	return storage, rows.Err()
}

// GetServerConfig returns REST server configuration, nil when absent
func (s *SQLiteProvider) GetServerConfig() (*ServerData, error) {
	query := `
		SELECT cert, key, port, listen_addr
		FROM server_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
	`

	var server ServerData
	var cert, key, listenAddr sql.NullString
	var port sql.NullInt64

	err := s.db.QueryRow(query).Scan(&cert, &key, &port, &listenAddr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query server config: %w", err)
	}

	server.Cert = cert.String
	server.Key = key.String
	if port.Valid {
		server.Port = int(port.Int64)
	}
	server.ListenAddr = listenAddr.String

	return &server, nil
}

// GetCaptureConfigs returns capture source configurations
func (s *SQLiteProvider) GetCaptureConfigs() ([]CaptureData, error) {
	query := `
		SELECT name, type, serial_device, baud, listen_addr, port, mooring, serial
		FROM capture_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query capture configs: %w", err)
	}
	defer rows.Close()

	var captures []CaptureData
	for rows.Next() {
		var capture CaptureData
		var serialDevice, listenAddr, mooring, serial sql.NullString
		var baud, port sql.NullInt64

		err := rows.Scan(
			&capture.Name, &capture.Type, &serialDevice, &baud,
			&listenAddr, &port, &mooring, &serial,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture config row: %w", err)
		}

		capture.SerialDevice = serialDevice.String
		if baud.Valid {
			capture.Baud = int(baud.Int64)
		}
		capture.ListenAddr = listenAddr.String
		if port.Valid {
			capture.Port = int(port.Int64)
		}
		capture.Mooring = mooring.String
		capture.Serial = serial.String

		captures = append(captures, capture)
	}

	return captures, rows.Err()
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write methods for configuration management

// SaveConfig saves complete configuration to the database
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.insertConfig(tx, "default")
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for i := range configData.Moorings {
		if err := s.insertMooring(tx, configID, &configData.Moorings[i]); err != nil {
			return fmt.Errorf("failed to insert mooring %s: %w", configData.Moorings[i].Name, err)
		}
	}

	if err := s.insertPipelineConfig(tx, configID, &configData.Pipeline); err != nil {
		return fmt.Errorf("failed to insert pipeline config: %w", err)
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	if configData.Server != nil {
		if err := s.insertServerConfig(tx, configID, configData.Server); err != nil {
			return fmt.Errorf("failed to insert server config: %w", err)
		}
	}

	for i := range configData.Capture {
		if err := s.insertCaptureConfig(tx, configID, &configData.Capture[i]); err != nil {
			return fmt.Errorf("failed to insert capture config %s: %w", configData.Capture[i].Name, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) insertConfig(tx *sql.Tx, name string) (int64, error) {
	query := `INSERT OR REPLACE INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))`
	result, err := tx.Exec(query, name)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM instruments WHERE mooring_id IN (SELECT id FROM moorings WHERE config_id = ?)",
		"DELETE FROM moorings WHERE config_id = ?",
		"DELETE FROM pipeline_configs WHERE config_id = ?",
		"DELETE FROM storage_configs WHERE config_id = ?",
		"DELETE FROM server_configs WHERE config_id = ?",
		"DELETE FROM capture_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertMooring(tx *sql.Tx, configID int64, mooring *MooringData) error {
	query := `
		INSERT INTO moorings (
			config_id, name, latitude, longitude, water_depth,
			deployed_at, recovered_at, telemetry
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		configID, mooring.Name, mooring.Latitude, mooring.Longitude,
		nullFloat64(mooring.WaterDepth),
		nullTime(mooring.DeployedAt), nullTime(mooring.RecoveredAt),
		mooring.Telemetry,
	)
	if err != nil {
		return err
	}

	mooringID, err := result.LastInsertId()
	if err != nil {
		return err
	}

	for i := range mooring.Instruments {
		if err := s.insertInstrument(tx, mooringID, &mooring.Instruments[i]); err != nil {
			return fmt.Errorf("failed to insert instrument %s: %w", mooring.Instruments[i].Serial, err)
		}
	}

	return nil
}

func (s *SQLiteProvider) insertInstrument(tx *sql.Tx, mooringID int64, inst *InstrumentData) error {
	query := `
		INSERT INTO instruments (
			mooring_id, serial, model, nominal_depth, has_pressure,
			clock_offset, variables
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		mooringID, inst.Serial, nullString(inst.Model), inst.NominalDepth,
		inst.HasPressure, inst.ClockOffset, nullString(joinVariables(inst.Variables)),
	)
	return err
}

func (s *SQLiteProvider) insertPipelineConfig(tx *sql.Tx, configID int64, pipeline *PipelineData) error {
	query := `
		INSERT INTO pipeline_configs (
			config_id, workers, variables, filter_cutoff_days, filter_order,
			grid_span, grid_interval_seconds, offset_tolerance_seconds,
			climatology_path, pressure_step, max_pressure
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		configID, pipeline.Workers, nullString(joinVariables(pipeline.Variables)),
		pipeline.FilterCutoffDays, pipeline.FilterOrder,
		nullString(pipeline.GridSpan), pipeline.GridIntervalSeconds,
		pipeline.OffsetToleranceSeconds, nullString(pipeline.ClimatologyPath),
		pipeline.PressureStep, pipeline.MaxPressure,
	)
	return err
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	if storage.Postgres != nil {
		query := `
			INSERT INTO storage_configs (
				config_id, backend_type, enabled, pg_connection_string
			) VALUES (?, 'postgres', 1, ?)
		`
		if _, err := tx.Exec(query, configID, storage.Postgres.ConnectionString); err != nil {
			return err
		}
	}

	if storage.RawStore != nil {
		query := `
			INSERT INTO storage_configs (
				config_id, backend_type, enabled, rawstore_path
			) VALUES (?, 'rawstore', 1, ?)
		`
		if _, err := tx.Exec(query, configID, storage.RawStore.Path); err != nil {
			return err
		}
	}

	if storage.Archive != nil {
		query := `
			INSERT INTO storage_configs (
				config_id, backend_type, enabled, archive_directory
			) VALUES (?, 'archive', 1, ?)
		`
		if _, err := tx.Exec(query, configID, storage.Archive.Directory); err != nil {
			return err
		}
	}

	if storage.GRPC != nil {
		query := `
			INSERT INTO storage_configs (
				config_id, backend_type, enabled,
				grpc_cert, grpc_key, grpc_listen_addr, grpc_port, grpc_pull_from_mooring
			) VALUES (?, 'grpc', 1, ?, ?, ?, ?, ?)
		`
		if _, err := tx.Exec(query, configID,
			storage.GRPC.Cert, storage.GRPC.Key, storage.GRPC.ListenAddr,
			storage.GRPC.Port, storage.GRPC.PullFromMooring,
		); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteProvider) insertServerConfig(tx *sql.Tx, configID int64, server *ServerData) error {
	query := `
		INSERT INTO server_configs (
			config_id, cert, key, port, listen_addr
		) VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query, configID,
		nullString(server.Cert), nullString(server.Key),
		server.Port, nullString(server.ListenAddr),
	)
	return err
}

func (s *SQLiteProvider) insertCaptureConfig(tx *sql.Tx, configID int64, capture *CaptureData) error {
	query := `
		INSERT INTO capture_configs (
			config_id, name, type, serial_device, baud,
			listen_addr, port, mooring, serial
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		configID, capture.Name, capture.Type,
		nullString(capture.SerialDevice), capture.Baud,
		nullString(capture.ListenAddr), capture.Port,
		nullString(capture.Mooring), nullString(capture.Serial),
	)
	return err
}

// Individual mooring management methods

// AddMooring adds a new mooring to the configuration
func (s *SQLiteProvider) AddMooring(mooring *MooringData) error {
	if _, err := s.GetMooring(mooring.Name); err == nil {
		return fmt.Errorf("mooring %s already exists", mooring.Name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	if err := s.insertMooring(tx, configID, mooring); err != nil {
		return fmt.Errorf("failed to insert mooring: %w", err)
	}

	return tx.Commit()
}

// UpdateMooring replaces an existing mooring and its instruments
func (s *SQLiteProvider) UpdateMooring(name string, mooring *MooringData) error {
	if _, err := s.GetMooring(name); err != nil {
		return fmt.Errorf("mooring %s not found: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	// Replace wholesale so instrument rows stay consistent with the mooring
	deleteQueries := []string{
		"DELETE FROM instruments WHERE mooring_id IN (SELECT id FROM moorings WHERE config_id = ? AND name = ?)",
		"DELETE FROM moorings WHERE config_id = ? AND name = ?",
	}
	for _, query := range deleteQueries {
		if _, err := tx.Exec(query, configID, name); err != nil {
			return fmt.Errorf("failed to delete existing mooring: %w", err)
		}
	}

	if err := s.insertMooring(tx, configID, mooring); err != nil {
		return fmt.Errorf("failed to insert updated mooring: %w", err)
	}

	return tx.Commit()
}

// DeleteMooring removes a mooring from the configuration
func (s *SQLiteProvider) DeleteMooring(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	if _, err := tx.Exec(
		"DELETE FROM instruments WHERE mooring_id IN (SELECT id FROM moorings WHERE config_id = ? AND name = ?)",
		configID, name,
	); err != nil {
		return fmt.Errorf("failed to delete instruments: %w", err)
	}

	result, err := tx.Exec("DELETE FROM moorings WHERE config_id = ? AND name = ?", configID, name)
	if err != nil {
		return fmt.Errorf("failed to delete mooring: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("mooring %s not found", name)
	}

	return tx.Commit()
}

// Helper methods

// getConfigID gets the existing config ID
func (s *SQLiteProvider) getConfigID(tx *sql.Tx) (int64, error) {
	var configID int64
	err := tx.QueryRow("SELECT id FROM configs ORDER BY id LIMIT 1").Scan(&configID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("no configuration found")
		}
		return 0, err
	}
	return configID, nil
}

// getOrCreateConfigID gets existing config ID or creates a new one
func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	configID, err := s.getConfigID(tx)
	if err != nil {
		configID, err = s.insertConfig(tx, "default")
		if err != nil {
			return 0, fmt.Errorf("failed to create default config: %w", err)
		}
	}
	return configID, nil
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// joinVariables flattens a variable list for storage as comma-separated text
func joinVariables(variables []string) string {
	return strings.Join(variables, ",")
}

// splitVariables parses comma-separated variable text, empty text means none
func splitVariables(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	variables := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			variables = append(variables, p)
		}
	}
	if len(variables) == 0 {
		return nil
	}
	return variables
}
