package config

import "time"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetMoorings() ([]MooringData, error)
	GetMooring(name string) (*MooringData, error)
	GetPipelineConfig() (*PipelineData, error)
	GetStorageConfig() (*StorageData, error)
	GetServerConfig() (*ServerData, error)
	GetCaptureConfigs() ([]CaptureData, error)

	// Configuration management (for SQLite-specific operations)
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Moorings []MooringData `json:"moorings"`
	Pipeline PipelineData  `json:"pipeline,omitempty"`
	Storage  StorageData   `json:"storage,omitempty"`
	Server   *ServerData   `json:"server,omitempty"`
	Capture  []CaptureData `json:"capture,omitempty"`
}

// MooringData holds the configuration for a single mooring deployment
type MooringData struct {
	Name        string           `json:"name"`
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	WaterDepth  float64          `json:"water_depth,omitempty"`
	DeployedAt  *time.Time       `json:"deployed_at,omitempty"`
	RecoveredAt *time.Time       `json:"recovered_at,omitempty"`
	Telemetry   bool             `json:"telemetry,omitempty"`
	Instruments []InstrumentData `json:"instruments"`
}

// InstrumentData holds configuration specific to one instrument on a mooring
type InstrumentData struct {
	Serial       string   `json:"serial"`
	Model        string   `json:"model,omitempty"`
	NominalDepth float64  `json:"nominal_depth"`
	HasPressure  bool     `json:"has_pressure,omitempty"`
	ClockOffset  float64  `json:"clock_offset,omitempty"`
	Variables    []string `json:"variables,omitempty"`
}

// Instrument returns the instrument with the given serial, or nil
func (m *MooringData) Instrument(serial string) *InstrumentData {
	for i := range m.Instruments {
		if m.Instruments[i].Serial == serial {
			return &m.Instruments[i]
		}
	}
	return nil
}

// Serials returns the serials of every configured instrument, in order
func (m *MooringData) Serials() []string {
	serials := make([]string, 0, len(m.Instruments))
	for i := range m.Instruments {
		serials = append(serials, m.Instruments[i].Serial)
	}
	return serials
}

// PipelineData holds the tunable processing knobs. Zero values mean
// "use the package default" for the corresponding stage.
type PipelineData struct {
	Workers                int      `json:"workers,omitempty"`
	Variables              []string `json:"variables,omitempty"`
	FilterCutoffDays       float64  `json:"filter_cutoff_days,omitempty"`
	FilterOrder            int      `json:"filter_order,omitempty"`
	GridSpan               string   `json:"grid_span,omitempty"`
	GridIntervalSeconds    float64  `json:"grid_interval_seconds,omitempty"`
	OffsetToleranceSeconds float64  `json:"offset_tolerance_seconds,omitempty"`
	ClimatologyPath        string   `json:"climatology_path,omitempty"`
	PressureStep           float64  `json:"pressure_step,omitempty"`
	MaxPressure            float64  `json:"max_pressure,omitempty"`
}

// StorageData holds the configuration for various storage backends
type StorageData struct {
	Postgres *PostgresData `json:"postgres,omitempty"`
	RawStore *RawStoreData `json:"rawstore,omitempty"`
	Archive  *ArchiveData  `json:"archive,omitempty"`
	GRPC     *GRPCData     `json:"grpc,omitempty"`
}

// Storage backend configuration structs
type PostgresData struct {
	ConnectionString string `json:"connection_string"`
}

type RawStoreData struct {
	Path string `json:"path"`
}

type ArchiveData struct {
	Directory string `json:"directory"`
}

type GRPCData struct {
	Cert            string `json:"cert,omitempty"`
	Key             string `json:"key,omitempty"`
	ListenAddr      string `json:"listen_addr,omitempty"`
	Port            int    `json:"port,omitempty"`
	PullFromMooring string `json:"pull_from_mooring,omitempty"`
}

// ServerData holds the configuration for the REST and metrics server
type ServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// CaptureData holds the configuration for one raw-sample capture source.
// Type is "serial" for a direct instrument line or "tcp" for an inductive
// modem or shipboard logger feed.
type CaptureData struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	SerialDevice string `json:"serial_device,omitempty"`
	Baud         int    `json:"baud,omitempty"`
	ListenAddr   string `json:"listen_addr,omitempty"`
	Port         int    `json:"port,omitempty"`
	Mooring      string `json:"mooring,omitempty"`
	Serial       string `json:"serial,omitempty"`
}
