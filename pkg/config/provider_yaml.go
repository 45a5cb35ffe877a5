package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Moorings []MooringYAML `yaml:"moorings"`
		Pipeline PipelineYAML  `yaml:"pipeline,omitempty"`
		Storage  StorageYAML   `yaml:"storage,omitempty"`
		Server   *ServerYAML   `yaml:"server,omitempty"`
		Capture  []CaptureYAML `yaml:"capture,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Moorings: make([]MooringData, len(yamlConfig.Moorings)),
		Capture:  make([]CaptureData, len(yamlConfig.Capture)),
	}

	// Convert moorings
	for i, mooring := range yamlConfig.Moorings {
		deployed, err := parseMooringTime(mooring.Name, "deployed-at", mooring.DeployedAt)
		if err != nil {
			return nil, err
		}
		recovered, err := parseMooringTime(mooring.Name, "recovered-at", mooring.RecoveredAt)
		if err != nil {
			return nil, err
		}

		config.Moorings[i] = MooringData{
			Name:        mooring.Name,
			Latitude:    mooring.Latitude,
			Longitude:   mooring.Longitude,
			WaterDepth:  mooring.WaterDepth,
			DeployedAt:  deployed,
			RecoveredAt: recovered,
			Instruments: make([]InstrumentData, len(mooring.Instruments)),
		}

		for j, inst := range mooring.Instruments {
			config.Moorings[i].Instruments[j] = InstrumentData{
				Serial:       inst.Serial,
				Model:        inst.Model,
				NominalDepth: inst.NominalDepth,
				HasPressure:  inst.HasPressure,
				ClockOffset:  inst.ClockOffset,
				Variables:    inst.Variables,
			}
		}
	}

	// Convert pipeline
	config.Pipeline = PipelineData{
		Workers:                yamlConfig.Pipeline.Workers,
		Variables:              yamlConfig.Pipeline.Variables,
		FilterCutoffDays:       yamlConfig.Pipeline.FilterCutoffDays,
		FilterOrder:            yamlConfig.Pipeline.FilterOrder,
		GridSpan:               yamlConfig.Pipeline.GridSpan,
		GridIntervalSeconds:    yamlConfig.Pipeline.GridIntervalSeconds,
		OffsetToleranceSeconds: yamlConfig.Pipeline.OffsetToleranceSeconds,
		ClimatologyPath:        yamlConfig.Pipeline.ClimatologyPath,
		PressureStep:           yamlConfig.Pipeline.PressureStep,
		MaxPressure:            yamlConfig.Pipeline.MaxPressure,
	}

	// Convert storage
	config.Storage = StorageData{}
	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{
			ConnectionString: yamlConfig.Storage.Postgres.ConnectionString,
		}
	}
	if yamlConfig.Storage.RawStore != nil {
		config.Storage.RawStore = &RawStoreData{
			Path: yamlConfig.Storage.RawStore.Path,
		}
	}
	if yamlConfig.Storage.Archive != nil {
		config.Storage.Archive = &ArchiveData{
			Directory: yamlConfig.Storage.Archive.Directory,
		}
	}
	if yamlConfig.Storage.GRPC != nil {
		config.Storage.GRPC = &GRPCData{
			Cert:            yamlConfig.Storage.GRPC.Cert,
			Key:             yamlConfig.Storage.GRPC.Key,
			ListenAddr:      yamlConfig.Storage.GRPC.ListenAddr,
			Port:            yamlConfig.Storage.GRPC.Port,
			PullFromMooring: yamlConfig.Storage.GRPC.PullFromMooring,
		}
	}

	// Convert server
	if yamlConfig.Server != nil {
		config.Server = &ServerData{
			Cert:       yamlConfig.Server.Cert,
			Key:        yamlConfig.Server.Key,
			Port:       yamlConfig.Server.Port,
			ListenAddr: yamlConfig.Server.ListenAddr,
		}
	}

	// Convert capture sources
	for i, capture := range yamlConfig.Capture {
		config.Capture[i] = CaptureData{
			Name:         capture.Name,
			Type:         capture.Type,
			SerialDevice: capture.SerialDevice,
			Baud:         capture.Baud,
			ListenAddr:   capture.ListenAddr,
			Port:         capture.Port,
			Mooring:      capture.Mooring,
			Serial:       capture.Serial,
		}
	}

	y.config = config
	return config, nil
}

// GetMoorings returns mooring configurations
func (y *YAMLProvider) GetMoorings() ([]MooringData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Moorings, nil
}

// GetMooring returns the configuration for a single mooring by name
func (y *YAMLProvider) GetMooring(name string) (*MooringData, error) {
	moorings, err := y.GetMoorings()
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

// GetPipelineConfig returns processing pipeline configuration
func (y *YAMLProvider) GetPipelineConfig() (*PipelineData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Pipeline, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetServerConfig returns REST server configuration, nil when absent
func (y *YAMLProvider) GetServerConfig() (*ServerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Server, nil
}

// GetCaptureConfigs returns capture source configurations
func (y *YAMLProvider) GetCaptureConfigs() ([]CaptureData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Capture, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// parseMooringTime parses an RFC 3339 timestamp field, treating an empty
// string as absent. Deployment bookkeeping is kept in UTC throughout.
func parseMooringTime(mooring, field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("mooring %s: invalid %s: %w", mooring, field, err)
	}
	u := t.UTC()
	return &u, nil
}

// YAML-specific structs with proper YAML tags for parsing the on-disk format
type MooringYAML struct {
	Name        string           `yaml:"name"`
	Latitude    float64          `yaml:"latitude"`
	Longitude   float64          `yaml:"longitude"`
	WaterDepth  float64          `yaml:"water-depth,omitempty"`
	DeployedAt  string           `yaml:"deployed-at,omitempty"`
	RecoveredAt string           `yaml:"recovered-at,omitempty"`
	Instruments []InstrumentYAML `yaml:"instruments"`
}

type InstrumentYAML struct {
	Serial       string   `yaml:"serial"`
	Model        string   `yaml:"model,omitempty"`
	NominalDepth float64  `yaml:"nominal-depth"`
	HasPressure  bool     `yaml:"has-pressure,omitempty"`
	ClockOffset  float64  `yaml:"clock-offset,omitempty"`
	Variables    []string `yaml:"variables,omitempty"`
}

type PipelineYAML struct {
	Workers                int      `yaml:"workers,omitempty"`
	Variables              []string `yaml:"variables,omitempty"`
	FilterCutoffDays       float64  `yaml:"filter-cutoff-days,omitempty"`
	FilterOrder            int      `yaml:"filter-order,omitempty"`
	GridSpan               string   `yaml:"grid-span,omitempty"`
	GridIntervalSeconds    float64  `yaml:"grid-interval-seconds,omitempty"`
	OffsetToleranceSeconds float64  `yaml:"offset-tolerance-seconds,omitempty"`
	ClimatologyPath        string   `yaml:"climatology,omitempty"`
	PressureStep           float64  `yaml:"pressure-step,omitempty"`
	MaxPressure            float64  `yaml:"max-pressure,omitempty"`
}

type StorageYAML struct {
	Postgres *PostgresYAML `yaml:"postgres,omitempty"`
	RawStore *RawStoreYAML `yaml:"rawstore,omitempty"`
	Archive  *ArchiveYAML  `yaml:"archive,omitempty"`
	GRPC     *GRPCYAML     `yaml:"grpc,omitempty"`
}

type PostgresYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type RawStoreYAML struct {
	Path string `yaml:"path"`
}

type ArchiveYAML struct {
	Directory string `yaml:"directory"`
}

type GRPCYAML struct {
	Cert            string `yaml:"cert,omitempty"`
	Key             string `yaml:"key,omitempty"`
	ListenAddr      string `yaml:"listen-addr,omitempty"`
	Port            int    `yaml:"port,omitempty"`
	PullFromMooring string `yaml:"pull-from-mooring,omitempty"`
}

type ServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type CaptureYAML struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type,omitempty"`
	SerialDevice string `yaml:"serialdevice,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	ListenAddr   string `yaml:"listen-addr,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	Mooring      string `yaml:"mooring,omitempty"`
	Serial       string `yaml:"serial,omitempty"`
}
