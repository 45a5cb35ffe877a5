// config-convert converts a YAML mooring configuration into the SQLite
// configuration database used by the writable backend. The SQLite schema
// ships inside the binary, so no migrations directory is needed.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oceanobs/moorproc/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration...\n")
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	configData, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("  Loaded %d moorings, %d capture sources\n", len(configData.Moorings), len(configData.Capture))

	if *dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	// Remove existing SQLite file if force is specified
	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	// Load configuration into the SQLite database. Opening the provider
	// bootstraps the schema from the embedded migrations.
	fmt.Printf("Creating SQLite database...\n")
	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if err := loadConfigIntoSQLite(*sqliteFile, configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func loadConfigIntoSQLite(dbPath string, configData *config.ConfigData) error {
	sqliteProvider, err := config.NewSQLiteProvider(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create SQLite provider: %w", err)
	}
	defer sqliteProvider.Close()

	fmt.Printf("  Inserting %d moorings...\n", len(configData.Moorings))
	fmt.Printf("  Inserting pipeline and storage configuration...\n")
	fmt.Printf("  Inserting %d capture sources...\n", len(configData.Capture))

	if err := sqliteProvider.SaveConfig(configData); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("  Configuration successfully inserted into database\n")
	return nil
}

func printConfigSummary(configData *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Moorings (%d):\n", len(configData.Moorings))
	for _, mooring := range configData.Moorings {
		fmt.Printf("  - %s (%.4f, %.4f) with %d instruments\n",
			mooring.Name, mooring.Latitude, mooring.Longitude, len(mooring.Instruments))
	}

	fmt.Printf("\nStorage Backends:\n")
	if configData.Storage.Postgres != nil {
		fmt.Printf("  - Postgres: %s\n", configData.Storage.Postgres.ConnectionString)
	}
	if configData.Storage.RawStore != nil {
		fmt.Printf("  - Raw store: %s\n", configData.Storage.RawStore.Path)
	}
	if configData.Storage.Archive != nil {
		fmt.Printf("  - Archive: %s\n", configData.Storage.Archive.Directory)
	}
	if configData.Storage.GRPC != nil {
		fmt.Printf("  - gRPC: %s:%d\n", configData.Storage.GRPC.ListenAddr, configData.Storage.GRPC.Port)
	}

	fmt.Printf("\nCapture Sources (%d):\n", len(configData.Capture))
	for _, c := range configData.Capture {
		fmt.Printf("  - %s (%s)\n", c.Name, c.Type)
	}
}
