// config-test compares a YAML mooring configuration against its SQLite
// conversion, section by section, so a config-convert run can be verified
// before the YAML original is retired.
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/oceanobs/moorproc/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlProvider := config.NewYAMLProvider(*yamlFile)
	yamlConfig, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	// Compare configurations
	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	// Compare moorings
	fmt.Printf("Moorings - YAML: %d, SQLite: %d\n", len(yamlConfig.Moorings), len(sqliteConfig.Moorings))
	if len(yamlConfig.Moorings) == len(sqliteConfig.Moorings) {
		fmt.Println("✓ Mooring count matches")
		for i, yamlMooring := range yamlConfig.Moorings {
			if i < len(sqliteConfig.Moorings) {
				sqliteMooring := sqliteConfig.Moorings[i]
				if compareMoorings(yamlMooring, sqliteMooring) {
					fmt.Printf("✓ Mooring %s matches\n", yamlMooring.Name)
				} else {
					fmt.Printf("✗ Mooring %s differs\n", yamlMooring.Name)
					printMooringDiff(yamlMooring, sqliteMooring)
				}
			}
		}
	} else {
		fmt.Println("✗ Mooring count mismatch")
	}

	// Compare pipeline settings
	fmt.Println("\nPipeline Configuration:")
	if reflect.DeepEqual(yamlConfig.Pipeline, sqliteConfig.Pipeline) {
		fmt.Println("✓ Pipeline configuration matches")
	} else {
		fmt.Println("✗ Pipeline configuration differs")
	}

	// Compare storage
	fmt.Println("\nStorage Configuration:")
	compareStorage(yamlConfig.Storage, sqliteConfig.Storage)

	// Compare capture sources
	fmt.Printf("\nCapture Sources - YAML: %d, SQLite: %d\n", len(yamlConfig.Capture), len(sqliteConfig.Capture))
	if len(yamlConfig.Capture) == len(sqliteConfig.Capture) {
		fmt.Println("✓ Capture source count matches")
		for i, yamlCapture := range yamlConfig.Capture {
			if i < len(sqliteConfig.Capture) {
				if reflect.DeepEqual(yamlCapture, sqliteConfig.Capture[i]) {
					fmt.Printf("✓ Capture source %s matches\n", yamlCapture.Name)
				} else {
					fmt.Printf("✗ Capture source %s differs\n", yamlCapture.Name)
				}
			}
		}
	} else {
		fmt.Println("✗ Capture source count mismatch")
	}

	fmt.Println("\nTest completed!")
}

func compareMoorings(yaml, sqlite config.MooringData) bool {
	tolerance := 0.000001
	if yaml.Name != sqlite.Name ||
		abs(yaml.Latitude-sqlite.Latitude) >= tolerance ||
		abs(yaml.Longitude-sqlite.Longitude) >= tolerance ||
		abs(yaml.WaterDepth-sqlite.WaterDepth) >= tolerance ||
		yaml.Telemetry != sqlite.Telemetry ||
		!compareTimes(yaml.DeployedAt, sqlite.DeployedAt) ||
		!compareTimes(yaml.RecoveredAt, sqlite.RecoveredAt) {
		return false
	}
	if len(yaml.Instruments) != len(sqlite.Instruments) {
		return false
	}
	for i := range yaml.Instruments {
		if !reflect.DeepEqual(yaml.Instruments[i], sqlite.Instruments[i]) {
			return false
		}
	}
	return true
}

func compareTimes(yaml, sqlite *time.Time) bool {
	if (yaml == nil) != (sqlite == nil) {
		return false
	}
	if yaml == nil {
		return true
	}
	return yaml.Equal(*sqlite)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func printMooringDiff(yaml, sqlite config.MooringData) {
	if yaml.Name != sqlite.Name {
		fmt.Printf("  Name: YAML='%s', SQLite='%s'\n", yaml.Name, sqlite.Name)
	}
	if yaml.Latitude != sqlite.Latitude || yaml.Longitude != sqlite.Longitude {
		fmt.Printf("  Site: YAML=(%g, %g), SQLite=(%g, %g)\n",
			yaml.Latitude, yaml.Longitude, sqlite.Latitude, sqlite.Longitude)
	}
	if len(yaml.Instruments) != len(sqlite.Instruments) {
		fmt.Printf("  Instruments: YAML=%d, SQLite=%d\n", len(yaml.Instruments), len(sqlite.Instruments))
	}
}

func compareStorage(yaml, sqlite config.StorageData) {
	// Compare Postgres
	if (yaml.Postgres == nil) != (sqlite.Postgres == nil) {
		fmt.Println("✗ Postgres configuration presence mismatch")
	} else if yaml.Postgres != nil && sqlite.Postgres != nil {
		if reflect.DeepEqual(*yaml.Postgres, *sqlite.Postgres) {
			fmt.Println("✓ Postgres configuration matches")
		} else {
			fmt.Println("✗ Postgres configuration differs")
		}
	} else {
		fmt.Println("✓ Postgres: both nil")
	}

	// Compare raw store
	if (yaml.RawStore == nil) != (sqlite.RawStore == nil) {
		fmt.Println("✗ Raw store configuration presence mismatch")
	} else if yaml.RawStore != nil && sqlite.RawStore != nil {
		if reflect.DeepEqual(*yaml.RawStore, *sqlite.RawStore) {
			fmt.Println("✓ Raw store configuration matches")
		} else {
			fmt.Println("✗ Raw store configuration differs")
		}
	} else {
		fmt.Println("✓ Raw store: both nil")
	}

	// Compare archive
	if (yaml.Archive == nil) != (sqlite.Archive == nil) {
		fmt.Println("✗ Archive configuration presence mismatch")
	} else if yaml.Archive != nil && sqlite.Archive != nil {
		if reflect.DeepEqual(*yaml.Archive, *sqlite.Archive) {
			fmt.Println("✓ Archive configuration matches")
		} else {
			fmt.Println("✗ Archive configuration differs")
		}
	} else {
		fmt.Println("✓ Archive: both nil")
	}

	// Compare GRPC
	if (yaml.GRPC == nil) != (sqlite.GRPC == nil) {
		fmt.Println("✗ GRPC configuration presence mismatch")
	} else if yaml.GRPC != nil && sqlite.GRPC != nil {
		if reflect.DeepEqual(*yaml.GRPC, *sqlite.GRPC) {
			fmt.Println("✓ GRPC configuration matches")
		} else {
			fmt.Println("✗ GRPC configuration differs")
		}
	} else {
		fmt.Println("✓ GRPC: both nil")
	}
}
