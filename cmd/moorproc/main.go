package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oceanobs/moorproc/internal/app"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/pkg/config"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml, moorings.yaml\n\t\t\t  SQLite: config.db, moorings.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	source := flag.String("source", "", "Instrument data source as kind:location:\n\t\t\t  netcdf:/data/cruise42  archive:/var/moorproc/archive\n\t\t\t  rawstore:/var/moorproc/raw.db  grpc:shore.example.org:7587")
	stages := flag.String("stages", "", "Comma-separated stages to run (default: "+strings.Join(app.AllStages, ",")+")")
	mooring := flag.String("mooring", "", "Process only this configured mooring")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("moorproc %s\n", version)
		os.Exit(0)
	}

	if *source == "" {
		fmt.Println("The -source flag is required. Run with -h for help.")
		os.Exit(1)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	provider, err := openConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	opts := app.Options{Source: *source, Mooring: *mooring}
	if *stages != "" {
		opts.Stages = strings.Split(*stages, ",")
	}

	// Create and run the pipeline
	application := app.New(provider, log.GetSugaredLogger(), opts)
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Pipeline error: %v", err)
		os.Exit(1)
	}
}

func openConfig(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
}
