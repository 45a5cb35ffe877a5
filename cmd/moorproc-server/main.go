package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/server"
	"github.com/oceanobs/moorproc/pkg/config"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source (YAML file or SQLite database)")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	logFile := flag.String("log-file", "", "Also write logs to this file, with rotation")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("moorproc-server %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	var err error
	if *logFile != "" {
		err = log.InitWithFile(*debug, *logFile)
	} else {
		err = log.Init(*debug)
	}
	if err != nil {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	srv, err := server.NewServer(ctx, &wg, provider, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to create server: %v", err)
		os.Exit(1)
	}
	if err := srv.StartServer(); err != nil {
		log.Errorf("Failed to start server: %v", err)
		os.Exit(1)
	}

	log.Info("Archive server started successfully")

	// Wait for shutdown signal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("shutdown signal received, initiating graceful shutdown...")

	cancel()
	wg.Wait()
	log.Info("shutdown complete")
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
