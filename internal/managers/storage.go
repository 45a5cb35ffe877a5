package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/oceanobs/moorproc/internal/storage"
	grpcstorage "github.com/oceanobs/moorproc/internal/storage/grpc"
	"github.com/oceanobs/moorproc/internal/storage/postgres"
	"github.com/oceanobs/moorproc/internal/storage/rawstore"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
)

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines           []StorageEngine
	SampleDistributor chan types.RawSample
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing samples to the engine
type StorageEngine struct {
	Engine storage.StorageEngineInterface
	C      chan<- types.RawSample
}

// NewStorageManager creates a StorageManager object, populated with all
// configured storage engines
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider) (*StorageManager, error) {
	var err error

	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	s := StorageManager{}

	// Initialize our channel for passing captured samples to the distributor
	s.SampleDistributor = make(chan types.RawSample, 20)

	// Start our distributor to fan received samples out to storage backends
	go s.startSampleDistributor(ctx, wg)

	// Check the configuration for supported storage backends and enable
	// them if found

	if cfgData.Storage.RawStore != nil && cfgData.Storage.RawStore.Path != "" {
		err = s.AddEngine(ctx, wg, "rawstore", configProvider)
		if err != nil {
			return &s, fmt.Errorf("could not add raw store storage backend: %v", err)
		}
	}

	if cfgData.Storage.Postgres != nil && cfgData.Storage.Postgres.ConnectionString != "" {
		err = s.AddEngine(ctx, wg, "postgres", configProvider)
		if err != nil {
			return &s, fmt.Errorf("could not add Postgres storage backend: %v", err)
		}
	}

	if cfgData.Storage.GRPC != nil && cfgData.Storage.GRPC.Port != 0 {
		err = s.AddEngine(ctx, wg, "grpc", configProvider)
		if err != nil {
			return &s, fmt.Errorf("could not add gRPC storage backend: %v", err)
		}
	}

	return &s, nil
}

// GetSampleDistributor returns the sample distributor channel
func (s *StorageManager) GetSampleDistributor() chan types.RawSample {
	return s.SampleDistributor
}

// AddEngine adds a new StorageEngine of name engineName to our StorageManager
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, configProvider config.ConfigProvider) error {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %v", err)
	}

	switch engineName {
	case "rawstore":
		se := StorageEngine{}
		se.Engine, err = rawstore.New(cfgData.Storage.RawStore.Path)
		if err != nil {
			return err
		}
		se.C = se.Engine.StartStorageEngine(ctx, wg)
		s.Engines = append(s.Engines, se)
	case "postgres":
		se := StorageEngine{}
		se.Engine, err = postgres.New(ctx, cfgData.Storage.Postgres.ConnectionString)
		if err != nil {
			return err
		}
		se.C = se.Engine.StartStorageEngine(ctx, wg)
		s.Engines = append(s.Engines, se)
	case "grpc":
		se := StorageEngine{}
		se.Engine, err = grpcstorage.New(ctx, configProvider)
		if err != nil {
			return err
		}
		se.C = se.Engine.StartStorageEngine(ctx, wg)
		s.Engines = append(s.Engines, se)
	}

	return nil
}

// startSampleDistributor receives samples from capture sources and fans them
// out to the various storage backends
func (s *StorageManager) startSampleDistributor(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case sample := <-s.SampleDistributor:
			// No storage engines configured means the sample is discarded
			for _, e := range s.Engines {
				e.C <- sample
			}
		case <-ctx.Done():
			return
		}
	}
}
