package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/oceanobs/moorproc/internal/capture"
	"github.com/oceanobs/moorproc/internal/interfaces"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
	"go.uber.org/zap"
)

// NewCaptureManager creates a CaptureManager object, populated with all
// configured capture sources
func NewCaptureManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, distributor chan types.RawSample, logger *zap.SugaredLogger) (interfaces.CaptureManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	cm := &captureManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		distributor:    distributor,
		logger:         logger,
		sources:        make(map[string]capture.Source),
	}

	for _, captureConfig := range cfgData.Capture {
		source, err := createSourceFromConfig(ctx, wg, configProvider, captureConfig.Name, distributor, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating capture source [%s]: %w", captureConfig.Name, err)
		}
		cm.sources[captureConfig.Name] = source
	}

	return cm, nil
}

type captureManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	distributor    chan types.RawSample
	logger         *zap.SugaredLogger
	sources        map[string]capture.Source
	mu             sync.RWMutex
}

func (c *captureManager) StartCaptureSources() error {
	c.logger.Info("Capture manager started")
	for name, source := range c.sources {
		c.logger.Infof("Starting capture source [%v]...", name)
		if err := source.StartCapture(); err != nil {
			return fmt.Errorf("failed to start capture source [%s]: %w", name, err)
		}
		captureSourcesActive.Inc()
	}
	return nil
}

// AddCaptureSource adds and starts a new capture source dynamically
func (c *captureManager) AddCaptureSource(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sources[name]; exists {
		return fmt.Errorf("capture source %s already exists", name)
	}

	source, err := createSourceFromConfig(c.ctx, c.wg, c.configProvider, name, c.distributor, c.logger)
	if err != nil {
		return fmt.Errorf("error creating capture source [%s]: %w", name, err)
	}

	c.sources[name] = source

	if err := source.StartCapture(); err != nil {
		delete(c.sources, name)
		return fmt.Errorf("failed to start capture source [%s]: %w", name, err)
	}
	captureSourcesActive.Inc()

	c.logger.Infof("Added and started capture source: %s", name)
	return nil
}

// RemoveCaptureSource stops and removes a capture source dynamically
func (c *captureManager) RemoveCaptureSource(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	source, exists := c.sources[name]
	if !exists {
		return fmt.Errorf("capture source %s not found", name)
	}

	if err := source.StopCapture(); err != nil {
		c.logger.Errorf("Error stopping capture source %s: %v", name, err)
		// Continue with removal even if stop failed
	}

	delete(c.sources, name)
	captureSourcesActive.Dec()

	c.logger.Infof("Removed and stopped capture source: %s", name)
	return nil
}

// ReloadCaptureConfig reloads the capture source configuration dynamically
func (c *captureManager) ReloadCaptureConfig() error {
	cfgData, err := c.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load configuration: %v", err)
	}

	shouldBeActive := make(map[string]bool)
	for _, captureConfig := range cfgData.Capture {
		shouldBeActive[captureConfig.Name] = true
	}

	// Remove sources that are no longer configured
	for name := range c.sources {
		if !shouldBeActive[name] {
			if err := c.RemoveCaptureSource(name); err != nil {
				c.logger.Errorf("Failed to remove capture source %s: %v", name, err)
			}
		}
	}

	// Add sources that are configured but not running
	for name := range shouldBeActive {
		if _, exists := c.sources[name]; !exists {
			if err := c.AddCaptureSource(name); err != nil {
				c.logger.Errorf("Failed to add capture source %s: %v", name, err)
			}
		}
	}

	return nil
}

// GetSource retrieves a capture source by name. Returns nil if the source
// does not exist. Safe for concurrent use.
func (c *captureManager) GetSource(name string) capture.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	source, exists := c.sources[name]
	if !exists {
		return nil
	}
	return source
}

// createSourceFromConfig creates the appropriate capture source based on
// the configured source type
func createSourceFromConfig(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, name string, distributor chan types.RawSample, logger *zap.SugaredLogger) (capture.Source, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	var captureConfig *config.CaptureData
	for i := range cfgData.Capture {
		if cfgData.Capture[i].Name == name {
			captureConfig = &cfgData.Capture[i]
			break
		}
	}

	if captureConfig == nil {
		return nil, fmt.Errorf("capture source [%s] not found in configuration", name)
	}

	switch captureConfig.Type {
	case "serial":
		log.Infof("Initializing serial capture source [%v]", name)
		return capture.NewSerialSource(ctx, wg, *captureConfig, distributor, logger), nil
	case "tcp":
		log.Infof("Initializing TCP capture source [%v]", name)
		return capture.NewTCPSource(ctx, wg, *captureConfig, distributor, logger), nil
	default:
		return nil, fmt.Errorf("unknown capture source type: %s", captureConfig.Type)
	}
}
