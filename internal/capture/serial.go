package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
	serial "github.com/tarm/goserial"
	"go.uber.org/zap"
)

// SerialSource captures line-framed records from a serial-attached
// instrument or deck box
type SerialSource struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	rwc          io.ReadWriteCloser
	config       config.CaptureData
	distributor  chan types.RawSample
	logger       *zap.SugaredLogger
	connecting   bool
	connectingMu sync.RWMutex
	connected    bool
	connectedMu  sync.RWMutex
	stopped      bool
	stoppedMu    sync.RWMutex
}

// NewSerialSource creates a new serial capture source
func NewSerialSource(ctx context.Context, wg *sync.WaitGroup, captureConfig config.CaptureData, distributor chan types.RawSample, logger *zap.SugaredLogger) Source {
	source := &SerialSource{
		ctx:         ctx,
		wg:          wg,
		config:      captureConfig,
		distributor: distributor,
		logger:      logger,
	}

	if source.config.SerialDevice == "" {
		logger.Fatalf("serial capture source [%s] must define a serial device", source.config.Name)
	}

	if source.config.Mooring == "" {
		logger.Fatalf("serial capture source [%s] must define a mooring", source.config.Name)
	}

	// 19200 baud covers direct USB instrument lines. Inductive-modem deck
	// boxes usually run slower and should set baud in the config.
	if source.config.Baud == 0 {
		source.config.Baud = 19200
	}

	return source
}

func (s *SerialSource) SourceName() string {
	return s.config.Name
}

// StartCapture connects to the instrument line and launches the packet getter
func (s *SerialSource) StartCapture() error {
	log.Infof("Starting serial capture source [%v]...", s.config.Name)

	s.connect()

	s.wg.Add(1)
	go s.getPackets()

	return nil
}

// StopCapture stops the source. The packet getter exits instead of
// reconnecting once the port is closed.
func (s *SerialSource) StopCapture() error {
	s.stoppedMu.Lock()
	s.stopped = true
	s.stoppedMu.Unlock()

	if s.rwc != nil {
		return s.rwc.Close()
	}
	return nil
}

func (s *SerialSource) isStopped() bool {
	s.stoppedMu.RLock()
	defer s.stoppedMu.RUnlock()
	return s.stopped
}

// getPackets runs the packet parser, reconnecting if there is an error
func (s *SerialSource) getPackets() {
	defer s.wg.Done()
	log.Info("starting serial packet getter")
	for {
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling packet getter.")
			return
		default:
			err := s.parsePackets()
			if err != nil {
				if s.isStopped() {
					log.Infof("serial capture source [%v] stopped", s.config.Name)
					return
				}
				s.logger.Error(err)
				if s.rwc != nil {
					s.rwc.Close()
				}
				s.logger.Info("attempting to reconnect...")
				s.connect()
			} else {
				return
			}
		}
	}
}

// parsePackets parses line-framed records from the instrument, converts
// them to samples, and sends them to the distributor
func (s *SerialSource) parsePackets() error {
	scanner := bufio.NewScanner(s.rwc)

	for scanner.Scan() {
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling packet parser.")
			return nil
		default:
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var p Packet
			if err := json.Unmarshal(line, &p); err != nil {
				s.logger.Warnf("discarding malformed packet from [%v]: %v", s.config.Name, err)
				continue
			}

			sample, err := packetToSample(p, s.config.Mooring, s.config.Serial, time.Now())
			if err != nil {
				s.logger.Warnf("discarding packet from [%v]: %v", s.config.Name, err)
				continue
			}

			log.Debugf("serial source [%s] sending sample to distributor: serial=%s temp=%.4f pres=%.2f",
				s.config.Name, sample.Serial, sample.Temperature, sample.Pressure)
			s.distributor <- sample
		}
	}

	return fmt.Errorf("scanning aborted due to error or EOF")
}

// connect opens the serial port, retrying until it succeeds or the context
// is cancelled
func (s *SerialSource) connect() {
	var err error

	s.connectingMu.RLock()
	if s.connecting {
		s.connectingMu.RUnlock()
		s.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}

	// A connection attempt is not in progress so we'll start a new one
	s.connectingMu.RUnlock()
	s.connectingMu.Lock()
	s.connecting = true
	s.connectingMu.Unlock()

	s.logger.Infof("connecting to %v ...", s.config.SerialDevice)

	for {
		sc := &serial.Config{Name: s.config.SerialDevice, Baud: s.config.Baud}
		s.logger.Debugf("attempting to open serial port %s at %d baud", s.config.SerialDevice, s.config.Baud)
		s.rwc, err = serial.OpenPort(sc)

		if err != nil {
			s.logger.Errorf("failed to open serial port %s: %v", s.config.SerialDevice, err)
			s.logger.Error("sleeping 30 seconds and trying again")

			select {
			case <-s.ctx.Done():
				s.logger.Info("cancellation request received during retry wait")
				s.connectingMu.Lock()
				s.connecting = false
				s.connectingMu.Unlock()
				return
			case <-time.After(30 * time.Second):
			}
		} else {
			s.connectedMu.Lock()
			defer s.connectedMu.Unlock()
			s.connected = true
			s.connectingMu.Lock()
			defer s.connectingMu.Unlock()
			s.connecting = false

			return
		}
	}
}
