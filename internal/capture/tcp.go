package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
	"github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"
)

// TCPSource listens for gateway connections and captures the line-framed
// records they push. Inductive-modem and shipboard-logger gateways connect
// out to us, so this side is a listener rather than a dialer.
type TCPSource struct {
	gnet.BuiltinEventEngine

	ctx         context.Context
	wg          *sync.WaitGroup
	config      config.CaptureData
	distributor chan types.RawSample
	logger      *zap.SugaredLogger

	eng    gnet.Engine
	booted bool
	engMu  sync.Mutex
}

// NewTCPSource creates a new TCP listener capture source
func NewTCPSource(ctx context.Context, wg *sync.WaitGroup, captureConfig config.CaptureData, distributor chan types.RawSample, logger *zap.SugaredLogger) Source {
	source := &TCPSource{
		ctx:         ctx,
		wg:          wg,
		config:      captureConfig,
		distributor: distributor,
		logger:      logger,
	}

	if source.config.Port == 0 {
		logger.Fatalf("TCP capture source [%s] must define a listen port", source.config.Name)
	}

	if source.config.Mooring == "" {
		logger.Fatalf("TCP capture source [%s] must define a mooring", source.config.Name)
	}

	return source
}

func (s *TCPSource) SourceName() string {
	return s.config.Name
}

// StopCapture shuts down the event loop
func (s *TCPSource) StopCapture() error {
	s.stop()
	return nil
}

// StartCapture starts the event loop and a watcher that stops it on
// cancellation
func (s *TCPSource) StartCapture() error {
	addr := fmt.Sprintf("tcp://%v:%v", s.config.ListenAddr, s.config.Port)
	log.Infof("Starting TCP capture source [%v] on %v...", s.config.Name, addr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := gnet.Run(s, addr, gnet.WithMulticore(true), gnet.WithLogger(s.logger))
		if err != nil {
			s.logger.Errorf("TCP capture source [%v] stopped: %v", s.config.Name, err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		log.Info("cancellation request received. Stopping TCP capture listener.")
		s.stop()
	}()

	return nil
}

func (s *TCPSource) stop() {
	s.engMu.Lock()
	defer s.engMu.Unlock()
	if !s.booted {
		return
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.eng.Stop(stopCtx); err != nil {
		s.logger.Errorf("error stopping TCP capture listener: %v", err)
	}
}

// OnBoot stores the engine handle so the watcher can stop it later
func (s *TCPSource) OnBoot(eng gnet.Engine) gnet.Action {
	s.engMu.Lock()
	s.eng = eng
	s.booted = true
	s.engMu.Unlock()
	return gnet.None
}

func (s *TCPSource) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	s.logger.Infof("gateway connected to [%v] from %v", s.config.Name, c.RemoteAddr())
	return nil, gnet.None
}

func (s *TCPSource) OnClose(c gnet.Conn, err error) gnet.Action {
	if err != nil {
		s.logger.Infof("gateway disconnected from [%v] (%v): %v", s.config.Name, c.RemoteAddr(), err)
	} else {
		s.logger.Infof("gateway disconnected from [%v] (%v)", s.config.Name, c.RemoteAddr())
	}
	return gnet.None
}

// OnTraffic consumes complete lines from the connection buffer, leaving any
// trailing partial line for the next event
func (s *TCPSource) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Peek(-1)
	if err != nil {
		s.logger.Errorf("could not read from gateway connection: %v", err)
		return gnet.Close
	}

	consumed := 0
	for {
		i := bytes.IndexByte(buf[consumed:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(buf[consumed : consumed+i])
		consumed += i + 1
		if len(line) == 0 {
			continue
		}
		s.handleLine(line, c)
	}

	if consumed > 0 {
		if _, err := c.Discard(consumed); err != nil {
			s.logger.Errorf("could not discard consumed bytes: %v", err)
			return gnet.Close
		}
	}
	return gnet.None
}

func (s *TCPSource) handleLine(line []byte, c gnet.Conn) {
	var p Packet
	if err := json.Unmarshal(line, &p); err != nil {
		s.logger.Warnf("discarding malformed packet from %v: %v", c.RemoteAddr(), err)
		return
	}

	sample, err := packetToSample(p, s.config.Mooring, s.config.Serial, time.Now())
	if err != nil {
		s.logger.Warnf("discarding packet from %v: %v", c.RemoteAddr(), err)
		return
	}

	log.Debugf("TCP source [%s] sending sample to distributor: serial=%s temp=%.4f pres=%.2f",
		s.config.Name, sample.Serial, sample.Temperature, sample.Pressure)
	s.distributor <- sample
}
