// Package server implements the shore-side archive service: the gRPC series
// endpoint and the REST reporting API share one listener, split by protocol.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/oceanobs/moorproc/internal/database"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/rpc"
	"github.com/oceanobs/moorproc/internal/storage/archive"
	"github.com/oceanobs/moorproc/internal/storage/postgres"
	"github.com/oceanobs/moorproc/internal/storage/rawstore"
	"github.com/oceanobs/moorproc/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"gorm.io/gorm"
)

// Server hosts the series service and the reporting API on a single port
type Server struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	serverConfig   *config.ServerData

	HTTP http.Server
	GRPC *grpc.Server

	DB        *gorm.DB
	DBEnabled bool
	Results   *postgres.Storage
	RawStore  *rawstore.Store
	Archive   *archive.Archive

	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewServer creates the archive server from the stored configuration
func NewServer(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	cfg, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	if cfg.Server == nil {
		return nil, fmt.Errorf("no server configuration found")
	}

	s := &Server{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		serverConfig:   cfg.Server,
		logger:         logger,
	}

	if s.serverConfig.ListenAddr == "" {
		s.serverConfig.ListenAddr = "0.0.0.0"
	}
	if s.serverConfig.Port == 0 {
		log.Info("server port not specified; defaulting to port 8080")
		s.serverConfig.Port = 8080
	}

	if cfg.Storage.Postgres != nil && cfg.Storage.Postgres.ConnectionString != "" {
		s.DB, err = database.CreateConnection(cfg.Storage.Postgres.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("could not connect to results database: %w", err)
		}
		s.DBEnabled = true
		s.Results = &postgres.Storage{PGConn: s.DB}
	}

	if cfg.Storage.RawStore != nil && cfg.Storage.RawStore.Path != "" {
		s.RawStore, err = rawstore.New(cfg.Storage.RawStore.Path)
		if err != nil {
			return nil, fmt.Errorf("could not open raw sample store: %w", err)
		}
	}

	if cfg.Storage.Archive != nil && cfg.Storage.Archive.Directory != "" {
		s.Archive, err = archive.New(cfg.Storage.Archive.Directory)
		if err != nil {
			return nil, fmt.Errorf("could not open snapshot archive: %w", err)
		}
	}

	s.handlers = NewHandlers(s)

	router := s.setupRouter()
	s.HTTP.Addr = fmt.Sprintf("%v:%v", s.serverConfig.ListenAddr, s.serverConfig.Port)
	s.HTTP.Handler = router

	s.GRPC = grpc.NewServer()
	rpc.RegisterSeriesServer(s.GRPC, s)

	return s, nil
}

// setupRouter configures the REST routes
func (s *Server) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(instrumented)

	router.HandleFunc("/api/moorings", s.handlers.GetMoorings)
	router.HandleFunc("/api/moorings/{name}/runs", s.handlers.GetMooringRuns)
	router.HandleFunc("/api/moorings/{name}/report", s.handlers.GetMooringReport)
	router.HandleFunc("/api/moorings/{name}/gridded", s.handlers.GetMooringGridded)
	router.HandleFunc("/api/moorings/{name}/profiles", s.handlers.GetMooringProfiles)
	router.HandleFunc("/healthz", s.handlers.GetHealth)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// StartServer starts the shared listener and both protocol servers
func (s *Server) StartServer() error {
	log.Info("starting archive server...")

	l, err := net.Listen("tcp", s.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("could not listen on %v: %w", s.HTTP.Addr, err)
	}

	if s.serverConfig.Cert != "" && s.serverConfig.Key != "" {
		cert, err := tls.LoadX509KeyPair(s.serverConfig.Cert, s.serverConfig.Key)
		if err != nil {
			return fmt.Errorf("could not load TLS keypair: %w", err)
		}
		// TLS terminates ahead of the mux so that protocol matching sees
		// cleartext HTTP/2 frames
		l = tls.NewListener(l, &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
			MinVersion:   tls.VersionTLS12,
		})
		log.Infof("archive server listening on %v (TLS)", s.HTTP.Addr)
	} else {
		log.Infof("archive server listening on %v", s.HTTP.Addr)
	}

	m := cmux.New(l)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.GRPC.Serve(grpcL); err != nil && !isClosedErr(err) {
			log.Errorf("series service error: %v", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.HTTP.Serve(httpL); err != nil && err != http.ErrServerClosed && !isClosedErr(err) {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		if err := m.Serve(); err != nil && !isClosedErr(err) {
			log.Debugf("connection mux closed: %v", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		log.Info("shutting down archive server...")
		s.HTTP.Shutdown(context.Background())
		s.GRPC.GracefulStop()
		l.Close()
		if s.RawStore != nil {
			s.RawStore.Close()
		}
	}()

	return nil
}

// isClosedErr reports whether an error is the ordinary result of tearing
// down the shared listener
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed)
}
