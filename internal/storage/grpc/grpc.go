// Package grpc implements a gRPC storage backend. Captured samples fan out
// to connected streaming clients as they arrive, and when a raw store is
// configured the same server answers ListSeries and FetchSeries so pipeline
// runs on other hosts can pull archived series.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/rpc"
	"github.com/oceanobs/moorproc/internal/storage/rawstore"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
)

// farFuture caps open-ended fetch windows
var farFuture = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// Storage implements a gRPC storage backend
type Storage struct {
	ClientChans     []chan types.RawSample
	ClientChanMutex sync.RWMutex
	RawStore        *rawstore.Store
	StoreEnabled    bool
	Server          *grpc.Server
	GRPCConfig      *config.GRPCData
}

// StartStorageEngine creates a goroutine loop to receive captured samples
// and send them off to our gRPC streaming clients
func (g *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.RawSample {
	log.Info("starting gRPC storage engine...")
	sampleChan := make(chan types.RawSample, 10)
	go g.processSamples(ctx, wg, sampleChan)
	return sampleChan
}

func (g *Storage) processSamples(ctx context.Context, wg *sync.WaitGroup, schan <-chan types.RawSample) {
	wg.Add(1)
	defer wg.Done()

	for {
		select {
		case s := <-schan:
			g.ClientChanMutex.RLock()
			// Send the sample we just received to all client channels. A
			// client that cannot keep up loses samples rather than stalling
			// the fan-out. No clients connected means it gets discarded.
			for _, v := range g.ClientChans {
				select {
				case v <- s:
				default:
				}
			}
			g.ClientChanMutex.RUnlock()
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling sample processor.")
			g.Server.Stop()
			return
		}
	}
}

// New sets up a new gRPC storage backend
func New(ctx context.Context, configProvider config.ConfigProvider) (*Storage, error) {
	var err error
	var g Storage

	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return &Storage{}, fmt.Errorf("error loading configuration: %v", err)
	}

	if cfgData.Storage.GRPC == nil {
		return &Storage{}, fmt.Errorf("gRPC storage configuration is missing")
	}

	grpcConfig := cfgData.Storage.GRPC

	if grpcConfig.Cert != "" && grpcConfig.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(grpcConfig.Cert, grpcConfig.Key)
		if err != nil {
			return &Storage{}, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		g.Server = grpc.NewServer(grpc.Creds(creds))
	} else {
		g.Server = grpc.NewServer()
	}

	// Store a reference to our configuration in our Storage object
	g.GRPCConfig = grpcConfig

	listenAddr := fmt.Sprintf("%v:%v", grpcConfig.ListenAddr, grpcConfig.Port)

	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return &Storage{}, fmt.Errorf("could not create gRPC listener: %v", err)
	}

	// If a raw store was configured, open it so we can answer series queries
	if cfgData.Storage.RawStore != nil && cfgData.Storage.RawStore.Path != "" {
		g.RawStore, err = rawstore.New(cfgData.Storage.RawStore.Path)
		if err != nil {
			return &Storage{}, fmt.Errorf("gRPC storage could not open raw store: %v", err)
		}
		g.StoreEnabled = true
	}

	rpc.RegisterSeriesServer(g.Server, &g)
	go g.Server.Serve(l)

	return &g, nil
}

// registerClient creates a channel for sending samples to a client and adds
// it to the slice of active client channels
func (g *Storage) registerClient(clientChan chan types.RawSample) int {
	g.ClientChanMutex.Lock()
	defer g.ClientChanMutex.Unlock()

	g.ClientChans = append(g.ClientChans, clientChan)
	return len(g.ClientChans) - 1
}

func (g *Storage) deregisterClient(i int) {
	g.ClientChanMutex.Lock()
	defer g.ClientChanMutex.Unlock()

	g.ClientChans[i] = g.ClientChans[len(g.ClientChans)-1]
	g.ClientChans = g.ClientChans[:len(g.ClientChans)-1]
}

// ListSeries reports the moorings and instrument serials held in the raw store
func (g *Storage) ListSeries(ctx context.Context, req *rpc.ListSeriesRequest) (*rpc.ListSeriesReply, error) {
	if !g.StoreEnabled {
		return &rpc.ListSeriesReply{}, fmt.Errorf("ignoring ListSeries request: raw store not configured")
	}

	var moorings []string
	if req.Mooring != "" {
		moorings = []string{req.Mooring}
	} else {
		var err error
		moorings, err = g.RawStore.Moorings()
		if err != nil {
			return &rpc.ListSeriesReply{}, fmt.Errorf("could not list moorings: %v", err)
		}
	}

	reply := &rpc.ListSeriesReply{}
	for _, mooring := range moorings {
		serials, err := g.RawStore.Serials(mooring)
		if err != nil {
			return &rpc.ListSeriesReply{}, fmt.Errorf("could not list serials for %v: %v", mooring, err)
		}
		reply.Moorings = append(reply.Moorings, rpc.MooringSeries{
			Mooring: mooring,
			Serials: serials,
		})
	}

	log.Infof("listseries -> %v moorings", len(reply.Moorings))
	return reply, nil
}

// FetchSeries returns the raw samples of one instrument from the raw store
func (g *Storage) FetchSeries(ctx context.Context, req *rpc.FetchSeriesRequest) (*rpc.FetchSeriesReply, error) {
	if !g.StoreEnabled {
		return &rpc.FetchSeriesReply{}, fmt.Errorf("ignoring FetchSeries request: raw store not configured")
	}

	if req.Mooring == "" || req.Serial == "" {
		return &rpc.FetchSeriesReply{}, fmt.Errorf("FetchSeries requires a mooring and a serial")
	}

	var samples []types.RawSample
	var err error

	if req.From.IsZero() && req.To.IsZero() {
		samples, err = g.RawStore.All(req.Mooring, req.Serial)
	} else {
		from := req.From
		to := req.To
		if to.IsZero() {
			to = farFuture
		}
		samples, err = g.RawStore.Query(req.Mooring, req.Serial, from, to)
	}
	if err != nil {
		return &rpc.FetchSeriesReply{}, fmt.Errorf("could not fetch series: %v", err)
	}

	log.Infof("fetchseries %v/%v -> returned samples: %v", req.Mooring, req.Serial, len(samples))

	return &rpc.FetchSeriesReply{
		Mooring: req.Mooring,
		Serial:  req.Serial,
		Samples: samples,
	}, nil
}

// StreamSamples implements the live sample feed
func (g *Storage) StreamSamples(req *rpc.StreamSamplesRequest, stream rpc.SeriesStreamSamplesServer) error {
	ctx := stream.Context()
	p, _ := peer.FromContext(ctx)

	log.Infof("Registering new gRPC streaming client [%v]...", p.Addr)
	clientChan := make(chan types.RawSample, 10)
	clientIndex := g.registerClient(clientChan)
	defer g.deregisterClient(clientIndex)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-clientChan:
			// Only send the sample if it matches the mooring requested by
			// the client, or the pull-from-mooring set in the config
			if g.wantSample(req, s) {
				log.Debugf("Sending sample to client [%v]", p.Addr)

				if err := stream.Send(&s); err != nil {
					return err
				}
			}
		}
	}
}

func (g *Storage) wantSample(req *rpc.StreamSamplesRequest, s types.RawSample) bool {
	if req.Mooring != "" {
		return s.Mooring == req.Mooring
	}
	if g.GRPCConfig.PullFromMooring != "" {
		return s.Mooring == g.GRPCConfig.PullFromMooring
	}
	return true
}
