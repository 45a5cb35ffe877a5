package server

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/rpc"
	"github.com/oceanobs/moorproc/internal/types"
	"google.golang.org/grpc/peer"
)

// streamPollInterval is how often StreamSamples checks the raw store for
// newly recorded samples
const streamPollInterval = 3 * time.Second

// farFuture caps open-ended fetch windows
var farFuture = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// ListSeries reports the moorings and instrument serials held in the raw store
func (s *Server) ListSeries(ctx context.Context, req *rpc.ListSeriesRequest) (*rpc.ListSeriesReply, error) {
	if s.RawStore == nil {
		return nil, fmt.Errorf("raw sample store not configured")
	}

	moorings := []string{req.Mooring}
	if req.Mooring == "" {
		var err error
		moorings, err = s.RawStore.Moorings()
		if err != nil {
			return nil, fmt.Errorf("could not list moorings: %w", err)
		}
	}

	reply := &rpc.ListSeriesReply{}
	for _, mooring := range moorings {
		serials, err := s.RawStore.Serials(mooring)
		if err != nil {
			return nil, fmt.Errorf("could not list serials for %v: %w", mooring, err)
		}
		reply.Moorings = append(reply.Moorings, rpc.MooringSeries{Mooring: mooring, Serials: serials})
	}

	log.Debugf("listseries -> %v moorings", len(reply.Moorings))
	return reply, nil
}

// FetchSeries returns the raw samples of one instrument from the raw store
func (s *Server) FetchSeries(ctx context.Context, req *rpc.FetchSeriesRequest) (*rpc.FetchSeriesReply, error) {
	if s.RawStore == nil {
		return nil, fmt.Errorf("raw sample store not configured")
	}
	if req.Mooring == "" || req.Serial == "" {
		return nil, fmt.Errorf("mooring and serial are required")
	}

	var samples []types.RawSample
	var err error
	if req.From.IsZero() && req.To.IsZero() {
		samples, err = s.RawStore.All(req.Mooring, req.Serial)
	} else {
		to := req.To
		if to.IsZero() {
			to = farFuture
		}
		samples, err = s.RawStore.Query(req.Mooring, req.Serial, req.From, to)
	}
	if err != nil {
		return nil, fmt.Errorf("could not fetch series %v/%v: %w", req.Mooring, req.Serial, err)
	}

	seriesSamplesServed.WithLabelValues(req.Mooring).Add(float64(len(samples)))
	log.Debugf("fetchseries %v/%v -> %v samples", req.Mooring, req.Serial, len(samples))
	return &rpc.FetchSeriesReply{Mooring: req.Mooring, Serial: req.Serial, Samples: samples}, nil
}

// StreamSamples follows the raw store and pushes newly recorded samples to
// the client. The store is polled rather than hooked because the capture
// daemon appending to it runs as a separate process.
func (s *Server) StreamSamples(req *rpc.StreamSamplesRequest, stream rpc.SeriesStreamSamplesServer) error {
	ctx := stream.Context()
	p, _ := peer.FromContext(ctx)

	if s.RawStore == nil {
		return fmt.Errorf("raw sample store not configured")
	}

	log.Infof("starting sample stream for client [%v] requesting mooring [%v]", p.Addr, req.Mooring)
	seriesStreamClients.Inc()
	defer seriesStreamClients.Dec()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	lastSampleTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Infof("client [%v] disconnected from sample stream", p.Addr)
			return nil
		case <-ticker.C:
			samples, err := s.RawStore.Since(req.Mooring, lastSampleTime)
			if err != nil {
				// The store might be mid-write by the capture daemon.
				// Keep the client connected and try again next tick.
				log.Debugf("could not poll raw store for stream: %v", err)
				continue
			}
			for i := range samples {
				if err := stream.Send(&samples[i]); err != nil {
					log.Errorf("error sending sample to client [%v]: %v", p.Addr, err)
					return err
				}
				seriesSamplesServed.WithLabelValues(samples[i].Mooring).Inc()
				if samples[i].Timestamp.After(lastSampleTime) {
					lastSampleTime = samples[i].Timestamp
				}
			}
		}
	}
}
