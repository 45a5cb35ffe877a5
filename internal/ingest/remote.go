package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanobs/moorproc/internal/rpc"
	"github.com/oceanobs/moorproc/internal/types"
	"github.com/oceanobs/moorproc/pkg/config"
	"google.golang.org/grpc"
)

// remoteFetchTimeout bounds one instrument fetch; full-deployment series can
// run to millions of samples over slow links
const remoteFetchTimeout = 2 * time.Minute

// RemoteReader pulls instrument series from an archive host's series service
// so pipeline runs can work off-site.
type RemoteReader struct {
	endpoint string
	conn     *grpc.ClientConn
	client   rpc.SeriesClient
}

// NewRemoteReader connects to an archive host
func NewRemoteReader(endpoint string, tlsEnabled bool) (*RemoteReader, error) {
	conn, err := rpc.Dial(endpoint, tlsEnabled)
	if err != nil {
		return nil, err
	}
	return &RemoteReader{
		endpoint: endpoint,
		conn:     conn,
		client:   rpc.NewSeriesClient(conn),
	}, nil
}

// ReadMooring fetches each configured instrument's series from the remote host
func (r *RemoteReader) ReadMooring(ctx context.Context, mooring *config.MooringData) (*types.MooringInstrumentSet, error) {
	return readConfigured(mooring, func(inst *config.InstrumentData) (*types.InstrumentSeries, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, remoteFetchTimeout)
		defer cancel()

		reply, err := r.client.FetchSeries(fetchCtx, &rpc.FetchSeriesRequest{
			Mooring: mooring.Name,
			Serial:  inst.Serial,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch from %v failed: %w", r.endpoint, err)
		}
		return samplesToSeries(mooring, inst, reply.Samples)
	})
}

// List reports which series the remote host holds
func (r *RemoteReader) List(ctx context.Context, mooring string) ([]rpc.MooringSeries, error) {
	reply, err := r.client.ListSeries(ctx, &rpc.ListSeriesRequest{Mooring: mooring})
	if err != nil {
		return nil, fmt.Errorf("list from %v failed: %w", r.endpoint, err)
	}
	return reply.Moorings, nil
}

// Close closes the connection to the remote host
func (r *RemoteReader) Close() error {
	return r.conn.Close()
}
