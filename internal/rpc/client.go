package rpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// SeriesClient is the client side of the series service
type SeriesClient interface {
	ListSeries(ctx context.Context, in *ListSeriesRequest, opts ...grpc.CallOption) (*ListSeriesReply, error)
	FetchSeries(ctx context.Context, in *FetchSeriesRequest, opts ...grpc.CallOption) (*FetchSeriesReply, error)
	StreamSamples(ctx context.Context, in *StreamSamplesRequest, opts ...grpc.CallOption) (SeriesStreamSamplesClient, error)
}

// NewSeriesClient wraps a gRPC connection as a series service client. Every
// call requests the MessagePack content subtype so the server picks the
// right codec.
func NewSeriesClient(cc grpc.ClientConnInterface) SeriesClient {
	return &seriesClient{cc: cc}
}

type seriesClient struct {
	cc grpc.ClientConnInterface
}

func (c *seriesClient) ListSeries(ctx context.Context, in *ListSeriesRequest, opts ...grpc.CallOption) (*ListSeriesReply, error) {
	out := new(ListSeriesReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListSeries", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *seriesClient) FetchSeries(ctx context.Context, in *FetchSeriesRequest, opts ...grpc.CallOption) (*FetchSeriesReply, error) {
	out := new(FetchSeriesReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/FetchSeries", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *seriesClient) StreamSamples(ctx context.Context, in *StreamSamplesRequest, opts ...grpc.CallOption) (SeriesStreamSamplesClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &SeriesServiceDesc.Streams[0], "/"+ServiceName+"/StreamSamples", opts...)
	if err != nil {
		return nil, err
	}
	x := &seriesStreamSamplesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// SeriesStreamSamplesClient is the client side of the live sample stream
type SeriesStreamSamplesClient interface {
	Recv() (*types.RawSample, error)
	grpc.ClientStream
}

type seriesStreamSamplesClient struct {
	grpc.ClientStream
}

func (x *seriesStreamSamplesClient) Recv() (*types.RawSample, error) {
	m := new(types.RawSample)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Dial opens a gRPC connection to a series host with keepalives tuned for
// long-lived streams over flaky links
func Dial(endpoint string, tlsEnabled bool) (*grpc.ClientConn, error) {
	var opts []grpc.DialOption

	if tlsEnabled {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}))

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %v: %w", endpoint, err)
	}
	return conn, nil
}
