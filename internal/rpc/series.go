package rpc

import (
	"context"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name
const ServiceName = "moorproc.SeriesService"

// ListSeriesRequest asks which instrument series a host holds. An empty
// mooring lists every mooring.
type ListSeriesRequest struct {
	Mooring string `msgpack:"mooring"`
}

// MooringSeries names the instrument serials held for one mooring
type MooringSeries struct {
	Mooring string   `msgpack:"mooring"`
	Serials []string `msgpack:"serials"`
}

// ListSeriesReply lists the series available on the host
type ListSeriesReply struct {
	Moorings []MooringSeries `msgpack:"moorings"`
}

// FetchSeriesRequest asks for the raw samples of one instrument. Zero From
// and To mean an unbounded window.
type FetchSeriesRequest struct {
	Mooring string    `msgpack:"mooring"`
	Serial  string    `msgpack:"serial"`
	From    time.Time `msgpack:"from"`
	To      time.Time `msgpack:"to"`
}

// FetchSeriesReply carries the raw samples of one instrument, ordered by time
type FetchSeriesReply struct {
	Mooring string            `msgpack:"mooring"`
	Serial  string            `msgpack:"serial"`
	Samples []types.RawSample `msgpack:"samples"`
}

// StreamSamplesRequest subscribes to live captured samples. An empty mooring
// subscribes to everything the host captures.
type StreamSamplesRequest struct {
	Mooring string `msgpack:"mooring"`
}

// SeriesServer is the interface a series host must implement
type SeriesServer interface {
	// ListSeries reports the moorings and instrument serials held
	ListSeries(context.Context, *ListSeriesRequest) (*ListSeriesReply, error)
	// FetchSeries returns the raw samples of one instrument
	FetchSeries(context.Context, *FetchSeriesRequest) (*FetchSeriesReply, error)
	// StreamSamples pushes captured samples to the client as they arrive
	StreamSamples(*StreamSamplesRequest, SeriesStreamSamplesServer) error
}

// RegisterSeriesServer registers a series host implementation with a gRPC
// server
func RegisterSeriesServer(s grpc.ServiceRegistrar, srv SeriesServer) {
	s.RegisterService(&SeriesServiceDesc, srv)
}

// SeriesServiceDesc wires the service methods by hand since there is no
// protobuf schema to generate it from
var SeriesServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SeriesServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListSeries",
			Handler:    listSeriesHandler,
		},
		{
			MethodName: "FetchSeries",
			Handler:    fetchSeriesHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSamples",
			Handler:       streamSamplesHandler,
			ServerStreams: true,
		},
	},
}

func listSeriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListSeriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SeriesServer).ListSeries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/ListSeries",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SeriesServer).ListSeries(ctx, req.(*ListSeriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func fetchSeriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FetchSeriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SeriesServer).FetchSeries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/FetchSeries",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SeriesServer).FetchSeries(ctx, req.(*FetchSeriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamSamplesHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(StreamSamplesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SeriesServer).StreamSamples(in, &seriesStreamSamplesServer{stream})
}

// SeriesStreamSamplesServer is the server side of the live sample stream
type SeriesStreamSamplesServer interface {
	Send(*types.RawSample) error
	grpc.ServerStream
}

type seriesStreamSamplesServer struct {
	grpc.ServerStream
}

func (s *seriesStreamSamplesServer) Send(m *types.RawSample) error {
	return s.SendMsg(m)
}
