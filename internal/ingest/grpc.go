package ingest

// Service definition for the SampleIngestor gRPC service. The messages
// are plain structs carried by the CBOR codec in codec.go.

import (
	"context"

	"google.golang.org/grpc"
)

// SampleBatch is a group of samples pushed by one source
type SampleBatch struct {
	Source  string    `cbor:"source"`
	Samples []Message `cbor:"samples"`
}

// Ack is returned when a stream is closed by the client
type Ack struct {
	Queued   uint64 `cbor:"queued"`
	Rejected uint64 `cbor:"rejected"`
}

// SampleIngestorServer is the server API for the SampleIngestor service
type SampleIngestorServer interface {
	StreamSamples(SampleIngestor_StreamSamplesServer) error
}

// SampleIngestor_StreamSamplesServer is the server-side stream interface
type SampleIngestor_StreamSamplesServer interface {
	SendAndClose(*Ack) error
	Recv() (*SampleBatch, error)
	grpc.ServerStream
}

type sampleIngestorStreamSamplesServer struct {
	grpc.ServerStream
}

func (x *sampleIngestorStreamSamplesServer) SendAndClose(m *Ack) error {
	return x.ServerStream.SendMsg(m)
}

func (x *sampleIngestorStreamSamplesServer) Recv() (*SampleBatch, error) {
	m := new(SampleBatch)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func streamSamplesHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(SampleIngestorServer).StreamSamples(&sampleIngestorStreamSamplesServer{stream})
}

const streamSamplesMethod = "/liveview.SampleIngestor/StreamSamples"

// SampleIngestorServiceDesc describes the SampleIngestor service
var SampleIngestorServiceDesc = grpc.ServiceDesc{
	ServiceName: "liveview.SampleIngestor",
	HandlerType: (*SampleIngestorServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSamples",
			Handler:       streamSamplesHandler,
			ClientStreams: true,
		},
	},
}

// RegisterSampleIngestorServer registers the service on a gRPC server
func RegisterSampleIngestorServer(s grpc.ServiceRegistrar, srv SampleIngestorServer) {
	s.RegisterService(&SampleIngestorServiceDesc, srv)
}

// SampleIngestorClient is the client API for the SampleIngestor service
type SampleIngestorClient interface {
	StreamSamples(ctx context.Context, opts ...grpc.CallOption) (SampleIngestor_StreamSamplesClient, error)
}

type sampleIngestorClient struct {
	cc grpc.ClientConnInterface
}

// NewSampleIngestorClient creates a new client
func NewSampleIngestorClient(cc grpc.ClientConnInterface) SampleIngestorClient {
	return &sampleIngestorClient{cc}
}

func (c *sampleIngestorClient) StreamSamples(ctx context.Context, opts ...grpc.CallOption) (SampleIngestor_StreamSamplesClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &SampleIngestorServiceDesc.Streams[0], streamSamplesMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &sampleIngestorStreamSamplesClient{stream}, nil
}

// SampleIngestor_StreamSamplesClient is the client stream interface
type SampleIngestor_StreamSamplesClient interface {
	Send(*SampleBatch) error
	CloseAndRecv() (*Ack, error)
	grpc.ClientStream
}

type sampleIngestorStreamSamplesClient struct {
	grpc.ClientStream
}

func (x *sampleIngestorStreamSamplesClient) Send(m *SampleBatch) error {
	return x.ClientStream.SendMsg(m)
}

func (x *sampleIngestorStreamSamplesClient) CloseAndRecv() (*Ack, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(Ack)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
