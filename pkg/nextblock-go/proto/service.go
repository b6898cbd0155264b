package proto

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Message is implemented by every type in this package.
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire([]byte) error
}

// Codec carries Message values over gRPC. It is forced per call rather than
// registered globally, and keeps the name "proto" so the relay sees the
// standard application/grpc+proto content type.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("proto: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("proto: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (Codec) Name() string { return "proto" }

const NextStreamService_SubscribeNextStream_FullMethodName = "/nextblock_stream.NextStreamService/SubscribeNextStream"

// NextStreamServiceClient is the client API for NextStreamService.
type NextStreamServiceClient interface {
	SubscribeNextStream(ctx context.Context, in *NextStreamSubscription, opts ...grpc.CallOption) (NextStreamService_SubscribeNextStreamClient, error)
}

type nextStreamServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewNextStreamServiceClient(cc grpc.ClientConnInterface) NextStreamServiceClient {
	return &nextStreamServiceClient{cc}
}

func (c *nextStreamServiceClient) SubscribeNextStream(ctx context.Context, in *NextStreamSubscription, opts ...grpc.CallOption) (NextStreamService_SubscribeNextStreamClient, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	stream, err := c.cc.NewStream(ctx, &NextStreamService_ServiceDesc.Streams[0], NextStreamService_SubscribeNextStream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &nextStreamServiceSubscribeNextStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type NextStreamService_SubscribeNextStreamClient interface {
	Recv() (*NextStreamNotification, error)
	grpc.ClientStream
}

type nextStreamServiceSubscribeNextStreamClient struct {
	grpc.ClientStream
}

func (x *nextStreamServiceSubscribeNextStreamClient) Recv() (*NextStreamNotification, error) {
	m := new(NextStreamNotification)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NextStreamServiceServer is the server API for NextStreamService. Only the
// in-memory relay used by tests implements it; servers must be created with
// grpc.ForceServerCodec(Codec{}).
type NextStreamServiceServer interface {
	SubscribeNextStream(*NextStreamSubscription, NextStreamService_SubscribeNextStreamServer) error
}

type UnimplementedNextStreamServiceServer struct{}

func (UnimplementedNextStreamServiceServer) SubscribeNextStream(*NextStreamSubscription, NextStreamService_SubscribeNextStreamServer) error {
	return status.Error(codes.Unimplemented, "method SubscribeNextStream not implemented")
}

func RegisterNextStreamServiceServer(s grpc.ServiceRegistrar, srv NextStreamServiceServer) {
	s.RegisterService(&NextStreamService_ServiceDesc, srv)
}

type NextStreamService_SubscribeNextStreamServer interface {
	Send(*NextStreamNotification) error
	grpc.ServerStream
}

type nextStreamServiceSubscribeNextStreamServer struct {
	grpc.ServerStream
}

func (x *nextStreamServiceSubscribeNextStreamServer) Send(m *NextStreamNotification) error {
	return x.ServerStream.SendMsg(m)
}

func _NextStreamService_SubscribeNextStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(NextStreamSubscription)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(NextStreamServiceServer).SubscribeNextStream(m, &nextStreamServiceSubscribeNextStreamServer{stream})
}

var NextStreamService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nextblock_stream.NextStreamService",
	HandlerType: (*NextStreamServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeNextStream",
			Handler:       _NextStreamService_SubscribeNextStream_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "nextblock_stream.proto",
}
