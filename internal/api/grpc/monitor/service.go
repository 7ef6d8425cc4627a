package monitor

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully qualified names of the service and its methods.
const (
	ServiceName                  = "posturealarm.v1.MonitorService"
	GetStateFullMethod           = "/" + ServiceName + "/GetState"
	PushClassificationFullMethod = "/" + ServiceName + "/PushClassification"
)

// MonitorServiceServer is the server API for MonitorService.
type MonitorServiceServer interface {
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	PushClassification(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// MonitorServiceClient is the client API for MonitorService.
type MonitorServiceClient interface {
	GetState(ctx context.Context, req *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	PushClassification(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

// RegisterMonitorServiceServer registers srv on s.
func RegisterMonitorServiceServer(s grpc.ServiceRegistrar, srv MonitorServiceServer) {
	s.RegisterService(&monitorServiceDesc, srv)
}

//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var monitorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MonitorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetState",
			Handler:    getStateHandler,
		},
		{
			MethodName: "PushClassification",
			Handler:    pushClassificationHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "posturealarm/v1/monitor.proto",
}

//nolint:revive // Signature is dictated by grpc.MethodHandler.
func getStateHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(MonitorServiceServer).GetState(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStateFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MonitorServiceServer).GetState(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:revive // Signature is dictated by grpc.MethodHandler.
func pushClassificationHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(MonitorServiceServer).PushClassification(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PushClassificationFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MonitorServiceServer).PushClassification(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

// monitorServiceClient invokes MonitorService over a connection.
type monitorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMonitorServiceClient wraps cc.
//
//nolint:ireturn // Mirrors generated gRPC constructors.
func NewMonitorServiceClient(cc grpc.ClientConnInterface) MonitorServiceClient {
	return &monitorServiceClient{cc: cc}
}

func (c *monitorServiceClient) GetState(
	ctx context.Context,
	req *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStateFullMethod, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *monitorServiceClient) PushClassification(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, PushClassificationFullMethod, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
