package rpc

import (
	"context"

	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "beacon.Registry"

const (
	Registry_CreateAlert_FullMethodName                = "/beacon.Registry/CreateAlert"
	Registry_SubscribeAlert_FullMethodName             = "/beacon.Registry/SubscribeAlert"
	Registry_UnsubscribeAlert_FullMethodName           = "/beacon.Registry/UnsubscribeAlert"
	Registry_GetAlert_FullMethodName                   = "/beacon.Registry/GetAlert"
	Registry_GetAlerts_FullMethodName                  = "/beacon.Registry/GetAlerts"
	Registry_GetSubscriptionsForAddress_FullMethodName = "/beacon.Registry/GetSubscriptionsForAddress"
	Registry_GetConfig_FullMethodName                  = "/beacon.Registry/GetConfig"
	Registry_StreamEvents_FullMethodName               = "/beacon.Registry/StreamEvents"
)

// RegistryServer is the server API for the Registry service
type RegistryServer interface {
	CreateAlert(context.Context, *types.CreateAlertRequest) (*CreateAlertResponse, error)
	SubscribeAlert(context.Context, *types.SubscribeAlertRequest) (*SubscribeAlertResponse, error)
	UnsubscribeAlert(context.Context, *types.UnsubscribeAlertRequest) (*UnsubscribeAlertResponse, error)
	GetAlert(context.Context, *GetAlertRequest) (*GetAlertResponse, error)
	GetAlerts(context.Context, *GetAlertsRequest) (*GetAlertsResponse, error)
	GetSubscriptionsForAddress(context.Context, *GetSubscriptionsForAddressRequest) (*GetSubscriptionsForAddressResponse, error)
	GetConfig(context.Context, *GetConfigRequest) (*GetConfigResponse, error)
	StreamEvents(*StreamEventsRequest, grpc.ServerStreamingServer[events.Event]) error
}

// UnimplementedRegistryServer can be embedded to have forward compatible implementations
type UnimplementedRegistryServer struct{}

func (UnimplementedRegistryServer) CreateAlert(context.Context, *types.CreateAlertRequest) (*CreateAlertResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateAlert not implemented")
}
func (UnimplementedRegistryServer) SubscribeAlert(context.Context, *types.SubscribeAlertRequest) (*SubscribeAlertResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SubscribeAlert not implemented")
}
func (UnimplementedRegistryServer) UnsubscribeAlert(context.Context, *types.UnsubscribeAlertRequest) (*UnsubscribeAlertResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UnsubscribeAlert not implemented")
}
func (UnimplementedRegistryServer) GetAlert(context.Context, *GetAlertRequest) (*GetAlertResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAlert not implemented")
}
func (UnimplementedRegistryServer) GetAlerts(context.Context, *GetAlertsRequest) (*GetAlertsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetAlerts not implemented")
}
func (UnimplementedRegistryServer) GetSubscriptionsForAddress(context.Context, *GetSubscriptionsForAddressRequest) (*GetSubscriptionsForAddressResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSubscriptionsForAddress not implemented")
}
func (UnimplementedRegistryServer) GetConfig(context.Context, *GetConfigRequest) (*GetConfigResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetConfig not implemented")
}
func (UnimplementedRegistryServer) StreamEvents(*StreamEventsRequest, grpc.ServerStreamingServer[events.Event]) error {
	return status.Errorf(codes.Unimplemented, "method StreamEvents not implemented")
}

// RegisterRegistryServer registers srv on s
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&Registry_ServiceDesc, srv)
}

// unaryHandler adapts a typed RegistryServer method to a grpc.MethodHandler
func unaryHandler[Req, Resp any](fullMethod string, call func(RegistryServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RegistryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RegistryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _Registry_StreamEvents_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(StreamEventsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RegistryServer).StreamEvents(m, &grpc.GenericServerStream[StreamEventsRequest, events.Event]{ServerStream: stream})
}

// Registry_ServiceDesc is the grpc.ServiceDesc for the Registry service
var Registry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateAlert",
			Handler:    unaryHandler(Registry_CreateAlert_FullMethodName, RegistryServer.CreateAlert),
		},
		{
			MethodName: "SubscribeAlert",
			Handler:    unaryHandler(Registry_SubscribeAlert_FullMethodName, RegistryServer.SubscribeAlert),
		},
		{
			MethodName: "UnsubscribeAlert",
			Handler:    unaryHandler(Registry_UnsubscribeAlert_FullMethodName, RegistryServer.UnsubscribeAlert),
		},
		{
			MethodName: "GetAlert",
			Handler:    unaryHandler(Registry_GetAlert_FullMethodName, RegistryServer.GetAlert),
		},
		{
			MethodName: "GetAlerts",
			Handler:    unaryHandler(Registry_GetAlerts_FullMethodName, RegistryServer.GetAlerts),
		},
		{
			MethodName: "GetSubscriptionsForAddress",
			Handler:    unaryHandler(Registry_GetSubscriptionsForAddress_FullMethodName, RegistryServer.GetSubscriptionsForAddress),
		},
		{
			MethodName: "GetConfig",
			Handler:    unaryHandler(Registry_GetConfig_FullMethodName, RegistryServer.GetConfig),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			Handler:       _Registry_StreamEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "beacon/registry",
}

// RegistryClient is the client API for the Registry service
type RegistryClient interface {
	CreateAlert(ctx context.Context, in *types.CreateAlertRequest, opts ...grpc.CallOption) (*CreateAlertResponse, error)
	SubscribeAlert(ctx context.Context, in *types.SubscribeAlertRequest, opts ...grpc.CallOption) (*SubscribeAlertResponse, error)
	UnsubscribeAlert(ctx context.Context, in *types.UnsubscribeAlertRequest, opts ...grpc.CallOption) (*UnsubscribeAlertResponse, error)
	GetAlert(ctx context.Context, in *GetAlertRequest, opts ...grpc.CallOption) (*GetAlertResponse, error)
	GetAlerts(ctx context.Context, in *GetAlertsRequest, opts ...grpc.CallOption) (*GetAlertsResponse, error)
	GetSubscriptionsForAddress(ctx context.Context, in *GetSubscriptionsForAddressRequest, opts ...grpc.CallOption) (*GetSubscriptionsForAddressResponse, error)
	GetConfig(ctx context.Context, in *GetConfigRequest, opts ...grpc.CallOption) (*GetConfigResponse, error)
	StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[events.Event], error)
}

type registryClient struct {
	cc grpc.ClientConnInterface
}

// NewRegistryClient returns a client that always speaks the JSON codec
func NewRegistryClient(cc grpc.ClientConnInterface) RegistryClient {
	return &registryClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *registryClient) CreateAlert(ctx context.Context, in *types.CreateAlertRequest, opts ...grpc.CallOption) (*CreateAlertResponse, error) {
	return invoke[CreateAlertResponse](ctx, c.cc, Registry_CreateAlert_FullMethodName, in, opts)
}

func (c *registryClient) SubscribeAlert(ctx context.Context, in *types.SubscribeAlertRequest, opts ...grpc.CallOption) (*SubscribeAlertResponse, error) {
	return invoke[SubscribeAlertResponse](ctx, c.cc, Registry_SubscribeAlert_FullMethodName, in, opts)
}

func (c *registryClient) UnsubscribeAlert(ctx context.Context, in *types.UnsubscribeAlertRequest, opts ...grpc.CallOption) (*UnsubscribeAlertResponse, error) {
	return invoke[UnsubscribeAlertResponse](ctx, c.cc, Registry_UnsubscribeAlert_FullMethodName, in, opts)
}

func (c *registryClient) GetAlert(ctx context.Context, in *GetAlertRequest, opts ...grpc.CallOption) (*GetAlertResponse, error) {
	return invoke[GetAlertResponse](ctx, c.cc, Registry_GetAlert_FullMethodName, in, opts)
}

func (c *registryClient) GetAlerts(ctx context.Context, in *GetAlertsRequest, opts ...grpc.CallOption) (*GetAlertsResponse, error) {
	return invoke[GetAlertsResponse](ctx, c.cc, Registry_GetAlerts_FullMethodName, in, opts)
}

func (c *registryClient) GetSubscriptionsForAddress(ctx context.Context, in *GetSubscriptionsForAddressRequest, opts ...grpc.CallOption) (*GetSubscriptionsForAddressResponse, error) {
	return invoke[GetSubscriptionsForAddressResponse](ctx, c.cc, Registry_GetSubscriptionsForAddress_FullMethodName, in, opts)
}

func (c *registryClient) GetConfig(ctx context.Context, in *GetConfigRequest, opts ...grpc.CallOption) (*GetConfigResponse, error) {
	return invoke[GetConfigResponse](ctx, c.cc, Registry_GetConfig_FullMethodName, in, opts)
}

func (c *registryClient) StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[events.Event], error) {
	stream, err := c.cc.NewStream(ctx, &Registry_ServiceDesc.Streams[0], Registry_StreamEvents_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[StreamEventsRequest, events.Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
