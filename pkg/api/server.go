package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/cuemby/beacon/api/rpc"
	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/log"
	"github.com/cuemby/beacon/pkg/manager"
	"github.com/cuemby/beacon/pkg/registry"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Server implements the beacon.Registry gRPC service
type Server struct {
	rpc.UnimplementedRegistryServer
	manager *manager.Manager
	grpc    *grpc.Server
	local   *grpc.Server
	logger  zerolog.Logger
}

// Option configures a Server
type Option func(*serverOptions)

type serverOptions struct {
	limiter *SenderLimiter
}

// WithRateLimit throttles mutating calls on the TCP listener to rps per
// sender. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *serverOptions) {
		if rps > 0 {
			o.limiter = NewSenderLimiter(rps, burst)
		}
	}
}

// NewServer creates a new API server. The TCP server accepts every
// method; the local (unix socket) server only serves reads.
func NewServer(mgr *manager.Manager, opts ...Option) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		manager: mgr,
		logger:  log.WithComponent("api"),
	}

	unary := []grpc.UnaryServerInterceptor{MetricsInterceptor()}
	if o.limiter != nil {
		unary = append(unary, RateLimitInterceptor(o.limiter))
	}
	unary = append(unary, LoggingInterceptor(s.logger))

	s.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(StreamMetricsInterceptor()),
	)
	s.local = grpc.NewServer(
		grpc.ChainUnaryInterceptor(MetricsInterceptor(), ReadOnlyInterceptor(), LoggingInterceptor(s.logger)),
		grpc.ChainStreamInterceptor(StreamMetricsInterceptor()),
	)

	rpc.RegisterRegistryServer(s.grpc, s)
	rpc.RegisterRegistryServer(s.local, s)

	return s
}

// Start starts the gRPC server on a TCP address
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}

	s.logger.Info().Str("addr", addr).Msg("gRPC API listening")
	return s.Serve(lis)
}

// Serve serves the full API on lis
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// StartUnix starts the read-only API on a unix socket, replacing a stale
// socket file if one exists.
func (s *Server) StartUnix(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %v", err)
	}

	lis, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %v", err)
	}
	if err := os.Chmod(path, 0660); err != nil {
		lis.Close()
		return fmt.Errorf("failed to set socket permissions: %v", err)
	}

	s.logger.Info().Str("socket", path).Msg("Read-only gRPC API listening")
	return s.ServeLocal(lis)
}

// ServeLocal serves the read-only API on lis
func (s *Server) ServeLocal(lis net.Listener) error {
	return s.local.Serve(lis)
}

// Stop gracefully stops both gRPC servers
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.local != nil {
		s.local.GracefulStop()
	}
}

// senderFromContext reads the caller address from the request metadata
func senderFromContext(ctx context.Context) (address.Canonical, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return address.Canonical{}, status.Error(codes.Unauthenticated, "missing sender metadata")
	}

	values := md.Get(rpc.SenderMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return address.Canonical{}, status.Errorf(codes.Unauthenticated, "missing %s metadata", rpc.SenderMetadataKey)
	}

	sender, err := address.Parse(values[0])
	if err != nil {
		return address.Canonical{}, status.Errorf(codes.InvalidArgument, "invalid sender: %v", err)
	}
	return sender, nil
}

// toStatus maps registry and raft errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, registry.ErrNotFound):
		code = codes.NotFound
	case registry.IsValidation(err), errors.Is(err, address.ErrInvalidAddress):
		code = codes.InvalidArgument
	case errors.Is(err, registry.ErrNotInitialized), errors.Is(err, registry.ErrAlreadyInitialized):
		code = codes.FailedPrecondition
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// CreateAlert stores an alert definition; only the owner may call it
func (s *Server) CreateAlert(ctx context.Context, req *types.CreateAlertRequest) (*rpc.CreateAlertResponse, error) {
	sender, err := senderFromContext(ctx)
	if err != nil {
		return nil, err
	}

	alert, err := s.manager.CreateAlert(sender, req)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.CreateAlertResponse{Alert: alert}, nil
}

// SubscribeAlert subscribes the sender to an alert
func (s *Server) SubscribeAlert(ctx context.Context, req *types.SubscribeAlertRequest) (*rpc.SubscribeAlertResponse, error) {
	sender, err := senderFromContext(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := s.manager.SubscribeAlert(sender, req)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.SubscribeAlertResponse{Subscription: sub}, nil
}

// UnsubscribeAlert removes the sender's subscription to an alert
func (s *Server) UnsubscribeAlert(ctx context.Context, req *types.UnsubscribeAlertRequest) (*rpc.UnsubscribeAlertResponse, error) {
	sender, err := senderFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.manager.UnsubscribeAlert(sender, req); err != nil {
		return nil, toStatus(err)
	}

	return &rpc.UnsubscribeAlertResponse{}, nil
}

// GetAlert returns one alert by key
func (s *Server) GetAlert(ctx context.Context, req *rpc.GetAlertRequest) (*rpc.GetAlertResponse, error) {
	alert, err := s.manager.GetAlert(req.Key)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.GetAlertResponse{Alert: alert}, nil
}

// GetAlerts returns one page of alerts
func (s *Server) GetAlerts(ctx context.Context, req *rpc.GetAlertsRequest) (*rpc.GetAlertsResponse, error) {
	alerts, err := s.manager.ListAlerts(req.PageRequest)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.GetAlertsResponse{Alerts: alerts}, nil
}

// GetSubscriptionsForAddress returns one page of an address's subscriptions
func (s *Server) GetSubscriptionsForAddress(ctx context.Context, req *rpc.GetSubscriptionsForAddressRequest) (*rpc.GetSubscriptionsForAddressResponse, error) {
	subscriber, err := address.Parse(req.Address)
	if err != nil {
		return nil, toStatus(err)
	}

	subs, err := s.manager.ListSubscriptions(subscriber, req.PageRequest)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.GetSubscriptionsForAddressResponse{Subscriptions: subs}, nil
}

// GetConfig returns the registry configuration
func (s *Server) GetConfig(ctx context.Context, req *rpc.GetConfigRequest) (*rpc.GetConfigResponse, error) {
	cfg, err := s.manager.Config()
	if err != nil {
		return nil, toStatus(err)
	}

	return &rpc.GetConfigResponse{Config: cfg}, nil
}

// StreamEvents streams registry events until the client goes away
func (s *Server) StreamEvents(req *rpc.StreamEventsRequest, stream grpc.ServerStreamingServer[events.Event]) error {
	broker := s.manager.GetEventBroker()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	wanted := make(map[events.EventType]bool, len(req.Types))
	for _, t := range req.Types {
		wanted[events.EventType(t)] = true
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-broker.Done():
			return status.Error(codes.Unavailable, "event broker stopped")
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if len(wanted) > 0 && !wanted[ev.Type] {
				continue
			}
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}
