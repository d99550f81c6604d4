package api

import (
	"context"
	"strings"

	"github.com/cuemby/beacon/pkg/metrics"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadOnlyInterceptor creates a gRPC unary interceptor that only allows read-only operations.
// This is used for the Unix socket listener to prevent write operations from local CLI.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(
				codes.PermissionDenied,
				"write operations not allowed on Unix socket - use the TCP API (beacon --manager <addr> --sender <address>)",
			)
		}

		return handler(ctx, req)
	}
}

// methodName extracts the method from a full path
// (e.g. "/beacon.Registry/GetAlerts" -> "GetAlerts")
func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

// isReadOnlyMethod checks if a gRPC method is read-only
func isReadOnlyMethod(fullMethod string) bool {
	if !strings.HasPrefix(fullMethod, "/") {
		return false
	}

	name := methodName(fullMethod)
	return strings.HasPrefix(name, "Get") || name == "StreamEvents"
}

// MetricsInterceptor records request counts and latency for unary calls
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)

		method := methodName(info.FullMethod)
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		metrics.APIRequestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()

		return resp, err
	}
}

// StreamMetricsInterceptor records request counts and stream lifetime
func StreamMetricsInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		timer := metrics.NewTimer()
		err := handler(srv, ss)

		method := methodName(info.FullMethod)
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		metrics.APIRequestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()

		return err
	}
}

// LoggingInterceptor logs failed calls at warn level and the rest at debug
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.Str("method", methodName(info.FullMethod)).
			Str("code", status.Code(err).String()).
			Msg("gRPC request")

		return resp, err
	}
}
