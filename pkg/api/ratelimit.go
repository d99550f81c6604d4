package api

import (
	"context"
	"sync"

	"github.com/cuemby/beacon/api/rpc"
	"github.com/cuemby/beacon/pkg/log"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// maxTrackedSenders bounds the limiter map; it is reset when exceeded
const maxTrackedSenders = 10000

// SenderLimiter hands out one token bucket per sender address
type SenderLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewSenderLimiter allows each sender rps commands per second with the
// given burst
func NewSenderLimiter(rps float64, burst int) *SenderLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SenderLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether sender may issue another command now
func (l *SenderLimiter) Allow(sender string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[sender]
	if !ok {
		if len(l.limiters) >= maxTrackedSenders {
			log.Logger.Info().Int("count", len(l.limiters)).Msg("Clearing sender rate limiters")
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[sender] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RateLimitInterceptor throttles mutating calls per sender. Reads pass
// through untouched.
func RateLimitInterceptor(l *SenderLimiter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if isReadOnlyMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		sender := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(rpc.SenderMetadataKey); len(values) > 0 {
				sender = values[0]
			}
		}

		if !l.Allow(sender) {
			log.Logger.Warn().Str("sender", sender).Str("method", methodName(info.FullMethod)).Msg("Rate limit exceeded")
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded for sender")
		}

		return handler(ctx, req)
	}
}
