/*
Package api implements the Beacon gRPC API server and the HTTP health server.

The gRPC server exposes the beacon.Registry service defined in api/rpc on
two listeners:

	TCP  (--api-addr)   every method
	unix (--socket)     Get* and StreamEvents only

# Identity

Mutating calls carry the caller's address in the x-beacon-sender metadata
entry, in base58 or 0x-hex form. A missing entry fails with
Unauthenticated and an unparsable one with InvalidArgument. There is no
signature check: the node trusts whoever can reach the TCP listener.

# Error Mapping

	registry.ErrUnauthorized          PermissionDenied
	registry.ErrNotFound              NotFound
	*registry.ValidationError         InvalidArgument
	address.ErrInvalidAddress         InvalidArgument
	ErrNotInitialized / ErrAlready…   FailedPrecondition
	raft.ErrNotLeader                 Unavailable
	anything else                     Internal

# Interceptors

MetricsInterceptor and StreamMetricsInterceptor record
beacon_api_requests_total and beacon_api_request_duration_seconds on both
listeners. ReadOnlyInterceptor guards the unix socket. LoggingInterceptor
logs each unary call through zerolog.

WithRateLimit adds RateLimitInterceptor to the TCP listener: one token
bucket per sender for mutating calls, ResourceExhausted once it runs dry.
Reads are never throttled.

# Health

HealthServer serves:

	GET /health    liveness, always 200 while the process runs
	GET /ready     200 once the node leads raft, storage answers reads and
	               the registry has an owner; 503 otherwise
	GET /metrics   Prometheus exposition
*/
package api
