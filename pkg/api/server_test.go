package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cuemby/beacon/api/rpc"
	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/manager"
	"github.com/cuemby/beacon/pkg/registry"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type testEnv struct {
	manager *manager.Manager
	server  *Server
	owner   address.Canonical
	alice   address.Canonical
	client  rpc.RegistryClient
	local   rpc.RegistryClient
}

func mustRandom(t *testing.T) address.Canonical {
	t.Helper()
	a, err := address.Random()
	require.NoError(t, err)
	return a
}

func dial(t *testing.T, lis *bufconn.Listener) rpc.RegistryClient {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return rpc.NewRegistryClient(conn)
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	owner := mustRandom(t)
	mgr, err := manager.NewManager(&manager.Config{
		NodeID:   "api-test",
		DataDir:  t.TempDir(),
		InMemory: true,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Bootstrap(owner))

	srv := NewServer(mgr, opts...)
	tcp := bufconn.Listen(1 << 20)
	unix := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(tcp) }()
	go func() { _ = srv.ServeLocal(unix) }()

	t.Cleanup(func() {
		srv.Stop()
		_ = mgr.Shutdown()
	})

	return &testEnv{
		manager: mgr,
		server:  srv,
		owner:   owner,
		alice:   mustRandom(t),
		client:  dial(t, tcp),
		local:   dial(t, unix),
	}
}

func as(sender address.Canonical) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), rpc.SenderMetadataKey, sender.String())
}

func swapAlert() *types.CreateAlertRequest {
	return &types.CreateAlertRequest{
		Blockchain: "eth",
		Protocol:   "uniswap",
		Method:     "swap",
		Name:       "Uniswap swap",
		Fields: []types.AlertField{
			{Key: "min_amount", Name: "Minimum amount"},
			{Key: "token", Name: "Token"},
		},
	}
}

func TestCreateAndGetAlert(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.CreateAlert(as(env.owner), swapAlert())
	require.NoError(t, err)
	assert.Equal(t, "eth.uniswap.swap", resp.Alert.Key)

	got, err := env.client.GetAlert(context.Background(), &rpc.GetAlertRequest{Key: "eth.uniswap.swap"})
	require.NoError(t, err)
	assert.Equal(t, resp.Alert, got.Alert)

	cfg, err := env.client.GetConfig(context.Background(), &rpc.GetConfigRequest{})
	require.NoError(t, err)
	assert.Equal(t, env.owner, cfg.Config.Owner)
}

func TestStatusCodes(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.CreateAlert(as(env.owner), swapAlert())
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "missing sender",
			call: func() error {
				_, err := env.client.CreateAlert(context.Background(), swapAlert())
				return err
			},
			code: codes.Unauthenticated,
		},
		{
			name: "unparsable sender",
			call: func() error {
				ctx := metadata.AppendToOutgoingContext(context.Background(), rpc.SenderMetadataKey, "not-an-address")
				_, err := env.client.CreateAlert(ctx, swapAlert())
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "non-owner creates alert",
			call: func() error {
				_, err := env.client.CreateAlert(as(env.alice), swapAlert())
				return err
			},
			code: codes.PermissionDenied,
		},
		{
			name: "unknown alert",
			call: func() error {
				_, err := env.client.GetAlert(context.Background(), &rpc.GetAlertRequest{Key: "sol.jupiter.swap"})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "missing field",
			call: func() error {
				_, err := env.client.SubscribeAlert(as(env.alice), &types.SubscribeAlertRequest{
					AlertKey:    "eth.uniswap.swap",
					FieldValues: []types.SubscriptionFieldValue{{Key: "min_amount", Value: "100"}},
				})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "unsubscribe without subscription",
			call: func() error {
				_, err := env.client.UnsubscribeAlert(as(env.alice), &types.UnsubscribeAlertRequest{AlertKey: "eth.uniswap.swap"})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "invalid address query",
			call: func() error {
				_, err := env.client.GetSubscriptionsForAddress(context.Background(), &rpc.GetSubscriptionsForAddressRequest{Address: "0x1234"})
				return err
			},
			code: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err), err.Error())
		})
	}
}

func TestSubscriptionFlow(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.CreateAlert(as(env.owner), swapAlert())
	require.NoError(t, err)

	resp, err := env.client.SubscribeAlert(as(env.alice), &types.SubscribeAlertRequest{
		AlertKey: "eth.uniswap.swap",
		FieldValues: []types.SubscriptionFieldValue{
			{Key: "min_amount", Value: "100"},
			{Key: "token", Value: "USDC"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, env.alice, resp.Subscription.Subscriber)

	subs, err := env.client.GetSubscriptionsForAddress(context.Background(), &rpc.GetSubscriptionsForAddressRequest{
		Address: env.alice.Hex(),
	})
	require.NoError(t, err)
	require.Len(t, subs.Subscriptions, 1)
	assert.Equal(t, "eth.uniswap.swap", subs.Subscriptions[0].AlertKey)

	_, err = env.client.UnsubscribeAlert(as(env.alice), &types.UnsubscribeAlertRequest{AlertKey: "eth.uniswap.swap"})
	require.NoError(t, err)

	subs, err = env.client.GetSubscriptionsForAddress(context.Background(), &rpc.GetSubscriptionsForAddressRequest{
		Address: env.alice.String(),
	})
	require.NoError(t, err)
	assert.Empty(t, subs.Subscriptions)
}

func TestGetAlertsPagination(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		req := swapAlert()
		req.Protocol = fmt.Sprintf("proto%d", i)
		_, err := env.client.CreateAlert(as(env.owner), req)
		require.NoError(t, err)
	}

	limit := uint32(2)
	first, err := env.client.GetAlerts(context.Background(), &rpc.GetAlertsRequest{
		PageRequest: types.PageRequest{Limit: &limit, Order: types.OrderAscending},
	})
	require.NoError(t, err)
	require.Len(t, first.Alerts, 2)
	assert.Equal(t, "eth.proto0.swap", first.Alerts[0].Key)
	assert.Equal(t, "eth.proto1.swap", first.Alerts[1].Key)

	cursor := first.Alerts[1].Key
	next, err := env.client.GetAlerts(context.Background(), &rpc.GetAlertsRequest{
		PageRequest: types.PageRequest{StartAfter: &cursor, Limit: &limit, Order: types.OrderAscending},
	})
	require.NoError(t, err)
	require.Len(t, next.Alerts, 2)
	assert.Equal(t, "eth.proto2.swap", next.Alerts[0].Key)

	// Default order is descending
	all, err := env.client.GetAlerts(context.Background(), &rpc.GetAlertsRequest{})
	require.NoError(t, err)
	require.Len(t, all.Alerts, 5)
	assert.Equal(t, "eth.proto4.swap", all.Alerts[0].Key)
}

func TestLocalSocketIsReadOnly(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.local.CreateAlert(as(env.owner), swapAlert())
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = env.local.GetConfig(context.Background(), &rpc.GetConfigRequest{})
	assert.NoError(t, err)
}

func TestStreamEvents(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := env.client.StreamEvents(ctx, &rpc.StreamEventsRequest{
		Types: []string{string(events.EventAlertCreated)},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.manager.GetEventBroker().SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = env.client.CreateAlert(as(env.owner), swapAlert())
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, events.EventAlertCreated, ev.Type)
	assert.Equal(t, "eth.uniswap.swap", ev.Metadata["alert_key"])
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"unauthorized", registry.ErrUnauthorized, codes.PermissionDenied},
		{"not found", fmt.Errorf("%w: alert", registry.ErrNotFound), codes.NotFound},
		{"validation", &registry.ValidationError{Msg: "missing field token"}, codes.InvalidArgument},
		{"invalid address", address.ErrInvalidAddress, codes.InvalidArgument},
		{"not initialized", registry.ErrNotInitialized, codes.FailedPrecondition},
		{"already initialized", registry.ErrAlreadyInitialized, codes.FailedPrecondition},
		{"not leader", fmt.Errorf("failed to apply command: %w", raft.ErrNotLeader), codes.Unavailable},
		{"storage", &registry.StorageError{Op: "get", Err: errors.New("disk")}, codes.Internal},
		{"existing status", status.Error(codes.Aborted, "aborted"), codes.Aborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}
	assert.NoError(t, toStatus(nil))
}

func TestIsReadOnlyMethod(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{rpc.Registry_GetAlert_FullMethodName, true},
		{rpc.Registry_GetAlerts_FullMethodName, true},
		{rpc.Registry_GetSubscriptionsForAddress_FullMethodName, true},
		{rpc.Registry_GetConfig_FullMethodName, true},
		{rpc.Registry_StreamEvents_FullMethodName, true},
		{rpc.Registry_CreateAlert_FullMethodName, false},
		{rpc.Registry_SubscribeAlert_FullMethodName, false},
		{rpc.Registry_UnsubscribeAlert_FullMethodName, false},
		{"GetAlert", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, isReadOnlyMethod(tt.method))
		})
	}
}
