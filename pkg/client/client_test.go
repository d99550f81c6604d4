package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/api"
	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/manager"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type testEnv struct {
	manager *manager.Manager
	owner   address.Canonical
	lis     *bufconn.Listener
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	owner, err := address.Random()
	require.NoError(t, err)

	mgr, err := manager.NewManager(&manager.Config{
		NodeID:   "client-test",
		DataDir:  t.TempDir(),
		InMemory: true,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Bootstrap(owner))

	srv := api.NewServer(mgr)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	t.Cleanup(func() {
		srv.Stop()
		_ = mgr.Shutdown()
	})

	return &testEnv{manager: mgr, owner: owner, lis: lis}
}

func (e *testEnv) client(t *testing.T, sender string) *Client {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return e.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	c := NewFromConn(conn, sender)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client(t, env.owner.String())

	alert, err := owner.CreateAlert(&types.CreateAlertRequest{
		Blockchain: "eth",
		Protocol:   "aave",
		Method:     "liquidation",
		Fields:     []types.AlertField{{Key: "health_factor", Name: "Health factor"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "eth.aave.liquidation", alert.Key)

	alice, err := address.Random()
	require.NoError(t, err)
	ac := env.client(t, alice.Hex())

	sub, err := ac.SubscribeAlert(&types.SubscribeAlertRequest{
		AlertKey:    alert.Key,
		FieldValues: []types.SubscriptionFieldValue{{Key: "health_factor", Value: "1.05"}},
	})
	require.NoError(t, err)
	assert.Equal(t, alice, sub.Subscriber)

	subs, err := ac.GetSubscriptionsForAddress(alice.String(), types.PageRequest{})
	require.NoError(t, err)
	require.Len(t, subs, 1)

	alerts, err := ac.GetAlerts(types.PageRequest{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	got, err := ac.GetAlert(alert.Key)
	require.NoError(t, err)
	assert.Equal(t, alert.Fields, got.Fields)

	cfg, err := ac.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, env.owner, cfg.Owner)

	require.NoError(t, ac.UnsubscribeAlert(alert.Key))
	err = ac.UnsubscribeAlert(alert.Key)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestClientWithoutSender(t *testing.T) {
	env := newTestEnv(t)
	anon := env.client(t, "")

	_, err := anon.CreateAlert(&types.CreateAlertRequest{Blockchain: "eth", Protocol: "p", Method: "m"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = anon.GetConfig()
	assert.NoError(t, err)
}

func TestClientStreamEvents(t *testing.T) {
	env := newTestEnv(t)
	owner := env.client(t, env.owner.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- owner.StreamEvents(ctx, nil, func(ev *events.Event) error {
			received <- ev
			cancel()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return env.manager.GetEventBroker().SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := owner.CreateAlert(&types.CreateAlertRequest{Blockchain: "eth", Protocol: "p", Method: "m"})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, events.EventAlertCreated, ev.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}

	assert.NoError(t, <-done)
}
