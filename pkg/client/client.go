package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/beacon/api/rpc"
	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const requestTimeout = 10 * time.Second

// Client wraps the Beacon gRPC client for easy CLI usage
type Client struct {
	conn   *grpc.ClientConn
	client rpc.RegistryClient
	sender string
}

// NewClient connects to a manager. addr is a host:port or a
// unix:///path/to/socket target. sender is the human address attached to
// every call and may be empty for read-only use.
func NewClient(addr, sender string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial manager: %w", err)
	}

	return NewFromConn(conn, sender), nil
}

// NewFromConn wraps an existing connection
func NewFromConn(conn *grpc.ClientConn, sender string) *Client {
	return &Client{
		conn:   conn,
		client: rpc.NewRegistryClient(conn),
		sender: sender,
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// withSender attaches the sender metadata to ctx
func (c *Client) withSender(ctx context.Context) context.Context {
	if c.sender == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, rpc.SenderMetadataKey, c.sender)
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	return c.withSender(ctx), cancel
}

// CreateAlert creates or overwrites an alert definition
func (c *Client) CreateAlert(req *types.CreateAlertRequest) (*types.Alert, error) {
	ctx, cancel := c.context()
	defer cancel()

	resp, err := c.client.CreateAlert(ctx, req)
	if err != nil {
		return nil, err
	}

	return resp.Alert, nil
}

// SubscribeAlert subscribes the sender to an alert
func (c *Client) SubscribeAlert(req *types.SubscribeAlertRequest) (*types.Subscription, error) {
	ctx, cancel := c.context()
	defer cancel()

	resp, err := c.client.SubscribeAlert(ctx, req)
	if err != nil {
		return nil, err
	}

	return resp.Subscription, nil
}

// UnsubscribeAlert removes the sender's subscription to alertKey
func (c *Client) UnsubscribeAlert(alertKey string) error {
	ctx, cancel := c.context()
	defer cancel()

	_, err := c.client.UnsubscribeAlert(ctx, &types.UnsubscribeAlertRequest{
		AlertKey: alertKey,
	})

	return err
}

// GetAlert gets an alert by key
func (c *Client) GetAlert(key string) (*types.Alert, error) {
	ctx, cancel := c.context()
	defer cancel()

	resp, err := c.client.GetAlert(ctx, &rpc.GetAlertRequest{Key: key})
	if err != nil {
		return nil, err
	}

	return resp.Alert, nil
}

// GetAlerts lists one page of alerts
func (c *Client) GetAlerts(page types.PageRequest) ([]*types.Alert, error) {
	ctx, cancel := c.context()
	defer cancel()

	resp, err := c.client.GetAlerts(ctx, &rpc.GetAlertsRequest{PageRequest: page})
	if err != nil {
		return nil, err
	}

	return resp.Alerts, nil
}

// GetSubscriptionsForAddress lists one page of an address's subscriptions
func (c *Client) GetSubscriptionsForAddress(addr string, page types.PageRequest) ([]*types.Subscription, error) {
	ctx, cancel := c.context()
	defer cancel()

	resp, err := c.client.GetSubscriptionsForAddress(ctx, &rpc.GetSubscriptionsForAddressRequest{
		Address:     addr,
		PageRequest: page,
	})
	if err != nil {
		return nil, err
	}

	return resp.Subscriptions, nil
}

// GetConfig returns the registry configuration
func (c *Client) GetConfig() (*types.Config, error) {
	ctx, cancel := c.context()
	defer cancel()

	resp, err := c.client.GetConfig(ctx, &rpc.GetConfigRequest{})
	if err != nil {
		return nil, err
	}

	return resp.Config, nil
}

// StreamEvents calls fn for every event until ctx is cancelled, the
// server closes the stream or fn returns an error. An empty types list
// follows every event type.
func (c *Client) StreamEvents(ctx context.Context, eventTypes []string, fn func(*events.Event) error) error {
	stream, err := c.client.StreamEvents(c.withSender(ctx), &rpc.StreamEventsRequest{Types: eventTypes})
	if err != nil {
		return err
	}

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
