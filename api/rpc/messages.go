package rpc

import (
	"github.com/cuemby/beacon/pkg/types"
)

// SenderMetadataKey carries the caller's human-readable address
const SenderMetadataKey = "x-beacon-sender"

type CreateAlertResponse struct {
	Alert *types.Alert `json:"alert"`
}

type SubscribeAlertResponse struct {
	Subscription *types.Subscription `json:"subscription"`
}

type UnsubscribeAlertResponse struct{}

type GetAlertRequest struct {
	Key string `json:"key"`
}

type GetAlertResponse struct {
	Alert *types.Alert `json:"alert"`
}

type GetAlertsRequest struct {
	types.PageRequest
}

type GetAlertsResponse struct {
	Alerts []*types.Alert `json:"alerts"`
}

type GetSubscriptionsForAddressRequest struct {
	Address string `json:"address"`
	types.PageRequest
}

type GetSubscriptionsForAddressResponse struct {
	Subscriptions []*types.Subscription `json:"subscriptions"`
}

type GetConfigRequest struct{}

type GetConfigResponse struct {
	Config *types.Config `json:"config"`
}

// StreamEventsRequest selects the event types to follow. An empty list
// follows every type.
type StreamEventsRequest struct {
	Types []string `json:"types,omitempty"`
}
