package types

import (
	"fmt"
	"strings"

	"github.com/cuemby/beacon/pkg/address"
)

// Alert is a triggerable condition tied to a (blockchain, protocol, method)
// triple. Subscribers must supply a value for every field.
type Alert struct {
	Key         string       `json:"key" yaml:"key"`
	Blockchain  string       `json:"blockchain" yaml:"blockchain"`
	Protocol    string       `json:"protocol" yaml:"protocol"`
	Method      string       `json:"method" yaml:"method"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Fields      []AlertField `json:"fields" yaml:"fields"`
}

// AlertField is a required input of an Alert
type AlertField struct {
	Key             string `json:"key" yaml:"key"`
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description" yaml:"description"`
	ValidationRegex string `json:"validation_regex" yaml:"validationRegex"`
}

// Subscription is a subscriber's opt-in to an Alert
type Subscription struct {
	Subscriber  address.Canonical        `json:"subscriber" yaml:"subscriber"`
	AlertKey    string                   `json:"alert_key" yaml:"alertKey"`
	FieldValues []SubscriptionFieldValue `json:"field_values" yaml:"fieldValues"`
}

// SubscriptionFieldValue carries the value a subscriber supplied for one AlertField
type SubscriptionFieldValue struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Config is the registry singleton
type Config struct {
	Owner address.Canonical `json:"owner" yaml:"owner"`
}

// Order defines the direction of a range scan
type Order string

const (
	OrderAscending  Order = "asc"
	OrderDescending Order = "desc"
)

// ParseOrder accepts "asc"/"ascending" and "desc"/"descending". An empty
// string yields the empty Order, which listings treat as descending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "asc", "ascending":
		return OrderAscending, nil
	case "desc", "descending":
		return OrderDescending, nil
	default:
		return "", fmt.Errorf("invalid order %q: must be asc or desc", s)
	}
}

// PageRequest describes one page of a paginated listing. Nil fields fall
// back to the listing defaults.
type PageRequest struct {
	StartAfter *string `json:"start_after,omitempty"`
	Limit      *uint32 `json:"limit,omitempty"`
	Order      Order   `json:"order_by,omitempty"`
}

// CreateAlertRequest is the payload of the CreateAlert command
type CreateAlertRequest struct {
	Blockchain  string       `json:"blockchain" yaml:"blockchain"`
	Protocol    string       `json:"protocol" yaml:"protocol"`
	Method      string       `json:"method" yaml:"method"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Fields      []AlertField `json:"fields" yaml:"fields"`
}

// SubscribeAlertRequest is the payload of the SubscribeAlert command
type SubscribeAlertRequest struct {
	AlertKey    string                   `json:"alert_key" yaml:"alertKey"`
	FieldValues []SubscriptionFieldValue `json:"field_values" yaml:"fieldValues"`
}

// UnsubscribeAlertRequest is the payload of the UnsubscribeAlert command
type UnsubscribeAlertRequest struct {
	AlertKey string `json:"alert_key"`
}
