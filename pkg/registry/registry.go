package registry

import (
	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
)

// Registry groups the stores of one transaction and enforces ownership
// and field completeness on top of them. A Registry must not outlive the
// transaction its KV belongs to.
type Registry struct {
	Config        *ConfigStore
	Alerts        *AlertStore
	Subscriptions *SubscriptionStore
}

// New binds a Registry to kv
func New(kv storage.KV) *Registry {
	return &Registry{
		Config:        NewConfigStore(kv),
		Alerts:        NewAlertStore(kv),
		Subscriptions: NewSubscriptionStore(kv),
	}
}

// Init records owner as the registry owner
func (r *Registry) Init(owner address.Canonical) error {
	return r.Config.Init(owner)
}

// CreateAlert stores a new alert definition. Only the owner may create
// alerts; an alert with the same key is silently replaced.
func (r *Registry) CreateAlert(sender address.Canonical, req *types.CreateAlertRequest) (*types.Alert, error) {
	if err := r.authorize(sender); err != nil {
		return nil, err
	}

	alert := &types.Alert{
		Key:         keys.AlertKey(req.Blockchain, req.Protocol, req.Method),
		Blockchain:  req.Blockchain,
		Protocol:    req.Protocol,
		Method:      req.Method,
		Name:        req.Name,
		Description: req.Description,
		Fields:      req.Fields,
	}
	if alert.Fields == nil {
		alert.Fields = []types.AlertField{}
	}

	if err := r.Alerts.Save(alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// SubscribeAlert subscribes subscriber to an existing alert. Every field
// of the alert needs a value; extra values are kept as given.
func (r *Registry) SubscribeAlert(subscriber address.Canonical, req *types.SubscribeAlertRequest) (*types.Subscription, error) {
	alert, err := r.Alerts.Get(req.AlertKey)
	if err != nil {
		return nil, err
	}

	if err := checkFields(alert, req.FieldValues); err != nil {
		return nil, err
	}

	sub := &types.Subscription{
		Subscriber:  subscriber,
		AlertKey:    alert.Key,
		FieldValues: req.FieldValues,
	}
	if sub.FieldValues == nil {
		sub.FieldValues = []types.SubscriptionFieldValue{}
	}

	if err := r.Subscriptions.Save(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// UnsubscribeAlert removes an existing subscription. It fails when the
// alert or the subscription does not exist.
func (r *Registry) UnsubscribeAlert(subscriber address.Canonical, req *types.UnsubscribeAlertRequest) error {
	if _, err := r.Alerts.Get(req.AlertKey); err != nil {
		return err
	}
	if _, err := r.Subscriptions.Get(subscriber, req.AlertKey); err != nil {
		return err
	}
	return r.Subscriptions.Delete(subscriber, req.AlertKey)
}

// GetAlert returns a single alert
func (r *Registry) GetAlert(key string) (*types.Alert, error) {
	return r.Alerts.Get(key)
}

// ListAlerts returns one page of alerts
func (r *Registry) ListAlerts(page types.PageRequest) ([]*types.Alert, error) {
	return r.Alerts.List(page)
}

// ListSubscriptions returns one page of the subscriptions of subscriber
func (r *Registry) ListSubscriptions(subscriber address.Canonical, page types.PageRequest) ([]*types.Subscription, error) {
	return r.Subscriptions.List(subscriber, page)
}

func (r *Registry) authorize(sender address.Canonical) error {
	owner, err := r.Config.Owner()
	if err != nil {
		return err
	}
	if sender != owner {
		return ErrUnauthorized
	}
	return nil
}

// checkFields requires a value for every alert field, in declared order.
// Values are checked for presence only.
func checkFields(alert *types.Alert, values []types.SubscriptionFieldValue) error {
	supplied := make(map[string]struct{}, len(values))
	for _, v := range values {
		supplied[v.Key] = struct{}{}
	}

	for _, f := range alert.Fields {
		if _, ok := supplied[f.Key]; !ok {
			return &ValidationError{Msg: "missing field " + f.Key}
		}
	}
	return nil
}
