/*
Package registry implements Beacon's alert and subscription registry on top
of an ordered key-value store.

A Registry is bound to one storage transaction (a storage.KV) and exposes
three stores plus the rules that gate writes:

  - ConfigStore: the singleton owner record, written once by Init.
  - AlertStore: alert definitions keyed by blockchain.protocol.method.
  - SubscriptionStore: subscriptions nested under the subscriber address,
    one per (subscriber, alert key).

CreateAlert is owner-only. SubscribeAlert requires a value for every field
of the alert, checked in declared order; the first missing field is reported
as a *ValidationError. UnsubscribeAlert fails with ErrNotFound when either
the alert or the subscription is missing.

Listings take a types.PageRequest. The limit defaults to DefaultLimit and is
clamped to [1, MaxLimit]; the order defaults to descending. The cursor is the
last key of the previous page: an alert key in both listings.

The registry performs no locking. Callers run every command inside a single
write transaction so that a failing command leaves no partial state.
*/
package registry
