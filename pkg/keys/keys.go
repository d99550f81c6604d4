package keys

import (
	"encoding/binary"
	"strings"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/types"
)

// Separator joins the parts of an alert key. Inputs are not escaped.
const Separator = "."

var (
	// ConfigKey holds the registry singleton
	ConfigKey = []byte("config")

	// AppliedIndexKey holds the last raft log index written to the store
	AppliedIndexKey = []byte("applied_index")

	prefixAlert        = []byte("alert")
	prefixSubscription = []byte("subscription")
)

// AlertKey derives the identity of an alert from its triple
func AlertKey(blockchain, protocol, method string) string {
	return strings.Join([]string{blockchain, protocol, method}, Separator)
}

// Namespace encodes each part as a 2-byte big-endian length followed by
// the part itself. Parts longer than 65535 bytes are not supported.
func Namespace(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += 2 + len(p)
	}

	out := make([]byte, 0, size)
	for _, p := range parts {
		out = binary.BigEndian.AppendUint16(out, uint16(len(p)))
		out = append(out, p...)
	}
	return out
}

// AlertsNamespace is the prefix shared by all alert records
func AlertsNamespace() []byte {
	return Namespace(prefixAlert)
}

// AllSubscriptionsNamespace is the prefix shared by every subscription of
// every subscriber
func AllSubscriptionsNamespace() []byte {
	return Namespace(prefixSubscription)
}

// SubscriptionsNamespace is the prefix shared by all subscriptions of one
// subscriber
func SubscriptionsNamespace(subscriber address.Canonical) []byte {
	return Namespace(prefixSubscription, subscriber[:])
}

// Alert returns the full store key of an alert record
func Alert(alertKey string) []byte {
	return append(AlertsNamespace(), alertKey...)
}

// Subscription returns the full store key of a subscription record
func Subscription(subscriber address.Canonical, alertKey string) []byte {
	return append(SubscriptionsNamespace(subscriber), alertKey...)
}

// RangeBounds turns a pagination cursor into scan bounds relative to a
// namespace. Nil bounds are unbounded; the end bound is exclusive.
//
// Ascending scans start at cursor+0x01, just past the cursor itself.
// Descending scans end at the cursor.
func RangeBounds(cursor []byte, order types.Order) (start, end []byte) {
	if cursor == nil {
		return nil, nil
	}

	if order == types.OrderAscending {
		start = make([]byte, len(cursor), len(cursor)+1)
		copy(start, cursor)
		return append(start, 1), nil
	}

	end = make([]byte, len(cursor))
	copy(end, cursor)
	return nil, end
}
