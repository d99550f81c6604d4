/*
Package types defines the core data structures used throughout Beacon.

The registry stores two kinds of records, alerts and subscriptions, plus a
singleton configuration record holding the owner address. The same structs
travel over the API (JSON) and are persisted in the ordered store (JSON).

# Records

	Alert
	  key          blockchain.protocol.method (derived, immutable)
	  fields       ordered []AlertField
	Subscription
	  subscriber   canonical address
	  alert_key    key of the referenced Alert
	  field_values ordered []SubscriptionFieldValue
	Config
	  owner        canonical address

# Pagination

PageRequest carries an optional cursor (the last key seen), an optional
limit and an optional Order. The empty Order means descending.
*/
package types
