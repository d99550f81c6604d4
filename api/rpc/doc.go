// Package rpc defines the beacon.Registry gRPC service: its messages, the
// service descriptor used by the server and a typed client.
//
// Messages travel as JSON. The codec registers itself under the "json"
// content-subtype and NewRegistryClient selects it on every call.
package rpc
