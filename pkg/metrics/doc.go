/*
Package metrics provides Prometheus metrics for Beacon.

All metrics are package-level collectors registered with the default
Prometheus registry at init and exposed by Handler on /metrics.

# Metrics Catalog

Registry:

	beacon_alerts_total                    gauge
	beacon_subscriptions_total             gauge
	beacon_commands_total{op, result}      counter (result: ok, rejected, error)
	beacon_command_duration_seconds{op}    histogram
	beacon_events_published_total{type}    counter

Raft:

	beacon_raft_is_leader                  gauge (1 = leader)
	beacon_raft_peers_total                gauge
	beacon_raft_log_index                  gauge
	beacon_raft_applied_index              gauge

API:

	beacon_api_requests_total{method, code}       counter
	beacon_api_request_duration_seconds{method}   histogram

The registry gauges and raft gauges are refreshed by the manager's
MetricsCollector every 15 seconds; the counters are updated inline.

# Timer

	timer := metrics.NewTimer()
	err := apply(cmd)
	timer.ObserveDurationVec(metrics.CommandDuration, cmd.Op)
*/
package metrics
