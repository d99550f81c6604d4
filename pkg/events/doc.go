/*
Package events provides an in-memory event broker for registry changes.

The manager publishes an event after every committed command that changes
state. API clients follow them through the StreamEvents RPC and the
`beacon events` command.

# Distribution

	Publisher → Broadcast (under the subscriber lock)
	     ↓
	Subscriber Channels (buffer: 50 each)

Publish hands the event to every subscriber registered at that moment and
returns; a subscriber only sees events published after it subscribed. A
subscriber whose buffer is full misses the event rather than stalling the
publisher, and Publish is a no-op once the broker is stopped.

# Event Types

	registry.initialized     owner recorded at bootstrap
	alert.created            alert stored (also on overwrite)
	subscription.created     subscription stored (also on overwrite)
	subscription.deleted     subscription removed

Metadata carries alert_key, subscriber and owner as applicable.

# Usage

	broker := events.NewBroker()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Metadata["alert_key"])
	}
*/
package events
