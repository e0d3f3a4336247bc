/*
Package events provides the in-process event bus shared by burrow components.

Broker notifications arrive on many connections at once, while every
workspace start attempt waits for its own subset of them. The bus decouples
the two sides: the broker adapter publishes one event per notification and
each result listener subscribes for the duration of its attempt.

# Architecture

	┌──────────── RPC connections ────────────┐
	│  broker A     broker B     broker C     │
	└─────┬────────────┬────────────┬─────────┘
	      │            │            │
	      ▼            ▼            ▼
	┌─────────────────────────────────────────┐
	│              Bus.Publish                │
	│  snapshot subscribers for event type    │
	│  deliver synchronously, no lock held    │
	└─────┬────────────┬────────────┬─────────┘
	      │            │            │
	      ▼            ▼            ▼
	  listener ws1  listener ws2  log sink

Subscriptions are keyed by EventType. Two types exist:

  - broker.status_changed: carries *types.BrokerEvent
  - runtime.log: carries *types.RuntimeLogEvent

# Delivery

Publish calls every handler registered for the event type on the
publisher's goroutine. Handlers of different publishers can therefore run
concurrently and must be safe for that. A panicking handler is logged and
does not prevent delivery to the remaining subscribers.

Subscribers added while a Publish is in flight do not see that event.
After Unsubscribe returns, the handler is not called for events published
later.

Stream wraps a subscription in a buffered channel for consumers that prefer
a select loop. Events are dropped when the buffer is full and the channel is
closed when the subscription is released.

# Usage

	bus := events.NewBus()
	defer bus.Close()

	sub := bus.Subscribe(events.EventBrokerStatusChanged, func(e events.Event) {
		event := e.(*types.BrokerEvent)
		fmt.Println(event.WorkspaceID(), event.Status())
	})
	defer sub.Unsubscribe()
*/
package events
