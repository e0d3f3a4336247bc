/*
Package broker runs the plugin brokering phase of a workspace start.

For every start attempt one or more plugin brokers are launched. Each
resolves a group of plugins and reports back over the JSON-RPC channel. This
package turns those reports into a single validated tooling list, or a
classified failure.

# Flow

	broker ──notification──▶ Adapter ──BrokerEvent──▶ events.Bus
	                                                     │
	                                                     ▼
	Manager.GetTooling ──subscribes──▶ ResultListener (one per attempt)
	        │                                │
	        │                                ▼
	        └────────── Await ◀──────── Result (pending → resolved | failed)

Adapter validates the envelope and decodes the tooling string carried
inside broker/statusChanged and the legacy broker/result notifications.
Malformed envelopes are logged and dropped. Everything else produces exactly
one event.

ResultListener ignores events for other workspaces. The first matching
event of any status opens its start gate. DONE events are validated and
contribute to the Result; FAILED events fail it.

Result resolves once the expected number of brokers have contributed,
concatenating their tooling in arrival order. A plugin id contributed twice
fails the whole attempt. The first completion wins and later calls are
no-ops.

# Errors

Failures are *Error values whose Kind says what went wrong:

	broker_failed            a broker reported an error
	validation               tooling rejected by the validator
	infrastructure           brokers could not be launched
	internal_infrastructure  broker said DONE without tooling, or a bug
	timeout                  brokers did not start or finish in time
	cancelled                the caller gave up

Use errors.Is with the ErrBrokerFailed style sentinels, or KindOf.
*/
package broker
