package broker

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/rpc"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Publisher is the part of the event bus the adapter needs
type Publisher interface {
	Publish(event events.Event)
}

// Adapter turns broker JSON-RPC notifications into bus events
type Adapter struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewAdapter creates an adapter publishing to p
func NewAdapter(p Publisher) *Adapter {
	return &Adapter{
		publisher: p,
		logger:    log.WithComponent("broker-adapter"),
	}
}

// Register installs the broker method handlers on c
func (a *Adapter) Register(c rpc.Configurator) {
	c.Register(MethodStatusChanged, rpc.Notification(a.HandleStatusChanged))
	c.Register(MethodResult, rpc.Notification(a.HandleLegacyResult))
	c.Register(MethodLog, rpc.Notification(a.HandleLog))
}

// HandleStatusChanged processes a broker/statusChanged notification
func (a *Adapter) HandleStatusChanged(e *StatusChangedEvent) {
	a.handleStatus(MethodStatusChanged, e, false)
}

// HandleLegacyResult processes the legacy broker/result notification
func (a *Adapter) HandleLegacyResult(e *StatusChangedEvent) {
	a.handleStatus(MethodResult, e, true)
}

func (a *Adapter) handleStatus(method string, e *StatusChangedEvent, legacy bool) {
	if reason := malformed(e); reason != "" {
		metrics.BrokerEventsDropped.WithLabelValues(reason).Inc()
		a.logger.Error().
			Str("method", method).
			Str("reason", reason).
			Interface("event", e).
			Msg("Dropping malformed plugin broker event")
		return
	}

	status := *e.Status
	runtimeID := *e.RuntimeID
	opts := make([]types.BrokerEventOption, 0, 2)
	if legacy {
		opts = append(opts, types.WithLegacy())
	}

	switch {
	case status == types.BrokerStatusStarted:
		// STARTED carries neither error nor tooling
	case e.Error != "":
		opts = append(opts, types.WithError(e.Error))
	case e.Tooling == "":
		opts = append(opts, types.WithError(fmt.Sprintf(
			"Received event from plugin broker for workspace %s:%s with empty error and brokering result",
			runtimeID.OwnerID, runtimeID.WorkspaceID)))
	case status == types.BrokerStatusFailed:
		opts = append(opts, types.WithError(fmt.Sprintf(
			"Received failure from plugin broker for workspace %s:%s without an error message",
			runtimeID.OwnerID, runtimeID.WorkspaceID)))
	default:
		plugins, err := DecodeTooling(e.Tooling)
		if err != nil {
			metrics.ToolingDecodeFailures.Inc()
			a.logger.Error().
				Err(err).
				Str("workspace_id", runtimeID.WorkspaceID).
				Msg("Failed to decode plugin broker tooling")
			opts = append(opts, types.WithError(err.Error()))
		} else {
			opts = append(opts, types.WithTooling(plugins))
		}
	}

	event := types.NewBrokerEvent(status, runtimeID, opts...)
	metrics.BrokerEventsTotal.WithLabelValues(method, string(status)).Inc()
	a.logger.Debug().
		Str("workspace_id", runtimeID.WorkspaceID).
		Str("status", string(status)).
		Bool("legacy", legacy).
		Msg("Publishing plugin broker event")
	a.publisher.Publish(event)
}

// malformed returns a drop reason, or "" when e can be published
func malformed(e *StatusChangedEvent) string {
	switch {
	case e == nil:
		return "empty_event"
	case e.Status == nil:
		return "missing_status"
	case !e.Status.Valid():
		return "unknown_status"
	case e.RuntimeID == nil:
		return "missing_runtime_id"
	case e.RuntimeID.WorkspaceID == "":
		return "missing_workspace_id"
	}
	return ""
}

// HandleLog forwards a broker/log notification as a runtime log event
func (a *Adapter) HandleLog(e *LogEvent) {
	metrics.RuntimeLogLines.Inc()
	a.publisher.Publish(&types.RuntimeLogEvent{
		RuntimeID: e.RuntimeID,
		Text:      e.Text,
		Time:      e.Time,
	})
}
