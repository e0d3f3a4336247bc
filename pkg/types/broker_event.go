package types

import "github.com/cuemby/burrow/pkg/events"

// BrokerEvent is the in-process record of a broker state transition.
//
// Fields are unexported so a published event cannot be changed by any
// of the subscribers sharing it. Tooling is copied in and out.
type BrokerEvent struct {
	status    BrokerStatus
	runtimeID RuntimeIdentity
	err       string
	tooling   []ChePlugin
	hasTools  bool
	legacy    bool
}

// BrokerEventOption configures optional BrokerEvent fields
type BrokerEventOption func(*BrokerEvent)

// WithError sets the broker error message
func WithError(msg string) BrokerEventOption {
	return func(e *BrokerEvent) {
		e.err = msg
	}
}

// WithTooling sets the tooling resolved by the broker
func WithTooling(tooling []ChePlugin) BrokerEventOption {
	return func(e *BrokerEvent) {
		e.tooling = clonePlugins(tooling)
		e.hasTools = tooling != nil
	}
}

// WithLegacy marks an event received through the legacy broker/result method
func WithLegacy() BrokerEventOption {
	return func(e *BrokerEvent) {
		e.legacy = true
	}
}

// NewBrokerEvent creates an immutable broker event
func NewBrokerEvent(status BrokerStatus, runtimeID RuntimeIdentity, opts ...BrokerEventOption) *BrokerEvent {
	e := &BrokerEvent{
		status:    status,
		runtimeID: runtimeID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EventType implements events.Event
func (e *BrokerEvent) EventType() events.EventType { return events.EventBrokerStatusChanged }

func (e *BrokerEvent) Status() BrokerStatus       { return e.status }
func (e *BrokerEvent) RuntimeID() RuntimeIdentity { return e.runtimeID }
func (e *BrokerEvent) WorkspaceID() string        { return e.runtimeID.WorkspaceID }
func (e *BrokerEvent) ErrorMessage() string       { return e.err }
func (e *BrokerEvent) HasError() bool             { return e.err != "" }
func (e *BrokerEvent) HasTooling() bool           { return e.hasTools }
func (e *BrokerEvent) Legacy() bool               { return e.legacy }

// Tooling returns a copy of the tooling list, or nil when none was set
func (e *BrokerEvent) Tooling() []ChePlugin {
	if !e.hasTools {
		return nil
	}
	return clonePlugins(e.tooling)
}

func clonePlugins(in []ChePlugin) []ChePlugin {
	if in == nil {
		return nil
	}
	out := make([]ChePlugin, len(in))
	for i, p := range in {
		out[i] = p.clone()
	}
	return out
}

func (p ChePlugin) clone() ChePlugin {
	c := p
	c.Containers = cloneContainers(p.Containers)
	c.InitContainers = cloneContainers(p.InitContainers)
	if p.Endpoints != nil {
		c.Endpoints = make([]Endpoint, len(p.Endpoints))
		for i, ep := range p.Endpoints {
			c.Endpoints[i] = ep
			if ep.Attributes != nil {
				attrs := make(map[string]string, len(ep.Attributes))
				for k, v := range ep.Attributes {
					attrs[k] = v
				}
				c.Endpoints[i].Attributes = attrs
			}
		}
	}
	c.WorkspaceEnv = append([]EnvVar(nil), p.WorkspaceEnv...)
	return c
}

func cloneContainers(in []Container) []Container {
	if in == nil {
		return nil
	}
	out := make([]Container, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Env = append([]EnvVar(nil), c.Env...)
		out[i].Ports = append([]ExposedPort(nil), c.Ports...)
		out[i].Volumes = append([]Volume(nil), c.Volumes...)
		if c.Commands != nil {
			out[i].Commands = make([]Command, len(c.Commands))
			for j, cmd := range c.Commands {
				out[i].Commands[j] = cmd
				out[i].Commands[j].Command = append([]string(nil), cmd.Command...)
			}
		}
	}
	return out
}
