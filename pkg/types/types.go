package types

import (
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/events"
)

// RuntimeIdentity identifies exactly one workspace start attempt
type RuntimeIdentity struct {
	WorkspaceID    string `json:"workspaceId"`
	OwnerID        string `json:"ownerId"`
	EnvName        string `json:"envName"`
	InfraNamespace string `json:"infraNamespace"`
}

// String renders the identity as owner:workspace/env@namespace
func (r RuntimeIdentity) String() string {
	return fmt.Sprintf("%s:%s/%s@%s", r.OwnerID, r.WorkspaceID, r.EnvName, r.InfraNamespace)
}

// BrokerStatus is the state a plugin broker reports
type BrokerStatus string

const (
	BrokerStatusStarted BrokerStatus = "STARTED"
	BrokerStatusDone    BrokerStatus = "DONE"
	BrokerStatusFailed  BrokerStatus = "FAILED"
)

// Valid reports whether s is one of the known broker statuses
func (s BrokerStatus) Valid() bool {
	switch s {
	case BrokerStatusStarted, BrokerStatusDone, BrokerStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further events are expected from the broker
func (s BrokerStatus) IsTerminal() bool {
	return s == BrokerStatusDone || s == BrokerStatusFailed
}

// ChePlugin is a tooling descriptor resolved by a plugin broker
type ChePlugin struct {
	ID             string      `json:"id,omitempty" yaml:"id,omitempty"`
	Publisher      string      `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Name           string      `json:"name,omitempty" yaml:"name,omitempty"`
	Version        string      `json:"version,omitempty" yaml:"version,omitempty"`
	Containers     []Container `json:"containers,omitempty" yaml:"containers,omitempty"`
	InitContainers []Container `json:"initContainers,omitempty" yaml:"initContainers,omitempty"`
	Endpoints      []Endpoint  `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	WorkspaceEnv   []EnvVar    `json:"workspaceEnv,omitempty" yaml:"workspaceEnv,omitempty"`
}

// EffectiveID returns the explicit id, or publisher/name/version when all
// three are present. It returns "" when neither is available.
func (p ChePlugin) EffectiveID() string {
	if p.ID != "" {
		return p.ID
	}
	if p.Publisher == "" || p.Name == "" || p.Version == "" {
		return ""
	}
	return p.Publisher + "/" + p.Name + "/" + p.Version
}

// WithSynthesizedID returns a copy of p with its id filled in when possible
func (p ChePlugin) WithSynthesizedID() ChePlugin {
	p.ID = p.EffectiveID()
	return p
}

// Container is a sidecar contributed by a plugin
type Container struct {
	Name          string        `json:"name" yaml:"name"`
	Image         string        `json:"image" yaml:"image"`
	Env           []EnvVar      `json:"env,omitempty" yaml:"env,omitempty"`
	Commands      []Command     `json:"commands,omitempty" yaml:"commands,omitempty"`
	Ports         []ExposedPort `json:"ports,omitempty" yaml:"ports,omitempty"`
	Volumes       []Volume      `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	MountSources  bool          `json:"mountSources,omitempty" yaml:"mountSources,omitempty"`
	MemoryLimit   string        `json:"memoryLimit,omitempty" yaml:"memoryLimit,omitempty"`
	MemoryRequest string        `json:"memoryRequest,omitempty" yaml:"memoryRequest,omitempty"`
	CPULimit      string        `json:"cpuLimit,omitempty" yaml:"cpuLimit,omitempty"`
	CPURequest    string        `json:"cpuRequest,omitempty" yaml:"cpuRequest,omitempty"`
}

// Command is a named command a container offers to the IDE
type Command struct {
	Name       string   `json:"name" yaml:"name"`
	WorkingDir string   `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
	Command    []string `json:"command,omitempty" yaml:"command,omitempty"`
}

// ExposedPort is a container port the plugin listens on
type ExposedPort struct {
	ExposedPort int `json:"exposedPort" yaml:"exposedPort"`
}

// Volume is a named volume mounted into a plugin container
type Volume struct {
	Name      string `json:"name" yaml:"name"`
	MountPath string `json:"mountPath" yaml:"mountPath"`
	Ephemeral bool   `json:"ephemeral,omitempty" yaml:"ephemeral,omitempty"`
}

// Endpoint is a network endpoint exposed by a plugin
type Endpoint struct {
	Name       string            `json:"name" yaml:"name"`
	Public     bool              `json:"public,omitempty" yaml:"public,omitempty"`
	TargetPort int               `json:"targetPort" yaml:"targetPort"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// EnvVar is a name/value environment variable
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// RuntimeLogEvent is one log line emitted by a broker for a runtime
type RuntimeLogEvent struct {
	RuntimeID RuntimeIdentity
	Text      string
	Time      time.Time
}

// EventType implements events.Event
func (e *RuntimeLogEvent) EventType() events.EventType { return events.EventRuntimeLog }

// AttemptState is the outcome of a brokering attempt
type AttemptState string

const (
	AttemptStatePending  AttemptState = "pending"
	AttemptStateResolved AttemptState = "resolved"
	AttemptStateFailed   AttemptState = "failed"
)

// BrokeringAttempt summarizes one plugin brokering phase for a workspace
// start attempt. Broker events themselves are never stored.
type BrokeringAttempt struct {
	ID              string
	RuntimeID       RuntimeIdentity
	ExpectedBrokers int
	State           AttemptState
	ErrorKind       string
	Error           string
	Plugins         []string // effective plugin ids, in arrival order
	StartedAt       time.Time
	FinishedAt      time.Time
}
