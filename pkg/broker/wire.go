package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// JSON-RPC methods brokers call
const (
	MethodStatusChanged = "broker/statusChanged"
	MethodResult        = "broker/result" // legacy alias of MethodStatusChanged
	MethodLog           = "broker/log"
)

// StatusChangedEvent is the wire form of a broker status notification.
// Tooling is a JSON document encoded into a string because the RPC schema
// cannot describe the plugin descriptor graph.
type StatusChangedEvent struct {
	Status    *types.BrokerStatus    `json:"status"`
	RuntimeID *types.RuntimeIdentity `json:"runtimeId"`
	Error     string                 `json:"error,omitempty"`
	Tooling   string                 `json:"tooling,omitempty"`
}

// LogEvent is the wire form of a broker log line
type LogEvent struct {
	RuntimeID types.RuntimeIdentity `json:"runtimeId"`
	Text      string                `json:"text"`
	Time      time.Time             `json:"time"`
}

// EncodeTooling encodes plugins into the string carried by StatusChangedEvent
func EncodeTooling(plugins []types.ChePlugin) (string, error) {
	data, err := json.Marshal(plugins)
	if err != nil {
		return "", fmt.Errorf("failed to encode tooling: %w", err)
	}
	return string(data), nil
}

// DecodeTooling decodes the embedded tooling string and fills in the id of
// every plugin that has publisher, name and version but no id
func DecodeTooling(encoded string) ([]types.ChePlugin, error) {
	var plugins []types.ChePlugin
	if err := json.Unmarshal([]byte(encoded), &plugins); err != nil {
		return nil, fmt.Errorf("failed to decode tooling: %w", err)
	}
	for i := range plugins {
		plugins[i] = plugins[i].WithSynthesizedID()
	}
	return plugins, nil
}
