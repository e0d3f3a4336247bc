// Package tooling validates the plugin descriptors brokers resolve before
// they are turned into workspace containers.
package tooling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/burrow/pkg/types"
	"k8s.io/apimachinery/pkg/util/validation"
)

var (
	// ErrUnresolvableID is returned when a plugin has no id and one cannot
	// be built from publisher, name and version
	ErrUnresolvableID = errors.New("plugin id cannot be determined")

	// ErrDuplicatePlugin is returned when two plugins share an effective id
	ErrDuplicatePlugin = errors.New("duplicate plugin")

	// ErrInvalidName is returned when a plugin or container name is not a
	// valid Kubernetes DNS-1123 label
	ErrInvalidName = errors.New("invalid name")
)

// ValidationError describes why a tooling list was rejected
type ValidationError struct {
	PluginID string
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.PluginID == "" {
		return e.Reason
	}
	return fmt.Sprintf("plugin '%s': %s", e.PluginID, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validator checks a broker's tooling before it is accepted
type Validator interface {
	ValidatePluginNames(tooling []types.ChePlugin) ([]types.ChePlugin, error)
}

// KubernetesValidator validates tooling that will be turned into
// Kubernetes objects
type KubernetesValidator struct{}

// NewKubernetesValidator creates a new validator
func NewKubernetesValidator() *KubernetesValidator {
	return &KubernetesValidator{}
}

// ValidatePluginNames returns a copy of tooling with every id filled in.
// It fails on the first plugin whose id cannot be resolved, on duplicate
// ids and on plugin or container names Kubernetes would reject.
func (v *KubernetesValidator) ValidatePluginNames(tooling []types.ChePlugin) ([]types.ChePlugin, error) {
	normalized := make([]types.ChePlugin, 0, len(tooling))
	seen := make(map[string]struct{}, len(tooling))

	for i, plugin := range tooling {
		id := plugin.EffectiveID()
		if id == "" {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("plugin #%d (publisher=%q, name=%q, version=%q): id was not provided and cannot be built from publisher, name and version",
					i, plugin.Publisher, plugin.Name, plugin.Version),
				Err: ErrUnresolvableID,
			}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{
				PluginID: id,
				Reason:   "contributed more than once",
				Err:      ErrDuplicatePlugin,
			}
		}
		seen[id] = struct{}{}

		if err := validateNames(id, plugin); err != nil {
			return nil, err
		}

		normalized = append(normalized, plugin.WithSynthesizedID())
	}

	return normalized, nil
}

func validateNames(id string, plugin types.ChePlugin) error {
	if plugin.Name != "" {
		if errs := validation.IsDNS1123Label(plugin.Name); len(errs) > 0 {
			return &ValidationError{
				PluginID: id,
				Reason:   fmt.Sprintf("plugin name '%s' is invalid: %s", plugin.Name, strings.Join(errs, "; ")),
				Err:      ErrInvalidName,
			}
		}
	}

	containers := make([]types.Container, 0, len(plugin.Containers)+len(plugin.InitContainers))
	containers = append(containers, plugin.Containers...)
	containers = append(containers, plugin.InitContainers...)
	for _, c := range containers {
		if errs := validation.IsDNS1123Label(c.Name); len(errs) > 0 {
			return &ValidationError{
				PluginID: id,
				Reason:   fmt.Sprintf("container name '%s' is invalid: %s", c.Name, strings.Join(errs, "; ")),
				Err:      ErrInvalidName,
			}
		}
	}
	return nil
}

// IDs returns the effective id of each plugin, in order
func IDs(tooling []types.ChePlugin) []string {
	ids := make([]string, len(tooling))
	for i, p := range tooling {
		ids[i] = p.EffectiveID()
	}
	return ids
}
