package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Component names reported by burrow
const (
	ComponentBus     = "bus"
	ComponentRPC     = "rpc"
	ComponentStorage = "storage"
	ComponentLogSink = "logsink"
)

// componentState is the last reported state of one component
type componentState struct {
	healthy bool
	message string
	updated time.Time
}

// registry tracks component states and which of them gate readiness.
// The bus and the broker endpoint are always critical. Other components
// only gate readiness once marked critical, so an optional log forwarder
// never takes burrow out of service.
type registry struct {
	mu         sync.RWMutex
	components map[string]componentState
	critical   []string
	startTime  time.Time
}

func newRegistry() *registry {
	return &registry{
		components: make(map[string]componentState),
		critical:   []string{ComponentBus, ComponentRPC},
		startTime:  time.Now(),
	}
}

var components = newRegistry()

// ReadinessReport is a snapshot of the critical components
type ReadinessReport struct {
	Ready bool
	// Message names the first critical component holding readiness back
	Message    string
	Components map[string]string
}

// SetComponent records the current state of a component
func SetComponent(name string, healthy bool, message string) {
	components.mu.Lock()
	defer components.mu.Unlock()

	components.components[name] = componentState{
		healthy: healthy,
		message: message,
		updated: time.Now(),
	}
}

// MarkCritical adds components to the set that gates readiness
func MarkCritical(names ...string) {
	components.mu.Lock()
	defer components.mu.Unlock()

	for _, name := range names {
		found := false
		for _, c := range components.critical {
			if c == name {
				found = true
				break
			}
		}
		if !found {
			components.critical = append(components.critical, name)
		}
	}
}

// Readiness reports whether every critical component is registered and healthy
func Readiness() ReadinessReport {
	components.mu.RLock()
	defer components.mu.RUnlock()

	report := ReadinessReport{
		Ready:      true,
		Components: make(map[string]string, len(components.critical)),
	}
	for _, name := range components.critical {
		state, ok := components.components[name]
		switch {
		case !ok:
			report.Components[name] = "not registered"
			report.fail("waiting for " + name + " initialization")
		case !state.healthy:
			report.Components[name] = "not ready: " + state.message
			report.fail("waiting for " + name)
		default:
			report.Components[name] = "ready"
		}
	}
	return report
}

func (r *ReadinessReport) fail(message string) {
	if r.Ready {
		r.Message = message
	}
	r.Ready = false
}

// LivenessHandler returns 200 for as long as the process can serve HTTP
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(components.startTime).String(),
		})
	}
}
