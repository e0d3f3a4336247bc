package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
)

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	bus     *events.Bus
	store   storage.Store
	version string
	mux     *http.ServeMux
	server  *http.Server
}

// NewHealthServer creates a new health check HTTP server. store may be nil
// when attempts are not recorded.
func NewHealthServer(bus *events.Bus, store storage.Store, version string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		bus:     bus,
		store:   store,
		version: version,
		mux:     mux,
	}

	// Register endpoints
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server
func (hs *HealthServer) Start(addr string) error {
	hs.server = &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return hs.server.ListenAndServe()
}

// Stop closes the HTTP server
func (hs *HealthServer) Stop() error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Close()
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := hs.version
	if version == "" {
		version = "dev"
	}
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint
// This checks if brokers can be served
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	// Check 1: Event bus
	switch {
	case hs.bus == nil:
		checks["bus"] = "not initialized"
		ready = false
		message = "Event bus not initialized"
	case hs.bus.Closed():
		checks["bus"] = "closed"
		ready = false
		message = "Event bus closed"
	default:
		checks["bus"] = fmt.Sprintf("ok (%d listeners)", hs.bus.SubscriberCount(events.EventBrokerStatusChanged))
	}

	// Check 2: Attempt storage
	if hs.store != nil {
		if _, err := hs.store.ListAttemptsByWorkspace(""); err != nil {
			checks["storage"] = fmt.Sprintf("error: %v", err)
			ready = false
			if message == "" {
				message = "Storage not accessible"
			}
		} else {
			checks["storage"] = "ok"
		}
	} else {
		checks["storage"] = "disabled"
	}

	// Check 3: Registered components
	readiness := metrics.Readiness()
	if !readiness.Ready {
		ready = false
		if message == "" {
			message = readiness.Message
		}
	}
	for name, state := range readiness.Components {
		checks["component:"+name] = state
	}

	status := "ready"
	statusCode := http.StatusOK

	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
