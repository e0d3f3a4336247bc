package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cuemby/burrow/pkg/broker"
	"github.com/cuemby/burrow/pkg/types"
)

// ToolingProvider runs a brokering phase
type ToolingProvider interface {
	GetTooling(ctx context.Context, runtimeID types.RuntimeIdentity, groups []broker.Group) ([]types.ChePlugin, error)
}

// ToolingRequest asks for the tooling of one workspace start attempt
type ToolingRequest struct {
	RuntimeID types.RuntimeIdentity `json:"runtimeId"`
	Groups    []ToolingGroup        `json:"groups"`
}

// ToolingGroup is the plugins one broker resolves
type ToolingGroup struct {
	Name    string   `json:"name"`
	Plugins []string `json:"plugins"`
}

// ToolingResponse carries the aggregated tooling or the failure
type ToolingResponse struct {
	Tooling   []types.ChePlugin `json:"tooling,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"errorKind,omitempty"`
}

// ToolingHandler serves POST requests that block until the brokers for
// the requested runtime report their tooling. Closing the request cancels
// the attempt.
func ToolingHandler(provider ToolingProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req ToolingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeTooling(w, http.StatusBadRequest, ToolingResponse{Error: "invalid request: " + err.Error()})
			return
		}
		if req.RuntimeID.WorkspaceID == "" {
			writeTooling(w, http.StatusBadRequest, ToolingResponse{Error: "runtimeId.workspaceId is required"})
			return
		}

		groups := make([]broker.Group, len(req.Groups))
		for i, g := range req.Groups {
			groups[i] = broker.Group{Name: g.Name, Plugins: g.Plugins}
		}

		plugins, err := provider.GetTooling(r.Context(), req.RuntimeID, groups)
		if err != nil {
			kind := broker.KindOf(err)
			writeTooling(w, statusForKind(kind), ToolingResponse{
				Error:     err.Error(),
				ErrorKind: string(kind),
			})
			return
		}
		writeTooling(w, http.StatusOK, ToolingResponse{Tooling: plugins})
	}
}

func statusForKind(kind broker.Kind) int {
	switch kind {
	case broker.KindValidation:
		return http.StatusUnprocessableEntity
	case broker.KindTimeout:
		return http.StatusGatewayTimeout
	case broker.KindBrokerFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeTooling(w http.ResponseWriter, status int, resp ToolingResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
