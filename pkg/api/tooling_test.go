package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/burrow/pkg/broker"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	plugins   []types.ChePlugin
	err       error
	runtimeID types.RuntimeIdentity
	groups    []broker.Group
}

func (f *fakeProvider) GetTooling(ctx context.Context, runtimeID types.RuntimeIdentity, groups []broker.Group) ([]types.ChePlugin, error) {
	f.runtimeID = runtimeID
	f.groups = groups
	return f.plugins, f.err
}

// kindError carries a brokering kind without going through the broker
// package's unexported constructors
func kindError(kind broker.Kind, msg string) error {
	return &broker.Error{Kind: kind, WorkspaceID: "ws1", Message: msg}
}

func TestToolingHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           string
		provider       *fakeProvider
		expectedStatus int
		expectedKind   string
		expectedError  string
	}{
		{
			name:   "resolved tooling",
			method: http.MethodPost,
			body:   `{"runtimeId":{"workspaceId":"ws1","ownerId":"u1"},"groups":[{"name":"g1","plugins":["a/b/1"]}]}`,
			provider: &fakeProvider{plugins: []types.ChePlugin{
				{ID: "a/b/1", Publisher: "a", Name: "b", Version: "1"},
			}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			provider:       &fakeProvider{},
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "invalid json",
			method:         http.MethodPost,
			body:           `{`,
			provider:       &fakeProvider{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request",
		},
		{
			name:           "missing workspace",
			method:         http.MethodPost,
			body:           `{"runtimeId":{"ownerId":"u1"}}`,
			provider:       &fakeProvider{},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "runtimeId.workspaceId is required",
		},
		{
			name:           "validation failure",
			method:         http.MethodPost,
			body:           `{"runtimeId":{"workspaceId":"ws1"}}`,
			provider:       &fakeProvider{err: kindError(broker.KindValidation, "Plugins validation failed for workspace ws1: bad")},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedKind:   "validation",
			expectedError:  "Plugins validation failed",
		},
		{
			name:           "timeout",
			method:         http.MethodPost,
			body:           `{"runtimeId":{"workspaceId":"ws1"}}`,
			provider:       &fakeProvider{err: kindError(broker.KindTimeout, "timed out")},
			expectedStatus: http.StatusGatewayTimeout,
			expectedKind:   "timeout",
		},
		{
			name:           "broker failed",
			method:         http.MethodPost,
			body:           `{"runtimeId":{"workspaceId":"ws1"}}`,
			provider:       &fakeProvider{err: kindError(broker.KindBrokerFailed, "Plugin broker failed for workspace ws1: disk full")},
			expectedStatus: http.StatusBadGateway,
			expectedKind:   "broker_failed",
			expectedError:  "disk full",
		},
		{
			name:           "internal failure",
			method:         http.MethodPost,
			body:           `{"runtimeId":{"workspaceId":"ws1"}}`,
			provider:       &fakeProvider{err: kindError(broker.KindInternalInfrastructure, "Plugins tooling is missing for workspace ws1")},
			expectedStatus: http.StatusInternalServerError,
			expectedKind:   "internal_infrastructure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/brokers/tooling", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			ToolingHandler(tt.provider).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusMethodNotAllowed {
				return
			}

			var resp ToolingResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedKind, resp.ErrorKind)
			if tt.expectedError != "" {
				assert.Contains(t, resp.Error, tt.expectedError)
			}
			if tt.expectedStatus == http.StatusOK {
				require.Len(t, resp.Tooling, 1)
				assert.Equal(t, "a/b/1", resp.Tooling[0].ID)
				assert.Equal(t, "ws1", tt.provider.runtimeID.WorkspaceID)
				assert.Equal(t, []broker.Group{{Name: "g1", Plugins: []string{"a/b/1"}}}, tt.provider.groups)
			}
		})
	}
}
