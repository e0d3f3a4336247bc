package broker

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolingRoundTrip(t *testing.T) {
	plugins := []types.ChePlugin{
		{
			ID:        "redhat/java/1.0",
			Publisher: "redhat",
			Name:      "java",
			Version:   "1.0",
			Containers: []types.Container{{
				Name:        "vscode-java",
				Image:       "quay.io/eclipse/che-remote-plugin-runner-java8:next",
				MemoryLimit: "1500Mi",
				Env:         []types.EnvVar{{Name: "JAVA_OPTS", Value: "-Xmx1g"}},
				Ports:       []types.ExposedPort{{ExposedPort: 4040}},
				Volumes:     []types.Volume{{Name: "m2", MountPath: "/home/theia/.m2"}},
			}},
			Endpoints: []types.Endpoint{{
				Name:       "theia",
				Public:     true,
				TargetPort: 3100,
				Attributes: map[string]string{"protocol": "http"},
			}},
			WorkspaceEnv: []types.EnvVar{{Name: "THEIA_PLUGINS", Value: "local-dir:///plugins"}},
		},
	}

	encoded, err := EncodeTooling(plugins)
	require.NoError(t, err)

	decoded, err := DecodeTooling(encoded)
	require.NoError(t, err)
	assert.Equal(t, plugins, decoded)
}

func TestDecodeTooling(t *testing.T) {
	t.Run("synthesizes ids", func(t *testing.T) {
		plugins, err := DecodeTooling(`[{"publisher":"redhat","name":"java","version":"1.0"},{"name":"orphan"}]`)
		require.NoError(t, err)
		require.Len(t, plugins, 2)
		assert.Equal(t, "redhat/java/1.0", plugins[0].ID)
		assert.Empty(t, plugins[1].ID)
	})

	t.Run("null is no tooling", func(t *testing.T) {
		plugins, err := DecodeTooling("null")
		require.NoError(t, err)
		assert.Nil(t, plugins)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeTooling(`{"id":"x"}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode tooling: ")
	})
}

func TestStatusChangedEventWireFormat(t *testing.T) {
	status := types.BrokerStatusDone
	event := StatusChangedEvent{
		Status:    &status,
		RuntimeID: &types.RuntimeIdentity{WorkspaceID: "ws1", OwnerID: "u1", EnvName: "default", InfraNamespace: "che"},
		Tooling:   "[]",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"status":"DONE","runtimeId":{"workspaceId":"ws1","ownerId":"u1","envName":"default","infraNamespace":"che"},"tooling":"[]"}`,
		string(data))
}
