package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/tooling"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingValidator struct{}

func (panickingValidator) ValidatePluginNames([]types.ChePlugin) ([]types.ChePlugin, error) {
	panic("validator bug")
}

func testRuntimeID(workspaceID string) types.RuntimeIdentity {
	return types.RuntimeIdentity{WorkspaceID: workspaceID, OwnerID: "user1", EnvName: "default", InfraNamespace: "che"}
}

func done(workspaceID string, plugins ...types.ChePlugin) *types.BrokerEvent {
	if plugins == nil {
		plugins = []types.ChePlugin{}
	}
	return types.NewBrokerEvent(types.BrokerStatusDone, testRuntimeID(workspaceID), types.WithTooling(plugins))
}

func newListener(workspaceID string, expected int) (*ResultListener, *Result) {
	result := NewResult(workspaceID, expected)
	return NewResultListener(workspaceID, tooling.NewKubernetesValidator(), result), result
}

func TestListenerAggregatesTwoBrokers(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	listener, result := newListener("ws1", 2)
	sub := bus.Subscribe(events.EventBrokerStatusChanged, listener.Handle)
	defer sub.Unsubscribe()

	bus.Publish(types.NewBrokerEvent(types.BrokerStatusStarted, testRuntimeID("ws1")))
	bus.Publish(done("ws1", types.ChePlugin{Publisher: "a", Name: "b", Version: "1"}))
	assert.Equal(t, StatePending, result.State())

	bus.Publish(done("ws1", types.ChePlugin{Publisher: "c", Name: "d", Version: "1"}))

	plugins, err := result.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/1", "c/d/1"}, tooling.IDs(plugins))
	// Ids are filled in on the accepted tooling
	assert.Equal(t, "a/b/1", plugins[0].ID)
}

func TestListenerIgnoresOtherWorkspaces(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	listener, result := newListener("ws1", 1)
	sub := bus.Subscribe(events.EventBrokerStatusChanged, listener.Handle)
	defer sub.Unsubscribe()

	bus.Publish(done("ws2", plugin("a/b/1")))
	bus.Publish(types.NewBrokerEvent(types.BrokerStatusFailed, testRuntimeID("ws2"), types.WithError("boom")))
	bus.Publish(&types.RuntimeLogEvent{RuntimeID: testRuntimeID("ws1")})

	assert.Equal(t, StatePending, result.State())
	select {
	case <-listener.Started():
		t.Fatal("start gate opened by another workspace")
	default:
	}

	bus.Publish(done("ws1", plugin("c/d/1")))
	plugins, err := result.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c/d/1"}, tooling.IDs(plugins))
}

func TestListenerStartGate(t *testing.T) {
	tests := []struct {
		name  string
		event *types.BrokerEvent
	}{
		{name: "started", event: types.NewBrokerEvent(types.BrokerStatusStarted, testRuntimeID("ws1"))},
		{name: "legacy done", event: types.NewBrokerEvent(types.BrokerStatusDone, testRuntimeID("ws1"), types.WithTooling([]types.ChePlugin{}), types.WithLegacy())},
		{name: "failed", event: types.NewBrokerEvent(types.BrokerStatusFailed, testRuntimeID("ws1"), types.WithError("x"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listener, _ := newListener("ws1", 1)
			listener.Handle(tt.event)
			listener.Handle(tt.event) // closing twice must not panic

			select {
			case <-listener.Started():
			default:
				t.Fatal("start gate still closed")
			}
		})
	}
}

func TestListenerFailures(t *testing.T) {
	tests := []struct {
		name          string
		events        []*types.BrokerEvent
		validator     tooling.Validator
		expectedKind  Kind
		expectedError string
	}{
		{
			name: "broker failed",
			events: []*types.BrokerEvent{
				types.NewBrokerEvent(types.BrokerStatusFailed, testRuntimeID("ws1"), types.WithError("disk full")),
			},
			expectedKind:  KindBrokerFailed,
			expectedError: "Plugin broker failed for workspace ws1: disk full",
		},
		{
			name: "failure after partial success",
			events: []*types.BrokerEvent{
				done("ws1", plugin("a/b/1")),
				types.NewBrokerEvent(types.BrokerStatusFailed, testRuntimeID("ws1"), types.WithError("disk full")),
			},
			expectedKind:  KindBrokerFailed,
			expectedError: "disk full",
		},
		{
			name: "done carrying an error",
			events: []*types.BrokerEvent{
				types.NewBrokerEvent(types.BrokerStatusDone, testRuntimeID("ws1"), types.WithError("failed to decode tooling: bad")),
			},
			expectedKind:  KindBrokerFailed,
			expectedError: "failed to decode tooling",
		},
		{
			name: "done without tooling",
			events: []*types.BrokerEvent{
				types.NewBrokerEvent(types.BrokerStatusDone, testRuntimeID("ws1")),
			},
			expectedKind:  KindInternalInfrastructure,
			expectedError: "Plugins tooling is missing for workspace ws1",
		},
		{
			name: "invalid tooling",
			events: []*types.BrokerEvent{
				done("ws1", types.ChePlugin{Name: "orphan"}),
			},
			expectedKind:  KindValidation,
			expectedError: "Plugins validation failed for workspace ws1",
		},
		{
			name: "duplicate across brokers",
			events: []*types.BrokerEvent{
				done("ws1", types.ChePlugin{Publisher: "a", Name: "b", Version: "1"}),
				done("ws1", plugin("a/b/1")),
			},
			expectedKind:  KindValidation,
			expectedError: "a/b/1",
		},
		{
			name:          "validator panic",
			events:        []*types.BrokerEvent{done("ws1", plugin("a/b/1"))},
			validator:     panickingValidator{},
			expectedKind:  KindInternalInfrastructure,
			expectedError: "validator bug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := tt.validator
			if validator == nil {
				validator = tooling.NewKubernetesValidator()
			}
			result := NewResult("ws1", 2)
			listener := NewResultListener("ws1", validator, result)

			for _, e := range tt.events {
				listener.Handle(e)
			}

			plugins, err := result.Await(context.Background())
			assert.Nil(t, plugins)
			require.Error(t, err)
			assert.Equal(t, tt.expectedKind, KindOf(err))
			assert.Contains(t, err.Error(), tt.expectedError)

			var brokerErr *Error
			require.True(t, errors.As(err, &brokerErr))
			assert.Equal(t, "ws1", brokerErr.WorkspaceID)
		})
	}
}

func TestListenerIgnoresEventsAfterCompletion(t *testing.T) {
	listener, result := newListener("ws1", 1)

	listener.Handle(done("ws1", plugin("a/b/1")))
	listener.Handle(types.NewBrokerEvent(types.BrokerStatusFailed, testRuntimeID("ws1"), types.WithError("late")))
	listener.Handle(done("ws1", plugin("c/d/1")))

	plugins, err := result.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/1"}, tooling.IDs(plugins))
	assert.Same(t, result, listener.Result())
}
