package broker

import (
	"context"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/tooling"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Group is a set of plugins resolved by one broker process
type Group struct {
	Name    string
	Plugins []string
}

// Launcher starts the broker pods for a workspace start attempt
type Launcher interface {
	Launch(ctx context.Context, runtimeID types.RuntimeIdentity, groups []Group) error
}

// LauncherFunc adapts a function to Launcher
type LauncherFunc func(ctx context.Context, runtimeID types.RuntimeIdentity, groups []Group) error

func (f LauncherFunc) Launch(ctx context.Context, runtimeID types.RuntimeIdentity, groups []Group) error {
	return f(ctx, runtimeID, groups)
}

// Config holds brokering phase settings
type Config struct {
	// StartTimeout bounds the wait for the first broker event. Zero disables it.
	StartTimeout time.Duration
	// ResultTimeout bounds the wait for the aggregated result. Zero disables it.
	ResultTimeout time.Duration
	// ExpectedBrokers overrides the number of contributions to wait for.
	// Zero means one per group.
	ExpectedBrokers int
}

// Manager runs the plugin brokering phase of workspace start attempts
type Manager struct {
	bus       *events.Bus
	launcher  Launcher
	validator tooling.Validator
	store     storage.Store
	config    Config
	logger    zerolog.Logger
}

// NewManager creates a brokering manager. store may be nil.
func NewManager(bus *events.Bus, launcher Launcher, validator tooling.Validator, store storage.Store, cfg Config) *Manager {
	return &Manager{
		bus:       bus,
		launcher:  launcher,
		validator: validator,
		store:     store,
		config:    cfg,
		logger:    log.WithComponent("broker-manager"),
	}
}

// GetTooling launches the brokers for runtimeID and waits for their
// aggregated, validated tooling. The listener is always removed from the
// bus before it returns.
func (m *Manager) GetTooling(ctx context.Context, runtimeID types.RuntimeIdentity, groups []Group) ([]types.ChePlugin, error) {
	expected := len(groups)
	if m.config.ExpectedBrokers > 0 {
		expected = m.config.ExpectedBrokers
	}

	result := NewResult(runtimeID.WorkspaceID, expected)
	listener := NewResultListener(runtimeID.WorkspaceID, m.validator, result)

	sub := m.bus.Subscribe(events.EventBrokerStatusChanged, listener.Handle)
	metrics.ActiveListeners.Inc()
	defer func() {
		sub.Unsubscribe()
		metrics.ActiveListeners.Dec()
	}()

	attempt := &types.BrokeringAttempt{
		ID:              uuid.NewString(),
		RuntimeID:       runtimeID,
		ExpectedBrokers: result.Expected(),
		State:           types.AttemptStatePending,
		StartedAt:       time.Now(),
	}
	m.save(attempt, true)

	logger := log.WithRuntime(runtimeID.WorkspaceID, runtimeID.OwnerID, runtimeID.EnvName, runtimeID.InfraNamespace)
	logger.Info().
		Str("attempt_id", attempt.ID).
		Int("expected_brokers", result.Expected()).
		Msg("Starting plugin brokering")

	timer := metrics.NewTimer()
	plugins, err := m.run(ctx, runtimeID, groups, listener)
	timer.ObserveDuration(metrics.BrokeringDuration)

	attempt.FinishedAt = time.Now()
	if err != nil {
		attempt.State = types.AttemptStateFailed
		attempt.ErrorKind = string(KindOf(err))
		attempt.Error = err.Error()
		metrics.BrokeringAttemptsTotal.WithLabelValues(attempt.ErrorKind).Inc()
		logger.Error().Err(err).Str("kind", attempt.ErrorKind).Msg("Plugin brokering failed")
	} else {
		attempt.State = types.AttemptStateResolved
		attempt.Plugins = tooling.IDs(plugins)
		metrics.BrokeringAttemptsTotal.WithLabelValues("resolved").Inc()
		logger.Info().Int("plugins", len(plugins)).Dur("duration", timer.Duration()).Msg("Plugin brokering completed")
	}
	m.save(attempt, false)

	return plugins, err
}

func (m *Manager) run(ctx context.Context, runtimeID types.RuntimeIdentity, groups []Group, listener *ResultListener) ([]types.ChePlugin, error) {
	result := listener.Result()
	workspaceID := runtimeID.WorkspaceID

	if err := m.launcher.Launch(ctx, runtimeID, groups); err != nil {
		result.Error(infrastructureError(workspaceID, "Failed to launch plugin brokers", err))
		return result.Await(ctx)
	}

	if m.config.StartTimeout > 0 {
		startCtx, cancel := context.WithTimeout(ctx, m.config.StartTimeout)
		select {
		case <-listener.Started():
		case <-result.Done():
		case <-startCtx.Done():
			cancel()
			result.Error(contextError(workspaceID, "waiting for plugin brokers to start", startCtx.Err()))
			return result.Await(ctx)
		}
		cancel()
	}

	awaitCtx := ctx
	if m.config.ResultTimeout > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(ctx, m.config.ResultTimeout)
		defer cancel()
	}

	plugins, err := result.Await(awaitCtx)
	if err != nil {
		// Fail the result so late broker events cannot resolve it.
		result.Error(err)
	}
	return plugins, err
}

func (m *Manager) save(attempt *types.BrokeringAttempt, create bool) {
	if m.store == nil {
		return
	}
	var err error
	if create {
		err = m.store.CreateAttempt(attempt)
	} else {
		err = m.store.UpdateAttempt(attempt)
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("attempt_id", attempt.ID).Msg("Failed to record brokering attempt")
	}
}
