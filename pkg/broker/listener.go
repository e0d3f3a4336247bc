package broker

import (
	"sync"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/tooling"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// ResultListener correlates broker events on the shared bus with one
// workspace start attempt and drives its Result. Handle is safe for
// concurrent use.
type ResultListener struct {
	workspaceID string
	validator   tooling.Validator
	result      *Result
	started     chan struct{}
	startOnce   sync.Once
	logger      zerolog.Logger
}

// NewResultListener creates a listener for workspaceID
func NewResultListener(workspaceID string, validator tooling.Validator, result *Result) *ResultListener {
	return &ResultListener{
		workspaceID: workspaceID,
		validator:   validator,
		result:      result,
		started:     make(chan struct{}),
		logger:      log.WithWorkspaceID(workspaceID).With().Str("component", "broker-listener").Logger(),
	}
}

// Started is closed when the first event for the workspace arrives
func (l *ResultListener) Started() <-chan struct{} {
	return l.started
}

// Result returns the aggregated result the listener drives
func (l *ResultListener) Result() *Result {
	return l.result
}

// Handle is the bus handler for broker status events
func (l *ResultListener) Handle(e events.Event) {
	event, ok := e.(*types.BrokerEvent)
	if !ok || event.WorkspaceID() != l.workspaceID {
		return
	}

	// Legacy brokers only report a terminal status, so any event opens
	// the start gate.
	l.startOnce.Do(func() { close(l.started) })

	switch event.Status() {
	case types.BrokerStatusStarted:
		l.logger.Debug().Msg("Plugin broker started")

	case types.BrokerStatusDone:
		l.handleDone(event)

	case types.BrokerStatusFailed:
		l.logger.Warn().Str("error", event.ErrorMessage()).Msg("Plugin broker failed")
		l.result.Error(brokerFailedError(l.workspaceID, event.ErrorMessage()))
	}
}

func (l *ResultListener) handleDone(event *types.BrokerEvent) {
	if event.HasError() {
		l.logger.Warn().Str("error", event.ErrorMessage()).Msg("Plugin broker finished with error")
		l.result.Error(brokerFailedError(l.workspaceID, event.ErrorMessage()))
		return
	}
	if !event.HasTooling() {
		l.result.Error(missingToolingError(l.workspaceID))
		return
	}

	plugins, err := l.validate(event.Tooling())
	if err != nil {
		l.logger.Warn().Err(err).Msg("Plugin broker tooling rejected")
		l.result.Error(err)
		return
	}

	if l.result.SetResult(plugins) {
		l.logger.Debug().
			Int("plugins", len(plugins)).
			Int("contributions", l.result.Contributions()).
			Int("expected", l.result.Expected()).
			Msg("Accepted plugin broker tooling")
	}
}

// validate runs the validator, turning a panic into an internal error
func (l *ResultListener) validate(plugins []types.ChePlugin) (normalized []types.ChePlugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			normalized = nil
			err = internalError(l.workspaceID, r)
		}
	}()

	normalized, err = l.validator.ValidatePluginNames(plugins)
	if err != nil {
		return nil, validationError(l.workspaceID, err)
	}
	return normalized, nil
}
