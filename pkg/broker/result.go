package broker

import (
	"context"
	"sync"

	"github.com/cuemby/burrow/pkg/tooling"
	"github.com/cuemby/burrow/pkg/types"
)

// State is the lifecycle state of a Result
type State int

const (
	StatePending State = iota
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result aggregates the tooling of every broker launched for one workspace
// start attempt. It is resolved or failed exactly once; after that every
// call is a no-op.
type Result struct {
	workspaceID   string
	expected      int
	state         State
	plugins       []types.ChePlugin
	seen          map[string]struct{}
	contributions int
	err           error
	done          chan struct{}
	mu            sync.Mutex
}

// NewResult creates a result that resolves after expected successful
// contributions. Values below 1 are treated as 1.
func NewResult(workspaceID string, expected int) *Result {
	if expected < 1 {
		expected = 1
	}
	return &Result{
		workspaceID: workspaceID,
		expected:    expected,
		seen:        make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// Expected returns the number of contributions needed to resolve
func (r *Result) Expected() int {
	return r.expected
}

// SetResult appends one broker's validated tooling. The result resolves
// with the concatenation of all contributions, in arrival order, once the
// expected count is reached. A plugin id already contributed by another
// broker fails the whole result. It returns false when the contribution
// was not accepted.
func (r *Result) SetResult(plugins []types.ChePlugin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePending {
		return false
	}

	batch := make(map[string]struct{}, len(plugins))
	for _, p := range plugins {
		id := p.EffectiveID()
		_, dupEarlier := r.seen[id]
		_, dupBatch := batch[id]
		if dupEarlier || dupBatch {
			r.fail(validationError(r.workspaceID, &tooling.ValidationError{
				PluginID: id,
				Reason:   "contributed by more than one plugin broker",
				Err:      tooling.ErrDuplicatePlugin,
			}))
			return false
		}
		batch[id] = struct{}{}
	}

	for id := range batch {
		r.seen[id] = struct{}{}
	}
	r.plugins = append(r.plugins, plugins...)
	r.contributions++

	if r.contributions >= r.expected {
		r.state = StateResolved
		close(r.done)
	}
	return true
}

// Error fails the result. Only the first call after creation has an
// effect; it returns false otherwise.
func (r *Result) Error(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePending {
		return false
	}
	r.fail(err)
	return true
}

func (r *Result) fail(err error) {
	r.state = StateFailed
	r.err = err
	r.plugins = nil
	close(r.done)
}

// Done is closed once the result is resolved or failed
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// State returns the current state
func (r *Result) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Contributions returns the number of accepted contributions
func (r *Result) Contributions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contributions
}

// Await blocks until the result completes or ctx ends. A ctx expiry is
// reported as a timeout or cancellation error and leaves the result as is.
func (r *Result) Await(ctx context.Context) ([]types.ChePlugin, error) {
	select {
	case <-r.done:
		return r.outcome()
	case <-ctx.Done():
		// Completion and expiry can race; prefer the completed outcome.
		select {
		case <-r.done:
			return r.outcome()
		default:
		}
		return nil, contextError(r.workspaceID, "waiting for plugin brokers result", ctx.Err())
	}
}

func (r *Result) outcome() ([]types.ChePlugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateFailed {
		return nil, r.err
	}
	return append([]types.ChePlugin(nil), r.plugins...), nil
}
