// Package initgate guards the one-time network SDK bootstrap
package initgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
)

// State is the gate's lifecycle state
type State int32

const (
	StateNotStarted State = iota
	StateInProgress
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ErrBootstrapFailed wraps the error returned by a failed bootstrap
var ErrBootstrapFailed = errors.New("sdk bootstrap failed")

// Bootstrap performs the side-effecting SDK initialization
type Bootstrap func(ctx context.Context) error

// Gate lets exactly one caller run Bootstrap; it never re-opens
type Gate struct {
	state atomic.Int32
	done  chan struct{}

	mu     sync.RWMutex
	status mediation.InitializationStatus
	err    error
}

// New creates a gate in the not-started state
func New() *Gate {
	return &Gate{
		done:   make(chan struct{}),
		status: mediation.StatusNotInitialized,
	}
}

// Initialize runs bootstrap if this is the first call. Every caller gets the
// status current at return time; later callers never run bootstrap and never
// block on an in-flight one.
func (g *Gate) Initialize(ctx context.Context, bootstrap Bootstrap) (mediation.InitializationStatus, error) {
	if !g.state.CompareAndSwap(int32(StateNotStarted), int32(StateInProgress)) {
		return g.Status()
	}

	g.setStatus(mediation.StatusInitializing, nil)

	status := mediation.StatusDoesNotApply
	var err error
	if bootstrap != nil {
		if bErr := runBootstrap(ctx, bootstrap); bErr != nil {
			status = mediation.StatusInitializedFailure
			err = fmt.Errorf("%w: %w", ErrBootstrapFailed, bErr)
		}
	}

	g.setStatus(status, err)
	g.state.Store(int32(StateDone))
	close(g.done)

	return status, err
}

func runBootstrap(ctx context.Context, bootstrap Bootstrap) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bootstrap panic: %v", r)
		}
	}()
	return bootstrap(ctx)
}

// Status returns the current initialization status and error
func (g *Gate) Status() (mediation.InitializationStatus, error) {
	if State(g.state.Load()) == StateInProgress {
		return mediation.StatusInitializing, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status, g.err
}

// State returns the gate's lifecycle state
func (g *Gate) State() State {
	return State(g.state.Load())
}

// Done is closed once the winning bootstrap has finished
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

func (g *Gate) setStatus(status mediation.InitializationStatus, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	g.err = err
}
