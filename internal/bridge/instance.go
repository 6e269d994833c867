package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/thenexusengine/tne_adtalos/internal/registry"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
)

// State is the load state of an ad instance
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Instance is one live network ad object: either a view or a full-screen
// controller. It owns the object's load state and the current callback target.
type Instance struct {
	key  registry.Key
	view sdk.View
	ctrl sdk.Controller

	mu        sync.Mutex
	state     State
	attempt   string
	target    Target
	destroyed bool
}

// NewViewInstance wraps an inline ad view
func NewViewInstance(key registry.Key, view sdk.View) *Instance {
	return &Instance{key: key, view: view}
}

// NewControllerInstance wraps a full-screen controller
func NewControllerInstance(key registry.Key, ctrl sdk.Controller) *Instance {
	return &Instance{key: key, ctrl: ctrl}
}

// Key returns the registry key the instance was created under
func (i *Instance) Key() registry.Key { return i.key }

// View returns the view handle, or nil for controllers
func (i *Instance) View() sdk.View { return i.view }

// Controller returns the controller handle, or nil for views
func (i *Instance) Controller() sdk.Controller { return i.ctrl }

// IsView reports whether the instance wraps a view
func (i *Instance) IsView() bool { return i.view != nil }

// BeginLoad starts a new load attempt with target as the callback destination
// and returns the attempt id. A new attempt supersedes any earlier one.
func (i *Instance) BeginLoad(target Target) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = StateLoading
	i.attempt = uuid.NewString()
	i.target = target
	return i.attempt
}

// JoinOrBeginLoad starts a load attempt unless one is already in flight. An
// in-flight attempt is kept and re-targeted to target; joined is true and
// superseded holds the previous destination, which will not hear the outcome.
// The caller must not ask the network object to load again when joined.
func (i *Instance) JoinOrBeginLoad(target Target) (attempt string, superseded Target, joined bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateLoading {
		superseded = i.target
		i.target = target
		return i.attempt, superseded, true
	}
	i.state = StateLoading
	i.attempt = uuid.NewString()
	i.target = target
	return i.attempt, Target{}, false
}

// Retarget replaces the callback destination without starting an attempt
func (i *Instance) Retarget(target Target) {
	i.mu.Lock()
	i.target = target
	i.mu.Unlock()
}

// State returns the current load state
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Loaded reports whether the last load attempt succeeded
func (i *Instance) Loaded() bool {
	return i.State() == StateLoaded
}

// Attempt returns the id of the current load attempt
func (i *Instance) Attempt() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempt
}

// Target returns the current callback destination
func (i *Instance) Target() Target {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.target
}

// Show asks the network object to display itself
func (i *Instance) Show() {
	if i.view != nil {
		i.view.Show()
		return
	}
	if i.ctrl != nil {
		i.ctrl.Show()
	}
}

// Destroy releases the network object. It is idempotent.
func (i *Instance) Destroy() {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.destroyed = true
	i.state = StateIdle
	i.target = Target{}
	i.mu.Unlock()

	if i.view != nil {
		i.view.Destroy()
	}
	if i.ctrl != nil {
		i.ctrl.Destroy()
	}
}

// Destroyed reports whether Destroy has run
func (i *Instance) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// settle moves a loading instance to its terminal state. It fails when no
// load is in flight, so a terminal outcome is delivered at most once.
func (i *Instance) settle(to State) (Target, string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateLoading {
		return Target{}, i.attempt, false
	}
	i.state = to
	return i.target, i.attempt, true
}

// whenLoaded returns the target if the instance is loaded
func (i *Instance) whenLoaded() (Target, string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.target, i.attempt, i.state == StateLoaded
}

// consume returns a loaded full-screen instance to idle once it was closed;
// the creative cannot be shown twice
func (i *Instance) consume() {
	i.mu.Lock()
	if i.state == StateLoaded && i.ctrl != nil {
		i.state = StateIdle
	}
	i.mu.Unlock()
}

var _ registry.Resource = (*Instance)(nil)
