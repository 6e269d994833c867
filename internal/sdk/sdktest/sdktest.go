// Package sdktest provides a deterministic in-memory SDK for tests.
// Nothing happens on its own: tests fire listener events by hand through
// the views and controllers it hands out.
package sdktest

import (
	"context"
	"sync"

	"github.com/thenexusengine/tne_adtalos/internal/sdk"
)

// DefaultVersion is reported by Version unless overridden
const DefaultVersion = "3.4.1-test"

// SDK is a fake network SDK
type SDK struct {
	mu          sync.Mutex
	version     string
	initErr     error
	initCalls   int
	env         sdk.Environment
	privacy     []sdk.Privacy
	views       []*View
	controllers []*Controller
	onInit      func()
}

// New creates a fake SDK
func New() *SDK {
	return &SDK{version: DefaultVersion}
}

// FailInit makes Init return err
func (s *SDK) FailInit(err error) *SDK {
	s.mu.Lock()
	s.initErr = err
	s.mu.Unlock()
	return s
}

// OnInit installs a hook run inside Init, before it returns
func (s *SDK) OnInit(fn func()) *SDK {
	s.mu.Lock()
	s.onInit = fn
	s.mu.Unlock()
	return s
}

// SetVersion overrides the reported version
func (s *SDK) SetVersion(v string) *SDK {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
	return s
}

func (s *SDK) Init(_ context.Context, env sdk.Environment) error {
	s.mu.Lock()
	s.initCalls++
	s.env = env
	hook := s.onInit
	err := s.initErr
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (s *SDK) SetPrivacy(p sdk.Privacy) {
	s.mu.Lock()
	s.privacy = append(s.privacy, p)
	s.mu.Unlock()
}

func (s *SDK) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *SDK) NewView(env sdk.Environment) sdk.View {
	v := &View{Env: env}
	s.mu.Lock()
	s.views = append(s.views, v)
	s.mu.Unlock()
	return v
}

func (s *SDK) NewController(placementID string, kind sdk.Kind) sdk.Controller {
	c := &Controller{PlacementID: placementID, Kind: kind}
	s.mu.Lock()
	s.controllers = append(s.controllers, c)
	s.mu.Unlock()
	return c
}

// InitCalls returns how many times Init ran
func (s *SDK) InitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls
}

// Environment returns the environment passed to the last Init
func (s *SDK) Environment() sdk.Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

// PrivacyHistory returns every SetPrivacy argument in call order
func (s *SDK) PrivacyHistory() []sdk.Privacy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sdk.Privacy, len(s.privacy))
	copy(out, s.privacy)
	return out
}

// Views returns every view created so far
func (s *SDK) Views() []*View {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*View, len(s.views))
	copy(out, s.views)
	return out
}

// Controllers returns every controller created so far
func (s *SDK) Controllers() []*Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Controller, len(s.controllers))
	copy(out, s.controllers)
	return out
}

// ControllersFor returns the controllers created for a placement
func (s *SDK) ControllersFor(placementID string) []*Controller {
	var out []*Controller
	for _, c := range s.Controllers() {
		if c.PlacementID == placementID {
			out = append(out, c)
		}
	}
	return out
}

// LoadCall is one View.Load invocation
type LoadCall struct {
	PlacementID string
	AutoShow    bool
}

// View is a fake ad view
type View struct {
	Env sdk.Environment

	mu        sync.Mutex
	size      sdk.Size
	listener  sdk.Listener
	loads     []LoadCall
	shows     int
	destroyed bool
}

func (v *View) SetSize(size sdk.Size) {
	v.mu.Lock()
	v.size = size
	v.mu.Unlock()
}

func (v *View) SetListener(l sdk.Listener) {
	v.mu.Lock()
	v.listener = l
	v.mu.Unlock()
}

func (v *View) Load(placementID string, autoShow bool) {
	v.mu.Lock()
	v.loads = append(v.loads, LoadCall{PlacementID: placementID, AutoShow: autoShow})
	v.mu.Unlock()
}

func (v *View) Show() {
	v.mu.Lock()
	v.shows++
	v.mu.Unlock()
}

func (v *View) Destroy() {
	v.mu.Lock()
	v.destroyed = true
	v.mu.Unlock()
}

// Size returns the size set on the view
func (v *View) Size() sdk.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// Listener returns the installed listener
func (v *View) Listener() sdk.Listener {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listener
}

// Loads returns every Load call
func (v *View) Loads() []LoadCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]LoadCall, len(v.loads))
	copy(out, v.loads)
	return out
}

// Shows returns the number of Show calls
func (v *View) Shows() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shows
}

// Destroyed reports whether Destroy was called
func (v *View) Destroyed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.destroyed
}

// Controller is a fake full-screen ad controller
type Controller struct {
	PlacementID string
	Kind        sdk.Kind

	mu        sync.Mutex
	listener  sdk.Listener
	loads     int
	shows     int
	destroyed bool
}

func (c *Controller) SetListener(l sdk.Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *Controller) Load() {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
}

func (c *Controller) Show() {
	c.mu.Lock()
	c.shows++
	c.mu.Unlock()
}

func (c *Controller) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

// Listener returns the installed listener
func (c *Controller) Listener() sdk.Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

// Loads returns the number of Load calls
func (c *Controller) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Shows returns the number of Show calls
func (c *Controller) Shows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shows
}

// Destroyed reports whether Destroy was called
func (c *Controller) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

var (
	_ sdk.SDK        = (*SDK)(nil)
	_ sdk.View       = (*View)(nil)
	_ sdk.Controller = (*Controller)(nil)
)
