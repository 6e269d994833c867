// Package demo implements a simulated network SDK that fills ads locally.
// It delivers listener events from its own goroutines, the way the real
// network does, and is useful for running the bridge without credentials.
package demo

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// Version is the simulated SDK version
const Version = "3.4.1-demo"

// Config tunes the simulation
type Config struct {
	// FillRate is the probability a load succeeds (0.0-1.0)
	FillRate float64
	// ClickRate is the probability a shown ad is clicked (0.0-1.0)
	ClickRate float64
	// Latency is the delay before load and display events
	Latency time.Duration
	// Seed seeds the RNG; zero uses the current time
	Seed int64
}

// DefaultConfig returns the demo defaults
func DefaultConfig() Config {
	return Config{
		FillRate:  config.DemoFillRate,
		ClickRate: config.DemoClickRate,
		Latency:   config.DemoLatency,
	}
}

// SDK is the simulated network
type SDK struct {
	cfg Config

	mu      sync.Mutex
	rng     *rand.Rand
	privacy sdk.Privacy
	inits   int

	wg sync.WaitGroup
}

// New creates a simulated network
func New(cfg Config) *SDK {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SDK{
		cfg: cfg,
		// #nosec G404 -- math/rand is acceptable for simulated fill decisions (not security-sensitive)
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (s *SDK) Init(ctx context.Context, env sdk.Environment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.inits++
	s.mu.Unlock()

	logger.Adapter().Info().
		Str("app_id", env.AppID).
		Bool("test_mode", env.TestMode).
		Msg("demo network initialized")
	return nil
}

func (s *SDK) SetPrivacy(p sdk.Privacy) {
	s.mu.Lock()
	s.privacy = p
	s.mu.Unlock()
}

// Privacy returns the privacy flags last set
func (s *SDK) Privacy() sdk.Privacy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privacy
}

func (s *SDK) Version() string {
	return Version
}

func (s *SDK) NewView(env sdk.Environment) sdk.View {
	return &view{object: object{sdk: s}}
}

func (s *SDK) NewController(placementID string, kind sdk.Kind) sdk.Controller {
	return &controller{object: object{sdk: s, placementID: placementID}, kind: kind}
}

// Wait blocks until every in-flight simulated event has been delivered
func (s *SDK) Wait() {
	s.wg.Wait()
}

func (s *SDK) roll(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// later runs fn on its own goroutine after the configured latency
func (s *SDK) later(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.cfg.Latency > 0 {
			time.Sleep(s.cfg.Latency)
		}
		fn()
	}()
}

// object holds the state shared by views and controllers
type object struct {
	sdk *SDK

	mu          sync.Mutex
	placementID string
	listener    sdk.Listener
	loaded      bool
	destroyed   bool
}

func (o *object) SetListener(l sdk.Listener) {
	o.mu.Lock()
	o.listener = l
	o.mu.Unlock()
}

func (o *object) Destroy() {
	o.mu.Lock()
	o.destroyed = true
	o.loaded = false
	o.mu.Unlock()
}

// current returns the listener unless the object was destroyed
func (o *object) current() sdk.Listener {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return nil
	}
	return o.listener
}

func (o *object) load(onLoaded func()) {
	o.mu.Lock()
	placementID := o.placementID
	o.loaded = false
	o.mu.Unlock()

	fill := o.sdk.roll(o.sdk.cfg.FillRate)
	o.sdk.later(func() {
		l := o.current()
		if l == nil {
			return
		}
		switch {
		case placementID == "":
			l.OnFailedToLoad(sdk.NewLoadError(sdk.CodeNotFound, "placement not found"))
		case !fill:
			l.OnFailedToLoad(sdk.NewLoadError(sdk.CodeNoFill, "no ad available"))
		default:
			o.mu.Lock()
			o.loaded = true
			o.mu.Unlock()
			l.OnLoaded()
			if onLoaded != nil {
				onLoaded()
			}
		}
	})
}

// takeLoaded reports whether the object holds a loaded ad and consumes it
func (o *object) takeLoaded(consume bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	loaded := o.loaded && !o.destroyed
	if loaded && consume {
		o.loaded = false
	}
	return loaded
}

type view struct {
	object
	size     sdk.Size
	autoShow bool
}

func (v *view) SetSize(size sdk.Size) {
	v.mu.Lock()
	v.size = size
	v.mu.Unlock()
}

func (v *view) Load(placementID string, autoShow bool) {
	v.mu.Lock()
	v.placementID = placementID
	v.autoShow = autoShow
	v.mu.Unlock()

	v.load(func() {
		v.mu.Lock()
		auto := v.autoShow
		v.mu.Unlock()
		if auto {
			v.Show()
		}
	})
}

func (v *view) Show() {
	loaded := v.takeLoaded(false)
	clicked := v.sdk.roll(v.sdk.cfg.ClickRate)
	v.sdk.later(func() {
		l := v.current()
		if l == nil {
			return
		}
		if !loaded {
			l.OnImpressionFailed()
			return
		}
		l.OnRendered()
		l.OnImpressionFinished()
		if clicked {
			l.OnClicked()
			l.OnOpened()
			l.OnLeftApplication()
			l.OnClosed()
		}
	})
}

type controller struct {
	object
	kind sdk.Kind
}

func (c *controller) Load() {
	c.load(nil)
}

func (c *controller) Show() {
	loaded := c.takeLoaded(true)
	clicked := c.sdk.roll(c.sdk.cfg.ClickRate)
	c.sdk.later(func() {
		l := c.current()
		if l == nil {
			return
		}
		if !loaded {
			l.OnImpressionReceivedError(sdk.CodeNotFound, "no loaded ad to show")
			l.OnImpressionFailed()
			return
		}
		l.OnOpened()
		l.OnRendered()
		l.OnImpressionFinished()
		if clicked {
			l.OnClicked()
			l.OnLeftApplication()
		}
		l.OnClosed()
	})
}

var (
	_ sdk.SDK        = (*SDK)(nil)
	_ sdk.View       = (*view)(nil)
	_ sdk.Controller = (*controller)(nil)
)
