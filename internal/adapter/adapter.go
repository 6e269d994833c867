// Package adapter implements the Adtalos mediation adapter: one-time SDK
// initialization, and load, show and destroy for every ad format.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adtalos/internal/bridge"
	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/initgate"
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/registry"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
	"github.com/thenexusengine/tne_adtalos/internal/uithread"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// PlacementResolver maps a mediation placement id to the network placement id.
// enabled=false switches the placement off.
type PlacementResolver interface {
	Resolve(format mediation.AdFormat, placementID string) (networkID string, enabled bool)
}

// Metrics is the subset of internal/metrics the adapter records into
type Metrics interface {
	RecordLoad(format mediation.AdFormat)
	RecordLoadRejected(format mediation.AdFormat, code mediation.ErrorCode)
	RecordShow(format mediation.AdFormat, shown bool)
	RecordInitialize(status mediation.InitializationStatus, duration time.Duration)
}

// Options configures an Adapter. Every field is optional.
type Options struct {
	// Dispatcher runs construction, load and show. Defaults to uithread.Inline.
	Dispatcher uithread.Dispatcher
	// Registry holds live ad objects. Defaults to a fresh registry.
	Registry *registry.Registry[*bridge.Instance]
	// Resolver applies remote placement overrides
	Resolver PlacementResolver
	// Observer receives every bridge event
	Observer bridge.Observer
	// Metrics records lifecycle counters
	Metrics Metrics
	// AdapterVersion overrides config.AdapterVersion
	AdapterVersion string
}

// Versions reports the wrapped SDK and adapter versions
type Versions struct {
	SDK     string `json:"sdk_version"`
	Adapter string `json:"adapter_version"`
}

// InstanceInfo describes one registered ad object
type InstanceInfo struct {
	Format      string `json:"format"`
	PlacementID string `json:"placement_id"`
	State       string `json:"state"`
	AttemptID   string `json:"attempt_id,omitempty"`
	Listener    string `json:"listener"`
}

// Adapter is the lifecycle controller the mediation framework drives
type Adapter struct {
	sdk        sdk.SDK
	gate       *initgate.Gate
	registry   *registry.Registry[*bridge.Instance]
	dispatcher uithread.Dispatcher
	resolver   PlacementResolver
	observer   bridge.Observer
	metrics    Metrics
	version    string
	log        *zerolog.Logger

	envMu sync.RWMutex
	env   sdk.Environment
}

// New creates an adapter around the network SDK
func New(s sdk.SDK, opts Options) *Adapter {
	a := &Adapter{
		sdk:        s,
		gate:       initgate.New(),
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		resolver:   opts.Resolver,
		observer:   opts.Observer,
		metrics:    opts.Metrics,
		version:    opts.AdapterVersion,
		log:        logger.Adapter(),
	}
	if a.registry == nil {
		a.registry = registry.New[*bridge.Instance]()
	}
	if a.dispatcher == nil {
		a.dispatcher = uithread.Inline{}
	}
	if a.version == "" {
		a.version = config.AdapterVersion
	}
	return a
}

// Initialize bootstraps the network SDK once per adapter. Every caller,
// including concurrent and later ones, gets onComplete with the current status.
func (a *Adapter) Initialize(ctx context.Context, params mediation.InitParams, onComplete mediation.OnCompletion) (mediation.InitializationStatus, error) {
	start := time.Now()
	env := sdk.Environment{AppID: params.AppID, TestMode: params.Testing}

	status, err := a.gate.Initialize(ctx, func(ctx context.Context) error {
		a.log.Info().
			Str("app_id", params.AppID).
			Bool("testing", params.Testing).
			Str("sdk_version", a.sdk.Version()).
			Msg("Initializing Adtalos SDK")
		a.envMu.Lock()
		a.env = env
		a.envMu.Unlock()
		return a.sdk.Init(ctx, env)
	})

	if err != nil {
		a.log.Error().Err(err).Str("status", string(status)).Msg("Adtalos SDK initialization failed")
	} else {
		a.log.Debug().Str("status", string(status)).Msg("Initialize completed")
	}
	if a.metrics != nil {
		a.metrics.RecordInitialize(status, time.Since(start))
	}
	if onComplete != nil {
		onComplete(status, err)
	}
	return status, err
}

// InitializationStatus returns the status without attempting initialization
func (a *Adapter) InitializationStatus() (mediation.InitializationStatus, error) {
	return a.gate.Status()
}

// SDKVersion returns the wrapped network SDK version
func (a *Adapter) SDKVersion() string {
	return a.sdk.Version()
}

// AdapterVersion returns the adapter build version
func (a *Adapter) AdapterVersion() string {
	return a.version
}

// Versions returns both versions
func (a *Adapter) Versions() Versions {
	return Versions{SDK: a.SDKVersion(), Adapter: a.AdapterVersion()}
}

// Destroy releases every live ad object, empties the registry and returns the
// number released. The adapter can be used again afterwards.
func (a *Adapter) Destroy() int {
	n := a.registry.Clear()
	a.log.Info().Int("released", n).Msg("Adapter destroyed")
	return n
}

// Snapshot lists the registered ad objects
func (a *Adapter) Snapshot() []InstanceInfo {
	keys := a.registry.Keys()
	out := make([]InstanceInfo, 0, len(keys))
	for _, key := range keys {
		inst, ok := a.registry.Get(key)
		if !ok {
			continue
		}
		out = append(out, InstanceInfo{
			Format:      key.Format.Label(),
			PlacementID: key.PlacementID,
			State:       inst.State().String(),
			AttemptID:   inst.Attempt(),
			Listener:    inst.Target().Kind().String(),
		})
	}
	return out
}

// Registry exposes the instance registry
func (a *Adapter) Registry() *registry.Registry[*bridge.Instance] {
	return a.registry
}

// newInstance creates the network object for key and installs its bridge.
// Runs on the dispatcher.
func (a *Adapter) newInstance(key registry.Key) (*bridge.Instance, error) {
	var inst *bridge.Instance
	if key.Format.IsAdView() {
		view := a.sdk.NewView(a.environment())
		view.SetSize(viewSize(key.Format))
		inst = bridge.NewViewInstance(key, view)
		view.SetListener(a.newBridge(inst))
	} else {
		ctrl := a.sdk.NewController(key.PlacementID, controllerKind(key.Format))
		inst = bridge.NewControllerInstance(key, ctrl)
		ctrl.SetListener(a.newBridge(inst))
	}

	a.log.Debug().
		Str("format", key.Format.Label()).
		Str("placement_id", key.PlacementID).
		Msg("Created network ad object")
	return inst, nil
}

func (a *Adapter) environment() sdk.Environment {
	a.envMu.RLock()
	defer a.envMu.RUnlock()
	return a.env
}

func (a *Adapter) newBridge(inst *bridge.Instance) *bridge.Bridge {
	return bridge.New(inst, bridge.Options{
		Lookup:     a.registry,
		Observer:   a.observer,
		Dispatcher: a.dispatcher,
	})
}

// viewSize maps a view format to the network size. Banners use the network's
// fixed banner size; other view formats use their own geometry.
func viewSize(format mediation.AdFormat) sdk.Size {
	if format == mediation.FormatBanner {
		return sdk.SizeBanner
	}
	size, _ := format.Size()
	return sdk.Size{Width: size.Width, Height: size.Height}
}

// controllerKind picks the network controller for a full-screen format.
// The network serves rewarded creatives through its splash controller.
func controllerKind(format mediation.AdFormat) sdk.Kind {
	if format == mediation.FormatInterstitial {
		return sdk.KindInterstitial
	}
	return sdk.KindSplash
}

// testPlacementID returns the network's published test unit for a format
func testPlacementID(format mediation.AdFormat) string {
	switch format {
	case mediation.FormatInterstitial:
		return config.InterstitialTestPlacementID
	case mediation.FormatRewarded:
		return config.RewardedTestPlacementID
	case mediation.FormatAppOpen:
		return config.AppOpenTestPlacementID
	default:
		return config.BannerTestPlacementID
	}
}

// placementFor resolves the network placement id a request targets
func (a *Adapter) placementFor(format mediation.AdFormat, req mediation.Request) (string, error) {
	if req.Testing {
		return testPlacementID(format), nil
	}
	id := req.PlacementID
	if id == "" {
		return "", ErrMissingPlacement
	}
	if a.resolver != nil {
		networkID, enabled := a.resolver.Resolve(format, id)
		if !enabled {
			return "", ErrPlacementDisabled
		}
		if networkID != "" {
			id = networkID
		}
	}
	return id, nil
}
