// Package sdk defines the boundary to the Adtalos network SDK.
//
// The network SDK is an opaque collaborator: it creates ad objects, loads
// and shows creatives, and reports progress through a per-object Listener
// on goroutines it owns. Nothing in this package renders or fetches ads.
package sdk

import (
	"context"
	"fmt"
)

// SDK is the process-wide entry point of the network library
type SDK interface {
	// Init bootstraps the library. It must be called at most once per process.
	Init(ctx context.Context, env Environment) error

	// SetPrivacy replaces the global privacy flags used by subsequent loads
	SetPrivacy(p Privacy)

	// Version returns the library version
	Version() string

	// NewView creates an inline ad view
	NewView(env Environment) View

	// NewController creates a full-screen ad controller bound to a placement
	NewController(placementID string, kind Kind) Controller
}

// Environment is the execution context handed to the library
type Environment struct {
	AppID    string
	TestMode bool
}

// View is an inline (banner-like) ad object with its own render surface
type View interface {
	SetSize(size Size)
	SetListener(l Listener)
	// Load starts an asynchronous load. When autoShow is false the view
	// waits for an explicit Show after the loaded event.
	Load(placementID string, autoShow bool)
	Show()
	Destroy()
}

// Controller is a full-screen ad object (interstitial, rewarded, app-open)
type Controller interface {
	SetListener(l Listener)
	Load()
	Show()
	Destroy()
}

// Kind selects the controller type
type Kind int

const (
	// KindInterstitial is a full-screen interstitial controller
	KindInterstitial Kind = iota + 1
	// KindSplash is the splash controller; the network serves both app-open
	// and rewarded creatives through it
	KindSplash
)

func (k Kind) String() string {
	switch k {
	case KindInterstitial:
		return "interstitial"
	case KindSplash:
		return "splash"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Size is an ad view size in density-independent pixels
type Size struct {
	Width  int
	Height int
}

// SizeBanner is the network's fixed banner size
var SizeBanner = Size{Width: 320, Height: 50}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Listener receives the lifecycle events of one ad object.
// Callbacks arrive on SDK-owned goroutines.
type Listener interface {
	OnRendered()
	OnImpressionFinished()
	OnImpressionFailed()
	OnImpressionReceivedError(code int, message string)
	OnLoaded()
	OnFailedToLoad(err error)
	OnOpened()
	OnClicked()
	OnLeftApplication()
	OnClosed()
}
