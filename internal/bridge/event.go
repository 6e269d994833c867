package bridge

import (
	"time"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
)

// EventKind names an underlying network event
type EventKind string

const (
	EventRendered           EventKind = "rendered"
	EventImpressionFinished EventKind = "impression_finished"
	EventImpressionFailed   EventKind = "impression_failed"
	EventImpressionError    EventKind = "impression_received_error"
	EventLoaded             EventKind = "loaded"
	EventFailedToLoad       EventKind = "failed_to_load"
	EventOpened             EventKind = "opened"
	EventClicked            EventKind = "clicked"
	EventLeftApplication    EventKind = "left_application"
	EventClosed             EventKind = "closed"
)

// Outcome records what the bridge did with an event
type Outcome string

const (
	// OutcomeForwarded means a mediation callback was invoked
	OutcomeForwarded Outcome = "forwarded"
	// OutcomeLogged means the event has no mediation counterpart
	OutcomeLogged Outcome = "logged"
	// OutcomeDropped means the event arrived out of order or for a stale instance
	OutcomeDropped Outcome = "dropped"
)

// Drop reasons
const (
	ReasonUnregistered = "instance_unregistered"
	ReasonNoAttempt    = "no_load_in_flight"
	ReasonNotLoaded    = "not_loaded"
	ReasonNoTarget     = "no_listener"
)

// Event describes one underlying event and how it was handled
type Event struct {
	ID          string              `json:"id"`
	Kind        EventKind           `json:"kind"`
	Format      mediation.AdFormat  `json:"-"`
	FormatLabel string              `json:"format"`
	PlacementID string              `json:"placement_id"`
	AttemptID   string              `json:"attempt_id,omitempty"`
	Outcome     Outcome             `json:"outcome"`
	Callback    string              `json:"callback,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	ErrorCode   mediation.ErrorCode `json:"error_code,omitempty"`
	NetworkCode int                 `json:"network_code,omitempty"`
	Message     string              `json:"message,omitempty"`
	Time        time.Time           `json:"time"`
}

// Observer receives every event after it was handled
type Observer interface {
	OnBridgeEvent(ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnBridgeEvent(ev Event) { f(ev) }

// Observers fans an event out to several observers in order
type Observers []Observer

func (o Observers) OnBridgeEvent(ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnBridgeEvent(ev)
		}
	}
}
