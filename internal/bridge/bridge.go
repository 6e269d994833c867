// Package bridge translates the network SDK's per-object listener events into
// mediation framework callbacks.
package bridge

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/registry"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
	"github.com/thenexusengine/tne_adtalos/internal/uithread"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// Lookup resolves the instance currently registered under a key
type Lookup interface {
	Get(key registry.Key) (*Instance, bool)
}

// Options configures a Bridge
type Options struct {
	// Lookup is consulted on every event; events for an instance that is no
	// longer registered are dropped
	Lookup Lookup
	// Observer receives every handled event
	Observer Observer
	// Dispatcher runs the view show that follows a view load; nil runs it inline
	Dispatcher uithread.Dispatcher
}

// Bridge is the sdk.Listener installed on exactly one Instance
type Bridge struct {
	inst *Instance
	opts Options
	log  *zerolog.Logger
}

// New creates the listener for inst
func New(inst *Instance, opts Options) *Bridge {
	key := inst.Key()
	return &Bridge{
		inst: inst,
		opts: opts,
		log:  logger.Bridge(key.Format.Label(), key.PlacementID),
	}
}

func (b *Bridge) OnRendered() {
	b.dispatch(Event{Kind: EventRendered})
}

func (b *Bridge) OnImpressionFinished() {
	b.dispatch(Event{Kind: EventImpressionFinished})
}

func (b *Bridge) OnImpressionFailed() {
	b.dispatch(Event{Kind: EventImpressionFailed})
}

func (b *Bridge) OnImpressionReceivedError(code int, message string) {
	b.dispatch(Event{Kind: EventImpressionError, NetworkCode: code, Message: message})
}

func (b *Bridge) OnLoaded() {
	b.dispatch(Event{Kind: EventLoaded})
}

func (b *Bridge) OnFailedToLoad(err error) {
	ev := Event{Kind: EventFailedToLoad, ErrorCode: NormalizeError(err)}
	if err != nil {
		ev.Message = err.Error()
	}
	b.handle(ev, err)
}

func (b *Bridge) OnOpened() {
	b.dispatch(Event{Kind: EventOpened})
}

func (b *Bridge) OnClicked() {
	b.dispatch(Event{Kind: EventClicked})
}

func (b *Bridge) OnLeftApplication() {
	b.dispatch(Event{Kind: EventLeftApplication})
}

func (b *Bridge) OnClosed() {
	b.dispatch(Event{Kind: EventClosed})
}

func (b *Bridge) dispatch(ev Event) {
	b.handle(ev, nil)
}

// handle is the single translation point for every event and target kind
func (b *Bridge) handle(ev Event, cause error) {
	key := b.inst.Key()
	ev.ID = uuid.NewString()
	ev.Format = key.Format
	ev.FormatLabel = key.Format.Label()
	ev.PlacementID = key.PlacementID
	ev.Time = time.Now().UTC()

	if current, ok := b.lookup(key); !ok || current != b.inst {
		ev.AttemptID = b.inst.Attempt()
		b.drop(ev, ReasonUnregistered)
		return
	}

	switch ev.Kind {
	case EventRendered, EventLeftApplication:
		ev.AttemptID = b.inst.Attempt()
		b.logged(ev)

	case EventImpressionError:
		ev.AttemptID = b.inst.Attempt()
		b.log.Warn().
			Int("network_code", ev.NetworkCode).
			Str("message", ev.Message).
			Msg("impression received error")
		b.logged(ev)

	case EventLoaded:
		target, attempt, ok := b.inst.settle(StateLoaded)
		ev.AttemptID = attempt
		if !ok {
			b.drop(ev, ReasonNoAttempt)
			return
		}
		if !target.Valid() {
			b.drop(ev, ReasonNoTarget)
			return
		}
		if b.inst.IsView() {
			target.Loaded(b.inst.View())
			b.forwarded(ev, mediation.CallbackLoaded)
			b.showView()
			return
		}
		target.Loaded(nil)
		b.forwarded(ev, mediation.CallbackLoaded)

	case EventFailedToLoad:
		target, attempt, ok := b.inst.settle(StateFailed)
		ev.AttemptID = attempt
		if !ok {
			b.drop(ev, ReasonNoAttempt)
			return
		}
		if !target.Valid() {
			b.drop(ev, ReasonNoTarget)
			return
		}
		target.LoadFailed(mediation.NewAdapterError(ev.ErrorCode, cause))
		b.forwarded(ev, mediation.CallbackLoadFailed)

	default:
		b.handleDisplay(ev)
	}
}

// handleDisplay forwards display lifecycle events of a loaded instance
func (b *Bridge) handleDisplay(ev Event) {
	target, attempt, loaded := b.inst.whenLoaded()
	ev.AttemptID = attempt
	if !loaded {
		b.drop(ev, ReasonNotLoaded)
		return
	}
	if !target.Valid() {
		b.drop(ev, ReasonNoTarget)
		return
	}

	switch ev.Kind {
	case EventImpressionFinished:
		target.Displayed()
		b.forwarded(ev, mediation.CallbackDisplayed)
	case EventImpressionFailed:
		ev.ErrorCode = mediation.ErrorCodeAdDisplayFailed
		target.DisplayFailed(mediation.ErrAdDisplayFailed())
		b.forwarded(ev, mediation.CallbackDisplayFailed)
	case EventOpened:
		if target.Opened() {
			b.forwarded(ev, mediation.CallbackExpanded)
		} else {
			b.logged(ev)
		}
	case EventClicked:
		target.Clicked()
		b.forwarded(ev, mediation.CallbackClicked)
	case EventClosed:
		target.Closed()
		b.inst.consume()
		b.forwarded(ev, target.closedCallback())
	}
}

// showView displays the view that just loaded; views load with autoShow off
func (b *Bridge) showView() {
	view := b.inst.View()
	if b.opts.Dispatcher == nil {
		view.Show()
		return
	}
	b.opts.Dispatcher.Post(view.Show)
}

func (b *Bridge) lookup(key registry.Key) (*Instance, bool) {
	if b.opts.Lookup == nil {
		return b.inst, true
	}
	return b.opts.Lookup.Get(key)
}

func (b *Bridge) forwarded(ev Event, callback string) {
	ev.Outcome = OutcomeForwarded
	ev.Callback = callback
	b.log.Debug().
		Str("event", string(ev.Kind)).
		Str("callback", callback).
		Str("attempt_id", ev.AttemptID).
		Str("error_code", string(ev.ErrorCode)).
		Msg("bridge event forwarded")
	b.emit(ev)
}

func (b *Bridge) logged(ev Event) {
	ev.Outcome = OutcomeLogged
	b.log.Info().
		Str("event", string(ev.Kind)).
		Str("attempt_id", ev.AttemptID).
		Msg("bridge event")
	b.emit(ev)
}

func (b *Bridge) drop(ev Event, reason string) {
	ev.Outcome = OutcomeDropped
	ev.Reason = reason
	b.log.Debug().
		Str("event", string(ev.Kind)).
		Str("reason", reason).
		Msg("bridge event dropped")
	b.emit(ev)
}

func (b *Bridge) emit(ev Event) {
	if b.opts.Observer != nil {
		b.opts.Observer.OnBridgeEvent(ev)
	}
}

var _ sdk.Listener = (*Bridge)(nil)
