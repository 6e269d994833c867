package adapter

import "errors"

var (
	// ErrUnsupportedFormat is the cause reported for formats the network cannot serve
	ErrUnsupportedFormat = errors.New("ad format not supported by the network")

	// ErrPlacementDisabled is the cause reported for placements switched off remotely
	ErrPlacementDisabled = errors.New("placement disabled")

	// ErrMissingPlacement is the cause reported when a request carries no placement id
	ErrMissingPlacement = errors.New("missing placement id")

	// ErrListenerMismatch is the cause reported when a target does not match the format
	ErrListenerMismatch = errors.New("listener does not match ad format")

	// ErrLoadSuperseded is reported to a listener replaced by a newer load
	// while the network request was still in flight
	ErrLoadSuperseded = errors.New("load superseded by a newer request")
)
