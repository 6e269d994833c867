// Package mediation models the mediation framework's side of the adapter
// contract: ad formats, requests, listener interfaces and error taxonomy.
package mediation

import (
	"fmt"
	"strings"
)

// AdFormat is the shape/behavior category of an ad unit
type AdFormat int

const (
	FormatBanner AdFormat = iota + 1
	FormatLeader
	FormatMediumRectangle
	FormatInterstitial
	FormatRewarded
	FormatAppOpen
	FormatNative
)

// Size is an ad format geometry
type Size struct {
	Width  int
	Height int
}

var formatLabels = map[AdFormat]string{
	FormatBanner:          "banner",
	FormatLeader:          "leader",
	FormatMediumRectangle: "mrec",
	FormatInterstitial:    "interstitial",
	FormatRewarded:        "rewarded",
	FormatAppOpen:         "app_open",
	FormatNative:          "native",
}

var formatSizes = map[AdFormat]Size{
	FormatBanner:          {Width: 320, Height: 50},
	FormatLeader:          {Width: 728, Height: 90},
	FormatMediumRectangle: {Width: 300, Height: 250},
}

// Label returns the lowercase label used in logs, metrics and the control plane
func (f AdFormat) Label() string {
	if label, ok := formatLabels[f]; ok {
		return label
	}
	return "unknown"
}

func (f AdFormat) String() string {
	return f.Label()
}

// Size returns the geometry of view formats; full-screen formats have none
func (f AdFormat) Size() (Size, bool) {
	size, ok := formatSizes[f]
	return size, ok
}

// IsAdView reports whether the format renders inline in a view
func (f AdFormat) IsAdView() bool {
	_, ok := formatSizes[f]
	return ok
}

// IsFullscreen reports whether the format is served by a full-screen controller
func (f AdFormat) IsFullscreen() bool {
	return f == FormatInterstitial || f == FormatRewarded || f == FormatAppOpen
}

// ParseAdFormat parses a format label (case-insensitive)
func ParseAdFormat(s string) (AdFormat, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	switch needle {
	case "medium_rectangle", "medium-rectangle":
		return FormatMediumRectangle, nil
	case "app-open", "appopen":
		return FormatAppOpen, nil
	}
	for format, label := range formatLabels {
		if label == needle {
			return format, nil
		}
	}
	return 0, fmt.Errorf("unknown ad format %q", s)
}
