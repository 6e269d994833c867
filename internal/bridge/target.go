package bridge

import (
	"reflect"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
)

// TargetKind selects which mediation listener a Target carries
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetAdView
	TargetInterstitial
	TargetRewarded
	TargetAppOpen
)

func (k TargetKind) String() string {
	switch k {
	case TargetAdView:
		return "ad_view"
	case TargetInterstitial:
		return "interstitial"
	case TargetRewarded:
		return "rewarded"
	case TargetAppOpen:
		return "app_open"
	default:
		return "none"
	}
}

// Target is the mediation-side callback destination for one load attempt.
// Exactly one listener field is set, matching kind. The zero Target drops
// every callback.
type Target struct {
	kind   TargetKind
	format mediation.AdFormat

	adView       mediation.AdViewListener
	interstitial mediation.InterstitialListener
	rewarded     mediation.RewardedListener
	appOpen      mediation.AppOpenListener
}

// ForAdView targets a banner, leader or MREC listener
func ForAdView(format mediation.AdFormat, l mediation.AdViewListener) Target {
	if l == nil {
		return Target{}
	}
	return Target{kind: TargetAdView, format: format, adView: l}
}

// ForInterstitial targets an interstitial listener
func ForInterstitial(l mediation.InterstitialListener) Target {
	if l == nil {
		return Target{}
	}
	return Target{kind: TargetInterstitial, format: mediation.FormatInterstitial, interstitial: l}
}

// ForRewarded targets a rewarded listener
func ForRewarded(l mediation.RewardedListener) Target {
	if l == nil {
		return Target{}
	}
	return Target{kind: TargetRewarded, format: mediation.FormatRewarded, rewarded: l}
}

// ForAppOpen targets an app-open listener
func ForAppOpen(l mediation.AppOpenListener) Target {
	if l == nil {
		return Target{}
	}
	return Target{kind: TargetAppOpen, format: mediation.FormatAppOpen, appOpen: l}
}

// Kind returns the variant tag
func (t Target) Kind() TargetKind { return t.kind }

// Format returns the ad format the target listens for
func (t Target) Format() mediation.AdFormat { return t.format }

// Valid reports whether the target carries a listener
func (t Target) Valid() bool { return t.kind != TargetNone }

// SameListener reports whether both targets deliver to the same listener value
func (t Target) SameListener(o Target) bool {
	if t.kind != o.kind {
		return false
	}
	return sameValue(t.listener(), o.listener())
}

func (t Target) listener() any {
	switch t.kind {
	case TargetAdView:
		return t.adView
	case TargetInterstitial:
		return t.interstitial
	case TargetRewarded:
		return t.rewarded
	case TargetAppOpen:
		return t.appOpen
	default:
		return nil
	}
}

// sameValue compares interface values without panicking on uncomparable types
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Loaded forwards a successful load. view is only passed to ad view listeners.
func (t Target) Loaded(view mediation.AdView) {
	switch t.kind {
	case TargetAdView:
		t.adView.OnAdViewAdLoaded(view)
	case TargetInterstitial:
		t.interstitial.OnInterstitialAdLoaded()
	case TargetRewarded:
		t.rewarded.OnRewardedAdLoaded()
	case TargetAppOpen:
		t.appOpen.OnAppOpenAdLoaded()
	}
}

// LoadFailed forwards a load failure
func (t Target) LoadFailed(err *mediation.AdapterError) {
	switch t.kind {
	case TargetAdView:
		t.adView.OnAdViewAdLoadFailed(err)
	case TargetInterstitial:
		t.interstitial.OnInterstitialAdLoadFailed(err)
	case TargetRewarded:
		t.rewarded.OnRewardedAdLoadFailed(err)
	case TargetAppOpen:
		t.appOpen.OnAppOpenAdLoadFailed(err)
	}
}

// Displayed forwards an impression
func (t Target) Displayed() {
	switch t.kind {
	case TargetAdView:
		t.adView.OnAdViewAdDisplayed()
	case TargetInterstitial:
		t.interstitial.OnInterstitialAdDisplayed()
	case TargetRewarded:
		t.rewarded.OnRewardedAdDisplayed()
	case TargetAppOpen:
		t.appOpen.OnAppOpenAdDisplayed()
	}
}

// DisplayFailed forwards a display failure
func (t Target) DisplayFailed(err *mediation.AdapterError) {
	switch t.kind {
	case TargetAdView:
		t.adView.OnAdViewAdDisplayFailed(err)
	case TargetInterstitial:
		t.interstitial.OnInterstitialAdDisplayFailed(err)
	case TargetRewarded:
		t.rewarded.OnRewardedAdDisplayFailed(err)
	case TargetAppOpen:
		t.appOpen.OnAppOpenAdDisplayFailed(err)
	}
}

// Clicked forwards a click
func (t Target) Clicked() {
	switch t.kind {
	case TargetAdView:
		t.adView.OnAdViewAdClicked()
	case TargetInterstitial:
		t.interstitial.OnInterstitialAdClicked()
	case TargetRewarded:
		t.rewarded.OnRewardedAdClicked()
	case TargetAppOpen:
		t.appOpen.OnAppOpenAdClicked()
	}
}

// Opened forwards an expansion. Full-screen listeners have no such callback;
// it reports false for them.
func (t Target) Opened() bool {
	if t.kind != TargetAdView {
		return false
	}
	t.adView.OnAdViewAdExpanded()
	return true
}

// Closed forwards a collapse for views and a hide for full-screen ads
func (t Target) Closed() {
	switch t.kind {
	case TargetAdView:
		t.adView.OnAdViewAdCollapsed()
	case TargetInterstitial:
		t.interstitial.OnInterstitialAdHidden()
	case TargetRewarded:
		t.rewarded.OnRewardedAdHidden()
	case TargetAppOpen:
		t.appOpen.OnAppOpenAdHidden()
	}
}

// closedCallback names the callback Closed produces
func (t Target) closedCallback() string {
	if t.kind == TargetAdView {
		return mediation.CallbackCollapsed
	}
	return mediation.CallbackHidden
}
