package mediation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestParseAdFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected AdFormat
	}{
		{"banner", FormatBanner},
		{" BANNER ", FormatBanner},
		{"leader", FormatLeader},
		{"mrec", FormatMediumRectangle},
		{"medium_rectangle", FormatMediumRectangle},
		{"medium-rectangle", FormatMediumRectangle},
		{"interstitial", FormatInterstitial},
		{"rewarded", FormatRewarded},
		{"app_open", FormatAppOpen},
		{"app-open", FormatAppOpen},
		{"appopen", FormatAppOpen},
		{"native", FormatNative},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAdFormat(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}

	if _, err := ParseAdFormat("video"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestAdFormat_Classification(t *testing.T) {
	tests := []struct {
		format     AdFormat
		label      string
		adView     bool
		fullscreen bool
		size       Size
	}{
		{FormatBanner, "banner", true, false, Size{320, 50}},
		{FormatLeader, "leader", true, false, Size{728, 90}},
		{FormatMediumRectangle, "mrec", true, false, Size{300, 250}},
		{FormatInterstitial, "interstitial", false, true, Size{}},
		{FormatRewarded, "rewarded", false, true, Size{}},
		{FormatAppOpen, "app_open", false, true, Size{}},
		{FormatNative, "native", false, false, Size{}},
		{AdFormat(99), "unknown", false, false, Size{}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if tt.format.Label() != tt.label || tt.format.String() != tt.label {
				t.Errorf("Expected label %q, got %q", tt.label, tt.format.Label())
			}
			if tt.format.IsAdView() != tt.adView {
				t.Errorf("IsAdView: expected %v", tt.adView)
			}
			if tt.format.IsFullscreen() != tt.fullscreen {
				t.Errorf("IsFullscreen: expected %v", tt.fullscreen)
			}
			size, ok := tt.format.Size()
			if ok != tt.adView || size != tt.size {
				t.Errorf("Size: expected %v/%v, got %v/%v", tt.size, tt.adView, size, ok)
			}
		})
	}
}

func TestAdapterError(t *testing.T) {
	cause := errors.New("http 204")
	err := NewAdapterError(ErrorCodeNoFill, cause)

	if err.Code != ErrorCodeNoFill || err.Message != "no fill" {
		t.Errorf("Unexpected error fields: %+v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected the cause to be unwrappable")
	}
	if !strings.Contains(err.Error(), "NO_FILL") || !strings.Contains(err.Error(), "http 204") {
		t.Errorf("Unexpected message %q", err.Error())
	}

	var target *AdapterError
	if !errors.As(fmt.Errorf("load: %w", err), &target) || target.Code != ErrorCodeNoFill {
		t.Error("Expected errors.As to find the adapter error")
	}

	unknown := NewAdapterError(ErrorCode("BOGUS"), nil)
	if unknown.Message != "unspecified error" {
		t.Errorf("Expected fallback message, got %q", unknown.Message)
	}
	if unknown.Error() != "[BOGUS] unspecified error" {
		t.Errorf("Unexpected message %q", unknown.Error())
	}

	display := ErrAdDisplayFailed()
	if display.Code != ErrorCodeAdDisplayFailed || display.Cause != nil {
		t.Errorf("Unexpected display error: %+v", display)
	}
}

func TestRecorder_RecordsPerPlacement(t *testing.T) {
	rec := NewRecorder(0)

	banner := rec.Listener(FormatBanner, "b-1")
	banner.OnAdViewAdLoaded(nil)
	banner.OnAdViewAdDisplayed()
	banner.OnAdViewAdClicked()
	banner.OnAdViewAdExpanded()
	banner.OnAdViewAdCollapsed()

	inter := rec.Listener(FormatInterstitial, "i-1")
	inter.OnInterstitialAdLoadFailed(NewAdapterError(ErrorCodeNoFill, nil))

	expected := []string{CallbackLoaded, CallbackDisplayed, CallbackClicked, CallbackExpanded, CallbackCollapsed}
	if got := rec.Names("b-1"); strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	callbacks := rec.Callbacks("i-1")
	if len(callbacks) != 1 {
		t.Fatalf("Expected 1 callback, got %d", len(callbacks))
	}
	if callbacks[0].Format != "interstitial" || callbacks[0].ErrorCode != ErrorCodeNoFill {
		t.Errorf("Unexpected callback %+v", callbacks[0])
	}
	if callbacks[0].Time.IsZero() {
		t.Error("Expected a timestamp")
	}

	if n := len(rec.Placements()); n != 2 {
		t.Errorf("Expected 2 placements, got %d", n)
	}

	rec.Reset()
	if len(rec.Placements()) != 0 || len(rec.Callbacks("b-1")) != 0 {
		t.Error("Expected Reset to clear history")
	}
}

func TestRecorder_FullscreenCallbacks(t *testing.T) {
	rec := NewRecorder(0)

	rw := rec.Listener(FormatRewarded, "rw-1")
	rw.OnRewardedAdLoaded()
	rw.OnRewardedAdDisplayed()
	rw.OnRewardedAdClicked()
	rw.OnRewardedAdHidden()
	rw.OnRewardedAdDisplayFailed(ErrAdDisplayFailed())

	ao := rec.Listener(FormatAppOpen, "ao-1")
	ao.OnAppOpenAdLoaded()
	ao.OnAppOpenAdHidden()

	native := rec.Listener(FormatNative, "n-1")
	native.OnNativeAdLoadFailed(NewAdapterError(ErrorCodeInvalidConfiguration, nil))

	if got := strings.Join(rec.Names("rw-1"), ","); got != "loaded,displayed,clicked,hidden,display_failed" {
		t.Errorf("Unexpected rewarded callbacks %s", got)
	}
	if got := strings.Join(rec.Names("ao-1"), ","); got != "loaded,hidden" {
		t.Errorf("Unexpected app-open callbacks %s", got)
	}
	if cb := rec.Callbacks("n-1"); len(cb) != 1 || cb[0].ErrorCode != ErrorCodeInvalidConfiguration {
		t.Errorf("Unexpected native callbacks %+v", cb)
	}
}

func TestRecorder_BoundedHistory(t *testing.T) {
	rec := NewRecorder(3)
	l := rec.Listener(FormatInterstitial, "i-1")

	l.OnInterstitialAdLoaded()
	l.OnInterstitialAdDisplayed()
	l.OnInterstitialAdClicked()
	l.OnInterstitialAdHidden()

	got := rec.Names("i-1")
	expected := []string{CallbackDisplayed, CallbackClicked, CallbackHidden}
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected the oldest entry to be evicted, got %v", got)
	}
}

func TestRecorder_ConcurrentListeners(t *testing.T) {
	rec := NewRecorder(1000)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := rec.Listener(FormatBanner, "b-1")
			for j := 0; j < 50; j++ {
				l.OnAdViewAdClicked()
			}
		}()
	}
	wg.Wait()

	if n := len(rec.Callbacks("b-1")); n != 400 {
		t.Errorf("Expected 400 callbacks, got %d", n)
	}
}

func TestBool(t *testing.T) {
	if v := Bool(true); v == nil || !*v {
		t.Error("Expected pointer to true")
	}
	if v := Bool(false); v == nil || *v {
		t.Error("Expected pointer to false")
	}
}
