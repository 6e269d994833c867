package adapter

import (
	"github.com/thenexusengine/tne_adtalos/internal/bridge"
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/privacy"
	"github.com/thenexusengine/tne_adtalos/internal/registry"
)

// Load requests an ad for format. It returns immediately; the outcome is
// delivered through target. The ad object for the resolved placement is
// created on first use and reused afterwards, and target replaces the
// listener of any earlier load for the same placement. While a load is in
// flight a second load joins it instead of reloading the network object; the
// replaced listener is told its load failed.
func (a *Adapter) Load(format mediation.AdFormat, req mediation.Request, target bridge.Target) {
	log := a.log.With().
		Str("format", format.Label()).
		Str("placement_id", req.PlacementID).
		Str("request_id", req.RequestID).
		Logger()

	if !target.Valid() {
		log.Warn().Msg("Load ignored: no listener")
		return
	}
	if format == mediation.FormatNative || (!format.IsAdView() && !format.IsFullscreen()) {
		a.rejectLoad(format, target, mediation.ErrorCodeInvalidConfiguration, ErrUnsupportedFormat)
		return
	}
	if target.Format() != format {
		a.rejectLoad(format, target, mediation.ErrorCodeInvalidConfiguration, ErrListenerMismatch)
		return
	}

	placementID, err := a.placementFor(format, req)
	if err != nil {
		log.Warn().Err(err).Msg("Load rejected")
		a.rejectLoad(format, target, mediation.ErrorCodeInvalidConfiguration, err)
		return
	}

	flags := privacy.FromConsent(req.Consent)
	key := registry.Key{Format: format, PlacementID: placementID}

	log.Debug().
		Str("network_placement_id", placementID).
		Bool("testing", req.Testing).
		Msg("Loading ad")

	a.dispatcher.Post(func() {
		inst, created, err := a.registry.GetOrCreate(key, func() (*bridge.Instance, error) {
			return a.newInstance(key)
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create network ad object")
			a.rejectLoad(format, target, mediation.ErrorCodeUnspecified, err)
			return
		}

		// A load already in flight is joined: the network object serves one
		// request at a time and its outcome goes to the newest listener
		attempt, superseded, joined := inst.JoinOrBeginLoad(target)
		if joined {
			if superseded.Valid() && !superseded.SameListener(target) {
				a.rejectLoad(format, superseded, mediation.ErrorCodeUnspecified, ErrLoadSuperseded)
			}
			log.Info().Str("attempt_id", attempt).Msg("Load joined in-flight attempt")
			return
		}

		// Consent can change between requests; apply it right before every load
		a.sdk.SetPrivacy(flags)
		if view := inst.View(); view != nil {
			view.Load(placementID, false)
		} else {
			inst.Controller().Load()
		}

		if a.metrics != nil {
			a.metrics.RecordLoad(format)
		}
		log.Info().
			Str("attempt_id", attempt).
			Bool("created", created).
			Str("gdpr", flags.GDPR.String()).
			Str("coppa", flags.COPPA.String()).
			Str("ccpa", flags.CCPA.String()).
			Msg("Load dispatched")
	})
}

// Show displays a loaded ad. It reports AD_DISPLAY_FAILED through target when
// no ad object exists for the placement or its last load did not succeed.
func (a *Adapter) Show(format mediation.AdFormat, req mediation.Request, target bridge.Target) {
	log := a.log.With().
		Str("format", format.Label()).
		Str("placement_id", req.PlacementID).
		Str("request_id", req.RequestID).
		Logger()

	placementID, err := a.placementFor(format, req)
	if err != nil {
		log.Warn().Err(err).Msg("Show rejected")
		a.failShow(format, target)
		return
	}
	key := registry.Key{Format: format, PlacementID: placementID}

	a.dispatcher.Post(func() {
		inst, ok := a.registry.Get(key)
		if !ok {
			log.Warn().Msg("Show failed: ad not loaded")
			a.failShow(format, target)
			return
		}
		if !inst.Loaded() {
			log.Warn().Str("state", inst.State().String()).Msg("Show failed: ad not ready")
			a.failShow(format, target)
			return
		}

		if target.Valid() {
			inst.Retarget(target)
		}
		inst.Show()
		if a.metrics != nil {
			a.metrics.RecordShow(format, true)
		}
		log.Info().Str("attempt_id", inst.Attempt()).Msg("Show dispatched")
	})
}

func (a *Adapter) rejectLoad(format mediation.AdFormat, target bridge.Target, code mediation.ErrorCode, cause error) {
	if a.metrics != nil {
		a.metrics.RecordLoadRejected(format, code)
	}
	target.LoadFailed(mediation.NewAdapterError(code, cause))
}

func (a *Adapter) failShow(format mediation.AdFormat, target bridge.Target) {
	if a.metrics != nil {
		a.metrics.RecordShow(format, false)
	}
	target.DisplayFailed(mediation.ErrAdDisplayFailed())
}

// LoadAdViewAd loads a banner, leader or MREC ad
func (a *Adapter) LoadAdViewAd(req mediation.Request, format mediation.AdFormat, l mediation.AdViewListener) {
	target := bridge.ForAdView(format, l)
	if !format.IsAdView() {
		a.rejectLoad(format, target, mediation.ErrorCodeInvalidConfiguration, ErrUnsupportedFormat)
		return
	}
	a.Load(format, req, target)
}

// LoadInterstitialAd loads an interstitial ad
func (a *Adapter) LoadInterstitialAd(req mediation.Request, l mediation.InterstitialListener) {
	a.Load(mediation.FormatInterstitial, req, bridge.ForInterstitial(l))
}

// ShowInterstitialAd shows a loaded interstitial ad
func (a *Adapter) ShowInterstitialAd(req mediation.Request, l mediation.InterstitialListener) {
	a.Show(mediation.FormatInterstitial, req, bridge.ForInterstitial(l))
}

// LoadRewardedAd loads a rewarded ad
func (a *Adapter) LoadRewardedAd(req mediation.Request, l mediation.RewardedListener) {
	a.Load(mediation.FormatRewarded, req, bridge.ForRewarded(l))
}

// ShowRewardedAd shows a loaded rewarded ad
func (a *Adapter) ShowRewardedAd(req mediation.Request, l mediation.RewardedListener) {
	a.Show(mediation.FormatRewarded, req, bridge.ForRewarded(l))
}

// LoadAppOpenAd loads an app-open ad
func (a *Adapter) LoadAppOpenAd(req mediation.Request, l mediation.AppOpenListener) {
	a.Load(mediation.FormatAppOpen, req, bridge.ForAppOpen(l))
}

// ShowAppOpenAd shows a loaded app-open ad
func (a *Adapter) ShowAppOpenAd(req mediation.Request, l mediation.AppOpenListener) {
	a.Show(mediation.FormatAppOpen, req, bridge.ForAppOpen(l))
}

// LoadNativeAd always fails: the network has no native format
func (a *Adapter) LoadNativeAd(req mediation.Request, l mediation.NativeAdListener) {
	a.log.Warn().Str("placement_id", req.PlacementID).Msg("Native ads are not supported")
	if a.metrics != nil {
		a.metrics.RecordLoadRejected(mediation.FormatNative, mediation.ErrorCodeInvalidConfiguration)
	}
	if l != nil {
		l.OnNativeAdLoadFailed(mediation.NewAdapterError(mediation.ErrorCodeInvalidConfiguration, ErrUnsupportedFormat))
	}
}
