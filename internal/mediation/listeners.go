package mediation

// InitializationStatus is reported once initialization completes
type InitializationStatus string

const (
	StatusNotInitialized     InitializationStatus = "NOT_INITIALIZED"
	StatusInitializing       InitializationStatus = "INITIALIZING"
	StatusDoesNotApply       InitializationStatus = "DOES_NOT_APPLY"
	StatusInitializedFailure InitializationStatus = "INITIALIZED_FAILURE"
)

// OnCompletion is the initialization completion notification
type OnCompletion func(status InitializationStatus, err error)

// AdView is the render surface handed back to the framework on load
type AdView any

// AdViewListener receives callbacks for banner, leader and MREC ads
type AdViewListener interface {
	OnAdViewAdLoaded(view AdView)
	OnAdViewAdLoadFailed(err *AdapterError)
	OnAdViewAdDisplayed()
	OnAdViewAdDisplayFailed(err *AdapterError)
	OnAdViewAdClicked()
	OnAdViewAdExpanded()
	OnAdViewAdCollapsed()
}

// InterstitialListener receives callbacks for interstitial ads
type InterstitialListener interface {
	OnInterstitialAdLoaded()
	OnInterstitialAdLoadFailed(err *AdapterError)
	OnInterstitialAdDisplayed()
	OnInterstitialAdDisplayFailed(err *AdapterError)
	OnInterstitialAdClicked()
	OnInterstitialAdHidden()
}

// RewardedListener receives callbacks for rewarded ads
type RewardedListener interface {
	OnRewardedAdLoaded()
	OnRewardedAdLoadFailed(err *AdapterError)
	OnRewardedAdDisplayed()
	OnRewardedAdDisplayFailed(err *AdapterError)
	OnRewardedAdClicked()
	OnRewardedAdHidden()
}

// AppOpenListener receives callbacks for app-open ads
type AppOpenListener interface {
	OnAppOpenAdLoaded()
	OnAppOpenAdLoadFailed(err *AdapterError)
	OnAppOpenAdDisplayed()
	OnAppOpenAdDisplayFailed(err *AdapterError)
	OnAppOpenAdClicked()
	OnAppOpenAdHidden()
}

// NativeAdListener receives callbacks for native ads
type NativeAdListener interface {
	OnNativeAdLoaded()
	OnNativeAdLoadFailed(err *AdapterError)
}
