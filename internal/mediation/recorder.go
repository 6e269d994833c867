package mediation

import (
	"sync"
	"time"
)

// Callback names recorded by Recorder
const (
	CallbackLoaded        = "loaded"
	CallbackLoadFailed    = "load_failed"
	CallbackDisplayed     = "displayed"
	CallbackDisplayFailed = "display_failed"
	CallbackClicked       = "clicked"
	CallbackExpanded      = "expanded"
	CallbackCollapsed     = "collapsed"
	CallbackHidden        = "hidden"
)

// Callback is one framework callback observed by a Recorder
type Callback struct {
	Format      string    `json:"format"`
	PlacementID string    `json:"placement_id"`
	Name        string    `json:"name"`
	ErrorCode   ErrorCode `json:"error_code,omitempty"`
	Time        time.Time `json:"time"`
}

// Recorder keeps a bounded per-placement history of framework callbacks.
// It stands in for the mediation framework when the bridge runs as a service.
type Recorder struct {
	mu      sync.RWMutex
	limit   int
	history map[string][]Callback
}

// NewRecorder creates a recorder keeping at most limit callbacks per placement
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 64
	}
	return &Recorder{
		limit:   limit,
		history: make(map[string][]Callback),
	}
}

// Listener returns a listener that records into r. The returned value
// implements every format's listener interface.
func (r *Recorder) Listener(format AdFormat, placementID string) *RecordingListener {
	return &RecordingListener{rec: r, format: format, placementID: placementID}
}

// Callbacks returns the recorded callbacks for a placement, oldest first
func (r *Recorder) Callbacks(placementID string) []Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Callback, len(r.history[placementID]))
	copy(out, r.history[placementID])
	return out
}

// Names returns only the callback names for a placement
func (r *Recorder) Names(placementID string) []string {
	callbacks := r.Callbacks(placementID)
	names := make([]string, len(callbacks))
	for i, cb := range callbacks {
		names[i] = cb.Name
	}
	return names
}

// Placements returns every placement with recorded callbacks
func (r *Recorder) Placements() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.history))
	for id := range r.history {
		ids = append(ids, id)
	}
	return ids
}

// Reset drops all history
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = make(map[string][]Callback)
}

func (r *Recorder) record(format AdFormat, placementID, name string, err *AdapterError) {
	cb := Callback{
		Format:      format.Label(),
		PlacementID: placementID,
		Name:        name,
		Time:        time.Now(),
	}
	if err != nil {
		cb.ErrorCode = err.Code
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append(r.history[placementID], cb)
	if len(entries) > r.limit {
		entries = entries[len(entries)-r.limit:]
	}
	r.history[placementID] = entries
}

// RecordingListener records callbacks for one format and placement
type RecordingListener struct {
	rec         *Recorder
	format      AdFormat
	placementID string
}

func (l *RecordingListener) add(name string, err *AdapterError) {
	l.rec.record(l.format, l.placementID, name, err)
}

func (l *RecordingListener) OnAdViewAdLoaded(AdView) {
	l.add(CallbackLoaded, nil)
}

func (l *RecordingListener) OnAdViewAdLoadFailed(err *AdapterError) {
	l.add(CallbackLoadFailed, err)
}

func (l *RecordingListener) OnAdViewAdDisplayed() {
	l.add(CallbackDisplayed, nil)
}

func (l *RecordingListener) OnAdViewAdDisplayFailed(err *AdapterError) {
	l.add(CallbackDisplayFailed, err)
}

func (l *RecordingListener) OnAdViewAdClicked() {
	l.add(CallbackClicked, nil)
}

func (l *RecordingListener) OnAdViewAdExpanded() {
	l.add(CallbackExpanded, nil)
}

func (l *RecordingListener) OnAdViewAdCollapsed() {
	l.add(CallbackCollapsed, nil)
}

func (l *RecordingListener) OnInterstitialAdLoaded() {
	l.add(CallbackLoaded, nil)
}

func (l *RecordingListener) OnInterstitialAdLoadFailed(err *AdapterError) {
	l.add(CallbackLoadFailed, err)
}

func (l *RecordingListener) OnInterstitialAdDisplayed() {
	l.add(CallbackDisplayed, nil)
}

func (l *RecordingListener) OnInterstitialAdDisplayFailed(err *AdapterError) {
	l.add(CallbackDisplayFailed, err)
}

func (l *RecordingListener) OnInterstitialAdClicked() {
	l.add(CallbackClicked, nil)
}

func (l *RecordingListener) OnInterstitialAdHidden() {
	l.add(CallbackHidden, nil)
}

func (l *RecordingListener) OnRewardedAdLoaded() {
	l.add(CallbackLoaded, nil)
}

func (l *RecordingListener) OnRewardedAdLoadFailed(err *AdapterError) {
	l.add(CallbackLoadFailed, err)
}

func (l *RecordingListener) OnRewardedAdDisplayed() {
	l.add(CallbackDisplayed, nil)
}

func (l *RecordingListener) OnRewardedAdDisplayFailed(err *AdapterError) {
	l.add(CallbackDisplayFailed, err)
}

func (l *RecordingListener) OnRewardedAdClicked() {
	l.add(CallbackClicked, nil)
}

func (l *RecordingListener) OnRewardedAdHidden() {
	l.add(CallbackHidden, nil)
}

func (l *RecordingListener) OnAppOpenAdLoaded() {
	l.add(CallbackLoaded, nil)
}

func (l *RecordingListener) OnAppOpenAdLoadFailed(err *AdapterError) {
	l.add(CallbackLoadFailed, err)
}

func (l *RecordingListener) OnAppOpenAdDisplayed() {
	l.add(CallbackDisplayed, nil)
}

func (l *RecordingListener) OnAppOpenAdDisplayFailed(err *AdapterError) {
	l.add(CallbackDisplayFailed, err)
}

func (l *RecordingListener) OnAppOpenAdClicked() {
	l.add(CallbackClicked, nil)
}

func (l *RecordingListener) OnAppOpenAdHidden() {
	l.add(CallbackHidden, nil)
}

func (l *RecordingListener) OnNativeAdLoaded() {
	l.add(CallbackLoaded, nil)
}

func (l *RecordingListener) OnNativeAdLoadFailed(err *AdapterError) {
	l.add(CallbackLoadFailed, err)
}

var (
	_ AdViewListener       = (*RecordingListener)(nil)
	_ InterstitialListener = (*RecordingListener)(nil)
	_ RewardedListener     = (*RecordingListener)(nil)
	_ AppOpenListener      = (*RecordingListener)(nil)
	_ NativeAdListener     = (*RecordingListener)(nil)
)
