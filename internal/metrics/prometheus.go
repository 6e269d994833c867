// Package metrics provides Prometheus metrics for the Adtalos bridge
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thenexusengine/tne_adtalos/internal/bridge"
	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
)

// Load and show results
const (
	ResultDispatched    = "dispatched"
	ResultRejected      = "rejected"
	ResultShown         = "shown"
	ResultDisplayFailed = "display_failed"
	ResultSuccess       = "success"
	ResultError         = "error"
	ResultWritten       = "written"
	ResultDropped       = "dropped"
	ResultFailed        = "failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	AuthFailures     prometheus.Counter
	RateLimited      prometheus.Counter

	// Lifecycle metrics
	LoadsTotal      *prometheus.CounterVec
	LoadRejections  *prometheus.CounterVec
	LoadOutcomes    *prometheus.CounterVec
	ShowsTotal      *prometheus.CounterVec
	ActiveInstances *prometheus.GaugeVec
	InitTotal       *prometheus.CounterVec
	InitDuration    prometheus.Histogram
	BridgeEvents    *prometheus.CounterVec
	BuildInfo       *prometheus.GaugeVec

	// Placement override metrics
	PlacementRefreshes *prometheus.CounterVec
	PlacementOverrides prometheus.Gauge

	// Journal metrics
	JournalEvents *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg registers with the process-wide default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = config.MetricsNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		// Request metrics
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		AuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Control plane requests rejected for a missing or invalid API key",
			},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Ad dispatch requests rejected by the per-client rate limit",
			},
		),

		// Lifecycle metrics
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Load requests by format and whether they reached the network",
			},
			[]string{"format", "result"},
		),
		LoadRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_rejections_total",
				Help:      "Loads refused before reaching the network, by error code",
			},
			[]string{"format", "code"},
		),
		LoadOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_outcomes_total",
				Help:      "Terminal load outcomes forwarded to the framework",
			},
			[]string{"format", "outcome", "code"},
		),
		ShowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shows_total",
				Help:      "Show requests by format and result",
			},
			[]string{"format", "result"},
		),
		ActiveInstances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_instances",
				Help:      "Live network ad objects held by the registry",
			},
			[]string{"format"},
		),
		InitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "initializations_total",
				Help:      "Initialize calls by reported status",
			},
			[]string{"status"},
		),
		InitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "initialize_duration_seconds",
				Help:      "Time spent in Initialize",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		BridgeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_events_total",
				Help:      "Network SDK events by handling outcome",
			},
			[]string{"format", "event", "outcome"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Network SDK and adapter versions",
			},
			[]string{"sdk_version", "adapter_version"},
		),

		// Placement override metrics
		PlacementRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placement_refreshes_total",
				Help:      "Placement override refreshes from Redis",
			},
			[]string{"result"},
		),
		PlacementOverrides: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "placement_overrides",
				Help:      "Number of placement overrides currently loaded",
			},
		),

		// Journal metrics
		JournalEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_events_total",
				Help:      "Lifecycle events handled by the journal",
			},
			[]string{"result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}

	// Register all metrics
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.AuthFailures,
		m.RateLimited,
		m.LoadsTotal,
		m.LoadRejections,
		m.LoadOutcomes,
		m.ShowsTotal,
		m.ActiveInstances,
		m.InitTotal,
		m.InitDuration,
		m.BridgeEvents,
		m.BuildInfo,
		m.PlacementRefreshes,
		m.PlacementOverrides,
		m.JournalEvents,
		m.BreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a handler serving the given gatherer
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Middleware returns HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RecordLoad records a load request that was dispatched to the network
func (m *Metrics) RecordLoad(format mediation.AdFormat) {
	m.LoadsTotal.WithLabelValues(format.Label(), ResultDispatched).Inc()
}

// RecordLoadRejected records a load refused before reaching the network
func (m *Metrics) RecordLoadRejected(format mediation.AdFormat, code mediation.ErrorCode) {
	m.LoadsTotal.WithLabelValues(format.Label(), ResultRejected).Inc()
	m.LoadRejections.WithLabelValues(format.Label(), string(code)).Inc()
}

// RecordShow records a show request and whether it reached the network
func (m *Metrics) RecordShow(format mediation.AdFormat, shown bool) {
	result := ResultShown
	if !shown {
		result = ResultDisplayFailed
	}
	m.ShowsTotal.WithLabelValues(format.Label(), result).Inc()
}

// RecordInitialize records an Initialize call
func (m *Metrics) RecordInitialize(status mediation.InitializationStatus, duration time.Duration) {
	m.InitTotal.WithLabelValues(string(status)).Inc()
	m.InitDuration.Observe(duration.Seconds())
}

// SetBuildInfo publishes the SDK and adapter versions
func (m *Metrics) SetBuildInfo(sdkVersion, adapterVersion string) {
	m.BuildInfo.Reset()
	m.BuildInfo.WithLabelValues(sdkVersion, adapterVersion).Set(1)
}

// OnBridgeEvent counts a handled network event.
// Implements bridge.Observer.
func (m *Metrics) OnBridgeEvent(ev bridge.Event) {
	format := ev.Format.Label()
	m.BridgeEvents.WithLabelValues(format, string(ev.Kind), string(ev.Outcome)).Inc()

	if ev.Outcome != bridge.OutcomeForwarded {
		return
	}
	switch ev.Kind {
	case bridge.EventLoaded:
		m.LoadOutcomes.WithLabelValues(format, mediation.CallbackLoaded, "").Inc()
	case bridge.EventFailedToLoad:
		m.LoadOutcomes.WithLabelValues(format, mediation.CallbackLoadFailed, string(ev.ErrorCode)).Inc()
	}
}

// InstanceCreated implements registry.Observer
func (m *Metrics) InstanceCreated(format mediation.AdFormat) {
	m.ActiveInstances.WithLabelValues(format.Label()).Inc()
}

// InstanceRemoved implements registry.Observer
func (m *Metrics) InstanceRemoved(format mediation.AdFormat) {
	m.ActiveInstances.WithLabelValues(format.Label()).Dec()
}

// RecordPlacementRefresh records a placement override refresh
func (m *Metrics) RecordPlacementRefresh(err error, overrides int) {
	if err != nil {
		m.PlacementRefreshes.WithLabelValues(ResultError).Inc()
		return
	}
	m.PlacementRefreshes.WithLabelValues(ResultSuccess).Inc()
	m.PlacementOverrides.Set(float64(overrides))
}

// RecordJournal counts journal events by result (written, dropped, failed)
func (m *Metrics) RecordJournal(result string, n int) {
	if n <= 0 {
		return
	}
	m.JournalEvents.WithLabelValues(result).Add(float64(n))
}

// IncAuthFailures implements middleware.AuthMetrics
func (m *Metrics) IncAuthFailures() {
	m.AuthFailures.Inc()
}

// IncRateLimitRejected implements middleware.RateLimitMetrics
func (m *Metrics) IncRateLimitRejected() {
	m.RateLimited.Inc()
}

// SetBreakerState sets a circuit breaker state metric
func (m *Metrics) SetBreakerState(name, state string) {
	var value float64
	switch state {
	case "closed":
		value = 0
	case "open":
		value = 1
	case "half-open":
		value = 2
	}
	m.BreakerState.WithLabelValues(name).Set(value)
}
