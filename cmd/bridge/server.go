package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thenexusengine/tne_adtalos/internal/adapter"
	"github.com/thenexusengine/tne_adtalos/internal/bridge"
	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/endpoints"
	"github.com/thenexusengine/tne_adtalos/internal/journal"
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/metrics"
	"github.com/thenexusengine/tne_adtalos/internal/middleware"
	"github.com/thenexusengine/tne_adtalos/internal/placements"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
	"github.com/thenexusengine/tne_adtalos/internal/sdk/demo"
	"github.com/thenexusengine/tne_adtalos/internal/storage"
	"github.com/thenexusengine/tne_adtalos/internal/uithread"
	"github.com/thenexusengine/tne_adtalos/pkg/breaker"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
	"github.com/thenexusengine/tne_adtalos/pkg/redis"
)

// Server runs the adapter behind the HTTP control plane
type Server struct {
	config     *ServerConfig
	httpServer *http.Server
	handler    http.Handler

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	redisClient *redis.Client
	resolver    *placements.Resolver

	db         *sql.DB
	eventStore *storage.EventStore
	journal    *journal.Journal

	network  sdk.SDK
	loop     *uithread.Loop
	adapter  *adapter.Adapter
	recorder *mediation.Recorder

	rateLimiter *middleware.RateLimiter

	// cancels the placement refresh and watch goroutines
	cancel context.CancelFunc
}

// NewServer creates a bridge server. Redis and Postgres are optional:
// failures to reach them are logged and the server runs without them.
func NewServer(cfg *ServerConfig) (*Server, error) {
	s := &Server{
		config: cfg,
	}

	if err := s.initialize(); err != nil {
		s.cleanup()
		return nil, err
	}

	return s, nil
}

// initialize sets up all server components
func (s *Server) initialize() error {
	log := logger.Log

	log.Info().
		Str("port", s.config.Port).
		Str("sdk_mode", s.config.SDKMode).
		Bool("redis", s.config.RedisURL != "").
		Bool("database", s.config.Database.Enabled()).
		Msg("Initializing Adtalos bridge")

	s.initMetrics()

	if err := s.initRedis(); err != nil {
		log.Warn().Err(err).Msg("Redis initialization failed, placement overrides disabled")
	}

	if err := s.initDatabase(); err != nil {
		log.Warn().Err(err).Msg("Database initialization failed, event journal disabled")
	}

	if err := s.initAdapter(); err != nil {
		return err
	}

	s.initHandlers()
	return nil
}

func (s *Server) initMetrics() {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metrics.NewMetrics(config.MetricsNamespace, s.registry)
	logger.Log.Info().Msg("Prometheus metrics enabled")
}

// initRedis connects to Redis and starts the placement override resolver
func (s *Server) initRedis() error {
	log := logger.Log

	if s.config.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, placement overrides disabled")
		return nil
	}

	client, err := redis.New(s.config.RedisURL)
	if err != nil {
		return err
	}
	s.redisClient = client

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.resolver = placements.New(client, s.config.PlacementsRefresh, s.metrics)
	if err := s.resolver.Start(ctx); err != nil {
		// the refresh loop keeps retrying
		log.Warn().Err(err).Msg("Initial placement override load failed")
	}
	if err := s.resolver.Watch(ctx, client, config.RedisPlacementsChannel); err != nil {
		log.Warn().Err(err).Msg("Placement change notices unavailable, relying on periodic refresh")
	}

	log.Info().
		Dur("refresh", s.config.PlacementsRefresh).
		Int("overrides", s.resolver.Stats().Overrides).
		Msg("Placement overrides enabled")
	return nil
}

// initDatabase connects to Postgres and starts the event journal
func (s *Server) initDatabase() error {
	log := logger.Log

	if !s.config.Database.Enabled() {
		log.Info().Msg("DB_HOST not set, event journal disabled")
		return nil
	}

	db, err := storage.NewDBConnection(s.config.Database.ToStorage())
	if err != nil {
		return err
	}
	s.db = db
	s.eventStore = storage.NewEventStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.eventStore.CreateTables(ctx); err != nil {
		return err
	}

	cbConfig := breaker.DefaultConfig("journal")
	cbConfig.OnStateChange = func(name string, from, to breaker.State) {
		s.metrics.SetBreakerState(name, string(to))
		log.Warn().
			Str("breaker", name).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Journal circuit breaker state changed")
	}

	jcfg := journal.DefaultConfig()
	jcfg.BufferSize = s.config.JournalBufferSize
	s.journal = journal.New(s.eventStore, jcfg, breaker.New(cbConfig), s.metrics)

	log.Info().Int("buffer_size", jcfg.BufferSize).Msg("Event journal enabled")
	return nil
}

// initAdapter builds the network SDK and the adapter around it
func (s *Server) initAdapter() error {
	log := logger.Log

	switch s.config.SDKMode {
	case SDKModeDemo:
		dcfg := demo.DefaultConfig()
		dcfg.FillRate = s.config.DemoFillRate
		dcfg.Latency = s.config.DemoLatency
		s.network = demo.New(dcfg)
	default:
		return errors.New("unsupported sdk mode: " + s.config.SDKMode)
	}

	observers := bridge.Observers{s.metrics}
	if s.journal != nil {
		observers = append(observers, s.journal)
	}

	s.loop = uithread.NewLoop()
	s.recorder = mediation.NewRecorder(config.DefaultCallbackHistory)

	opts := adapter.Options{
		Dispatcher: s.loop,
		Observer:   observers,
		Metrics:    s.metrics,
	}
	if s.resolver != nil {
		opts.Resolver = s.resolver
	}
	s.adapter = adapter.New(s.network, opts)
	s.adapter.Registry().SetObserver(s.metrics)
	s.metrics.SetBuildInfo(s.adapter.SDKVersion(), s.adapter.AdapterVersion())

	if s.config.AutoInit {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		params := mediation.InitParams{AppID: s.config.AppID, Testing: s.config.TestMode}
		status, err := s.adapter.Initialize(ctx, params, nil)
		if err != nil {
			// reported through /v1/version; the control plane stays up
			log.Error().Err(err).Str("status", string(status)).Msg("Network SDK initialization failed")
		}
	}

	log.Info().
		Str("sdk_version", s.adapter.SDKVersion()).
		Str("adapter_version", s.adapter.AdapterVersion()).
		Msg("Adapter ready")
	return nil
}

// initHandlers registers routes and builds the HTTP server
func (s *Server) initHandlers() {
	control := endpoints.NewControlHandler(s.adapter, s.recorder)
	control.AddStats("dispatcher", func() interface{} {
		return map[string]int{"pending": s.loop.Pending()}
	})
	if s.resolver != nil {
		control.AddStats("placements", func() interface{} { return s.resolver.Stats() })
	}
	if s.journal != nil {
		control.AddStats("journal", func() interface{} { return s.journal.Stats() })
	}
	if s.redisClient != nil {
		control.AddStats("redis_pool", func() interface{} { return s.redisClient.PoolStats() })
	}

	var events endpoints.EventQuerier
	if s.eventStore != nil {
		events = s.eventStore
	}

	mux := http.NewServeMux()
	control.Register(mux)
	mux.Handle("/v1/events", endpoints.NewEventsHandler(events))
	mux.Handle("/health", endpoints.HealthHandler(s.adapter.AdapterVersion()))
	mux.Handle("/health/ready", endpoints.ReadyHandler(2*time.Second, s.readinessChecks()...))
	mux.Handle("/metrics", metrics.HandlerFor(s.registry))

	s.handler = s.buildHandler(mux)

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.handler,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
}

func (s *Server) readinessChecks() []endpoints.Check {
	checks := []endpoints.Check{
		{Name: "sdk", Fn: func(context.Context) error {
			status, err := s.adapter.InitializationStatus()
			if status == mediation.StatusInitializedFailure {
				return err
			}
			return nil
		}},
		{Name: "redis"},
		{Name: "database"},
	}
	if s.redisClient != nil {
		checks[1].Fn = s.redisClient.Ping
	}
	if s.db != nil {
		checks[2].Fn = s.db.PingContext
	}
	return checks
}

// buildHandler builds the middleware chain
func (s *Server) buildHandler(mux *http.ServeMux) http.Handler {
	authConfig := middleware.DefaultAuthConfig()
	authConfig.Enabled = s.config.AuthEnabled
	authConfig.APIKeys = s.config.APIKeys
	auth := middleware.NewAuth(authConfig)
	auth.SetMetrics(s.metrics)

	sizeConfig := middleware.DefaultSizeLimitConfig()
	sizeConfig.MaxBodySize = s.config.MaxRequestSize
	sizeLimiter := middleware.NewSizeLimiter(sizeConfig)

	rlConfig := middleware.DefaultRateLimitConfig()
	rlConfig.Enabled = s.config.RateLimitEnabled
	rlConfig.RequestsPerSecond = s.config.RateLimitRPS
	rlConfig.BurstSize = s.config.RateLimitBurst
	rlConfig.TrustedProxies = middleware.ParseTrustedProxies(s.config.TrustedProxies)
	s.rateLimiter = middleware.NewRateLimiter(rlConfig)
	s.rateLimiter.SetMetrics(s.metrics)

	gzip := middleware.NewGzip(middleware.DefaultGzipConfig())

	logger.Log.Info().
		Bool("auth_enabled", auth.IsEnabled()).
		Bool("rate_limit_enabled", rlConfig.Enabled).
		Int("rate_limit_rps", rlConfig.RequestsPerSecond).
		Int64("max_body_size", sizeConfig.MaxBodySize).
		Msg("Middleware chain built")

	// Request log -> Size limit -> Auth -> Rate limit -> Metrics -> Gzip -> Handler
	handler := http.Handler(mux)
	handler = gzip.Middleware(handler)
	handler = s.metrics.Middleware(handler)
	handler = s.rateLimiter.Middleware(handler)
	handler = auth.Middleware(handler)
	handler = sizeLimiter.Middleware(handler)
	handler = middleware.RequestLog(handler)

	return handler
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, releases every ad object, then drains
// the dispatcher and the journal before closing connections
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Log
	log.Info().Msg("Starting graceful shutdown")

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.adapter != nil {
		s.adapter.Destroy()
	}
	if s.loop != nil {
		s.loop.Close()
	}
	if w, ok := s.network.(interface{ Wait() }); ok {
		w.Wait()
	}

	s.cleanup()

	if httpErr != nil {
		return httpErr
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}

// cleanup releases the journal and backing connections. It is safe on a
// partially initialized server.
func (s *Server) cleanup() {
	log := logger.Log

	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Error flushing event journal")
		} else {
			log.Info().Interface("stats", s.journal.Stats()).Msg("Event journal flushed")
		}
		s.journal = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.resolver != nil {
		s.resolver.Stop()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing Redis client")
		}
		s.redisClient = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing database")
		}
		s.db = nil
	}
}
