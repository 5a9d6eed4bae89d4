package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"

	"github.com/2beens/mergington/internal/activities"
	"github.com/2beens/mergington/internal/auth"
	"github.com/2beens/mergington/internal/config"
	"github.com/2beens/mergington/internal/login"
	"github.com/2beens/mergington/internal/middleware"
	"github.com/2beens/mergington/internal/misc"
	"github.com/2beens/mergington/internal/telemetry/metrics"
	"github.com/2beens/mergington/internal/telemetry/tracing"
	"github.com/2beens/mergington/pkg"
)

const (
	sessionsCleanupInterval = time.Hour
	sessionsGaugeInterval   = 30 * time.Second
	shutdownTimeout         = 15 * time.Second
	maxRequestBodyBytes     = 1 << 20
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string
	config            *config.Config

	directory    *activities.Directory
	guard        *auth.Guard
	authService  *auth.Service
	sessionStore auth.SessionStore

	redisClient      *redis.Client
	rateLimiter      middleware.RequestRateLimiter
	localRateLimiter *middleware.LocalRateLimiter

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()

	backgroundWG sync.WaitGroup
}

type NewServerParams struct {
	Config      *config.Config
	VersionInfo string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	credentials, err := auth.LoadCredentials(cfg.UsersFilePath)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	log.Debugf("loaded %d users from [%s]", credentials.Count(), cfg.UsersFilePath)

	guard, err := auth.NewGuard()
	if err != nil {
		return nil, fmt.Errorf("new guard: %w", err)
	}

	s := &Server{
		versionInfo: params.VersionInfo,
		config:      cfg,
		directory: activities.NewDirectory(
			activities.SeedActivities(),
			activities.WithCapacityEnforcement(cfg.EnforceCapacity),
		),
		guard: guard,
	}

	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: cfg.Secrets.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := s.redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}

		s.sessionStore = auth.NewRedisSessionStore(s.redisClient, cfg.SessionTTL.Duration)
		if cfg.LoginRateLimitAllowedPerMin > 0 {
			s.rateLimiter = middleware.NewRedisRateLimiter(
				redis_rate.NewLimiter(s.redisClient),
				cfg.LoginRateLimitAllowedPerMin,
			)
		}
	default:
		s.sessionStore = auth.NewMemorySessionStore(auth.DefaultMemoryStoreSize, cfg.SessionTTL.Duration)
		if cfg.LoginRateLimitAllowedPerMin > 0 {
			s.localRateLimiter = middleware.NewLocalRateLimiter(cfg.LoginRateLimitAllowedPerMin, 5*time.Minute)
			s.rateLimiter = s.localRateLimiter
		}
	}
	log.Debugf("using [%s] session store, ttl %s", cfg.SessionStore, cfg.SessionTTL.Duration)

	var redisPoolCollector prometheus.Collector
	if s.redisClient != nil {
		redisPoolCollector = metrics.NewRedisPoolCollector(
			s.redisClient,
			prometheus.Labels{"client": "sessions"},
		)
	}
	s.promRegistry = metrics.SetupPrometheus(redisPoolCollector)
	s.metricsManager = metrics.NewManager("mergington", "backend", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0)

	s.authService = auth.NewService(credentials, s.sessionStore, cfg.SessionTTL.Duration)

	// use honeycomb distro to setup OpenTelemetry SDK
	s.otelShutdown, err = tracing.HoneycombSetup(cfg.TracingEnabled, "mergington-backend", s.redisClient)
	if err != nil {
		s.stopRateLimiter()
		return nil, err
	}

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))
	r.Use(middleware.ProxyHeaders(s.config.TrustProxyHeaders))

	activitiesHandler := activities.NewHandler(s.directory, s.guard, s.metricsManager)
	activitiesHandler.SetupRoutes(r)

	loginHandler := login.NewHandler(s.authService, s.config.CookieSecure, s.metricsManager)
	loginHandler.SetupRoutes(r, s.rateLimiter)

	miscHandler := misc.NewHandler(s.versionInfo, s.config.StaticDir, s.healthCheck)
	miscHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Session(s.authService))
	r.Use(middleware.DrainAndCloseRequest(maxRequestBodyBytes))

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           otelhttp.NewHandler(metricsRouter, "metrics"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.startBackgroundJobs(ctx)
	s.metricsManager.GaugeLifeSignal.Set(1)
}

// startBackgroundJobs runs until ctx is cancelled.
func (s *Server) startBackgroundJobs(ctx context.Context) {
	if redisStore, ok := s.sessionStore.(*auth.RedisSessionStore); ok {
		s.backgroundWG.Add(1)
		go func() {
			defer s.backgroundWG.Done()
			redisStore.RunCleanup(ctx, sessionsCleanupInterval)
		}()
	}

	s.backgroundWG.Add(1)
	go func() {
		defer s.backgroundWG.Done()
		s.reportActiveSessions(ctx, sessionsGaugeInterval)
	}()
}

func (s *Server) reportActiveSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.updateSessionsGauge(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) updateSessionsGauge(ctx context.Context) {
	count, err := s.sessionStore.Count(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("count active sessions: %s", err)
		}
		return
	}
	s.metricsManager.GaugeActiveSessions.Set(float64(count))
}

func (s *Server) healthCheck(ctx context.Context) error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.Ping(ctx).Err()
}

func (s *Server) stopRateLimiter() {
	if s.localRateLimiter != nil {
		s.localRateLimiter.Stop()
	}
}

// GracefulShutdown expects the ctx given to Serve to be cancelled already.
func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	var shutdownErr error

	ctx, timeoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("http server: %w", err))
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("metrics server: %w", err))
		}
		log.Warnln("metrics server shut down")
	}

	s.backgroundWG.Wait()
	s.stopRateLimiter()

	if s.otelShutdown != nil {
		s.otelShutdown()
		log.Trace("otel shut down ...")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("redis client: %w", err))
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	return shutdownErr
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
