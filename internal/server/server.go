package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/circuitbreaker"
	"github.com/aman-churiwal/crm-relay/internal/config"
	"github.com/aman-churiwal/crm-relay/internal/crm"
	"github.com/aman-churiwal/crm-relay/internal/handler"
	"github.com/aman-churiwal/crm-relay/internal/healthcheck"
	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/aman-churiwal/crm-relay/internal/middleware"
	"github.com/aman-churiwal/crm-relay/internal/ratelimit"
	"github.com/aman-churiwal/crm-relay/internal/refresher"
	"github.com/aman-churiwal/crm-relay/internal/repository"
	"github.com/aman-churiwal/crm-relay/internal/service"
	"github.com/aman-churiwal/crm-relay/internal/storage"
	"github.com/gin-gonic/gin"
)

// Version is stamped at build time.
var Version = "dev"

type Options struct {
	Config   *config.Config
	Postgres *storage.Postgres
	Redis    *storage.RedisClient // optional
	Metrics  *metrics.Metrics

	// Refresher is set when the token refresher runs in this process.
	Refresher *refresher.Refresher

	// Transport overrides the CRM client transport.
	Transport http.RoundTripper
}

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	metrics    *metrics.Metrics
	httpServer *http.Server

	health        *healthcheck.Checker
	globalLimiter *ratelimit.Global
	ipLimiter     ratelimit.Limiter
	requestLogger *middleware.RequestLogger

	bookingHandler   *handler.BookingHandler
	analyticsHandler *handler.AnalyticsHandler
	systemHandler    *handler.SystemHandler
}

func New(opts Options) *Server {
	cfg := opts.Config
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name: "crm",
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			opts.Metrics.SetCircuitState(name, int(to))
		},
	})

	crmClient := crm.NewClient(crm.Options{
		BaseURL:   cfg.CRM.BaseURL,
		Timeout:   cfg.CRM.Timeout,
		Transport: opts.Transport,
		Breaker:   breaker,
		Metrics:   opts.Metrics,
	})

	accountRepo := repository.NewAccountRepository(opts.Postgres)
	logRepo := repository.NewRequestLogRepository(opts.Postgres)

	s := &Server{
		router:           router,
		config:           cfg,
		redis:            opts.Redis,
		postgres:         opts.Postgres,
		metrics:          opts.Metrics,
		globalLimiter:    ratelimit.NewGlobal(cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow),
		ipLimiter:        ratelimit.NewLimiter(cfg.RateLimit.IPAlgorithm, cfg.RateLimit.IPLimit, cfg.RateLimit.IPWindow),
		bookingHandler:   handler.NewBookingHandler(service.NewBookingService(accountRepo, crmClient, cfg.CRM)),
		analyticsHandler: handler.NewAnalyticsHandler(service.NewAnalyticsService(logRepo)),
		systemHandler:    handler.NewSystemHandler(breaker, opts.Refresher),
	}

	probes := map[string]healthcheck.Probe{"database": opts.Postgres.Ping}
	if opts.Redis != nil {
		probes["redis"] = opts.Redis.Ping
	}
	s.health = healthcheck.NewChecker(&healthcheck.Config{Probes: probes})
	s.health.Start()

	if cfg.Server.RequestLogEnabled {
		s.requestLogger = middleware.NewRequestLogger(logRepo, 1000)
		s.requestLogger.Start()
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.ResolveClientIP(s.config.Server.TrustProxyDepth))
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigin))
	s.router.Use(metrics.Middleware(s.metrics))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/api/hello", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Hello from backend!"})
	})

	s.setupPublicRoutes()
	s.setupAdminRoutes()
	s.setupStatic()
}

// Booking routes run behind the abuse-control chain: global cap, then the
// per-client cap, then the honeypot on submissions.
func (s *Server) setupPublicRoutes() {
	public := s.router.Group("/")
	if s.requestLogger != nil {
		public.Use(s.requestLogger.Middleware())
	}
	public.Use(
		middleware.GlobalRateLimit(s.globalLimiter, s.metrics),
		middleware.IPRateLimit(s.ipLimiter, s.metrics),
	)

	honeypot := middleware.Honeypot(s.metrics)

	public.POST("/upsertContact", honeypot, s.bookingHandler.UpsertContact)
	public.GET("/getCalendar", s.bookingHandler.GetCalendar)
	public.GET("/getCalendarEvents", s.bookingHandler.GetCalendarEvents)
	public.GET("/getBlockedSlots", s.bookingHandler.GetBlockedSlots)
	public.POST("/makeAppointment", honeypot, s.bookingHandler.MakeAppointment)
}

func (s *Server) setupAdminRoutes() {
	if s.config.Server.AdminToken == "" {
		log.Println("ADMIN_TOKEN not set, admin routes disabled")
		return
	}

	admin := s.router.Group("/admin", middleware.RequireAdminToken(s.config.Server.AdminToken))
	{
		admin.GET("/status", s.adminStatus)
		admin.GET("/summary", s.analyticsHandler.GetSummary)
		admin.DELETE("/logs", s.analyticsHandler.CleanupLogs)
		admin.GET("/circuit-breaker", s.systemHandler.CircuitBreakerStatus)
		admin.POST("/circuit-breaker/reset", s.systemHandler.ResetCircuitBreaker)
		admin.GET("/refresher", s.systemHandler.RefresherStatus)
	}
}

// The booking widget is served from the static directory when present.
func (s *Server) setupStatic() {
	dir := s.config.Server.StaticDir
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Printf("Static directory %q not found, static files disabled", dir)
		return
	}

	files := http.FileServer(http.Dir(dir))
	s.router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	checks := gin.H{}
	for name, status := range s.health.GetAllStatus() {
		checks[name] = status.IsHealthy
	}

	overall := s.health.OverallHealth()
	statusCode := http.StatusOK
	if overall != healthcheck.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overall.String(),
		"service":   "crm-relay",
		"version":   Version,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"relay":           "running",
		"environment":     s.config.Server.Environment,
		"ip_algorithm":    s.config.RateLimit.IPAlgorithm,
		"global_limit":    s.globalLimiter.Limit(),
		"global_window":   s.globalLimiter.Window().String(),
		"ip_limit":        s.ipLimiter.Limit(),
		"ip_window":       s.ipLimiter.Window().String(),
		"request_logging": s.requestLogger != nil,
		"uptime":          time.Since(startTime).Seconds(),
		"timestamp":       time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.CRM.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting CRM relay on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then stops the limiters and flushes
// pending request logs.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.health.Stop()
	s.globalLimiter.Stop()
	s.ipLimiter.Stop()
	if s.requestLogger != nil {
		s.requestLogger.Stop()
	}

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()
