package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DongTao/tls-mempool/internal/api/handlers"
	"github.com/DongTao/tls-mempool/internal/api/middleware"
	"github.com/DongTao/tls-mempool/internal/config"
	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

var (
	promMiddlewareOnce sync.Once
	promMiddleware     *fiberprometheus.FiberPrometheus
)

// Deps are the sources the server reports on. Any field may be nil.
type Deps struct {
	Metrics *metrics.PoolMetrics
	Events  *events.Broker
	Results handlers.ResultsFunc
	Running func() bool
	Logger  *slog.Logger
}

// Server exposes pool statistics over HTTP.
type Server struct {
	app    *fiber.App
	config config.MetricsConfig
	deps   Deps
}

// NewServer creates a new stats server.
func NewServer(cfg config.MetricsConfig, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "tlspool-bench",
		ServerHeader:          "tlspool-bench",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler,
	})

	server := &Server{
		app:    app,
		config: cfg,
		deps:   deps,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// App returns the underlying Fiber app for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.app.Use(requestid.New())
	s.app.Use(recover.New())

	// Registered once per process; tests build many servers.
	promMiddlewareOnce.Do(func() {
		promMiddleware = fiberprometheus.NewWithRegistry(prometheus.DefaultRegisterer.(*prometheus.Registry), "tlspool_bench", "", "", nil)
		promMiddleware.SetSkipPaths([]string{"/health", "/ready", "/metrics"})
	})
	s.app.Use(promMiddleware.Middleware)

	s.app.Use(middleware.Logger(s.deps.Logger, "/health", "/metrics"))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", handlers.HealthCheck)
	s.app.Get("/ready", handlers.ReadyCheck(s.deps.Running))
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Get("/stats", handlers.Stats(s.deps.Metrics, s.deps.Events, s.deps.Results))

	if s.deps.Events != nil {
		s.app.Use("/v1/events", handlers.WebSocketUpgrade)
		s.app.Get("/v1/events/stream", handlers.EventStream(s.deps.Events))
	}
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	slog.Info("stats server listening", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// errorHandler handles errors globally.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"message": message,
			"code":    code,
		},
	})
}
