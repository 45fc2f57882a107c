package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/kanbanboard/core/docs"
	"github.com/kanbanboard/core/internal/adapters/cache"
	httpHandlers "github.com/kanbanboard/core/internal/adapters/http"
	"github.com/kanbanboard/core/internal/adapters/repository"
	"github.com/kanbanboard/core/internal/application/services"
	"github.com/kanbanboard/core/internal/infrastructure/config"
	"github.com/kanbanboard/core/internal/infrastructure/database"
	"github.com/kanbanboard/core/internal/infrastructure/logger"
	"github.com/kanbanboard/core/internal/infrastructure/metrics"
	"github.com/kanbanboard/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	logger   *logger.Logger
	db       *database.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// Services are the application services exposed over HTTP
type Services struct {
	Auth  ports.AuthService
	Tasks ports.TaskService
}

// New wires repositories and services on db and creates a server. rdb may be
// nil, in which case the task list cache stays disabled.
func New(cfg *config.Config, db *database.DB, rdb *redis.Client, appLogger *logger.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Enabled {
		registry.MustRegister(collectors.NewDBStatsCollector(db.DB.DB, cfg.Database.Name))
	}

	store := repository.NewStore(db)

	var taskCache ports.TaskCache
	if cfg.Cache.Enabled && rdb != nil {
		taskCache = cache.NewTaskCache(rdb, cfg.Cache.TTL)
	}

	svc := Services{
		Auth:  services.NewAuthService(store, cfg.JWT, appLogger),
		Tasks: services.NewTaskService(store, taskCache, m, appLogger),
	}

	s := NewWithServices(cfg, svc, appLogger, registry, m)
	s.db = db
	s.redis = rdb
	return s, nil
}

// NewWithServices creates a server around already constructed services
func NewWithServices(cfg *config.Config, svc Services, appLogger *logger.Logger, registry *prometheus.Registry, m *metrics.Metrics) *Server {
	e := echo.New()

	e.Validator = httpHandlers.NewValidator()
	e.JSONSerializer = httpHandlers.SonicSerializer{}

	e.Debug = cfg.App.IsDevelopment()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = httpHandlers.ErrorHandler(appLogger)

	s := &Server{
		echo:     e,
		config:   cfg,
		logger:   appLogger,
		registry: registry,
		metrics:  m,
	}

	s.setupMiddleware()

	if cfg.Metrics.Enabled {
		s.setupMetrics()
	}

	s.setupRoutes(
		httpHandlers.NewAuthHandler(svc.Auth, appLogger),
		httpHandlers.NewTaskHandler(svc.Tasks, appLogger),
		svc.Auth,
	)

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(authHandler *httpHandlers.AuthHandler, taskHandler *httpHandlers.TaskHandler, authService ports.AuthService) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	if !s.config.App.IsProduction() {
		s.echo.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	api := s.echo.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	taskGroup := api.Group("/tasks", s.authMiddleware(authService))
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/move", taskHandler.MoveTask)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = httpHandlers.StatusForError(err)
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			s.metrics.RequestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			s.metrics.RequestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	ctx := c.Request().Context()

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warnw("Readiness check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "database_not_ready",
			})
		}
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warnw("Redis not reachable", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "cache_not_ready",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)

	srv := &http.Server{
		Addr:         address,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
	return s.echo.StartServer(srv)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}
