package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	v1 "github.com/bwservicing/certtrack/api/v1"
	"github.com/bwservicing/certtrack/internal/config"
	"github.com/bwservicing/certtrack/internal/server/middlewares"
)

type Server struct {
	srv    *http.Server
	engine *gin.Engine
	log    *zap.SugaredLogger
}

type options struct {
	gatherer prometheus.Gatherer
	registry prometheus.Registerer
	backend  string
}

type Option func(*options)

// WithMetrics exposes g on /metrics and registers the HTTP collectors on reg.
func WithMetrics(reg prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(o *options) {
		o.registry = reg
		o.gatherer = g
	}
}

// WithBackend names the storage backend reported by /health.
func WithBackend(name string) Option {
	return func(o *options) { o.backend = name }
}

// NewServer builds the HTTP server. registerHandlerFn receives the /api/v1
// group with every middleware already applied.
func NewServer(cfg *config.Configuration, registerHandlerFn func(router *gin.RouterGroup), opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Server.ServerMode {
	case "prod":
		gin.SetMode(gin.ReleaseMode)
	case "dev":
		gin.SetMode(gin.DebugMode)
	default:
		return nil, fmt.Errorf("unknown server mode %q", cfg.Server.ServerMode)
	}
	if cfg.Auth.Enabled && cfg.Auth.Secret == "" {
		return nil, errors.New("auth is enabled but no secret is configured")
	}

	engine := gin.New()
	engine.Use(
		middlewares.Logger(),
		ginzap.RecoveryWithZap(zap.L(), true),
	)
	if o.registry != nil {
		engine.Use(middlewares.Metrics(o.registry))
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, v1.Health{Status: "ok", Backend: o.backend})
	})
	if o.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api/v1")
	if cfg.Auth.Enabled {
		api.Use(middlewares.Auth([]byte(cfg.Auth.Secret), cfg.Auth.Issuer))
	}
	registerHandlerFn(api)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, v1.Error{Error: "route not found"})
	})

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		log:    zap.S().Named("server"),
	}, nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks until the server fails or is stopped.
func (s *Server) Start(ctx context.Context) error {
	s.log.Infow("listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop waits for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
