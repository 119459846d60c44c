// Package routes hosts the ops HTTP server: health probes and Prometheus metrics
package routes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/health"
)

// ServerConfig configures the ops server
type ServerConfig struct {
	ServiceName       string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
}

// Server serves /api/v1/health* and /metrics
type Server struct {
	echo    *echo.Echo
	http    *http.Server
	logger  ectologger.Logger
	checker *health.Checker
}

// NewServer builds the ops server and registers its routes
func NewServer(cfg ServerConfig, logger ectologger.Logger, checker *health.Checker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		echo: e,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           e,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		logger:  logger,
		checker: checker,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// GetName implements startup.Dependency
func (s *Server) GetName() string {
	return "ops_server"
}

// DependsOn implements startup.Dependency
func (s *Server) DependsOn() []string {
	return nil
}

// Start binds the listener and serves in the background. Binding errors are returned
// so startup can retry them.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Ops server stopped unexpectedly")
		}
	}()

	s.logger.WithContext(ctx).WithField("addr", listener.Addr().String()).Info("Ops server listening")
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.checker.SetReady(false)
	return s.http.Shutdown(ctx)
}
