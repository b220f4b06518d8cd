package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"FloodCast/pkg/http/middleware"
	applogger "FloodCast/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOption configures Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	metricsLogger   *applogger.Logger
	slowThreshold   time.Duration
}

// Server hosts the health and metrics endpoints on an echo instance.
type Server struct {
	echo *echo.Echo
	cfg  *serverConfig
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := &serverConfig{
		host:            "0.0.0.0",
		port:            8080,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogging())
	e.Use(middleware.PermissiveCORS())
	e.Use(echo.WrapMiddleware(middleware.Metrics(cfg.metricsLogger, cfg.slowThreshold)))

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, cfg: cfg}
}

// Start begins serving in the background and returns immediately.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.host, s.cfg.port)
	go func() {
		log.Printf("http server: listening on %s", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Println("http server: stopped gracefully")
	return nil
}

func WithPort(port int) ServerOption {
	return func(c *serverConfig) { c.port = port }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.readTimeout = read
		c.writeTimeout = write
		c.shutdownTimeout = shutdown
	}
}

// WithMetricsLogger attaches a structured logger to the request metrics
// middleware; requests slower than slow are logged as warnings.
func WithMetricsLogger(l *applogger.Logger, slow time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.metricsLogger = l
		c.slowThreshold = slow
	}
}
