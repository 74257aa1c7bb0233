// Package http serves predictions from the loaded model.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"medrisk/inference"
	"medrisk/logging"
	"medrisk/monitoring"
)

// ServerConfig holds listener timeouts and request limits.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            5000,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
		AllowedOrigins:  []string{"*"},
	}
}

// Server owns the HTTP listener.
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// NewRouter wires middleware and routes. svc must already hold a loaded model.
func NewRouter(config ServerConfig, svc *inference.Service, runs RunLog, metrics *monitoring.Metrics, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	metrics.SetModelTrees(svc.Trees())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger, metrics))
	r.Use(RecoveryMiddleware(logger))
	r.Use(SecurityHeadersMiddleware)
	r.Use(CORSMiddleware(config.AllowedOrigins))
	r.Use(RequestSizeMiddleware(config.MaxBodyBytes))

	RegisterRoutes(r, svc, runs, metrics, logger)
	r.Handle("/metrics", metrics.Handler())
	return r
}

// NewServer builds the listener around NewRouter. runs may be nil.
func NewServer(config ServerConfig, svc *inference.Service, runs RunLog, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	logger = logging.Component(logger, "http")
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(config, svc, runs, metrics, logger),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		logger: logger,
	}
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests for at most ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
