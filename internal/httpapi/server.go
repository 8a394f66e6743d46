// Package httpapi serves the analysis service as JSON over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sartorproj/gochangepoint/internal/metrics"
	"github.com/sartorproj/gochangepoint/service"
)

// Config holds server configuration.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables rate limiting.
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns a local-only server on port 5000.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            5000,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestTimeout:  20 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimit:       20,
		RateBurst:       40,
		AllowedOrigins:  []string{"http://localhost:3000"},
	}
}

// Validate checks the server settings.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("server rate limit must not be negative, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("server rate burst must be at least 1 when rate limiting, got %d", c.RateBurst)
	}
	return nil
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server routes API requests to the service.
type Server struct {
	cfg     Config
	svc     *service.Service
	metrics *metrics.Registry
	logger  zerolog.Logger
	limiter *clientLimiter
	router  *mux.Router
}

// NewServer builds the router. A nil registry disables request metrics and /metrics.
func NewServer(cfg Config, svc *service.Service, reg *metrics.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: reg,
		logger:  logger.With().Str("component", "http").Logger(),
		router:  mux.NewRouter(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(s.timeoutMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/data", s.handleData).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/volatility", s.handleVolatility).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/changepoints", s.handleChangePoints).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/diagnostics", s.handleDiagnostics).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/event-correlation", s.handleEventCorrelation).Methods(http.MethodGet, http.MethodOptions)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Str("source", s.svc.SourceName()).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
