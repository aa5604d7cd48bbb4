// Package devserver is a local backend that speaks the API the netprep client expects.
// It is meant for development and end-to-end tests only.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config  *Config
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the clock used for token timestamps and progress updates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(config *Config, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	h := &handlers{
		cfg:      config,
		tokens:   &tokenIssuer{cfg: config, now: o.now},
		progress: newProgressStore(),
		logger:   o.logger,
	}

	router, err := setupRoutes(config, h, o.logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:  config,
		handler: router,
		logger:  o.logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func setupRoutes(config *Config, h *handlers, logger *slog.Logger) (*gin.Engine, error) {
	limit, err := rateLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(loggerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(securityHeaders())
	r.Use(compression(config.BasePath))
	r.Use(corsMiddleware())

	api := r.Group(config.BasePath)
	api.Use(limit)

	api.GET("/health", h.health)
	api.HEAD("/health", h.health)

	api.POST("/auth/login", h.login)
	api.POST("/auth/refresh", h.refresh)

	authed := api.Group("")
	authed.Use(jwtAuth(h.tokens))
	authed.POST("/auth/logout", h.logout)
	authed.GET("/progress", h.getAllProgress)
	authed.GET("/progress/component/:id", h.getProgress)
	authed.PUT("/progress/component/:id", h.putProgress)
	authed.POST("/progress/sync", h.syncProgress)
	authed.POST("/progress/reset", h.resetProgress)

	return r, nil
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("devserver listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("devserver start", "addr", ln.Addr().String(), "basePath", s.config.BasePath)
	defer s.logger.Info("devserver stop")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Stop(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("devserver shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
