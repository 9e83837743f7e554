// Package api exposes the engine over HTTP for the dashboard.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pulsoview/maestro-engine/internal/config"
)

// Server wraps the HTTP listener and lifecycle helpers.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	srv    *http.Server
}

// NewServer constructs an HTTP server bound to the configured address with
// CORS enabled for the dashboard origins.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, h *Handlers) *Server {
	router := mux.NewRouter()
	h.Register(router)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Session-ID"},
	})

	return &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:         cfg.Address,
			Handler:      c.Handler(router),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.cfg.Address))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, forcing close when ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown forced", slog.Any("error", err))
		_ = s.srv.Close()
	}
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
