// Package api exposes the engine facade over HTTP: a gin REST surface for
// project and step operations plus a WebSocket event stream per project.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/engine"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/store"
)

// shutdownGrace bounds how long in-flight requests get to finish once the
// server is asked to stop.
const shutdownGrace = 10 * time.Second

// Server is the HTTP adapter over the engine facade.
type Server struct {
	engine *engine.Engine
	store  *store.Store
	broker *events.Broker
	cfg    *config.ServerConfig
	logger *slog.Logger
}

// NewServer wires the HTTP adapter.
func NewServer(eng *engine.Engine, st *store.Store, broker *events.Broker, cfg *config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: eng,
		store:  st,
		broker: broker,
		cfg:    cfg,
		logger: logger.With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), securityHeaders())

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/projects", s.createProjectHandler)
		v1.GET("/projects", s.listProjectsHandler)
		v1.GET("/projects/:id/status", s.statusHandler)
		v1.POST("/projects/:id/execute", s.executeAllHandler)
		v1.POST("/projects/:id/cancel", s.cancelHandler)
		v1.GET("/projects/:id/events", s.eventsHandler)
		v1.GET("/projects/:id/artifacts/:index", s.artifactHandler)
		v1.POST("/projects/:id/steps/:index/execute", s.executeStepHandler)
		v1.POST("/projects/:id/steps/:index/revise", s.reviseHandler)
		v1.GET("/projects/:id/steps/:index/validation", s.validationHandler)
	}

	return r
}

// Run serves until the context is cancelled, then drains active runs and
// shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	s.engine.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
