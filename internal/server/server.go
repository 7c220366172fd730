// Package server assembles the HTTP server: router, middleware, metrics and
// the transcode module's routes.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vodforge/vodforge/internal/config"
	"github.com/vodforge/vodforge/internal/database"
	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/logger"
	"github.com/vodforge/vodforge/internal/metrics"
	"github.com/vodforge/vodforge/internal/middleware"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule"
)

// Server owns the HTTP listener and the module lifecycle.
type Server struct {
	httpServer *http.Server
	module     *transcodemodule.Module
	eventBus   events.EventBus
}

// New builds the server: event bus, transcode module, router.
func New(cfg *config.Config, hclogger hclog.Logger) (*Server, error) {
	eventBus := events.NewEventBus(events.DefaultBusConfig())
	events.SetGlobalEventBus(eventBus)

	module, err := transcodemodule.NewModule(database.GetDB(), eventBus, cfg, hclogger)
	if err != nil {
		return nil, fmt.Errorf("init transcode module: %w", err)
	}

	router := setupRouter(cfg)
	module.RegisterRoutes(router)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		module:   module,
		eventBus: eventBus,
	}, nil
}

// Start brings up the event bus, the scheduler and the HTTP listener. It
// blocks until the listener stops.
func (s *Server) Start(ctx context.Context) error {
	if err := s.eventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	if err := s.module.Start(ctx); err != nil {
		return fmt.Errorf("start transcode module: %w", err)
	}

	s.eventBus.PublishAsync(events.NewEvent(events.EventSystemStarted, "server", "vodforge started"))
	logger.Info("http server listening", logger.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener, the scheduler and the event bus in order, so
// in-flight jobs observe cancellation and clean up before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown incomplete", logger.Err(err))
	}
	if err := s.module.Stop(ctx); err != nil {
		logger.Warn("module shutdown incomplete", logger.Err(err))
	}

	s.eventBus.PublishAsync(events.NewEvent(events.EventSystemStopped, "server", "vodforge stopping"))
	return s.eventBus.Stop(ctx)
}

func setupRouter(cfg *config.Config) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorLogger())
	if cfg.Server.EnableCORS {
		router.Use(middleware.CORS())
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return router
}

