// Package transcodemodule turns uploaded videos into adaptive HLS assets: it
// probes the source, plans a quality ladder, encodes each rendition through an
// external FFmpeg process, extracts thumbnails and assembles the master
// playlist, under a scheduler that bounds how many videos transcode at once.
package transcodemodule

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/vodforge/vodforge/internal/config"
	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/api"
)

const (
	ModuleID   = "system.transcode"
	ModuleName = "Transcode Pipeline"
)

// Module wraps the transcode manager with lifecycle and route registration.
type Module struct {
	manager  *Manager
	eventBus events.EventBus
	logger   hclog.Logger
}

// NewModule creates the transcode module.
func NewModule(db *gorm.DB, eventBus events.EventBus, cfg *config.Config, logger hclog.Logger) (*Module, error) {
	manager, err := NewManager(db, eventBus, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Module{
		manager:  manager,
		eventBus: eventBus,
		logger:   logger.Named("transcode-module"),
	}, nil
}

// ID returns the unique module identifier.
func (m *Module) ID() string { return ModuleID }

// Name returns the module display name.
func (m *Module) Name() string { return ModuleName }

// Manager exposes the underlying manager.
func (m *Module) Manager() *Manager { return m.manager }

// Start launches the job scheduler.
func (m *Module) Start(ctx context.Context) error {
	if err := m.manager.Start(ctx); err != nil {
		return err
	}
	m.logger.Info("module started", "worker_slots", m.manager.WorkerSlots())
	return nil
}

// Stop shuts the scheduler down, canceling in-flight jobs.
func (m *Module) Stop(ctx context.Context) error {
	return m.manager.Stop(ctx)
}

// RegisterRoutes mounts the module's HTTP API.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	handlers := api.NewHandlers(m.manager, m.eventBus, m.logger)
	api.RegisterRoutes(router, handlers)
}
