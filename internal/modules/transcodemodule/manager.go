package transcodemodule

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/vodforge/vodforge/internal/config"
	"github.com/vodforge/vodforge/internal/database"
	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/encode"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/ladder"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/manifest"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/probe"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/repository"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/scheduler"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/system"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/thumbs"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
	"github.com/vodforge/vodforge/internal/storage"
)

// Manager composes the transcoding pipeline and exposes the operations the
// API layer consumes.
type Manager struct {
	catalog   *repository.CatalogRepository
	scheduler *scheduler.Scheduler
	store     storage.Storage
	logger    hclog.Logger
}

// NewManager wires the pipeline from configuration.
func NewManager(db *gorm.DB, eventBus events.EventBus, cfg *config.Config, logger hclog.Logger) (*Manager, error) {
	store, err := storage.NewLocal(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	catalog := repository.NewCatalogRepository(db, logger)

	tc := cfg.Transcoding
	pipeline := scheduler.NewPipeline(scheduler.PipelineDeps{
		Prober:    probe.NewProber(tc.FFprobePath, logger),
		Planner:   ladder.NewPlanner(logger),
		Encoder:   encode.NewEncoder(tc.FFmpegPath, tc.SegmentSeconds, logger),
		Thumbs:    thumbs.NewGenerator(tc.FFmpegPath, tc.ThumbnailCount, tc.PosterWebP, logger),
		Assembler: manifest.NewAssembler(logger),
		Store:     store,
		Catalog:   catalog,
		EventBus:  eventBus,
		Logger:    logger,
	})

	slots := tc.MaxConcurrentJobs
	if slots <= 0 {
		slots = system.DefaultWorkerSlots()
	}

	return &Manager{
		catalog:   catalog,
		scheduler: scheduler.NewScheduler(slots, pipeline, eventBus, logger),
		store:     store,
		logger:    logger.Named("transcode"),
	}, nil
}

// Start launches the scheduler.
func (m *Manager) Start(ctx context.Context) error {
	return m.scheduler.Start(ctx)
}

// Stop shuts the scheduler down, canceling in-flight jobs.
func (m *Manager) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// EnqueueVideo queues a transcode job for a cataloged video.
func (m *Manager) EnqueueVideo(ctx context.Context, videoID string) error {
	asset, err := m.catalog.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	return m.scheduler.Enqueue(asset.ID, asset.SourceKey)
}

// CancelVideo cancels the queued or running job for a video.
func (m *Manager) CancelVideo(videoID string) error {
	return m.scheduler.Cancel(videoID)
}

// JobStatus returns the live job snapshot for a video.
func (m *Manager) JobStatus(videoID string) (types.JobStatus, error) {
	return m.scheduler.Status(videoID)
}

// ListJobs returns all live jobs.
func (m *Manager) ListJobs() []types.JobStatus {
	return m.scheduler.List()
}

// GetAsset loads a catalog entry with its renditions.
func (m *Manager) GetAsset(ctx context.Context, videoID string) (*database.VideoAsset, error) {
	return m.catalog.GetVideo(ctx, videoID)
}

// CreateAsset registers an uploaded video in the catalog.
func (m *Manager) CreateAsset(ctx context.Context, asset *database.VideoAsset) error {
	return m.catalog.CreateVideo(ctx, asset)
}

// Storage exposes the object store for the HTTP layer to serve artifacts.
func (m *Manager) Storage() storage.Storage {
	return m.store
}

// WorkerSlots reports the configured concurrency bound.
func (m *Manager) WorkerSlots() int {
	return m.scheduler.Slots()
}

// SystemInfo reports host resources for the health endpoint.
func (m *Manager) SystemInfo() system.Info {
	return system.Snapshot()
}
