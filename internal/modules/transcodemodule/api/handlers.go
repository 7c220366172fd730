// Package api exposes the transcode module over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/database"
	apierrors "github.com/vodforge/vodforge/internal/errors"
	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/repository"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/system"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
	"github.com/vodforge/vodforge/internal/storage"
)

// TranscodeService is what the HTTP layer needs from the transcode manager.
type TranscodeService interface {
	EnqueueVideo(ctx context.Context, videoID string) error
	CancelVideo(videoID string) error
	JobStatus(videoID string) (types.JobStatus, error)
	ListJobs() []types.JobStatus
	GetAsset(ctx context.Context, videoID string) (*database.VideoAsset, error)
	CreateAsset(ctx context.Context, asset *database.VideoAsset) error
	Storage() storage.Storage
	WorkerSlots() int
	SystemInfo() system.Info
}

// Handlers carries the HTTP handler dependencies.
type Handlers struct {
	service  TranscodeService
	eventBus events.EventBus
	logger   hclog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(service TranscodeService, eventBus events.EventBus, logger hclog.Logger) *Handlers {
	return &Handlers{
		service:  service,
		eventBus: eventBus,
		logger:   logger.Named("api"),
	}
}

type createVideoRequest struct {
	ID        string `json:"id"`
	Title     string `json:"title" binding:"required"`
	SourceKey string `json:"source_key" binding:"required"`
}

// CreateVideo registers an uploaded video in the catalog.
func (h *Handlers) CreateVideo(c *gin.Context) {
	var req createVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.HandleValidationError(c, "invalid request body: "+err.Error(), "body")
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	asset := &database.VideoAsset{
		ID:        req.ID,
		Title:     req.Title,
		SourceKey: req.SourceKey,
	}
	if err := h.service.CreateAsset(c.Request.Context(), asset); err != nil {
		apierrors.HandleInternalError(c, "failed to create video", err)
		return
	}

	c.JSON(http.StatusCreated, asset)
}

// GetVideo returns a catalog entry with its renditions.
func (h *Handlers) GetVideo(c *gin.Context) {
	videoID := c.Param("id")

	asset, err := h.service.GetAsset(c.Request.Context(), videoID)
	if errors.Is(err, repository.ErrVideoNotFound) {
		apierrors.HandleNotFound(c, "video", videoID)
		return
	}
	if err != nil {
		apierrors.HandleInternalError(c, "failed to load video", err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// EnqueueTranscode queues a transcode job for a video.
func (h *Handlers) EnqueueTranscode(c *gin.Context) {
	videoID := c.Param("id")

	err := h.service.EnqueueVideo(c.Request.Context(), videoID)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"video_id": videoID, "state": types.JobStateQueued})
	case errors.Is(err, repository.ErrVideoNotFound):
		apierrors.HandleNotFound(c, "video", videoID)
	case isAlreadyQueued(err):
		apierrors.HandleConflict(c, "a job for this video is already queued or running", videoID)
	default:
		apierrors.HandleInternalError(c, "failed to enqueue transcode", err)
	}
}

// CancelTranscode cancels the queued or running job for a video.
func (h *Handlers) CancelTranscode(c *gin.Context) {
	videoID := c.Param("id")

	err := h.service.CancelVideo(videoID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"video_id": videoID, "state": types.JobStateCanceled})
	case isJobNotFound(err):
		apierrors.HandleNotFound(c, "job", videoID)
	default:
		apierrors.HandleInternalError(c, "failed to cancel transcode", err)
	}
}

// GetJob returns the live job status for a video.
func (h *Handlers) GetJob(c *gin.Context) {
	videoID := c.Param("id")

	status, err := h.service.JobStatus(videoID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, status)
	case isJobNotFound(err):
		apierrors.HandleNotFound(c, "job", videoID)
	default:
		apierrors.HandleInternalError(c, "failed to load job status", err)
	}
}

// ListJobs returns all queued and running jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	jobs := h.service.ListJobs()
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// ServeMedia streams a stored artifact (playlist, segment, thumbnail).
func (h *Handlers) ServeMedia(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	r, err := h.service.Storage().Open(key)
	if err != nil {
		apierrors.HandleNotFound(c, "object", key)
		return
	}
	defer r.Close()

	c.Header("Content-Type", contentTypeForKey(key))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, r)
}

// Health reports liveness plus host resources.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"worker_slots": h.service.WorkerSlots(),
		"system":       h.service.SystemInfo(),
	})
}

func isAlreadyQueued(err error) bool {
	var target *types.AlreadyQueuedError
	return errors.As(err, &target)
}

func isJobNotFound(err error) bool {
	var target *types.NotFoundError
	return errors.As(err, &target)
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(key, ".ts"):
		return "video/mp2t"
	case strings.HasSuffix(key, ".jpg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
