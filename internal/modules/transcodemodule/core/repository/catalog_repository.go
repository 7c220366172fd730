// Package repository persists transcode outcomes to the video catalog.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/vodforge/vodforge/internal/database"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// ErrVideoNotFound is returned when a video ID has no catalog entry.
var ErrVideoNotFound = errors.New("video not found in catalog")

// CatalogRepository wraps catalog reads and writes for the transcode pipeline.
type CatalogRepository struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *gorm.DB, logger hclog.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger.Named("catalog")}
}

// GetVideo loads a catalog entry with its renditions.
func (r *CatalogRepository) GetVideo(ctx context.Context, videoID string) (*database.VideoAsset, error) {
	var asset database.VideoAsset
	err := r.db.WithContext(ctx).Preload("Renditions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&asset, "id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	return &asset, nil
}

// CreateVideo inserts a new catalog entry in the uploaded state.
func (r *CatalogRepository) CreateVideo(ctx context.Context, asset *database.VideoAsset) error {
	if asset.Status == "" {
		asset.Status = database.VideoStatusUploaded
	}
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("create video %s: %w", asset.ID, err)
	}
	return nil
}

// MarkProcessing transitions a video into the processing state, clearing any
// previous error and any previously committed results. The manifest key and
// rendition rows go in the same transaction as the status flip, so a reader
// never sees a processing asset that still looks playable.
func (r *CatalogRepository) MarkProcessing(ctx context.Context, videoID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&database.Rendition{}).Error; err != nil {
			return err
		}
		result := tx.Model(&database.VideoAsset{}).Where("id = ?", videoID).Updates(map[string]interface{}{
			"status":        database.VideoStatusProcessing,
			"manifest_key":  "",
			"error_kind":    "",
			"error_message": "",
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVideoNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("mark processing for video %s: %w", videoID, err)
	}
	return nil
}

// MarkError records a failed or canceled job. The manifest key is cleared so
// the asset is never half-playable.
func (r *CatalogRepository) MarkError(ctx context.Context, videoID, kind, message string) error {
	return r.update(ctx, videoID, map[string]interface{}{
		"status":        database.VideoStatusError,
		"error_kind":    kind,
		"error_message": message,
		"manifest_key":  "",
	})
}

// SetSourceInfo stores the probed media properties.
func (r *CatalogRepository) SetSourceInfo(ctx context.Context, videoID string, info types.MediaInfo) error {
	return r.update(ctx, videoID, map[string]interface{}{
		"source_duration": info.Duration.Seconds(),
		"source_width":    info.Width,
		"source_height":   info.Height,
		"source_codec":    info.Codec,
	})
}

// SetPoster stores the poster storage key. Called independently of completion
// because a missing poster never blocks readiness.
func (r *CatalogRepository) SetPoster(ctx context.Context, videoID, posterKey string) error {
	return r.update(ctx, videoID, map[string]interface{}{"poster_key": posterKey})
}

// CommitResults replaces the rendition set, stores the manifest key and flips
// the status to ready in one transaction. A reader never observes the manifest
// without its renditions or vice versa.
func (r *CatalogRepository) CommitResults(ctx context.Context, videoID, manifestKey string, renditions []types.Rendition) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&database.Rendition{}).Error; err != nil {
			return err
		}

		rows := make([]database.Rendition, len(renditions))
		for i, rend := range renditions {
			rows[i] = database.Rendition{
				VideoID:     videoID,
				Position:    i,
				Label:       rend.Spec.Label,
				Width:       rend.Spec.Width,
				Height:      rend.Spec.Height,
				BitrateKbps: rend.Spec.BitrateKbps,
				PlaylistKey: rend.PlaylistKey,
				SegmentKeys: database.StringList(rend.SegmentKeys),
			}
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		result := tx.Model(&database.VideoAsset{}).Where("id = ?", videoID).Updates(map[string]interface{}{
			"status":        database.VideoStatusReady,
			"manifest_key":  manifestKey,
			"error_kind":    "",
			"error_message": "",
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVideoNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit results for video %s: %w", videoID, err)
	}

	r.logger.Info("catalog committed", "video_id", videoID, "renditions", len(renditions))
	return nil
}

// ClearRenditions removes all renditions for a video, used when cleaning up a
// failed job.
func (r *CatalogRepository) ClearRenditions(ctx context.Context, videoID string) error {
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Delete(&database.Rendition{}).Error; err != nil {
		return fmt.Errorf("clear renditions for video %s: %w", videoID, err)
	}
	return nil
}

func (r *CatalogRepository) update(ctx context.Context, videoID string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&database.VideoAsset{}).Where("id = ?", videoID).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("update video %s: %w", videoID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVideoNotFound
	}
	return nil
}
