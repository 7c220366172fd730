package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/encode"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/ladder"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/manifest"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/probe"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/repository"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/thumbs"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
	"github.com/vodforge/vodforge/internal/storage"
)

// ProgressReporter receives job-level progress (0-100) and the current stage
// message from a running pipeline.
type ProgressReporter func(progress float64, stage string)

// JobRunner executes the full pipeline for one video. The scheduler only
// depends on this seam, so the slot accounting can be tested without FFmpeg.
type JobRunner interface {
	Run(ctx context.Context, videoID, sourceKey string, report ProgressReporter) error
}

// Pipeline is the production JobRunner: probe, plan, encode each rendition
// sequentially, extract thumbnails, assemble the master manifest and commit
// the results to the catalog. Any fatal stage error triggers
// cleanup-on-failure so no partial rendition set survives.
type Pipeline struct {
	prober    *probe.Prober
	planner   *ladder.Planner
	encoder   *encode.Encoder
	thumbs    *thumbs.Generator
	assembler *manifest.Assembler
	store     storage.Storage
	catalog   *repository.CatalogRepository
	eventBus  events.EventBus
	logger    hclog.Logger
}

// PipelineDeps bundles the collaborators a Pipeline needs.
type PipelineDeps struct {
	Prober    *probe.Prober
	Planner   *ladder.Planner
	Encoder   *encode.Encoder
	Thumbs    *thumbs.Generator
	Assembler *manifest.Assembler
	Store     storage.Storage
	Catalog   *repository.CatalogRepository
	EventBus  events.EventBus
	Logger    hclog.Logger
}

// NewPipeline creates a production pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		prober:    deps.Prober,
		planner:   deps.Planner,
		encoder:   deps.Encoder,
		thumbs:    deps.Thumbs,
		assembler: deps.Assembler,
		store:     deps.Store,
		catalog:   deps.Catalog,
		eventBus:  deps.EventBus,
		logger:    deps.Logger.Named("pipeline"),
	}
}

// Run processes one video end to end. On fatal errors (and cancellation of a
// running job) it deletes everything written under the video's storage prefix
// and records the failure in the catalog before returning.
func (p *Pipeline) Run(ctx context.Context, videoID, sourceKey string, report ProgressReporter) error {
	err := p.run(ctx, videoID, sourceKey, report)
	if err != nil {
		p.cleanup(videoID, err)
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, videoID, sourceKey string, report ProgressReporter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.catalog.MarkProcessing(ctx, videoID); err != nil {
		return err
	}

	sourcePath, err := p.store.Path(sourceKey)
	if err != nil {
		return fmt.Errorf("resolve source %s: %w", sourceKey, err)
	}

	report(0, "probing source")
	info, err := p.prober.Probe(ctx, sourcePath)
	if err != nil {
		return err
	}
	if err := p.catalog.SetSourceInfo(ctx, videoID, info); err != nil {
		return err
	}

	specs := p.planner.Plan(info.Height)
	totalWeight := ladder.TotalWeight(specs)

	prefix := storage.VideoPrefix(videoID)
	renditions := make([]types.Rendition, 0, len(specs))
	var doneWeight float64

	for _, spec := range specs {
		// The encoder keeps the source aspect; declare the width it will
		// actually produce, not the 16:9 table value.
		if w := ladder.FitWidth(info.Width, info.Height, spec.Height); w > 0 {
			spec.Width = w
		}
		report(doneWeight/totalWeight*100, "encoding "+spec.Label)

		renditionDir, err := p.store.Path(path.Join(prefix, spec.Label, "playlist.m3u8"))
		if err != nil {
			return fmt.Errorf("resolve rendition dir: %w", err)
		}
		renditionDir = filepath.Dir(renditionDir)
		if err := os.MkdirAll(renditionDir, 0o755); err != nil {
			return fmt.Errorf("create rendition dir: %w", err)
		}

		watcher := encode.NewSegmentWatcher(videoID, spec.Label, p.eventBus, p.logger)
		if err := watcher.Start(renditionDir); err != nil {
			p.logger.Warn("segment watcher unavailable", "rendition", spec.Label, "error", err)
			watcher = nil
		}

		base := doneWeight
		sink := types.ProgressFunc(func(fraction float64) {
			report((base+spec.CostWeight*fraction)/totalWeight*100, "encoding "+spec.Label)
		})

		err = p.encoder.Encode(ctx, sourcePath, renditionDir, spec, info.Duration, sink)
		if watcher != nil {
			watcher.Stop()
		}
		if err != nil {
			return err
		}

		segments, err := encode.ListSegments(renditionDir)
		if err != nil {
			return fmt.Errorf("list segments for %s: %w", spec.Label, err)
		}
		segmentKeys := make([]string, len(segments))
		for i, seg := range segments {
			segmentKeys[i] = path.Join(prefix, spec.Label, seg)
		}

		renditions = append(renditions, types.Rendition{
			Spec:        spec,
			PlaylistKey: path.Join(prefix, spec.Label, "playlist.m3u8"),
			SegmentKeys: segmentKeys,
		})
		doneWeight += spec.CostWeight
	}

	report(doneWeight/totalWeight*100, "generating thumbnails")
	p.generateThumbnails(ctx, videoID, sourcePath, prefix, info.Duration)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	report(doneWeight/totalWeight*100, "assembling manifest")
	manifestKey := path.Join(prefix, manifest.MasterName)
	if err := p.writeManifest(manifestKey, renditions); err != nil {
		return err
	}

	if err := p.catalog.CommitResults(ctx, videoID, manifestKey, renditions); err != nil {
		return err
	}

	report(100, "complete")
	return nil
}

// generateThumbnails is best effort; a failure never fails the job.
func (p *Pipeline) generateThumbnails(ctx context.Context, videoID, sourcePath, prefix string, duration time.Duration) {
	thumbsDir, err := p.store.Path(path.Join(prefix, "thumbs", "thumb_00.jpg"))
	if err != nil {
		p.logger.Warn("thumbnail dir unavailable", "video_id", videoID, "error", err)
		return
	}
	thumbsDir = filepath.Dir(thumbsDir)

	result, err := p.thumbs.Generate(ctx, sourcePath, thumbsDir, duration)
	if err != nil {
		p.logger.Warn("continuing without poster", "video_id", videoID, "error", err)
		return
	}

	posterKey := path.Join(prefix, "thumbs", result.Poster)
	if err := p.catalog.SetPoster(ctx, videoID, posterKey); err != nil {
		p.logger.Warn("failed to record poster", "video_id", videoID, "error", err)
	}
}

func (p *Pipeline) writeManifest(manifestKey string, renditions []types.Rendition) error {
	w, err := p.store.Create(manifestKey)
	if err != nil {
		return &types.AssemblyError{Cause: fmt.Errorf("create master playlist: %w", err)}
	}
	if err := p.assembler.Assemble(w, renditions); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// cleanup removes every artifact the failed or canceled job wrote and records
// the outcome, so the catalog never references a partial rendition set.
// Runs detached from the job context, which may already be canceled.
func (p *Pipeline) cleanup(videoID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.store.DeletePrefix(storage.VideoPrefix(videoID)); err != nil {
		p.logger.Error("failed to delete job artifacts", "video_id", videoID, "error", err)
	}
	if err := p.catalog.ClearRenditions(ctx, videoID); err != nil {
		p.logger.Error("failed to clear renditions", "video_id", videoID, "error", err)
	}

	kind := types.ErrorKind(cause)
	message := cause.Error()
	if errors.Is(cause, context.Canceled) {
		kind = types.KindCanceled
		message = "job canceled"
	}
	if err := p.catalog.MarkError(ctx, videoID, kind, message); err != nil {
		p.logger.Error("failed to record job error", "video_id", videoID, "error", err)
	}

	p.logger.Info("job artifacts cleaned up", "video_id", videoID, "error_kind", kind)
}
