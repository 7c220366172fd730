// Package encode runs FFmpeg to produce HLS renditions and watches their
// output directories for finished segments.
package encode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/metrics"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// Encoder runs one FFmpeg process per rendition.
type Encoder struct {
	ffmpegPath string
	args       *ArgsBuilder
	logger     hclog.Logger
}

// NewEncoder creates an encoder using the given FFmpeg binary.
func NewEncoder(ffmpegPath string, segmentSeconds int, logger hclog.Logger) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Encoder{
		ffmpegPath: ffmpegPath,
		args:       NewArgsBuilder(segmentSeconds),
		logger:     logger.Named("encoder"),
	}
}

// Encode produces one HLS rendition of the source into outputDir, reporting
// fractional progress to sink. It blocks until FFmpeg exits; cancel ctx to
// kill the process. A non-zero exit yields an EncodeError carrying the tail of
// FFmpeg's log output.
func (e *Encoder) Encode(ctx context.Context, sourcePath, outputDir string, spec types.RenditionSpec, sourceDuration time.Duration, sink types.ProgressSink) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return &types.EncodeError{Rendition: spec.Label, Cause: fmt.Errorf("create output dir: %w", err)}
	}

	args := e.args.BuildArgs(sourcePath, outputDir, spec.Height, spec.BitrateKbps)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &types.EncodeError{Rendition: spec.Label, Cause: fmt.Errorf("attach stderr: %w", err)}
	}

	e.logger.Info("starting rendition encode",
		"rendition", spec.Label,
		"resolution", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"bitrate_kbps", spec.BitrateKbps,
	)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return &types.EncodeError{Rendition: spec.Label, Cause: fmt.Errorf("start ffmpeg: %w", err)}
	}

	progress := newProgressReader(sourceDuration, sink)
	progress.consume(stderr)

	err = cmd.Wait()
	metrics.EncodeDuration.WithLabelValues(spec.Label).Observe(time.Since(started).Seconds())

	if err != nil {
		// A killed process after cancellation is not an encode failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &types.EncodeError{
			Rendition: spec.Label,
			ExitInfo:  exitInfo(err),
			Cause:     fmt.Errorf("ffmpeg exited: %w: %s", err, progress.Tail()),
		}
	}

	e.logger.Info("rendition encode complete",
		"rendition", spec.Label,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

// ListSegments returns the segment file names FFmpeg wrote under outputDir in
// playback order.
func ListSegments(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".ts") {
			segments = append(segments, entry.Name())
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func exitInfo(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exit code %d", exitErr.ExitCode())
	}
	return err.Error()
}
