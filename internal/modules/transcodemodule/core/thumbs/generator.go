// Package thumbs extracts still frames from a source for thumbnails and the
// asset poster.
package thumbs

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// Result lists the artifacts a generator run produced, as file names relative
// to the output directory.
type Result struct {
	Thumbnails []string
	Poster     string
}

// Generator extracts evenly spaced frames with FFmpeg.
type Generator struct {
	ffmpegPath string
	count      int
	posterWebP bool
	logger     hclog.Logger
}

// NewGenerator creates a thumbnail generator extracting count frames. When
// posterWebP is set the poster is re-encoded to WebP alongside the JPEG
// thumbnails.
func NewGenerator(ffmpegPath string, count int, posterWebP bool, logger hclog.Logger) *Generator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if count <= 0 {
		count = 5
	}
	return &Generator{
		ffmpegPath: ffmpegPath,
		count:      count,
		posterWebP: posterWebP,
		logger:     logger.Named("thumbs"),
	}
}

// Generate extracts frames at the midpoints of count equal slices of the
// source duration and writes them under outputDir. The first frame that
// extracts successfully becomes the poster. Errors are reported as a
// ThumbnailError, which callers treat as non-fatal.
func (g *Generator) Generate(ctx context.Context, sourcePath, outputDir string, duration time.Duration) (Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, &types.ThumbnailError{Cause: err}
	}

	result := Result{}
	var failures int
	for i := 0; i < g.count; i++ {
		offset := Offset(duration, i, g.count)
		name := fmt.Sprintf("thumb_%02d.jpg", i)
		if err := g.extract(ctx, sourcePath, filepath.Join(outputDir, name), offset); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			failures++
			g.logger.Warn("thumbnail extraction failed", "offset", offset, "error", err)
			continue
		}
		result.Thumbnails = append(result.Thumbnails, name)
	}

	if len(result.Thumbnails) == 0 {
		return result, &types.ThumbnailError{Cause: fmt.Errorf("all %d extractions failed", failures)}
	}

	result.Poster = result.Thumbnails[0]
	if g.posterWebP {
		if name, err := g.encodePosterWebP(outputDir, result.Poster); err != nil {
			g.logger.Warn("poster webp encode failed, keeping jpeg", "error", err)
		} else {
			result.Poster = name
		}
	}

	g.logger.Debug("thumbnails generated",
		"count", len(result.Thumbnails),
		"poster", result.Poster,
	)
	return result, nil
}

func (g *Generator) extract(ctx context.Context, sourcePath, outputPath string, offset time.Duration) error {
	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-y",
		"-hide_banner",
		"-ss", fmt.Sprintf("%.3f", offset.Seconds()),
		"-i", sourcePath,
		"-frames:v", "1",
		"-q:v", "3",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg frame extraction: %w: %s", err, lastLine(output))
	}
	return nil
}

// encodePosterWebP re-encodes the JPEG poster as lossy WebP next to it.
func (g *Generator) encodePosterWebP(outputDir, posterJPEG string) (string, error) {
	src, err := os.Open(filepath.Join(outputDir, posterJPEG))
	if err != nil {
		return "", err
	}
	defer src.Close()

	img, err := jpeg.Decode(src)
	if err != nil {
		return "", err
	}

	name := "poster.webp"
	dst, err := os.Create(filepath.Join(outputDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if err := webp.Encode(dst, img, &webp.Options{Quality: 80}); err != nil {
		return "", err
	}
	return name, nil
}

// Offset returns the timestamp of frame i of count: the midpoint of the i-th
// equal slice of the duration.
func Offset(duration time.Duration, i, count int) time.Duration {
	if count <= 0 {
		return 0
	}
	return time.Duration(float64(duration) * (float64(i) + 0.5) / float64(count))
}

func lastLine(output []byte) string {
	s := strings.TrimSpace(string(output))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
