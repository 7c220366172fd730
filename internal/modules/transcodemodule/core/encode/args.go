package encode

import (
	"fmt"
	"path/filepath"
)

// Fixed H.264 settings shared by every rendition. Keyframes land every 48
// frames with scene detection off and closed GOPs so segment boundaries stay
// aligned across the ladder.
const (
	videoCRF    = "23"
	videoPreset = "medium"
	gopSize     = "48"
	audioCodec  = "aac"
	audioRate   = "128k"
)

// ArgsBuilder assembles the FFmpeg command line for a single rendition.
type ArgsBuilder struct {
	segmentSeconds int
}

// NewArgsBuilder creates an args builder producing HLS segments of the given
// duration.
func NewArgsBuilder(segmentSeconds int) *ArgsBuilder {
	if segmentSeconds <= 0 {
		segmentSeconds = 10
	}
	return &ArgsBuilder{segmentSeconds: segmentSeconds}
}

// SegmentSeconds returns the configured segment duration.
func (b *ArgsBuilder) SegmentSeconds() int { return b.segmentSeconds }

// BuildArgs builds the FFmpeg arguments encoding sourcePath into an HLS
// rendition under outputDir. The scale filter pins the target height and
// derives an even width so yuv420p encoding never fails on odd dimensions.
func (b *ArgsBuilder) BuildArgs(sourcePath, outputDir string, height, bitrateKbps int) []string {
	playlistPath := filepath.Join(outputDir, "playlist.m3u8")
	segmentPattern := filepath.Join(outputDir, "segment_%05d.ts")

	args := []string{
		"-y",
		"-hide_banner",
		"-i", sourcePath,

		"-map", "0:v:0",
		"-map", "0:a:0?",

		"-c:v", "libx264",
		"-preset", videoPreset,
		"-crf", videoCRF,
		"-maxrate", fmt.Sprintf("%dk", bitrateKbps),
		"-bufsize", fmt.Sprintf("%dk", bitrateKbps*2),
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-pix_fmt", "yuv420p",

		// Consistent GOP boundaries across renditions.
		"-g", gopSize,
		"-keyint_min", gopSize,
		"-sc_threshold", "0",
		"-flags", "+cgop",

		"-c:a", audioCodec,
		"-b:a", audioRate,
		"-ac", "2",

		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", b.segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,

		// Machine-readable progress on stderr, one key=value block per tick.
		"-progress", "pipe:2",
		"-nostats",

		playlistPath,
	}

	return args
}
