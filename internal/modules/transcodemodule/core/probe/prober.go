// Package probe extracts media information from source files using FFprobe.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// Prober uses FFprobe to extract media information.
type Prober struct {
	ffprobePath string
	logger      hclog.Logger
}

// probeOutput mirrors the JSON FFprobe emits with -show_format -show_streams.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// NewProber creates a new media prober.
func NewProber(ffprobePath string, logger hclog.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, logger: logger.Named("prober")}
}

// Probe inspects the source file and returns its duration, pixel dimensions
// and video codec. Unreadable or undecodable input yields a ProbeError.
func (p *Prober) Probe(ctx context.Context, sourcePath string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		sourcePath,
	)

	output, err := cmd.Output()
	if err != nil {
		return types.MediaInfo{}, &types.ProbeError{Source: sourcePath, Cause: fmt.Errorf("ffprobe failed: %w", err)}
	}

	info, err := parse(sourcePath, output)
	if err != nil {
		return types.MediaInfo{}, err
	}

	p.logger.Debug("probed source",
		"source", sourcePath,
		"duration", info.Duration,
		"resolution", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"codec", info.Codec,
	)

	return info, nil
}

// parse extracts MediaInfo from raw ffprobe JSON output.
func parse(sourcePath string, output []byte) (types.MediaInfo, error) {
	var result probeOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return types.MediaInfo{}, &types.ProbeError{Source: sourcePath, Cause: fmt.Errorf("failed to parse ffprobe output: %w", err)}
	}

	info := types.MediaInfo{}

	if result.Format.Duration == "" {
		return types.MediaInfo{}, &types.ProbeError{Source: sourcePath, Cause: fmt.Errorf("no duration found in media file")}
	}
	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return types.MediaInfo{}, &types.ProbeError{Source: sourcePath, Cause: fmt.Errorf("failed to parse duration: %w", err)}
	}
	info.Duration = time.Duration(seconds * float64(time.Second))

	for _, stream := range result.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			break
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return types.MediaInfo{}, &types.ProbeError{Source: sourcePath, Cause: fmt.Errorf("no video stream found")}
	}

	return info, nil
}
