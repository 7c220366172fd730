package probe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

func TestParse_FullOutput(t *testing.T) {
	output := []byte(`{
		"format": {"duration": "60.512000", "bit_rate": "4500000"},
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080}
		]
	}`)

	info, err := parse("/media/source.mp4", output)
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.Equal(t, "h264", info.Codec)
	assert.InDelta(t, 60.512, info.Duration.Seconds(), 0.001)
}

func TestParse_NoVideoStream(t *testing.T) {
	output := []byte(`{
		"format": {"duration": "12.0"},
		"streams": [{"codec_type": "audio", "codec_name": "mp3"}]
	}`)

	_, err := parse("/media/audio.mp3", output)
	require.Error(t, err)

	var probeErr *types.ProbeError
	assert.True(t, errors.As(err, &probeErr))
	assert.Equal(t, types.KindProbeFailed, types.ErrorKind(err))
}

func TestParse_MissingDuration(t *testing.T) {
	output := []byte(`{"format": {}, "streams": [{"codec_type": "video", "width": 640, "height": 360}]}`)

	_, err := parse("/media/broken.mp4", output)
	var probeErr *types.ProbeError
	require.True(t, errors.As(err, &probeErr))
}

func TestParse_Garbage(t *testing.T) {
	_, err := parse("/media/garbage.bin", []byte("not json"))
	require.Error(t, err)
}

func TestParse_DurationPrecision(t *testing.T) {
	output := []byte(`{
		"format": {"duration": "0.04"},
		"streams": [{"codec_type": "video", "codec_name": "h264", "width": 854, "height": 480}]
	}`)

	info, err := parse("/media/short.mp4", output)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, info.Duration)
}
