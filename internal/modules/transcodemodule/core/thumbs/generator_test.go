package thumbs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

func TestOffset_MidpointsOfEqualSlices(t *testing.T) {
	duration := 100 * time.Second

	assert.Equal(t, 10*time.Second, Offset(duration, 0, 5))
	assert.Equal(t, 30*time.Second, Offset(duration, 1, 5))
	assert.Equal(t, 50*time.Second, Offset(duration, 2, 5))
	assert.Equal(t, 70*time.Second, Offset(duration, 3, 5))
	assert.Equal(t, 90*time.Second, Offset(duration, 4, 5))
}

func TestOffset_ShortSourceStaysInBounds(t *testing.T) {
	duration := 2 * time.Second

	for i := 0; i < 5; i++ {
		off := Offset(duration, i, 5)
		assert.GreaterOrEqual(t, off, time.Duration(0))
		assert.Less(t, off, duration)
	}
}

func TestOffset_ZeroCount(t *testing.T) {
	assert.Equal(t, time.Duration(0), Offset(time.Minute, 0, 0))
}

func TestGenerate_AllExtractionsFailIsThumbnailError(t *testing.T) {
	g := NewGenerator("/nonexistent/ffmpeg", 3, false, hclog.NewNullLogger())

	_, err := g.Generate(context.Background(), "/media/in.mp4", t.TempDir(), time.Minute)
	require.Error(t, err)

	var thumbErr *types.ThumbnailError
	assert.True(t, errors.As(err, &thumbErr))
	assert.Equal(t, types.KindThumbnailFailed, types.ErrorKind(err))
}

func TestGenerate_CanceledContext(t *testing.T) {
	g := NewGenerator("/nonexistent/ffmpeg", 3, false, hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "/media/in.mp4", t.TempDir(), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGenerator_Defaults(t *testing.T) {
	g := NewGenerator("", 0, false, hclog.NewNullLogger())
	assert.Equal(t, "ffmpeg", g.ffmpegPath)
	assert.Equal(t, 5, g.count)
}
