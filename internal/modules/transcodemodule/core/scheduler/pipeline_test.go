package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vodforge/vodforge/internal/database"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/encode"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/ladder"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/manifest"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/probe"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/repository"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/core/thumbs"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
	"github.com/vodforge/vodforge/internal/storage"
)

type pipelineFixture struct {
	pipeline *Pipeline
	store    *storage.Local
	catalog  *repository.CatalogRepository
}

// setupPipeline wires a pipeline against real local storage and an in-memory
// catalog, with tool paths pointing nowhere so external stages fail on
// demand.
func setupPipeline(t *testing.T) *pipelineFixture {
	return setupPipelineWithTools(t, "/nonexistent/ffprobe", "/nonexistent/ffmpeg")
}

// setupPipelineWithTools is the same fixture with caller-supplied probe and
// encode binaries, so tests can substitute scripted stand-ins.
func setupPipelineWithTools(t *testing.T, ffprobePath, ffmpegPath string) *pipelineFixture {
	t.Helper()

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	log := hclog.NewNullLogger()
	catalog := repository.NewCatalogRepository(db, log)
	pipeline := NewPipeline(PipelineDeps{
		Prober:    probe.NewProber(ffprobePath, log),
		Planner:   ladder.NewPlanner(log),
		Encoder:   encode.NewEncoder(ffmpegPath, 10, log),
		Thumbs:    thumbs.NewGenerator(ffmpegPath, 5, false, log),
		Assembler: manifest.NewAssembler(log),
		Store:     store,
		Catalog:   catalog,
		EventBus:  nil,
		Logger:    log,
	})

	return &pipelineFixture{pipeline: pipeline, store: store, catalog: catalog}
}

func (f *pipelineFixture) seed(t *testing.T, videoID string) {
	t.Helper()
	require.NoError(t, f.catalog.CreateVideo(context.Background(), &database.VideoAsset{
		ID:        videoID,
		Title:     "Test " + videoID,
		SourceKey: "uploads/" + videoID + ".mp4",
	}))
	w, err := f.store.Create("uploads/" + videoID + ".mp4")
	require.NoError(t, err)
	_, err = w.Write([]byte("not really a video"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestPipeline_ProbeFailureCleansUp(t *testing.T) {
	f := setupPipeline(t)
	f.seed(t, "vid-1")

	// A stray artifact from a previous attempt must also be removed.
	w, err := f.store.Create("videos/vid-1/720p/segment_00000.ts")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = f.pipeline.Run(context.Background(), "vid-1", "uploads/vid-1.mp4", func(float64, string) {})
	require.Error(t, err)

	var probeErr *types.ProbeError
	assert.True(t, errors.As(err, &probeErr))

	asset, getErr := f.catalog.GetVideo(context.Background(), "vid-1")
	require.NoError(t, getErr)
	assert.Equal(t, database.VideoStatusError, asset.Status)
	assert.Equal(t, types.KindProbeFailed, asset.ErrorKind)
	assert.Empty(t, asset.ManifestKey)
	assert.Empty(t, asset.Renditions)

	// The whole video prefix is gone; the uploaded source is untouched.
	_, statErr := os.Stat(filepath.Join(f.store.Root(), "videos", "vid-1"))
	assert.True(t, os.IsNotExist(statErr))
	exists, err := f.store.Exists("uploads/vid-1.mp4")
	require.NoError(t, err)
	assert.True(t, exists)
}

func writeStubTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// A failure on the second rendition of the ladder must wipe the first
// rendition's artifacts and leave the catalog with no renditions and no
// manifest.
func TestPipeline_EncodeFailureMidLadderCleansUp(t *testing.T) {
	toolDir := t.TempDir()

	// An 854x480 source plans two renditions: 360p then 480p.
	ffprobe := writeStubTool(t, toolDir, "ffprobe", "#!/bin/sh\n"+
		`echo '{"format":{"duration":"10.0"},"streams":[{"codec_type":"video","codec_name":"h264","width":854,"height":480}]}'`+"\n")

	// The encoder succeeds once, then exits non-zero on the next rendition.
	ffmpeg := writeStubTool(t, toolDir, "ffmpeg", `#!/bin/sh
marker="$(dirname "$0")/ran_once"
if [ -e "$marker" ]; then
	echo "Error while encoding" >&2
	exit 1
fi
touch "$marker"
exit 0
`)

	f := setupPipelineWithTools(t, ffprobe, ffmpeg)
	f.seed(t, "vid-1")

	err := f.pipeline.Run(context.Background(), "vid-1", "uploads/vid-1.mp4", func(float64, string) {})
	require.Error(t, err)

	var encodeErr *types.EncodeError
	require.True(t, errors.As(err, &encodeErr))
	assert.Equal(t, "480p", encodeErr.Rendition)

	asset, getErr := f.catalog.GetVideo(context.Background(), "vid-1")
	require.NoError(t, getErr)
	assert.Equal(t, database.VideoStatusError, asset.Status)
	assert.Equal(t, types.KindEncodeFailed, asset.ErrorKind)
	assert.Empty(t, asset.ManifestKey)
	assert.Empty(t, asset.Renditions)

	// The 360p artifacts written before the failure are gone with the rest
	// of the prefix; the uploaded source survives.
	_, statErr := os.Stat(filepath.Join(f.store.Root(), "videos", "vid-1"))
	assert.True(t, os.IsNotExist(statErr))
	exists, err := f.store.Exists("uploads/vid-1.mp4")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPipeline_CanceledJobRecordsCanceledKind(t *testing.T) {
	f := setupPipeline(t)
	f.seed(t, "vid-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.pipeline.Run(ctx, "vid-1", "uploads/vid-1.mp4", func(float64, string) {})
	require.Error(t, err)

	asset, getErr := f.catalog.GetVideo(context.Background(), "vid-1")
	require.NoError(t, getErr)
	assert.Equal(t, database.VideoStatusError, asset.Status)
	assert.Equal(t, types.KindCanceled, asset.ErrorKind)
}

func TestPipeline_UnknownVideoFailsFast(t *testing.T) {
	f := setupPipeline(t)

	err := f.pipeline.Run(context.Background(), "missing", "uploads/missing.mp4", func(float64, string) {})
	require.Error(t, err)
}
