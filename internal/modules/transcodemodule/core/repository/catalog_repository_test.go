package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vodforge/vodforge/internal/database"
	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

func setupRepo(t *testing.T) *CatalogRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	// Shared-cache in-memory databases leak between tests unless scoped.
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
	return NewCatalogRepository(db, hclog.NewNullLogger())
}

func seedVideo(t *testing.T, repo *CatalogRepository, id string) {
	t.Helper()
	require.NoError(t, repo.CreateVideo(context.Background(), &database.VideoAsset{
		ID:        id,
		Title:     "Test " + id,
		SourceKey: "uploads/" + id + ".mp4",
	}))
}

func TestCreateVideo_DefaultsToUploaded(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, database.VideoStatusUploaded, asset.Status)
	assert.Empty(t, asset.ManifestKey)
}

func TestGetVideo_NotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.GetVideo(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestMarkProcessing_ClearsPreviousError(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	require.NoError(t, repo.MarkError(context.Background(), "vid-1", types.KindEncodeFailed, "exit code 1"))
	require.NoError(t, repo.MarkProcessing(context.Background(), "vid-1"))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, database.VideoStatusProcessing, asset.Status)
	assert.Empty(t, asset.ErrorKind)
	assert.Empty(t, asset.ErrorMessage)
}

// Re-enqueueing a ready video must not leave the old results visible while
// the new job runs: processing implies no renditions and no manifest.
func TestMarkProcessing_ClearsCommittedResults(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	require.NoError(t, repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p", Width: 640, Height: 360, BitrateKbps: 500}, PlaylistKey: "videos/vid-1/360p/playlist.m3u8"},
		{Spec: types.RenditionSpec{Label: "480p", Width: 854, Height: 480, BitrateKbps: 1000}, PlaylistKey: "videos/vid-1/480p/playlist.m3u8"},
	}))
	require.NoError(t, repo.MarkProcessing(context.Background(), "vid-1"))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, database.VideoStatusProcessing, asset.Status)
	assert.Empty(t, asset.ManifestKey)
	assert.Empty(t, asset.Renditions)
}

func TestMarkProcessing_UnknownVideo(t *testing.T) {
	repo := setupRepo(t)

	err := repo.MarkProcessing(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestMarkError_ClearsManifestKey(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	require.NoError(t, repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p", Width: 640, Height: 360, BitrateKbps: 500}, PlaylistKey: "videos/vid-1/360p/playlist.m3u8"},
	}))
	require.NoError(t, repo.MarkError(context.Background(), "vid-1", types.KindInternal, "boom"))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, database.VideoStatusError, asset.Status)
	assert.Empty(t, asset.ManifestKey)
	assert.Equal(t, types.KindInternal, asset.ErrorKind)
}

func TestSetSourceInfo(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	require.NoError(t, repo.SetSourceInfo(context.Background(), "vid-1", types.MediaInfo{
		Duration: 90 * time.Second,
		Width:    1920,
		Height:   1080,
		Codec:    "h264",
	}))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, asset.SourceDuration)
	assert.Equal(t, 1920, asset.SourceWidth)
	assert.Equal(t, 1080, asset.SourceHeight)
	assert.Equal(t, "h264", asset.SourceCodec)
}

func TestCommitResults_AtomicAndOrdered(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	renditions := []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p", Width: 640, Height: 360, BitrateKbps: 500},
			PlaylistKey: "videos/vid-1/360p/playlist.m3u8",
			SegmentKeys: []string{"videos/vid-1/360p/segment_00000.ts"}},
		{Spec: types.RenditionSpec{Label: "720p", Width: 1280, Height: 720, BitrateKbps: 2500},
			PlaylistKey: "videos/vid-1/720p/playlist.m3u8",
			SegmentKeys: []string{"videos/vid-1/720p/segment_00000.ts", "videos/vid-1/720p/segment_00001.ts"}},
	}
	require.NoError(t, repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", renditions))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, database.VideoStatusReady, asset.Status)
	assert.Equal(t, "videos/vid-1/master.m3u8", asset.ManifestKey)
	require.Len(t, asset.Renditions, 2)
	assert.Equal(t, "360p", asset.Renditions[0].Label)
	assert.Equal(t, "720p", asset.Renditions[1].Label)
	assert.Len(t, asset.Renditions[1].SegmentKeys, 2)
}

func TestCommitResults_ReplacesPreviousRenditions(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	first := []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p", Width: 640, Height: 360, BitrateKbps: 500}, PlaylistKey: "videos/vid-1/360p/playlist.m3u8"},
	}
	require.NoError(t, repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", first))

	second := []types.Rendition{
		{Spec: types.RenditionSpec{Label: "480p", Width: 854, Height: 480, BitrateKbps: 1000}, PlaylistKey: "videos/vid-1/480p/playlist.m3u8"},
	}
	require.NoError(t, repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", second))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	require.Len(t, asset.Renditions, 1)
	assert.Equal(t, "480p", asset.Renditions[0].Label)
}

func TestCommitResults_UnknownVideo(t *testing.T) {
	repo := setupRepo(t)

	err := repo.CommitResults(context.Background(), "missing", "videos/missing/master.m3u8", []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p"}, PlaylistKey: "videos/missing/360p/playlist.m3u8"},
	})
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestClearRenditions(t *testing.T) {
	repo := setupRepo(t)
	seedVideo(t, repo, "vid-1")

	require.NoError(t, repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p"}, PlaylistKey: "videos/vid-1/360p/playlist.m3u8"},
	}))
	require.NoError(t, repo.ClearRenditions(context.Background(), "vid-1"))

	asset, err := repo.GetVideo(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Empty(t, asset.Renditions)
}

// A failing rendition insert must roll back the whole commit so the asset
// never flips to ready with a partial set.
func TestCommitResults_RollsBackOnInsertFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "renditions"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "renditions"`).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	repo := NewCatalogRepository(db, hclog.NewNullLogger())
	err = repo.CommitResults(context.Background(), "vid-1", "videos/vid-1/master.m3u8", []types.Rendition{
		{Spec: types.RenditionSpec{Label: "360p"}, PlaylistKey: "videos/vid-1/360p/playlist.m3u8"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
