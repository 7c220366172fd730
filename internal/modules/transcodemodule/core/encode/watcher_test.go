package encode

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodforge/vodforge/internal/events"
)

func TestSegmentWatcher_AnnouncesCompletedSegments(t *testing.T) {
	bus := events.NewEventBus(events.DefaultBusConfig())
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Stop(context.Background())

	received := make(chan events.Event, 16)
	_, err := bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventSegmentReady}},
		"test", func(ev events.Event) error {
			received <- ev
			return nil
		})
	require.NoError(t, err)

	dir := t.TempDir()
	w := NewSegmentWatcher("vid-1", "720p", bus, hclog.NewNullLogger())
	require.NoError(t, w.Start(dir))

	writeFile := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644))
	}

	// The first segment is only announced once the second one appears.
	writeFile("segment_00000.ts")
	writeFile("segment_00001.ts")

	select {
	case ev := <-received:
		assert.Equal(t, "vid-1", ev.Data["video_id"])
		assert.Equal(t, "720p", ev.Data["rendition"])
		assert.Equal(t, "segment_00000.ts", ev.Data["segment"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for segment event")
	}

	// Stop flushes the trailing segment.
	w.Stop()

	select {
	case ev := <-received:
		assert.Equal(t, "segment_00001.ts", ev.Data["segment"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for final segment event")
	}
}

func TestSegmentWatcher_IgnoresNonSegmentFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewSegmentWatcher("vid-2", "360p", nil, hclog.NewNullLogger())
	require.NoError(t, w.Start(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "playlist.m3u8"), []byte("#EXTM3U"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_00000.ts"), []byte("data"), 0o644))

	// Give fsnotify time to deliver before stopping.
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	assert.Equal(t, "", w.pending)
}

func TestListSegments_SortedPlaybackOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"segment_00002.ts", "segment_00000.ts", "segment_00001.ts", "playlist.m3u8"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	segments, err := ListSegments(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"segment_00000.ts", "segment_00001.ts", "segment_00002.ts"}, segments)
}
