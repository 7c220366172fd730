package encode

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/events"
	"github.com/vodforge/vodforge/internal/metrics"
)

// SegmentWatcher watches a rendition output directory while FFmpeg runs and
// publishes an event for every finished media segment. FFmpeg writes segments
// sequentially, so a create of segment N means segment N-1 is complete; the
// watcher therefore announces the previously seen segment on each create and
// flushes the last one on Stop.
type SegmentWatcher struct {
	videoID   string
	rendition string
	eventBus  events.EventBus
	logger    hclog.Logger

	watcher *fsnotify.Watcher
	pending string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSegmentWatcher creates a watcher for one rendition directory. A nil
// event bus disables publishing but still counts segments.
func NewSegmentWatcher(videoID, rendition string, eventBus events.EventBus, logger hclog.Logger) *SegmentWatcher {
	return &SegmentWatcher{
		videoID:   videoID,
		rendition: rendition,
		eventBus:  eventBus,
		logger:    logger.Named("segment-watcher"),
	}
}

// Start begins watching dir. The directory must already exist.
func (w *SegmentWatcher) Start(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.run()
	return nil
}

func (w *SegmentWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) && strings.HasSuffix(event.Name, ".ts") {
				w.advance(filepath.Base(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("segment watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

// advance marks the previously created segment as finished and remembers the
// new one.
func (w *SegmentWatcher) advance(next string) {
	if w.pending != "" {
		w.announce(w.pending)
	}
	w.pending = next
}

func (w *SegmentWatcher) announce(segment string) {
	metrics.SegmentsWrittenTotal.Inc()
	w.logger.Debug("segment ready", "rendition", w.rendition, "segment", segment)
	if w.eventBus != nil {
		_ = w.eventBus.PublishAsync(events.NewSegmentEvent(events.SegmentEventData{
			VideoID:   w.videoID,
			Rendition: w.rendition,
			Segment:   segment,
		}))
	}
}

// Stop ends the watch and flushes the final segment. Call only after FFmpeg
// has exited.
func (w *SegmentWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.done)
	w.watcher.Close()
	w.wg.Wait()
	if w.pending != "" {
		w.announce(w.pending)
		w.pending = ""
	}
}
