package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventBus defines the interface for the event bus system.
type EventBus interface {
	// Publish publishes an event, blocking until accepted or ctx is done.
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without blocking; the event is dropped
	// if the bus buffer is full.
	PublishAsync(event Event) error

	// Subscribe registers a handler for events matching the filter.
	Subscribe(filter EventFilter, subscriber string, handler EventHandler) (*Subscription, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(subscriptionID string) error

	// Start starts the dispatch loop.
	Start(ctx context.Context) error

	// Stop stops the bus gracefully, draining buffered events.
	Stop(ctx context.Context) error
}

// NewEvent creates a new event with defaults filled in.
func NewEvent(eventType EventType, source, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Message:   message,
		Data:      make(map[string]interface{}),
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
	}
}

// NewVideoEvent creates a job lifecycle event for a video.
func NewVideoEvent(eventType EventType, data VideoEventData) Event {
	ev := NewEvent(eventType, "module:transcode", fmt.Sprintf("video %s %s", data.VideoID, data.State))
	ev.Data["video_id"] = data.VideoID
	ev.Data["state"] = data.State
	if data.Stage != "" {
		ev.Data["stage"] = data.Stage
	}
	ev.Data["progress"] = data.Progress
	if data.Error != "" {
		ev.Data["error"] = data.Error
		ev.Data["error_kind"] = data.ErrorKind
		ev.Priority = PriorityHigh
	}
	return ev
}

// NewSegmentEvent creates a segment-ready event.
func NewSegmentEvent(data SegmentEventData) Event {
	ev := NewEvent(EventSegmentReady, "module:transcode",
		fmt.Sprintf("segment %s ready for video %s", data.Segment, data.VideoID))
	ev.Data["video_id"] = data.VideoID
	ev.Data["rendition"] = data.Rendition
	ev.Data["segment"] = data.Segment
	ev.Priority = PriorityLow
	return ev
}
