// Package events provides the event bus used to publish transcoding progress
// and lifecycle notifications. The pipeline is a producer only; consumers
// (websocket clients, metrics, external subscribers) attach through
// subscriptions with filters.
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

// Pipeline event types.
const (
	// Job lifecycle events
	EventVideoQueued    EventType = "video.queued"
	EventVideoProgress  EventType = "video.progress"
	EventVideoStage     EventType = "video.stage"
	EventVideoCompleted EventType = "video.completed"
	EventVideoFailed    EventType = "video.failed"
	EventVideoCanceled  EventType = "video.canceled"

	// Encoder output events
	EventSegmentReady EventType = "video.segment.ready"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// EventPriority represents the priority level of an event.
type EventPriority int

const (
	PriorityLow      EventPriority = 1
	PriorityNormal   EventPriority = 5
	PriorityHigh     EventPriority = 10
	PriorityCritical EventPriority = 20
)

// Event represents a system event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Priority  EventPriority          `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler is a function that handles events.
type EventHandler func(event Event) error

// EventFilter selects which events a subscription receives. Empty fields
// match everything.
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Matches reports whether the event passes the filter.
func (f EventFilter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if event.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Subscription represents an event subscription.
type Subscription struct {
	ID           string       `json:"id"`
	Filter       EventFilter  `json:"filter"`
	Handler      EventHandler `json:"-"`
	Subscriber   string       `json:"subscriber"`
	Created      time.Time    `json:"created"`
	TriggerCount int64        `json:"trigger_count"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	BufferSize int `json:"buffer_size"`
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{BufferSize: 1024}
}

// VideoEventData is the payload attached to job lifecycle events.
type VideoEventData struct {
	VideoID   string  `json:"video_id"`
	State     string  `json:"state"`
	Progress  float64 `json:"progress,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
}

// SegmentEventData is the payload attached to segment-ready events.
type SegmentEventData struct {
	VideoID   string `json:"video_id"`
	Rendition string `json:"rendition"`
	Segment   string `json:"segment"`
}
