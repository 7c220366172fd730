// Package types defines the value types and error taxonomy shared across the
// transcoding pipeline.
package types

import (
	"time"
)

// RenditionSpec describes one quality level the planner selected. CostWeight
// is only used for progress aggregation, never by the encoder.
type RenditionSpec struct {
	Label       string  `json:"label"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	BitrateKbps int     `json:"bitrate_kbps"`
	CostWeight  float64 `json:"cost_weight"`
}

// MediaInfo is what the prober extracts from a source file.
type MediaInfo struct {
	Duration time.Duration `json:"duration"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Codec    string        `json:"codec"`
}

// Rendition is the result of encoding one RenditionSpec.
type Rendition struct {
	Spec        RenditionSpec `json:"spec"`
	PlaylistKey string        `json:"playlist_key"`
	SegmentKeys []string      `json:"segment_keys"`
}

// JobState is the lifecycle state of a processing job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// JobStatus is a point-in-time snapshot of a processing job.
type JobStatus struct {
	VideoID string   `json:"video_id"`
	State   JobState `json:"state"`

	// Progress is in [0,100], monotonically non-decreasing while running.
	Progress float64 `json:"progress"`

	// Stage is a human-readable description of the current stage,
	// e.g. "encoding 720p".
	Stage string `json:"stage,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Enqueued  time.Time `json:"enqueued"`
}

// ProgressSink receives fractional completion reports (0.0-1.0) from an
// encoder run. It decouples progress aggregation from how the external tool
// reports progress.
type ProgressSink interface {
	Report(fraction float64)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(fraction float64)

// Report implements ProgressSink.
func (f ProgressFunc) Report(fraction float64) {
	f(fraction)
}
