package types

import (
	"errors"
	"fmt"
)

// Error kinds persisted to the catalog and attached to failure events.
const (
	KindProbeFailed     = "probe_failed"
	KindEncodeFailed    = "encode_failed"
	KindThumbnailFailed = "thumbnail_failed"
	KindAssemblyFailed  = "assembly_failed"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// ProbeError means the source file could not be read or decoded. Fatal for
// the job; no renditions are attempted.
type ProbeError struct {
	Source string
	Cause  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe failed for %s: %v", e.Source, e.Cause)
}

func (e *ProbeError) Unwrap() error { return e.Cause }

// EncodeError means one rendition encode exited non-zero. Fatal for the whole
// job; partial artifacts are cleaned up.
type EncodeError struct {
	Rendition string
	ExitInfo  string
	Cause     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode failed for rendition %s (%s): %v", e.Rendition, e.ExitInfo, e.Cause)
}

func (e *EncodeError) Unwrap() error { return e.Cause }

// ThumbnailError means thumbnail extraction failed. Non-fatal: the job
// proceeds without a poster.
type ThumbnailError struct {
	Cause error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("thumbnail generation failed: %v", e.Cause)
}

func (e *ThumbnailError) Unwrap() error { return e.Cause }

// AssemblyError means the master manifest could not be produced. Fatal.
type AssemblyError struct {
	Cause error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("manifest assembly failed: %v", e.Cause)
}

func (e *AssemblyError) Unwrap() error { return e.Cause }

// AlreadyQueuedError is returned by Enqueue when a job for the video already
// exists (queued or running).
type AlreadyQueuedError struct {
	VideoID string
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("job already queued or running for video %s", e.VideoID)
}

// NotFoundError is returned by Cancel and Status when no job exists for the
// video.
type NotFoundError struct {
	VideoID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no job found for video %s", e.VideoID)
}

// ErrorKind maps a pipeline error to its persisted kind string.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var probe *ProbeError
	var encode *EncodeError
	var thumb *ThumbnailError
	var assembly *AssemblyError
	switch {
	case errors.As(err, &probe):
		return KindProbeFailed
	case errors.As(err, &encode):
		return KindEncodeFailed
	case errors.As(err, &thumb):
		return KindThumbnailFailed
	case errors.As(err, &assembly):
		return KindAssemblyFailed
	default:
		return KindInternal
	}
}
