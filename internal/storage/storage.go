// Package storage abstracts where the pipeline reads the uploaded source and
// writes its outputs. Keys are slash-separated and namespaced per video
// (videos/<id>/...), so a whole job's artifacts can be dropped with one
// prefix delete.
package storage

import (
	"io"
)

// Storage is the object store consumed by the pipeline.
type Storage interface {
	// Open opens the object at key for reading.
	Open(key string) (io.ReadCloser, error)

	// Create creates (or truncates) the object at key for writing.
	Create(key string) (io.WriteCloser, error)

	// Exists reports whether an object exists at key.
	Exists(key string) (bool, error)

	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(prefix string) error

	// Path resolves a key to a local filesystem path the external encoder
	// can write to directly. Implementations must ensure the parent
	// directory exists.
	Path(key string) (string, error)
}

// VideoPrefix returns the storage namespace for one video's artifacts.
func VideoPrefix(videoID string) string {
	return "videos/" + videoID
}
