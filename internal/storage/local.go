package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local is a filesystem-backed Storage rooted at a data directory.
type Local struct {
	root string
}

// NewLocal creates a local storage rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the storage root directory.
func (l *Local) Root() string {
	return l.root
}

// Open opens the object at key for reading.
func (l *Local) Open(key string) (io.ReadCloser, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Create creates the object at key for writing.
func (l *Local) Create(key string) (io.WriteCloser, error) {
	path, err := l.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Create(path)
}

// Exists reports whether an object exists at key.
func (l *Local) Exists(key string) (bool, error) {
	path, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeletePrefix removes every object under prefix.
func (l *Local) DeletePrefix(prefix string) error {
	path, err := l.resolve(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// Path resolves a key to a writable filesystem path, creating parents.
func (l *Local) Path(key string) (string, error) {
	path, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	return path, nil
}

// resolve maps a key to a path under the root, rejecting traversal outside it.
func (l *Local) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(l.root, clean), nil
}
