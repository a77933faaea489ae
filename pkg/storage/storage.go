// Package storage keeps a copy of every imported statement file, grouped by
// source name.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("archived file not found")

// FileInfo contains metadata about an archived file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Namespace   string    `json:"namespace"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the namespace directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the archive operations
type Storage interface {
	// Upload stores a file and returns its metadata
	Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for an archived file
	Open(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file and its metadata
	Delete(ctx context.Context, namespace string, fileID uuid.UUID) error

	// List returns the files of a namespace, oldest first
	List(ctx context.Context, namespace string) ([]*FileInfo, error)
}

// Config holds storage configuration
type Config struct {
	// Archive root; empty disables archiving
	LocalPath string
}

// New returns the configured archive, or nil when archiving is disabled.
func New(cfg Config) (Storage, error) {
	if cfg.LocalPath == "" {
		return nil, nil
	}
	return NewLocalStorage(cfg.LocalPath)
}
