// Package blob defines the durable blob storage contract used by the image
// cache, with filesystem and S3-compatible implementations.
package blob

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// Storage is the blob storage contract. Implementations provide their own
// atomicity for single-object writes.
type Storage interface {
	// Upload stores data under path and returns its public URL.
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// Remove deletes the given objects. Missing objects are not an error.
	Remove(ctx context.Context, paths []string) error

	// List returns the objects under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
