package storage

import (
	"context"
	"time"
)

// ObjectMetadata represents metadata about a stored object
type ObjectMetadata struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Expires      *time.Time        `json:"expires,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PutOptions provides options for storing objects
type PutOptions struct {
	ContentType string            `json:"content_type,omitempty"`
	Expires     *time.Time        `json:"expires,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ObjectStore is the narrow storage surface the screenshot pipeline needs.
// Implementations exist for S3, a local directory and an in-memory mock.
type ObjectStore interface {
	// Put writes data under key, replacing any existing object
	Put(ctx context.Context, key string, data []byte, opts *PutOptions) (*ObjectMetadata, error)

	// Head returns metadata for an object without fetching its body
	Head(ctx context.Context, key string) (*ObjectMetadata, error)

	// Exists checks if an object exists at the given key
	Exists(ctx context.Context, key string) (bool, error)

	// Location describes where the store writes (bucket name or directory)
	Location() string

	// Close cleans up any resources used by the storage implementation
	Close() error
}

// StoreConfig represents configuration for storage providers
type StoreConfig struct {
	Type     string `json:"type" yaml:"type"`           // "local", "s3", "mock"
	BasePath string `json:"base_path" yaml:"base_path"` // For local storage
	Bucket   string `json:"bucket" yaml:"bucket"`       // For S3
	Region   string `json:"region" yaml:"region"`       // For S3
}
