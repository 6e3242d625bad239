package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalObjectStore writes objects into a directory tree. It backs the local
// development server where no bucket is available.
type LocalObjectStore struct {
	basePath string
}

// sidecar is persisted next to each object as <key>.meta.json
type sidecar struct {
	ContentType string            `json:"content_type"`
	Expires     *time.Time        `json:"expires,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewLocalObjectStore creates a new LocalObjectStore rooted at basePath
func NewLocalObjectStore(basePath string) (*LocalObjectStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, NewStorageError("NewLocalObjectStore", "", err, false)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, NewStorageError("NewLocalObjectStore", "", err, false)
	}

	return &LocalObjectStore{basePath: absPath}, nil
}

// Put implements ObjectStore.Put
func (l *LocalObjectStore) Put(ctx context.Context, key string, data []byte, opts *PutOptions) (*ObjectMetadata, error) {
	if err := validateKey(key); err != nil {
		return nil, NewStorageError("Put", key, err, false)
	}

	filePath := l.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, NewStorageError("Put", key, err, true)
	}

	// Write to a temp file first so readers never see a partial object
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return nil, NewStorageError("Put", key, err, true)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		os.Remove(tempPath)
		return nil, NewStorageError("Put", key, err, true)
	}

	meta := sidecar{ContentType: contentTypeFor(key, opts)}
	if opts != nil {
		meta.Expires = opts.Expires
		meta.Metadata = opts.Metadata
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, NewStorageError("Put", key, err, false)
	}
	if err := os.WriteFile(l.sidecarPath(key), raw, 0644); err != nil {
		return nil, NewStorageError("Put", key, err, true)
	}

	return l.Head(ctx, key)
}

// Head implements ObjectStore.Head
func (l *LocalObjectStore) Head(ctx context.Context, key string) (*ObjectMetadata, error) {
	if err := validateKey(key); err != nil {
		return nil, NewStorageError("Head", key, err, false)
	}

	stat, err := os.Stat(l.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewStorageError("Head", key, ErrObjectNotFound, false)
		}
		return nil, NewStorageError("Head", key, err, true)
	}

	metadata := &ObjectMetadata{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  contentTypeFor(key, nil),
		LastModified: stat.ModTime(),
		ETag:         fmt.Sprintf("%d-%d", stat.Size(), stat.ModTime().Unix()),
	}

	if raw, err := os.ReadFile(l.sidecarPath(key)); err == nil {
		var meta sidecar
		if json.Unmarshal(raw, &meta) == nil {
			metadata.ContentType = meta.ContentType
			metadata.Expires = meta.Expires
			metadata.Metadata = meta.Metadata
		}
	}

	return metadata, nil
}

// Exists implements ObjectStore.Exists
func (l *LocalObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, NewStorageError("Exists", key, err, false)
	}

	if _, err := os.Stat(l.objectPath(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, NewStorageError("Exists", key, err, true)
	}
	return true, nil
}

// Location implements ObjectStore.Location
func (l *LocalObjectStore) Location() string {
	return l.basePath
}

// Close implements ObjectStore.Close
func (l *LocalObjectStore) Close() error {
	return nil
}

func (l *LocalObjectStore) objectPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func (l *LocalObjectStore) sidecarPath(key string) string {
	return l.objectPath(key) + ".meta.json"
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	// Prevent directory traversal
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}

	return nil
}

func contentTypeFor(key string, opts *PutOptions) string {
	if opts != nil && opts.ContentType != "" {
		return opts.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
