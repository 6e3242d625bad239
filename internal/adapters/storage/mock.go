package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockObjectStore is an in-memory implementation of ObjectStore for testing
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string]*mockObject

	// PutErr, when set, is returned by every Put call
	PutErr error
	puts   int
}

type mockObject struct {
	data         []byte
	contentType  string
	expires      *time.Time
	metadata     map[string]string
	lastModified time.Time
	etag         string
}

// NewMockObjectStore creates a new MockObjectStore instance
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects: make(map[string]*mockObject),
	}
}

// Put implements ObjectStore.Put
func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, opts *PutOptions) (*ObjectMetadata, error) {
	if key == "" {
		return nil, NewStorageError("Put", key, ErrInvalidKey, false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.PutErr != nil {
		return nil, m.PutErr
	}

	obj := &mockObject{
		data:         append([]byte(nil), data...),
		contentType:  contentTypeFor(key, opts),
		lastModified: time.Now(),
		etag:         fmt.Sprintf("\"%d-%d\"", len(data), m.puts),
	}
	if opts != nil {
		obj.expires = opts.Expires
		if opts.Metadata != nil {
			obj.metadata = make(map[string]string, len(opts.Metadata))
			for k, v := range opts.Metadata {
				obj.metadata[k] = v
			}
		}
	}
	m.objects[key] = obj

	return obj.toMetadata(key), nil
}

// Head implements ObjectStore.Head
func (m *MockObjectStore) Head(ctx context.Context, key string) (*ObjectMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, NewStorageError("Head", key, ErrObjectNotFound, false)
	}
	return obj.toMetadata(key), nil
}

// Exists implements ObjectStore.Exists
func (m *MockObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

// Location implements ObjectStore.Location
func (m *MockObjectStore) Location() string {
	return "mock"
}

// Close implements ObjectStore.Close
func (m *MockObjectStore) Close() error {
	return nil
}

// Data returns a copy of the stored bytes for key
func (m *MockObjectStore) Data(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Keys returns every stored key
func (m *MockObjectStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// PutCount returns how many times Put has been called, failed calls included
func (m *MockObjectStore) PutCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

func (o *mockObject) toMetadata(key string) *ObjectMetadata {
	return &ObjectMetadata{
		Key:          key,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		LastModified: o.lastModified,
		Expires:      o.expires,
		ETag:         o.etag,
		Metadata:     o.metadata,
	}
}
