package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalObjectStore_Put(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	expires := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		key     string
		opts    *PutOptions
		wantCT  string
		wantErr bool
	}{
		{
			name:   "png by extension",
			key:    "phantomjs/screenshots/development/20260101/20260101120000.png",
			wantCT: "image/png",
		},
		{
			name:   "explicit content type and expiry",
			key:    "shots/blob",
			opts:   &PutOptions{ContentType: "image/png", Expires: &expires, Metadata: map[string]string{"env": "test"}},
			wantCT: "image/png",
		},
		{
			name:    "path traversal",
			key:     "../../../etc/passwd",
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := store.Put(ctx, tt.key, []byte("image-bytes"), tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if meta.ContentType != tt.wantCT {
				t.Errorf("ContentType = %q, want %q", meta.ContentType, tt.wantCT)
			}
			if meta.Size != int64(len("image-bytes")) {
				t.Errorf("Size = %d, want %d", meta.Size, len("image-bytes"))
			}
			if tt.opts != nil && tt.opts.Expires != nil {
				if meta.Expires == nil || !meta.Expires.Equal(*tt.opts.Expires) {
					t.Errorf("Expires = %v, want %v", meta.Expires, tt.opts.Expires)
				}
				if meta.Metadata["env"] != "test" {
					t.Errorf("Metadata not persisted: %v", meta.Metadata)
				}
			}

			data, err := os.ReadFile(filepath.Join(store.Location(), filepath.FromSlash(tt.key)))
			if err != nil {
				t.Fatalf("Object not on disk: %v", err)
			}
			if string(data) != "image-bytes" {
				t.Errorf("On-disk content = %q", data)
			}
		})
	}
}

func TestLocalObjectStore_Overwrite(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	key := "shots/overwrite.png"

	if _, err := store.Put(ctx, key, []byte("original content"), nil); err != nil {
		t.Fatalf("First put failed: %v", err)
	}
	if _, err := store.Put(ctx, key, []byte("new"), nil); err != nil {
		t.Fatalf("Second put failed: %v", err)
	}

	meta, err := store.Head(ctx, key)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if meta.Size != 3 {
		t.Errorf("Expected overwritten size 3, got %d", meta.Size)
	}
}

func TestLocalObjectStore_Exists(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	key := "shots/exists.png"

	exists, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Object should not exist yet")
	}
	if _, err := store.Head(ctx, key); !IsNotFound(err) {
		t.Errorf("Expected not found on head, got %v", err)
	}

	if _, err := store.Put(ctx, key, []byte("x"), nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	exists, err = store.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true, nil", exists, err)
	}
	if _, err := os.Stat(filepath.Join(store.Location(), "shots", "exists.png.meta.json")); err != nil {
		t.Errorf("Sidecar should be written with the object: %v", err)
	}
}
