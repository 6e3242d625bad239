package upload

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenshot-lambda/internal/adapters/storage"
)

func newTestUploader(store storage.ObjectStore) *Uploader {
	logger, _ := test.NewNullLogger()
	u := NewUploader(store, Options{
		Bucket:        "ssh-pipeline",
		Prefix:        "phantomjs/screenshots",
		EnvironmentID: "development",
		ExpiryDays:    14,
	}, logger)
	u.SetClock(func() time.Time {
		return time.Date(2026, 10, 17, 9, 5, 7, 0, time.UTC)
	})
	return u
}

func TestObjectKey(t *testing.T) {
	u := newTestUploader(storage.NewMockObjectStore())

	key := u.ObjectKey(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "phantomjs/screenshots/development/20260102/20260102030405.png", key)

	local := time.FixedZone("AEST", 10*3600)
	key = u.ObjectKey(time.Date(2026, 1, 2, 8, 0, 0, 0, local))
	assert.Equal(t, "phantomjs/screenshots/development/20260101/20260101220000.png", key, "keys use UTC")
}

func TestUpload(t *testing.T) {
	store := storage.NewMockObjectStore()
	u := newTestUploader(store)

	res, err := u.Upload(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)

	wantKey := "phantomjs/screenshots/development/20261017/20261017090507.png"
	assert.Equal(t, wantKey, res.Key)
	assert.Equal(t, "ssh-pipeline", res.Bucket)
	assert.Equal(t, int64(9), res.Size)
	assert.Equal(t, time.Date(2026, 10, 31, 9, 5, 7, 0, time.UTC), res.Expires)

	data, ok := store.Data(wantKey)
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(data))

	meta, err := store.Head(context.Background(), wantKey)
	require.NoError(t, err)
	assert.Equal(t, ContentType, meta.ContentType)
	require.NotNil(t, meta.Expires)
	assert.True(t, meta.Expires.Equal(res.Expires))
}

func TestUploadSameSecondKeepsBoth(t *testing.T) {
	store := storage.NewMockObjectStore()
	u := newTestUploader(store)
	ctx := context.Background()

	first, err := u.Upload(ctx, []byte("first"))
	require.NoError(t, err)
	second, err := u.Upload(ctx, []byte("second"))
	require.NoError(t, err)
	third, err := u.Upload(ctx, []byte("third"))
	require.NoError(t, err)

	prefix := "phantomjs/screenshots/development/20261017/20261017090507"
	assert.Equal(t, prefix+".png", first.Key)
	assert.Equal(t, prefix+"-2.png", second.Key)
	assert.Equal(t, prefix+"-3.png", third.Key)

	data, ok := store.Data(first.Key)
	require.True(t, ok)
	assert.Equal(t, "first", string(data), "earlier upload is not overwritten")
}

func TestUploadEmptyArtifact(t *testing.T) {
	store := storage.NewMockObjectStore()
	u := newTestUploader(store)

	_, err := u.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyArtifact)
	assert.Equal(t, 0, store.PutCount())
}

func TestUploadStoreFailure(t *testing.T) {
	store := storage.NewMockObjectStore()
	store.PutErr = storage.NewStorageError("Put", "k", storage.ErrPermissionDenied, false)
	u := newTestUploader(store)

	_, err := u.Upload(context.Background(), []byte("png"))
	assert.ErrorIs(t, err, storage.ErrPermissionDenied)
}
