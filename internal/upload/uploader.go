// Package upload copies rendered screenshots into object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"screenshot-lambda/internal/adapters/storage"
)

// ContentType of every uploaded screenshot
const ContentType = "image/png"

// Options describes where screenshots go and how long they live
type Options struct {
	Bucket        string
	Prefix        string
	EnvironmentID string
	ExpiryDays    int
}

// Result describes a completed upload
type Result struct {
	Bucket  string
	Key     string
	Size    int64
	Expires time.Time
	ETag    string
}

// Uploader stores artifact files under dated keys
type Uploader struct {
	store  storage.ObjectStore
	opts   Options
	now    func() time.Time
	logger *logrus.Logger
}

// NewUploader creates an Uploader writing to store
func NewUploader(store storage.ObjectStore, opts Options, logger *logrus.Logger) *Uploader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Uploader{
		store:  store,
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source used for keys and expiry
func (u *Uploader) SetClock(now func() time.Time) {
	u.now = now
}

// ObjectKey returns <prefix>/<environment>/<YYYYMMDD>/<YYYYMMDDHHmmss>.png for t
func (u *Uploader) ObjectKey(t time.Time) string {
	t = t.UTC()
	return path.Join(
		u.opts.Prefix,
		u.opts.EnvironmentID,
		t.Format("20060102"),
		t.Format("20060102150405")+".png",
	)
}

// maxKeyAttempts bounds the suffixes tried when a key is taken
const maxKeyAttempts = 10

// ErrEmptyArtifact is returned when there is nothing to upload
var ErrEmptyArtifact = errors.New("artifact is empty")

// Upload stores data under a dated key. A key already taken in the same
// second gets a -2, -3, ... suffix instead of being overwritten.
func (u *Uploader) Upload(ctx context.Context, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyArtifact
	}

	now := u.now()
	key, err := u.freeKey(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("upload screenshot: %w", err)
	}
	expires := now.UTC().AddDate(0, 0, u.opts.ExpiryDays)

	meta, err := u.store.Put(ctx, key, data, &storage.PutOptions{
		ContentType: ContentType,
		Expires:     &expires,
		Metadata: map[string]string{
			"environment": u.opts.EnvironmentID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload screenshot: %w", err)
	}

	u.logger.WithFields(logrus.Fields{
		"bucket": u.opts.Bucket,
		"key":    key,
		"bytes":  len(data),
	}).Infof("Screenshot saved in %s bucket, object name %s", u.opts.Bucket, key)

	return &Result{
		Bucket:  u.opts.Bucket,
		Key:     key,
		Size:    int64(len(data)),
		Expires: expires,
		ETag:    meta.ETag,
	}, nil
}

func (u *Uploader) freeKey(ctx context.Context, t time.Time) (string, error) {
	key := u.ObjectKey(t)
	base := strings.TrimSuffix(key, ".png")
	for i := 1; i <= maxKeyAttempts; i++ {
		candidate := key
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d.png", base, i)
		}
		exists, err := u.store.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free key for %s after %d attempts", key, maxKeyAttempts)
}
