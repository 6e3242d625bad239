package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetachSurvivesCallerCancellation(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	h := Detach(ctx, "upload", 0, logger, func(ctx context.Context) error {
		<-release
		return ctx.Err()
	})
	cancel()
	close(release)

	require.NoError(t, h.Wait(context.Background()))
	assert.Equal(t, "upload", h.Name())
}

func TestDetachLogsFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()

	h := Detach(context.Background(), "upload", 0, logger, func(ctx context.Context) error {
		return errors.New("bucket gone")
	})

	err := h.Wait(context.Background())
	require.EqualError(t, err, "bucket gone")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "upload", entry.Data["task"])
}

func TestDetachRecoversPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()

	h := Detach(context.Background(), "metrics", 0, logger, func(ctx context.Context) error {
		panic("boom")
	})

	err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestDetachTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()

	h := Detach(context.Background(), "slow", 10*time.Millisecond, logger, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, h.Wait(context.Background()), context.DeadlineExceeded)
}

func TestWaitRespectsContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	block := make(chan struct{})
	defer close(block)

	h := Detach(context.Background(), "stuck", 0, logger, func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
}
