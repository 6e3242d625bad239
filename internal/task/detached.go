// Package task runs work that outlives the request that started it.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Func is a unit of detached work
type Func func(ctx context.Context) error

// Handle observes a detached task. Callers are free to ignore it.
type Handle struct {
	name string
	done chan struct{}
	err  error
}

// Detach starts fn in its own goroutine and returns immediately.
//
// The task context keeps ctx's values but not its cancellation, so the task
// survives the caller returning. timeout bounds the task when positive.
// Errors and panics are reported to logger and never propagated.
func Detach(ctx context.Context, name string, timeout time.Duration, logger *logrus.Logger, fn Func) *Handle {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	h := &Handle{name: name, done: make(chan struct{})}

	taskCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(taskCtx, timeout)
	}

	go func() {
		defer close(h.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("task %s panicked: %v", name, r)
				logger.WithField("task", name).Error(h.err.Error())
			}
		}()

		start := time.Now()
		h.err = fn(taskCtx)

		entry := logger.WithFields(logrus.Fields{
			"task":        name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if h.err != nil {
			entry.WithError(h.err).Warn("Detached task failed")
			return
		}
		entry.Debug("Detached task finished")
	}()

	return h
}

// Name returns the task name
func (h *Handle) Name() string {
	return h.name
}

// Done is closed when the task has finished
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task finishes or ctx is done and returns the task error
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
