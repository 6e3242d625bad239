// Package renderer captures one URL into one PNG file. It runs inside the
// renderer subprocess started by the orchestrator.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoOutputPath is returned when the output path argument is missing
var ErrNoOutputPath = errors.New("output path argument is required")

// Capturer renders a URL into PNG bytes
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Job is one render request
type Job struct {
	URL        string
	OutputPath string
	Timeout    time.Duration
}

// Run renders job.URL with c and writes the image to job.OutputPath.
//
// A stale file at OutputPath is removed first, so on failure the path is
// empty rather than holding a previous screenshot.
func Run(ctx context.Context, c Capturer, job Job, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if job.OutputPath == "" {
		return ErrNoOutputPath
	}

	log := logger.WithFields(logrus.Fields{
		"url":    job.URL,
		"output": job.OutputPath,
	})
	log.Info("Start render")

	if err := os.Remove(job.OutputPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale artifact: %w", err)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := c.Capture(ctx, job.URL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("render %s timed out after %s: %w", job.URL, job.Timeout, err)
		}
		return fmt.Errorf("render %s: %w", job.URL, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("render %s: browser returned an empty image", job.URL)
	}

	if err := writeAtomic(job.OutputPath, data); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	log.WithFields(logrus.Fields{
		"bytes":       len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Screenshot is saved")
	return nil
}

// writeAtomic writes data next to path and renames it into place
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
