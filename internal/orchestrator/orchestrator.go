// Package orchestrator drives one screenshot invocation: it runs the renderer
// subprocess, waits for it to exit, and turns the artifact into a response.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"screenshot-lambda/internal/config"
	"screenshot-lambda/internal/metrics"
	"screenshot-lambda/internal/process"
	"screenshot-lambda/internal/task"
	"screenshot-lambda/internal/upload"
	"screenshot-lambda/pkg/lambda"
)

// ContentType of the response body once decoded
const ContentType = "image/png"

// metricsTimeout bounds detached metric publication, output drain included
const metricsTimeout = 5 * time.Second

// ArtifactUploader hands a finished artifact to object storage
type ArtifactUploader interface {
	Upload(ctx context.Context, data []byte) (*upload.Result, error)
}

// Options configures an Orchestrator
type Options struct {
	Render        config.RenderConfig
	UploadEnabled bool
	UploadAwait   bool
	UploadTimeout time.Duration
	// Env is passed to the renderer after the render settings
	Env []string
}

// OptionsFromConfig builds Options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Render:        cfg.Render,
		UploadEnabled: cfg.Upload.Enabled,
		UploadAwait:   cfg.Upload.Await,
		UploadTimeout: cfg.Upload.Timeout,
	}
}

// Invocation is the outcome of one successful Run
type Invocation struct {
	ID           string
	ArtifactPath string
	Exit         process.ExitStatus
	Response     *lambda.Response
	// Upload is set when the upload was awaited
	Upload *upload.Result
	// UploadTask observes a detached upload, nil otherwise
	UploadTask *task.Handle
	// MetricsTask observes metric publication
	MetricsTask *task.Handle
}

// Orchestrator runs screenshot invocations
type Orchestrator struct {
	opts     Options
	uploader ArtifactUploader
	metrics  metrics.Publisher
	logger   *logrus.Logger
	newID    func() string
}

// New creates an Orchestrator. uploader may be nil when uploads are disabled.
func New(opts Options, uploader ArtifactUploader, publisher metrics.Publisher, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if publisher == nil {
		publisher = metrics.NopPublisher{}
	}
	return &Orchestrator{
		opts:     opts,
		uploader: uploader,
		metrics:  publisher,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Invoke runs one invocation and returns only its response
func (o *Orchestrator) Invoke(ctx context.Context) (*lambda.Response, error) {
	inv, err := o.Run(ctx)
	if err != nil {
		return nil, err
	}
	return inv.Response, nil
}

// Run renders one screenshot.
//
// The artifact is only touched after the renderer has exited, and it is read
// exactly once: the upload gets the bytes, not the path. A missing or empty
// artifact, a non-zero exit or an expired deadline fail the invocation with a
// *RenderError. Upload failures never do.
func (o *Orchestrator) Run(ctx context.Context) (*Invocation, error) {
	inv := &Invocation{ID: o.invocationID(ctx)}
	inv.ArtifactPath = o.artifactPath(inv.ID)

	log := o.logger.WithFields(logrus.Fields{
		"invocation_id": inv.ID,
		"artifact":      inv.ArtifactPath,
	})
	log.Info("Invocation started")

	ctx, cancel := context.WithTimeout(ctx, o.opts.Render.EffectiveInvocationTimeout())
	defer cancel()

	if err := os.Remove(inv.ArtifactPath); err != nil && !os.IsNotExist(err) {
		return nil, o.fail(ctx, log, inv, &RenderError{Kind: ErrLaunchFailed, ArtifactPath: inv.ArtifactPath, Err: fmt.Errorf("remove stale artifact: %w", err)})
	}

	start := time.Now()
	proc, err := process.Start(ctx, o.processSpec(inv.ArtifactPath), o.logger)
	if err != nil {
		return nil, o.fail(ctx, log, inv, &RenderError{Kind: ErrLaunchFailed, ArtifactPath: inv.ArtifactPath, Err: err})
	}

	status, err := proc.WaitExit(ctx)
	if err != nil {
		// the deadline kills the child, Exited still fires
		<-proc.Exited()
		status = proc.Status()
	}
	exitedAt := time.Now()
	inv.Exit = status
	log = log.WithField("exit", inv.Exit.String())

	// A non-zero exit fails even if a file is present: the renderer removes
	// stale output first and writes atomically, so only exit 0 vouches for it.
	if !inv.Exit.Success() {
		kind := ErrRenderFailed
		if ctx.Err() != nil {
			kind = ErrRenderTimeout
		}
		return nil, o.fail(ctx, log, inv, &RenderError{Kind: kind, ArtifactPath: inv.ArtifactPath, Exit: &inv.Exit, Err: ctx.Err()})
	}

	data, err := os.ReadFile(inv.ArtifactPath)
	o.cleanup(log, inv.ArtifactPath)
	if err != nil {
		return nil, o.fail(ctx, log, inv, &RenderError{Kind: ErrRenderFailed, ArtifactPath: inv.ArtifactPath, Exit: &inv.Exit, Err: err})
	}
	if len(data) == 0 {
		return nil, o.fail(ctx, log, inv, &RenderError{Kind: ErrRenderFailed, ArtifactPath: inv.ArtifactPath, Exit: &inv.Exit, Err: errors.New("artifact is empty")})
	}

	o.startUpload(ctx, log, inv, data)

	inv.Response = &lambda.Response{
		StatusCode:      200,
		Headers:         map[string]string{"Content-Type": ContentType},
		Body:            []byte(base64.StdEncoding.EncodeToString(data)),
		IsBase64Encoded: true,
	}

	elapsed := time.Since(start)
	size := len(data)
	inv.MetricsTask = task.Detach(ctx, "metrics", metricsTimeout, o.logger, func(tctx context.Context) error {
		batch := []metrics.Datum{
			{Name: metrics.RenderDuration, Value: float64(elapsed.Milliseconds()), Unit: metrics.UnitMilliseconds},
			{Name: metrics.ArtifactBytes, Value: float64(size), Unit: metrics.UnitBytes},
		}
		// output may outlive the renderer when a browser process inherits it
		select {
		case <-proc.Closed():
			batch = append(batch, metrics.Datum{Name: metrics.OutputDrain, Value: float64(time.Since(exitedAt).Milliseconds()), Unit: metrics.UnitMilliseconds})
		case <-tctx.Done():
		}
		return o.metrics.Publish(tctx, batch...)
	})

	log.WithFields(logrus.Fields{
		"bytes":       size,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Invocation finished")
	return inv, nil
}

// startUpload runs the upload gate on the bytes already read
func (o *Orchestrator) startUpload(ctx context.Context, log *logrus.Entry, inv *Invocation, data []byte) {
	if !o.opts.UploadEnabled || o.uploader == nil {
		return
	}

	if o.opts.UploadAwait {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.UploadTimeout)
		defer cancel()
		res, err := o.uploader.Upload(uctx, data)
		if err != nil {
			log.WithError(err).Error("Screenshot upload failed")
			o.publish(ctx, "upload-metrics", metrics.Datum{Name: metrics.UploadFailure, Value: 1, Unit: metrics.UnitCount})
			return
		}
		inv.Upload = res
		return
	}

	inv.UploadTask = task.Detach(ctx, "upload", o.opts.UploadTimeout, o.logger, func(tctx context.Context) error {
		if _, err := o.uploader.Upload(tctx, data); err != nil {
			if perr := o.metrics.Publish(tctx, metrics.Datum{Name: metrics.UploadFailure, Value: 1, Unit: metrics.UnitCount}); perr != nil {
				log.WithError(perr).Debug("Publishing upload failure metric failed")
			}
			return err
		}
		return nil
	})
}

func (o *Orchestrator) fail(ctx context.Context, log *logrus.Entry, inv *Invocation, err *RenderError) error {
	log.WithError(err).Error("Invocation failed")
	o.cleanup(log, inv.ArtifactPath)
	o.publish(ctx, "failure-metrics", metrics.Datum{Name: metrics.RenderFailure, Value: 1, Unit: metrics.UnitCount})
	return err
}

func (o *Orchestrator) publish(ctx context.Context, name string, data ...metrics.Datum) *task.Handle {
	return task.Detach(ctx, name, metricsTimeout, o.logger, func(tctx context.Context) error {
		return o.metrics.Publish(tctx, data...)
	})
}

// cleanup removes per-invocation artifacts. A fixed path is left in place.
func (o *Orchestrator) cleanup(log *logrus.Entry, path string) {
	if !o.opts.Render.UniqueArtifactPath {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to remove artifact")
	}
}

func (o *Orchestrator) processSpec(artifactPath string) process.Spec {
	r := o.opts.Render
	args := append(append([]string{}, r.RendererArgs...), artifactPath)
	env := []string{
		"START_URL=" + r.StartURL,
		"RENDER_TIMEOUT=" + r.RenderTimeout.String(),
		"VIEWPORT_WIDTH=" + strconv.Itoa(r.ViewportWidth),
		"VIEWPORT_HEIGHT=" + strconv.Itoa(r.ViewportHeight),
		"FULL_PAGE=" + strconv.FormatBool(r.FullPage),
		"SCREENSHOT_TEMP_FILE=" + artifactPath,
	}
	if r.ChromeBin != "" {
		env = append(env, "CHROME_BIN="+r.ChromeBin)
	}
	return process.Spec{
		Path: r.RendererBin,
		Args: args,
		Env:  append(env, o.opts.Env...),
	}
}

func (o *Orchestrator) invocationID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return o.newID()
}

// artifactPath returns <dir>/<stem>-<id><ext> when paths are per invocation
func (o *Orchestrator) artifactPath(id string) string {
	p := o.opts.Render.ArtifactPath
	if !o.opts.Render.UniqueArtifactPath {
		return p
	}
	ext := filepath.Ext(p)
	stem := strings.TrimSuffix(filepath.Base(p), ext)
	return filepath.Join(filepath.Dir(p), fmt.Sprintf("%s-%s%s", stem, id, ext))
}
