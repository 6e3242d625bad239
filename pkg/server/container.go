package server

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"screenshot-lambda/internal/adapters/storage"
	"screenshot-lambda/internal/config"
	"screenshot-lambda/internal/metrics"
	"screenshot-lambda/internal/orchestrator"
	"screenshot-lambda/internal/upload"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logrus.Logger
	Store        storage.ObjectStore
	Uploader     *upload.Uploader
	Metrics      metrics.Publisher
	Orchestrator *orchestrator.Orchestrator
}

// Option customises container construction
type Option func(*containerOptions)

type containerOptions struct {
	logger    *logrus.Logger
	factory   *storage.Factory
	publisher metrics.Publisher
}

// WithLogger overrides the logger built from configuration
func WithLogger(logger *logrus.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithStorageFactory overrides the default storage factory
func WithStorageFactory(f *storage.Factory) Option {
	return func(o *containerOptions) { o.factory = f }
}

// WithMetricsPublisher overrides the publisher chosen from configuration
func WithMetricsPublisher(p metrics.Publisher) Option {
	return func(o *containerOptions) { o.publisher = p }
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	o := &containerOptions{factory: storage.DefaultFactory()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = cfg.Log.NewLogger()
	}

	ctx := context.Background()
	c := &Container{Config: cfg, Logger: o.logger}

	// Storage is only needed when uploads can happen
	if cfg.Upload.Enabled {
		store, err := o.factory.Create(ctx, &storage.StoreConfig{
			Type:     cfg.Storage.Type,
			BasePath: cfg.Storage.LocalPath,
			Bucket:   cfg.Upload.BucketName,
			Region:   cfg.Storage.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create object store: %w", err)
		}
		c.Store = store
		c.Uploader = upload.NewUploader(store, upload.Options{
			Bucket:        cfg.Upload.BucketName,
			Prefix:        cfg.Upload.BucketPrefix,
			EnvironmentID: cfg.Upload.EnvironmentID,
			ExpiryDays:    cfg.Upload.ExpiryDays,
		}, o.logger)
	}

	switch {
	case o.publisher != nil:
		c.Metrics = o.publisher
	case cfg.Metrics.Enabled:
		publisher, err := metrics.NewCloudWatchPublisherFromConfig(ctx, cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Upload.EnvironmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics publisher: %w", err)
		}
		c.Metrics = publisher
	default:
		c.Metrics = metrics.NopPublisher{}
	}

	var uploader orchestrator.ArtifactUploader
	if c.Uploader != nil {
		uploader = c.Uploader
	}
	c.Orchestrator = orchestrator.New(orchestrator.OptionsFromConfig(cfg), uploader, c.Metrics, o.logger)

	o.logger.WithFields(logrus.Fields{
		"mode":           config.GetDeploymentMode(),
		"upload_enabled": cfg.Upload.Enabled,
		"storage":        cfg.Storage.Type,
		"metrics":        cfg.Metrics.Enabled,
	}).Info("Container initialized")

	return c, nil
}

// Close cleans up all resources
func (c *Container) Close() error {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			return fmt.Errorf("failed to close object store: %w", err)
		}
	}
	return nil
}
