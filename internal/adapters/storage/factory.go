package storage

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StorageType represents the type of storage implementation
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMock  StorageType = "mock"
)

// Factory creates ObjectStore instances based on configuration
type Factory struct {
	retryConfig *RetryConfig
	s3Client    S3API
}

// FactoryOption customises a Factory
type FactoryOption func(*Factory)

// WithS3Client makes the factory use client instead of loading AWS config
func WithS3Client(client S3API) FactoryOption {
	return func(f *Factory) {
		f.s3Client = client
	}
}

// NewFactory creates a new storage factory
func NewFactory(retryConfig *RetryConfig, opts ...FactoryOption) *Factory {
	f := &Factory{retryConfig: retryConfig}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create creates an ObjectStore instance based on the provided configuration
func (f *Factory) Create(ctx context.Context, config *StoreConfig) (ObjectStore, error) {
	if config == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	var store ObjectStore
	var err error

	switch StorageType(strings.ToLower(config.Type)) {
	case StorageTypeLocal:
		store, err = f.createLocalStore(config)
	case StorageTypeS3:
		store, err = f.createS3Store(ctx, config)
	case StorageTypeMock:
		store = NewMockObjectStore()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", config.Type, err)
	}

	if f.retryConfig != nil {
		store = NewRetryableObjectStore(store, f.retryConfig)
	}

	return store, nil
}

func (f *Factory) createLocalStore(config *StoreConfig) (ObjectStore, error) {
	basePath := config.BasePath
	if basePath == "" {
		basePath = "./data/screenshots"
	}
	return NewLocalObjectStore(basePath)
}

func (f *Factory) createS3Store(ctx context.Context, config *StoreConfig) (ObjectStore, error) {
	client := f.s3Client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if config.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}
	return NewS3ObjectStore(client, config.Bucket)
}

// DefaultFactory returns a factory with default retry configuration
func DefaultFactory() *Factory {
	return NewFactory(DefaultRetryConfig())
}
