package storage

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for storage operations
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
	JitterEnabled bool          `json:"jitter_enabled" yaml:"jitter_enabled"`
}

// DefaultRetryConfig returns the retry policy used for uploads
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func(ctx context.Context) error

// WithRetry executes op until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done.
func WithRetry(ctx context.Context, config *RetryConfig, op RetryableOperation) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt >= config.MaxAttempts || !IsRetryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.calculateDelay(attempt)):
		}
	}

	return lastErr
}

// calculateDelay returns initial_delay * backoff_factor^(attempt-1), capped at MaxDelay
func (c *RetryConfig) calculateDelay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))

	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.JitterEnabled {
		delay += rand.Float64() * 0.1 * delay
	}

	return time.Duration(delay)
}

// RetryableObjectStore wraps an ObjectStore with retry logic
type RetryableObjectStore struct {
	store  ObjectStore
	config *RetryConfig
}

// NewRetryableObjectStore creates a new RetryableObjectStore
func NewRetryableObjectStore(store ObjectStore, config *RetryConfig) *RetryableObjectStore {
	if config == nil {
		config = DefaultRetryConfig()
	}

	return &RetryableObjectStore{
		store:  store,
		config: config,
	}
}

// Put implements ObjectStore.Put with retry logic
func (r *RetryableObjectStore) Put(ctx context.Context, key string, data []byte, opts *PutOptions) (*ObjectMetadata, error) {
	var result *ObjectMetadata
	err := WithRetry(ctx, r.config, func(ctx context.Context) error {
		meta, err := r.store.Put(ctx, key, data, opts)
		if err != nil {
			return err
		}
		result = meta
		return nil
	})
	return result, err
}

// Head implements ObjectStore.Head with retry logic
func (r *RetryableObjectStore) Head(ctx context.Context, key string) (*ObjectMetadata, error) {
	var result *ObjectMetadata
	err := WithRetry(ctx, r.config, func(ctx context.Context) error {
		meta, err := r.store.Head(ctx, key)
		if err != nil {
			return err
		}
		result = meta
		return nil
	})
	return result, err
}

// Exists implements ObjectStore.Exists with retry logic
func (r *RetryableObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	var result bool
	err := WithRetry(ctx, r.config, func(ctx context.Context) error {
		exists, err := r.store.Exists(ctx, key)
		if err != nil {
			return err
		}
		result = exists
		return nil
	})
	return result, err
}

// Location implements ObjectStore.Location
func (r *RetryableObjectStore) Location() string {
	return r.store.Location()
}

// Close implements ObjectStore.Close
func (r *RetryableObjectStore) Close() error {
	return r.store.Close()
}
