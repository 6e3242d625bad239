package server

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"screenshot-lambda/internal/adapters/storage"
	"screenshot-lambda/internal/config"
	"screenshot-lambda/internal/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Port:        "8081",
		Log:         config.LogConfig{Level: "info", Format: "json"},
		Render: config.RenderConfig{
			StartURL:       "https://example.com",
			ArtifactPath:   t.TempDir() + "/shot.png",
			RendererBin:    "./renderer",
			RenderTimeout:  30 * time.Second,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
		Upload: config.UploadConfig{
			FlagMode:      config.UploadFlagBool,
			Timeout:       30 * time.Second,
			EnvironmentID: "test",
			BucketName:    "ssh-pipeline",
			BucketPrefix:  "phantomjs/screenshots",
			ExpiryDays:    14,
		},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Metrics: config.MetricsConfig{Namespace: "PhantomJS"},
		Server:  config.ServerConfig{MaxConcurrentRenders: 2, RateLimitRPS: 1, RateLimitBurst: 2},
	}
}

// TestNewContainer verifies that the container can be created successfully
func TestNewContainer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	container, err := NewContainer(cfg, WithLogger(logger))
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}

	if container.Orchestrator == nil {
		t.Fatal("Orchestrator is nil")
	}
	if container.Store != nil || container.Uploader != nil {
		t.Error("storage should not be created while uploads are disabled")
	}
	if _, ok := container.Metrics.(metrics.NopPublisher); !ok {
		t.Errorf("expected NopPublisher, got %T", container.Metrics)
	}

	if err := container.Close(); err != nil {
		t.Errorf("Failed to close container: %v", err)
	}
}

// TestContainerWithUploads verifies storage wiring when uploads are on
func TestContainerWithUploads(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Upload.Enabled = true
	cfg.Storage.Type = "mock"
	rec := &metrics.Recorder{}

	container, err := NewContainer(cfg,
		WithLogger(logger),
		WithStorageFactory(storage.NewFactory(nil)),
		WithMetricsPublisher(rec),
	)
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	defer container.Close()

	if container.Uploader == nil {
		t.Fatal("Uploader is nil")
	}
	if _, ok := container.Store.(*storage.MockObjectStore); !ok {
		t.Errorf("expected mock store, got %T", container.Store)
	}
	if container.Metrics != rec {
		t.Error("metrics publisher override was ignored")
	}
}

func TestNewContainerRejectsBadStorage(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Upload.Enabled = true
	cfg.Storage.Type = "ftp"

	if _, err := NewContainer(cfg, WithLogger(logger)); err == nil {
		t.Fatal("expected error for unsupported storage type")
	}
}

func TestManagerLifecycle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(testConfig(t), WithLogger(logger))

	if m.IsHealthy() {
		t.Fatal("manager should not be healthy before first use")
	}

	first, err := m.GetContainer(context.Background())
	if err != nil {
		t.Fatalf("GetContainer failed: %v", err)
	}
	second, err := m.GetContainer(context.Background())
	if err != nil {
		t.Fatalf("GetContainer failed: %v", err)
	}
	if first != second {
		t.Error("warm invocations should share one container")
	}
	if !m.IsHealthy() {
		t.Error("manager should be healthy once a container is built")
	}

	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if m.IsHealthy() {
		t.Error("manager should not be healthy after cleanup")
	}

	third, err := m.GetContainer(context.Background())
	if err != nil {
		t.Fatalf("GetContainer after cleanup failed: %v", err)
	}
	if third == first {
		t.Error("cleanup should force a fresh container")
	}
}
